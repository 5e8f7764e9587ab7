package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Vocab maps sub-word pieces to their ids by vocab.txt line order.
type Vocab struct {
	tokens []string
	ids    map[string]int64
	unkID  int64
	clsID  int64
	sepID  int64
	padID  int64
}

// LoadVocab reads a vocab.txt file, one token per line, line number = id.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	v := &Vocab{ids: make(map[string]int64, 60000)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		v.ids[tok] = int64(len(v.tokens))
		v.tokens = append(v.tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	v.resolveSpecials()
	return v, nil
}

// NewVocab builds a vocab from an in-memory token list, used by tests.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{tokens: tokens, ids: make(map[string]int64, len(tokens))}
	for i, tok := range tokens {
		v.ids[tok] = int64(i)
	}
	v.resolveSpecials()
	return v
}

func (v *Vocab) resolveSpecials() {
	// Defaults match the standard BERT vocab layout when the markers are absent
	v.padID = 0
	v.unkID = 100
	v.clsID = 101
	v.sepID = 102
	if id, ok := v.ids[PADToken]; ok {
		v.padID = id
	}
	if id, ok := v.ids[UNKToken]; ok {
		v.unkID = id
	}
	if id, ok := v.ids[CLSToken]; ok {
		v.clsID = id
	}
	if id, ok := v.ids[SEPToken]; ok {
		v.sepID = id
	}
}

func (v *Vocab) Size() int    { return len(v.tokens) }
func (v *Vocab) UNKID() int64 { return v.unkID }
func (v *Vocab) CLSID() int64 { return v.clsID }
func (v *Vocab) SEPID() int64 { return v.sepID }
func (v *Vocab) PADID() int64 { return v.padID }

// ID returns the id for a token, falling back to [UNK].
func (v *Vocab) ID(token string) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unkID
}

// Token returns the piece for an id; out-of-range ids map to [UNK].
func (v *Vocab) Token(id int64) string {
	if id < 0 || id >= int64(len(v.tokens)) {
		return UNKToken
	}
	return v.tokens[id]
}

// Has reports whether the exact token is in the vocab.
func (v *Vocab) Has(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// Tokens returns the vocab in id order. Callers must not mutate it.
func (v *Vocab) Tokens() []string { return v.tokens }
