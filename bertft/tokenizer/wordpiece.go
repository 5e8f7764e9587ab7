package tokenizer

import (
	"strings"
	"unicode"

	"github.com/armon/go-radix"
)

// WordPiece is a greedy longest-match sub-word tokenizer over a fixed vocab.
// Matching runs on a pair of patricia trees (whole-word pieces and "##"
// continuation pieces) so each step is O(len(word)) instead of scanning
// candidate lengths against the vocab map.
type WordPiece struct {
	vocab       *Vocab
	headPieces  *radix.Tree // pieces that may start a word
	contPieces  *radix.Tree // "##" pieces, keyed without the prefix
	doLowerCase bool
	maxInputLen int // words longer than this map straight to [UNK]
}

// NewWordPiece builds a WordPiece tokenizer from a loaded vocab.
func NewWordPiece(v *Vocab, doLowerCase bool) *WordPiece {
	head := radix.New()
	cont := radix.New()
	for _, tok := range v.Tokens() {
		if strings.HasPrefix(tok, "##") {
			cont.Insert(tok[2:], struct{}{})
		} else {
			head.Insert(tok, struct{}{})
		}
	}
	return &WordPiece{
		vocab:       v,
		headPieces:  head,
		contPieces:  cont,
		doLowerCase: doLowerCase,
		maxInputLen: 100,
	}
}

func (w *WordPiece) Vocab() *Vocab { return w.vocab }

// Tokenize splits text on whitespace and punctuation, then applies greedy
// longest-match sub-word segmentation to each word. A word with no matching
// piece at some offset collapses to a single [UNK].
func (w *WordPiece) Tokenize(text string) []string {
	if w.doLowerCase {
		text = strings.ToLower(text)
	}
	var pieces []string
	for _, word := range splitOnWhitespaceAndPunct(text) {
		pieces = append(pieces, w.tokenizeWord(word)...)
	}
	return pieces
}

func (w *WordPiece) tokenizeWord(word string) []string {
	if word == "" {
		return nil
	}
	if len(word) > w.maxInputLen {
		return []string{UNKToken}
	}
	var out []string
	start := 0
	for start < len(word) {
		rest := word[start:]
		var match string
		var ok bool
		if start == 0 {
			match, _, ok = w.headPieces.LongestPrefix(rest)
		} else {
			match, _, ok = w.contPieces.LongestPrefix(rest)
		}
		if !ok || match == "" {
			return []string{UNKToken}
		}
		if start == 0 {
			out = append(out, match)
		} else {
			out = append(out, "##"+match)
		}
		start += len(match)
	}
	return out
}

func (w *WordPiece) TokensToIDs(tokens []string) []int64 {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		ids[i] = w.vocab.ID(tok)
	}
	return ids
}

func (w *WordPiece) IDsToTokens(ids []int64) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = w.vocab.Token(id)
	}
	return tokens
}

// splitOnWhitespaceAndPunct performs the basic pre-tokenization: whitespace
// separates words and every punctuation rune becomes its own word.
func splitOnWhitespaceAndPunct(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
