package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// SugarWordPiece wraps sugarme/tokenizer WordPiece (BERT-style). It handles
// normalization and pre-tokenization; id mapping goes through the shared
// Vocab so marker ids stay consistent with the fallback tokenizer.
type SugarWordPiece struct {
	t     *tk.Tokenizer
	vocab *Vocab
}

// NewSugarWordPiece loads vocab.txt and builds a BERT WordPiece tokenizer
func NewSugarWordPiece(vocabPath string, doLowerCase bool) (*SugarWordPiece, error) {
	vocab, err := LoadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, UNKToken)
	if err != nil {
		return nil, fmt.Errorf("build wordpiece model: %w", err)
	}
	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, doLowerCase, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())
	return &SugarWordPiece{t: t, vocab: vocab}, nil
}

func (s *SugarWordPiece) Vocab() *Vocab { return s.vocab }

// Tokenize returns sub-word pieces without marker tokens.
func (s *SugarWordPiece) Tokenize(text string) []string {
	enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		// sugarme only fails on malformed input sequences; treat as unknown
		return []string{UNKToken}
	}
	return enc.GetTokens()
}

func (s *SugarWordPiece) TokensToIDs(tokens []string) []int64 {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		ids[i] = s.vocab.ID(tok)
	}
	return ids
}

func (s *SugarWordPiece) IDsToTokens(ids []int64) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = s.vocab.Token(id)
	}
	return tokens
}
