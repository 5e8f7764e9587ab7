// Package encoding converts raw token sequences into fixed-length
// id/mask/segment batches for the encoder.
package encoding

import (
	"fmt"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"
)

// Example is a single training/test example for sequence tasks. TextB is
// empty for single-sequence tasks; Label is empty at inference time.
type Example struct {
	ID    string
	TextA string
	TextB string
	Label string
}

// Batch is one encoded example: three arrays of length exactly MaxLen.
type Batch struct {
	TokenIDs      []int64
	AttentionMask []int64
	SegmentIDs    []int64
	Tokens        []string // real tokens incl. markers, no padding
	LabelID       float64
	HasLabel      bool
}

// TruncationMode selects how a too-long single sequence is handled.
type TruncationMode int

const (
	// Lenient silently truncates TokensA to the budget.
	Lenient TruncationMode = iota
	// Strict rejects the example with ErrLengthExceeded.
	Strict
)

// ErrLengthExceeded reports a single sequence over the truncation budget
// under Strict mode. Fatal for that example, never retried.
var ErrLengthExceeded = fmt.Errorf("sequence length exceeds maximum")

// Config controls the sequence encoder.
type Config struct {
	MaxLen     int
	Truncation TruncationMode
	// MaskCLS zeroes the attention mask at the leading marker position while
	// keeping its id, so the aggregate sentence slot cannot attend to itself.
	MaskCLS bool
}

// Encoder builds fixed-length batches from tokenized sequences.
type Encoder struct {
	cfg Config
	tok tokenizer.Tokenizer
}

func New(cfg Config, tok tokenizer.Tokenizer) *Encoder {
	return &Encoder{cfg: cfg, tok: tok}
}

// EncodeExample tokenizes both texts and encodes them into one batch.
func (e *Encoder) EncodeExample(ex Example) (*Batch, error) {
	tokensA := e.tok.Tokenize(ex.TextA)
	var tokensB []string
	if ex.TextB != "" {
		tokensB = e.tok.Tokenize(ex.TextB)
	}
	return e.Encode(tokensA, tokensB)
}

// Encode builds the [CLS] a [SEP] (b [SEP]) layout, truncates to the budget,
// assigns segment ids and mask, and right-pads everything to MaxLen.
func (e *Encoder) Encode(tokensA, tokensB []string) (*Batch, error) {
	maxLen := e.cfg.MaxLen
	if len(tokensB) > 0 {
		// [CLS], [SEP], [SEP] take three slots
		tokensA, tokensB = TruncatePair(tokensA, tokensB, maxLen-3)
	} else if len(tokensA) > maxLen-2 {
		if e.cfg.Truncation == Strict {
			return nil, fmt.Errorf("%w: %d tokens > budget %d", ErrLengthExceeded, len(tokensA), maxLen-2)
		}
		tokensA = tokensA[:maxLen-2]
	}

	tokens := make([]string, 0, maxLen)
	segments := make([]int64, 0, maxLen)
	tokens = append(tokens, tokenizer.CLSToken)
	segments = append(segments, 0)
	for _, t := range tokensA {
		tokens = append(tokens, t)
		segments = append(segments, 0)
	}
	tokens = append(tokens, tokenizer.SEPToken)
	segments = append(segments, 0)
	for _, t := range tokensB {
		tokens = append(tokens, t)
		segments = append(segments, 1)
	}
	if len(tokensB) > 0 {
		tokens = append(tokens, tokenizer.SEPToken)
		segments = append(segments, 1)
	}

	ids := e.tok.TokensToIDs(tokens)
	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	if e.cfg.MaskCLS {
		mask[0] = 0
	}

	// Zero-pad up to the sequence length.
	for len(ids) < maxLen {
		ids = append(ids, 0)
		mask = append(mask, 0)
		segments = append(segments, 0)
	}

	return &Batch{
		TokenIDs:      ids,
		AttentionMask: mask,
		SegmentIDs:    segments,
		Tokens:        tokens,
	}, nil
}

// TruncatePair trims a token pair to maxLen total, removing one token at a
// time from the end of whichever sequence is currently longer; ties remove
// from b. Returns new slices, inputs are never mutated. Idempotent on
// already-compliant pairs.
func TruncatePair(a, b []string, maxLen int) ([]string, []string) {
	if maxLen < 0 {
		maxLen = 0
	}
	la, lb := len(a), len(b)
	for la+lb > maxLen {
		if la > lb {
			la--
		} else {
			lb--
		}
	}
	return a[:la:la], b[:lb:lb]
}
