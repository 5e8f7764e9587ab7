// Package align recovers word-level embeddings from the encoder's per
// sub-word, per-layer output.
package align

import (
	"fmt"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"
)

// Span is a half-open range of sub-word positions belonging to one word.
// An empty span (Start == End) marks a word that produced no sub-words.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// Alignment maps each original word, in order, to its sub-word span in the
// [CLS] subwords... [SEP] sequence. Spans are contiguous, disjoint and
// exclude the marker positions.
type Alignment []Span

// Align re-tokenizes each word independently and records the span it
// occupies. Position 0 is the leading marker, so the first word starts at 1.
func Align(words []string, tok tokenizer.Tokenizer) Alignment {
	spans := make(Alignment, 0, len(words))
	pos := 1 // skip [CLS]
	for _, word := range words {
		n := len(tok.Tokenize(word))
		spans = append(spans, Span{Start: pos, End: pos + n})
		pos += n
	}
	return spans
}

// NumSubwords returns the total sub-word count covered by the alignment,
// excluding markers.
func (a Alignment) NumSubwords() int {
	if len(a) == 0 {
		return 0
	}
	return a[len(a)-1].End - a[0].Start
}

// Validate checks that spans are ordered, contiguous and inside the given
// sub-word sequence length (markers at position 0 and seqLen-1 excluded).
func (a Alignment) Validate(seqLen int) error {
	pos := 1
	for i, s := range a {
		if s.Start != pos {
			return fmt.Errorf("span %d starts at %d, want %d", i, s.Start, pos)
		}
		if s.End < s.Start {
			return fmt.Errorf("span %d is negative", i)
		}
		pos = s.End
	}
	if pos > seqLen-1 {
		return fmt.Errorf("alignment covers %d positions, sequence has %d", pos, seqLen)
	}
	return nil
}
