package tokenizer

import (
	"fmt"
)

// Tokenizer converts words to sub-word pieces and maps pieces to vocab ids.
// Tokenize returns pieces without any marker tokens.
type Tokenizer interface {
	Tokenize(text string) []string
	TokensToIDs(tokens []string) []int64
	IDsToTokens(ids []int64) []string
	Vocab() *Vocab
}

// Marker tokens inserted around encoded sequences.
const (
	CLSToken = "[CLS]"
	SEPToken = "[SEP]"
	UNKToken = "[UNK]"
	PADToken = "[PAD]"
)

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")
