package align

import (
	"testing"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTok() tokenizer.Tokenizer {
	return tokenizer.NewWordPiece(tokenizer.NewVocab([]string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"the", "dog", "jack", "##son", "##ville",
	}), false)
}

func TestAlign_SpansPartitionSubwords(t *testing.T) {
	tok := testTok()
	words := []string{"the", "jacksonville", "dog"}
	al := Align(words, tok)

	require.Len(t, al, 3)
	assert.Equal(t, Span{1, 2}, al[0])
	assert.Equal(t, Span{2, 5}, al[1], "exploded word covers three pieces")
	assert.Equal(t, Span{5, 6}, al[2])

	// [CLS] the jack ##son ##ville dog [SEP] = 7 positions
	assert.NoError(t, al.Validate(7))
	assert.Equal(t, 5, al.NumSubwords())
}

func TestAlign_EmptyWordKeepsPosition(t *testing.T) {
	tok := testTok()
	// "" tokenizes to zero pieces; the following word must not shift
	al := Align([]string{"the", "", "dog"}, tok)

	require.Len(t, al, 3)
	assert.Equal(t, Span{2, 2}, al[1], "empty span reserved")
	assert.Equal(t, Span{2, 3}, al[2])
	assert.NoError(t, al.Validate(5))
}

func TestAggregate_SingleSubwordIdentity(t *testing.T) {
	al := Alignment{{1, 2}, {2, 3}}
	layers := LayerOutputs{
		{{0, 0}, {1, 2}, {3, 4}, {0, 0}},
		{{0, 0}, {5, 6}, {7, 8}, {0, 0}},
	}

	out, err := Aggregate(al, layers, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Words)
	assert.Equal(t, []float32{1, 2}, out.Data[0][0])
	assert.Equal(t, []float32{3, 4}, out.Data[0][1])
	assert.Equal(t, []float32{5, 6}, out.Data[1][0])
	assert.Equal(t, []float32{7, 8}, out.Data[1][1])
}

func TestAggregate_SumsNotMeans(t *testing.T) {
	al := Alignment{{1, 3}}
	layers := LayerOutputs{{{0, 0}, {1, 10}, {2, 20}, {0, 0}}}

	out, err := Aggregate(al, layers, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 30}, out.Data[0][0], "element-wise sum of both pieces")
}

func TestAggregate_EmptySpanIsZeroVector(t *testing.T) {
	al := Alignment{{1, 1}, {1, 2}}
	layers := LayerOutputs{{{9, 9}, {1, 2}, {9, 9}}}

	out, err := Aggregate(al, layers, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, out.Data[0][0])
	assert.Equal(t, []float32{1, 2}, out.Data[0][1])
}

func TestAggregate_LayerIndexOutOfRange(t *testing.T) {
	_, err := Aggregate(Alignment{{1, 2}}, LayerOutputs{{{1}}}, []int{3})
	assert.Error(t, err)
}
