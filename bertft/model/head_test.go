package model

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEncoder_DeterministicAndMaskAware(t *testing.T) {
	enc := NewHashEncoder(2, 4)
	batch := &encoding.Batch{
		TokenIDs:      []int64{101, 7, 102, 0},
		AttentionMask: []int64{1, 1, 1, 0},
		SegmentIDs:    []int64{0, 0, 0, 0},
	}

	a, err := enc.Encode(context.Background(), batch)
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same batch encodes identically")

	require.Len(t, a, 2)
	assert.Equal(t, []float32{0, 0, 0, 0}, a[0][3], "padded position is zero")
	for d := range a[0][1] {
		assert.InDelta(t, a[0][1][d]*2, a[1][1][d], 1e-6, "layer 1 doubles layer 0")
	}
}

func TestLinearHead_ForwardBackward(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := NewLinearHead(2, 3, 0, rng)
	copy(h.W, []float64{1, 0, 0, 0, 1, 0})
	h.B = []float64{0.5, -0.5}

	logits := h.Forward([]float64{2, 3, 4})
	assert.InDelta(t, 2.5, logits[0], 1e-12)
	assert.InDelta(t, 2.5, logits[1], 1e-12)

	h.Backward([]float64{2, 3, 4}, []float64{1, 0})
	assert.Equal(t, []float64{2, 3, 4, 0, 0, 0}, h.dW)
	assert.Equal(t, []float64{1, 0}, h.dB)

	h.ZeroGrad()
	assert.Equal(t, make([]float64, 6), h.dW)
}

func TestLinearHead_TrainsSeparableProblem(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := NewLinearHead(2, 2, 0, rng)

	// class 0 near (1,0), class 1 near (0,1)
	samples := [][]float64{{1, 0}, {0.9, 0.1}, {0, 1}, {0.1, 0.9}}
	targets := []int{0, 0, 1, 1}

	for epoch := 0; epoch < 200; epoch++ {
		for i, x := range samples {
			_, grad := CrossEntropyLoss(h.Forward(x), targets[i])
			h.Backward(x, grad)
			h.Step(0.05)
		}
	}
	for i, x := range samples {
		probs := Softmax(h.Forward(x))
		assert.Greater(t, probs[targets[i]], 0.9, "sample %d", i)
	}
}

func TestCrossEntropyLoss(t *testing.T) {
	loss, grad := CrossEntropyLoss([]float64{0, 0}, 1)
	assert.InDelta(t, math.Log(2), loss, 1e-12)
	assert.InDelta(t, 0.5, grad[0], 1e-12)
	assert.InDelta(t, -0.5, grad[1], 1e-12)
}

func TestSquaredErrorLoss(t *testing.T) {
	loss, grad := SquaredErrorLoss(3, 1)
	assert.Equal(t, 4.0, loss)
	assert.Equal(t, []float64{4}, grad)
}

func TestPool_RespectsMask(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := NewLinearHead(2, 2, 0, rng)
	enc := NewHashEncoder(1, 2)

	batch := &encoding.Batch{
		TokenIDs:      []int64{101, 7, 102, 0},
		AttentionMask: []int64{0, 1, 1, 0}, // mask_cls style: marker masked
		SegmentIDs:    []int64{0, 0, 0, 0},
	}
	layers, err := enc.Encode(context.Background(), batch)
	require.NoError(t, err)

	pooled, err := h.Pool(layers, batch)
	require.NoError(t, err)
	for d := 0; d < 2; d++ {
		want := (float64(layers[0][1][d]) + float64(layers[0][2][d])) / 2
		assert.InDelta(t, want, pooled[d], 1e-6)
	}
}

func TestNewEncoder_UnknownProvider(t *testing.T) {
	_, err := NewEncoder("quantum", "", 1, 1)
	assert.Error(t, err)
}
