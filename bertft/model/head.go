package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/align"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
)

// LinearHead is the trainable task layer: logits = W·pooled + b over a
// mask-weighted mean pooling of one encoder layer. Classification heads
// carry one output per label, regression heads exactly one.
type LinearHead struct {
	NumOutputs int
	Hidden     int
	LayerIndex int // which encoder layer feeds the head

	W []float64 // row-major (NumOutputs x Hidden)
	B []float64

	dW []float64
	dB []float64

	// Adam state
	mW, vW []float64
	mB, vB []float64
	steps  int
}

// NewLinearHead initializes a head with small random weights.
func NewLinearHead(numOutputs, hidden, layerIndex int, rng *rand.Rand) *LinearHead {
	h := &LinearHead{
		NumOutputs: numOutputs,
		Hidden:     hidden,
		LayerIndex: layerIndex,
		W:          make([]float64, numOutputs*hidden),
		B:          make([]float64, numOutputs),
		dW:         make([]float64, numOutputs*hidden),
		dB:         make([]float64, numOutputs),
		mW:         make([]float64, numOutputs*hidden),
		vW:         make([]float64, numOutputs*hidden),
		mB:         make([]float64, numOutputs),
		vB:         make([]float64, numOutputs),
	}
	scale := 0.02
	for i := range h.W {
		h.W[i] = rng.NormFloat64() * scale
	}
	return h
}

// Pool computes the mask-weighted mean of the head's layer. Positions with
// mask 0 (padding, and the leading marker when mask_cls is on) contribute
// nothing.
func (h *LinearHead) Pool(layers align.LayerOutputs, batch *encoding.Batch) ([]float64, error) {
	if h.LayerIndex < 0 || h.LayerIndex >= len(layers) {
		return nil, fmt.Errorf("head layer index %d out of range for %d layers", h.LayerIndex, len(layers))
	}
	layer := layers[h.LayerIndex]
	pooled := make([]float64, h.Hidden)
	var n float64
	for pos, row := range layer {
		if pos >= len(batch.AttentionMask) || batch.AttentionMask[pos] == 0 {
			continue
		}
		for d := 0; d < h.Hidden && d < len(row); d++ {
			pooled[d] += float64(row[d])
		}
		n++
	}
	if n > 0 {
		for d := range pooled {
			pooled[d] /= n
		}
	}
	return pooled, nil
}

// Forward computes logits for pooled features.
func (h *LinearHead) Forward(pooled []float64) []float64 {
	logits := make([]float64, h.NumOutputs)
	for c := 0; c < h.NumOutputs; c++ {
		sum := h.B[c]
		row := h.W[c*h.Hidden : (c+1)*h.Hidden]
		for d, x := range pooled {
			sum += row[d] * x
		}
		logits[c] = sum
	}
	return logits
}

// Backward accumulates parameter gradients for one example given the
// upstream gradient of the loss with respect to the logits.
func (h *LinearHead) Backward(pooled, dLogits []float64) {
	for c := 0; c < h.NumOutputs; c++ {
		g := dLogits[c]
		if g == 0 {
			continue
		}
		row := h.dW[c*h.Hidden : (c+1)*h.Hidden]
		for d, x := range pooled {
			row[d] += g * x
		}
		h.dB[c] += g
	}
}

// ScaleGradients divides accumulated gradients, used to average over the
// gradient accumulation window.
func (h *LinearHead) ScaleGradients(factor float64) {
	for i := range h.dW {
		h.dW[i] *= factor
	}
	for i := range h.dB {
		h.dB[i] *= factor
	}
}

// Step applies one Adam update at the given learning rate and clears the
// accumulated gradients.
func (h *LinearHead) Step(lr float64) {
	const (
		beta1 = 0.9
		beta2 = 0.999
		eps   = 1e-8
	)
	h.steps++
	t := float64(h.steps)
	lrT := lr * math.Sqrt(1.0-math.Pow(beta2, t)) / (1.0 - math.Pow(beta1, t))

	adam := func(w, g, m, v []float64) {
		for i := range w {
			grad := g[i]
			if math.IsNaN(grad) || math.IsInf(grad, 0) {
				grad = 0
			}
			m[i] = beta1*m[i] + (1-beta1)*grad
			v[i] = beta2*v[i] + (1-beta2)*grad*grad
			denom := math.Sqrt(v[i]) + eps
			w[i] -= lrT * m[i] / denom
		}
	}
	adam(h.W, h.dW, h.mW, h.vW)
	adam(h.B, h.dB, h.mB, h.vB)
	h.ZeroGrad()
}

// ResetOptimizer reallocates gradient and Adam state, needed after a head
// is restored from a checkpoint (only exported fields survive the trip).
func (h *LinearHead) ResetOptimizer() {
	h.dW = make([]float64, h.NumOutputs*h.Hidden)
	h.dB = make([]float64, h.NumOutputs)
	h.mW = make([]float64, h.NumOutputs*h.Hidden)
	h.vW = make([]float64, h.NumOutputs*h.Hidden)
	h.mB = make([]float64, h.NumOutputs)
	h.vB = make([]float64, h.NumOutputs)
	h.steps = 0
}

// ZeroGrad clears accumulated gradients without stepping.
func (h *LinearHead) ZeroGrad() {
	for i := range h.dW {
		h.dW[i] = 0
	}
	for i := range h.dB {
		h.dB[i] = 0
	}
}

// Softmax returns normalized class probabilities for logits.
func Softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, l := range logits {
		if l > max {
			max = l
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// CrossEntropyLoss returns the negative log likelihood of the target class
// and the gradient with respect to the logits.
func CrossEntropyLoss(logits []float64, target int) (float64, []float64) {
	probs := Softmax(logits)
	loss := -math.Log(math.Max(probs[target], 1e-12))
	grad := make([]float64, len(logits))
	copy(grad, probs)
	grad[target] -= 1
	return loss, grad
}

// SquaredErrorLoss returns (pred-target)^2 and its gradient for the single
// regression logit.
func SquaredErrorLoss(pred, target float64) (float64, []float64) {
	diff := pred - target
	return diff * diff, []float64{2 * diff}
}
