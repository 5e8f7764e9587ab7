// Package model holds the external encoder contract and the trainable task
// head. The transformer itself is a collaborator behind the Encoder
// interface; this package never looks inside it.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/align"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
)

// Encoder produces per-layer hidden states for one encoded batch. Encode
// returns one (position, hidden) matrix per layer, positions spanning the
// batch's full padded length. Failures are fatal for the run; callers
// restart from the last checkpoint rather than retrying.
type Encoder interface {
	NumLayers() int
	Hidden() int
	Encode(ctx context.Context, batch *encoding.Batch) (align.LayerOutputs, error)
}

// Trainable is implemented by encoders whose own parameters can take
// gradient updates. The freeze-encoder option skips these calls; the head
// still trains either way.
type Trainable interface {
	ApplyGradients(lr float64)
	ZeroGrad()
}

// NewEncoder selects an encoder provider by name ("hash", "onnx").
func NewEncoder(provider, modelPath string, numLayers, hidden int) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "hash", "", "dev":
		return NewHashEncoder(numLayers, hidden), nil
	case "onnx":
		return newONNXEncoder(modelPath, numLayers, hidden)
	}
	return nil, fmt.Errorf("unknown encoder provider %q", provider)
}
