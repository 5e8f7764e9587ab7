//go:build !onnx
// +build !onnx

package model

import (
	"fmt"
)

// Stub used when the onnx build tag is not set.
func newONNXEncoder(modelPath string, numLayers, hidden int) (Encoder, error) {
	return nil, fmt.Errorf("onnx support not built; rebuild with -tags onnx")
}
