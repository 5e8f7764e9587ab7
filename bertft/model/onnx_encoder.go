//go:build onnx
// +build onnx

package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/align"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX-backed encoder under the onnx build tag. The exported model must
// emit one float32 hidden-state output per transformer layer, each shaped
// (1, seq, hidden). Initializes ORT lazily and opens a dynamic session.
type onnxEncoder struct {
	modelPath   string
	numLayers   int
	hidden      int
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

func newONNXEncoder(modelPath string, numLayers, hidden int) (Encoder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("onnx model path is required")
	}
	return &onnxEncoder{modelPath: modelPath, numLayers: numLayers, hidden: hidden}, nil
}

func (p *onnxEncoder) NumLayers() int { return p.numLayers }
func (p *onnxEncoder) Hidden() int    { return p.hidden }

func (p *onnxEncoder) ensureSession() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		return nil
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	// Probe IO
	ins, outs, err := ort.GetInputOutputInfo(p.modelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	var idsName, maskName, tokTypeName string
	for _, ii := range ins {
		n := strings.ToLower(ii.Name)
		if strings.Contains(n, "input_ids") || n == "ids" {
			idsName = ii.Name
		}
		if strings.Contains(n, "attention_mask") || n == "mask" {
			maskName = ii.Name
		}
		if strings.Contains(n, "token_type") {
			tokTypeName = ii.Name
		}
	}
	var inputNames []string
	for _, n := range []string{idsName, maskName, tokTypeName} {
		if n != "" {
			inputNames = append(inputNames, n)
		}
	}
	if len(inputNames) == 0 {
		return fmt.Errorf("could not determine ONNX input names")
	}
	// One float output per layer, in export order
	var outputNames []string
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat {
			outputNames = append(outputNames, oi.Name)
		}
	}
	if len(outputNames) < p.numLayers {
		return fmt.Errorf("model exposes %d hidden-state outputs, need %d", len(outputNames), p.numLayers)
	}
	outputNames = outputNames[:p.numLayers]

	s, err := ort.NewDynamicAdvancedSession(p.modelPath, inputNames, outputNames, nil)
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	p.session = s
	p.inputNames = inputNames
	p.outputNames = outputNames
	return nil
}

func (p *onnxEncoder) Encode(ctx context.Context, batch *encoding.Batch) (align.LayerOutputs, error) {
	if err := p.ensureSession(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq := len(batch.TokenIDs)
	shape := ort.NewShape(1, int64(seq))
	idsTensor, err := ort.NewTensor(shape, append([]int64(nil), batch.TokenIDs...))
	if err != nil {
		return nil, fmt.Errorf("ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, append([]int64(nil), batch.AttentionMask...))
	if err != nil {
		return nil, fmt.Errorf("mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	segTensor, err := ort.NewTensor(shape, append([]int64(nil), batch.SegmentIDs...))
	if err != nil {
		return nil, fmt.Errorf("segment tensor: %w", err)
	}
	defer segTensor.Destroy()

	inVals := make([]ort.Value, len(p.inputNames))
	for i, name := range p.inputNames {
		n := strings.ToLower(name)
		switch {
		case strings.Contains(n, "input_ids") || n == "ids":
			inVals[i] = idsTensor
		case strings.Contains(n, "attention_mask") || n == "mask":
			inVals[i] = maskTensor
		default:
			inVals[i] = segTensor
		}
	}
	outVals := make([]ort.Value, len(p.outputNames))
	if err := p.session.Run(inVals, outVals); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outVals {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	layers := make(align.LayerOutputs, len(outVals))
	for l, v := range outVals {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("unexpected output type for layer %d", l)
		}
		data := t.GetData()
		tshape := t.GetShape()
		if len(tshape) != 3 || tshape[0] != 1 {
			return nil, fmt.Errorf("unexpected hidden-state shape %v for layer %d", tshape, l)
		}
		positions, hidden := int(tshape[1]), int(tshape[2])
		layer := make([][]float32, positions)
		for pos := 0; pos < positions; pos++ {
			row := make([]float32, hidden)
			copy(row, data[pos*hidden:(pos+1)*hidden])
			layer[pos] = row
		}
		layers[l] = layer
	}
	return layers, nil
}
