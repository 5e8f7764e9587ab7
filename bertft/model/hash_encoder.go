package model

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/align"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
)

// HashEncoder is a deterministic stand-in encoder for development and
// tests: every token id hashes to a fixed base vector and layer l emits
// that vector scaled by (1 + l). Masked-out positions emit zeros, so
// pooled features respect the attention mask.
type HashEncoder struct {
	numLayers int
	hidden    int
}

func NewHashEncoder(numLayers, hidden int) *HashEncoder {
	if numLayers <= 0 {
		numLayers = 12
	}
	if hidden <= 0 {
		hidden = 768
	}
	return &HashEncoder{numLayers: numLayers, hidden: hidden}
}

func (h *HashEncoder) NumLayers() int { return h.numLayers }
func (h *HashEncoder) Hidden() int    { return h.hidden }

func (h *HashEncoder) Encode(ctx context.Context, batch *encoding.Batch) (align.LayerOutputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := make([][]float32, len(batch.TokenIDs))
	for pos, id := range batch.TokenIDs {
		base[pos] = h.tokenVector(id, batch.SegmentIDs[pos])
	}
	out := make(align.LayerOutputs, h.numLayers)
	for l := 0; l < h.numLayers; l++ {
		scale := float32(1 + l)
		layer := make([][]float32, len(base))
		for pos := range base {
			row := make([]float32, h.hidden)
			if batch.AttentionMask[pos] != 0 {
				for d := range row {
					row[d] = base[pos][d] * scale
				}
			}
			layer[pos] = row
		}
		out[l] = layer
	}
	return out, nil
}

func (h *HashEncoder) tokenVector(id, segment int64) []float32 {
	var seed [16]byte
	binary.LittleEndian.PutUint64(seed[:8], uint64(id))
	binary.LittleEndian.PutUint64(seed[8:], uint64(segment))
	sum := sha256.Sum256(seed[:])
	vec := make([]float32, h.hidden)
	// repeat hash bytes to fill dims
	for j := 0; j < h.hidden; j++ {
		b := sum[j%len(sum)]
		vec[j] = (float32(int(b)) - 128.0) / 128.0
	}
	return vec
}
