package align

import (
	"fmt"
)

// LayerOutputs is the encoder's hidden states: (layer, position, hidden).
type LayerOutputs [][][]float32

// Layered holds one embedding per word for each requested layer:
// (layer, word, hidden). Words exploded into many sub-words carry the sum of
// their pieces, not the mean, so they are not down-weighted against
// single-piece words; callers wanting length-invariance normalize downstream.
type Layered struct {
	Layers []int
	Words  int
	Hidden int
	Data   [][][]float32 // indexed [layer][word][dim]
}

// Aggregate sums sub-word embeddings into word embeddings for each requested
// layer index. Empty spans contribute a zero vector.
func Aggregate(al Alignment, layers LayerOutputs, want []int) (*Layered, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layer outputs")
	}
	hidden := 0
	if len(layers[0]) > 0 {
		hidden = len(layers[0][0])
	}
	for _, idx := range want {
		if idx < 0 || idx >= len(layers) {
			return nil, fmt.Errorf("layer index %d out of range for %d layers", idx, len(layers))
		}
	}

	out := &Layered{
		Layers: want,
		Words:  len(al),
		Hidden: hidden,
		Data:   make([][][]float32, len(want)),
	}
	for k, idx := range want {
		layer := layers[idx]
		words := make([][]float32, len(al))
		for w, span := range al {
			vec := make([]float32, hidden)
			for pos := span.Start; pos < span.End; pos++ {
				if pos >= len(layer) {
					return nil, fmt.Errorf("span position %d outside layer output of %d positions", pos, len(layer))
				}
				row := layer[pos]
				for d := range vec {
					vec[d] += row[d]
				}
			}
			words[w] = vec
		}
		out.Data[k] = words
	}
	return out, nil
}
