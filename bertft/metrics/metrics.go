// Package metrics holds the task evaluation functions. All of them are pure
// over (predictions, labels); degenerate inputs return defined sentinels
// instead of panicking.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Accuracy is the fraction of exactly matching predictions.
func Accuracy(preds, labels []int) float64 {
	if len(preds) == 0 {
		return 0
	}
	hits := 0
	for i := range preds {
		if preds[i] == labels[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(preds))
}

// F1 is the binary F1 score with class 1 positive. When no positive
// predictions and no positive labels exist the score is undefined; the
// convention here is 0.
func F1(preds, labels []int) float64 {
	var tp, fp, fn float64
	for i := range preds {
		switch {
		case preds[i] == 1 && labels[i] == 1:
			tp++
		case preds[i] == 1 && labels[i] != 1:
			fp++
		case preds[i] != 1 && labels[i] == 1:
			fn++
		}
	}
	if tp == 0 {
		return 0
	}
	precision := tp / (tp + fp)
	recall := tp / (tp + fn)
	return 2 * precision * recall / (precision + recall)
}

// Matthews is the Matthews correlation coefficient, 0 when the denominator
// vanishes.
func Matthews(preds, labels []int) float64 {
	var tp, tn, fp, fn float64
	for i := range preds {
		switch {
		case preds[i] == 1 && labels[i] == 1:
			tp++
		case preds[i] != 1 && labels[i] != 1:
			tn++
		case preds[i] == 1 && labels[i] != 1:
			fp++
		default:
			fn++
		}
	}
	denom := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	if denom == 0 {
		return 0
	}
	return (tp*tn - fp*fn) / denom
}

// Correlations holds both rank and linear correlation plus their mean, the
// scalar used for model selection on regression tasks.
type Correlations struct {
	Pearson  float64
	Spearman float64
	Mean     float64
}

// PearsonSpearman computes both correlations. A constant series yields NaN
// for the affected coefficients rather than an error.
func PearsonSpearman(preds, labels []float64) Correlations {
	pearson := stat.Correlation(preds, labels, nil)
	spearman := stat.Correlation(ranks(preds), ranks(labels), nil)
	return Correlations{
		Pearson:  pearson,
		Spearman: spearman,
		Mean:     (pearson + spearman) / 2,
	}
}

// ranks returns average fractional ranks, so ties share a rank the way
// Spearman expects.
func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
