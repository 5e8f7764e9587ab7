package train

// WarmupLinear is the learning-rate multiplier at training progress x in
// [0,1]: a linear ramp from 0 to 1 over the warmup fraction, then linear
// decay to 0 at the end of training.
func WarmupLinear(x, warmup float64) float64 {
	if x < 0 {
		x = 0
	}
	if warmup > 0 && x < warmup {
		return x / warmup
	}
	if x > 1 {
		return 0
	}
	return 1.0 - x
}
