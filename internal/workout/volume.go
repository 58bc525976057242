package workout

// ComputeVolume derives the training-load scalar for an entry.
//
// One weight means the same load across all sets: sets * reps * w. Several
// weights mean one distinct load per set with reps constant: reps * sum(w) —
// per-set weight variation is supported, per-set rep variation is not. An
// empty list yields 0; normalization rejects it upstream.
//
// The result is stored unrounded. Display rounding is the renderer's concern.
func ComputeVolume(sets, reps int, weights []float64) float64 {
	switch len(weights) {
	case 0:
		return 0
	case 1:
		return float64(sets) * float64(reps) * weights[0]
	default:
		var sum float64
		for _, w := range weights {
			sum += w
		}
		return float64(reps) * sum
	}
}
