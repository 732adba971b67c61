package embedding

import "math"

// Pool collapses per-token states into a single vector. Positions with a zero mask
// are ignored by mean pooling. The result has length dim even when no position is set.
func Pool(hidden [][]float32, mask []int64, dim int, method Pooling) []float32 {
	out := make([]float32, dim)
	if method == PoolingCLS {
		if len(hidden) > 0 {
			copy(out, hidden[0])
		}
		return out
	}
	var count float32
	for i, state := range hidden {
		if i >= len(mask) || mask[i] == 0 || state == nil {
			continue
		}
		for j := 0; j < dim && j < len(state); j++ {
			out[j] += state[j]
		}
		count++
	}
	if count == 0 {
		return out
	}
	for j := range out {
		out[j] /= count
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
