package embedding

import "math"

// Normalize returns v scaled to unit L2 length, so that the inner product
// of two normalized vectors equals their cosine similarity. It reports
// false for zero or non-finite vectors, which cannot be normalized.
func Normalize(v []float64) ([]float64, bool) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out, true
}

// Norm returns the L2 length of v.
func Norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
