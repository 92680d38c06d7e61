package index

import "math"

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine computes the cosine similarity between a and b given their
// precomputed norms. Zero-norm vectors yield 0.
func Cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

// ClipUnit clips a cosine similarity from [-1,1] into [0,1]. Negative
// similarity carries no useful signal for matching.
func ClipUnit(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
