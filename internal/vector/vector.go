// Package vector provides the small numeric kernel shared by the storage
// backends and the engine: cosine similarity over float32 vectors.
package vector

import "math"

// Cosine returns the cosine similarity between a and b in [-1, 1].
// Mismatched lengths or zero-magnitude vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity clamps a cosine value to the [0, 1] scoring scale.
func Similarity(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
