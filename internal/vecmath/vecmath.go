// Package vecmath provides the small set of dense-vector operations shared by
// the featurizer and the similarity cache.
package vecmath

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Norm returns the Euclidean (L2) norm of vec.
//
// The sum is accumulated in float64 in index order so the result is
// bit-identical on every platform.
func Norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize scales vec in place to unit L2 norm.
// A zero vector is left unchanged.
func Normalize(vec []float32) {
	norm := Norm(vec)
	if norm == 0 {
		return
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
}

// Dot returns the dot product of a and b, or 0 if their lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return float64(vek32.Dot(a, b))
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths, empty input and zero-magnitude operands all yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// CosineWithNorms is CosineSimilarity for callers that already know the norms
// of both operands. Lengths must match.
func CosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := Dot(a, b) / (normA * normB)
	// Rounding in the SIMD dot product can push identical inputs past 1.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
