// Package similarity turns texts into embedding vectors and compares them.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Provider turns text into an embedding vector. Implementations must be safe
// for concurrent use and return vectors of a fixed dimension.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
	Model() string
	Close() error
}

// ErrDimensionMismatch is returned when two vectors cannot be compared.
var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Cosine returns the cosine similarity of a and b in [-1,1]. A zero vector
// has no direction and is treated as orthogonal to everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, cos)), nil
}
