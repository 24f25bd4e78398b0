package ml

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Dot returns the inner product of a and b.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dot of %d and %d", ErrDimensionMismatch, len(a), len(b))
	}
	return floats.Dot(a, b), nil
}

// Norm returns the Euclidean length of a. The zero vector has norm 0.
func Norm(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Norm(a, 2)
}

// AddScaled returns w + label*point as a new vector; w is not modified.
func AddScaled(w []float64, label Label, point []float64) ([]float64, error) {
	if len(w) != len(point) {
		return nil, fmt.Errorf("%w: update of %d with %d", ErrDimensionMismatch, len(w), len(point))
	}
	out := make([]float64, len(w))
	copy(out, w)
	floats.AddScaled(out, float64(label), point)
	return out, nil
}

func isZero(w []float64) bool {
	for _, v := range w {
		if v != 0 {
			return false
		}
	}
	return true
}
