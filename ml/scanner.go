package ml

import (
	"fmt"
	"math"
)

// NoViolation is returned by FindViolation when every point is classified
// correctly and lies at least gamma/2 away from the hyperplane.
const NoViolation = -1

// FindViolation scans ds in index order and returns the first point that is
// misclassified by w or closer than gamma/2 to the hyperplane w.x = 0.
// A zero w has no hyperplane, so point 0 is reported as violating.
func FindViolation(w []float64, ds *Dataset, gamma float64) (int, error) {
	if len(w) != ds.Dimension {
		return NoViolation, fmt.Errorf("%w: weights have %d components, dataset %d", ErrDimensionMismatch, len(w), ds.Dimension)
	}
	if ds.Len() == 0 {
		return NoViolation, nil
	}
	norm := Norm(w)
	if norm == 0 {
		return 0, nil
	}
	half := gamma / 2
	for i, x := range ds.Points {
		dot, err := Dot(w, x)
		if err != nil {
			return NoViolation, fmt.Errorf("point %d: %w", i, err)
		}
		if violates(dot, norm, ds.Labels[i], half) {
			return i, nil
		}
	}
	return NoViolation, nil
}

func violates(dot, norm float64, label Label, half float64) bool {
	if sign(dot) != label {
		return true
	}
	return math.Abs(dot)/norm < half
}

// sign treats zero as positive.
func sign(v float64) Label {
	if v < 0 {
		return Negative
	}
	return Positive
}
