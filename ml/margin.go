package ml

import (
	"fmt"
	"math"
)

// EvaluateMargin returns the smallest signed distance label*w.x/|w| over the
// points. It is 0 when w is the zero vector or there are no points.
func EvaluateMargin(w []float64, points [][]float64, labels []Label) (float64, error) {
	if len(points) != len(labels) {
		return 0, fmt.Errorf("%w: %d points but %d labels", ErrInvalidInput, len(points), len(labels))
	}
	norm := Norm(w)
	if norm == 0 || len(points) == 0 {
		return 0, nil
	}
	margin := math.Inf(1)
	for i, x := range points {
		dot, err := Dot(w, x)
		if err != nil {
			return 0, fmt.Errorf("point %d: %w", i, err)
		}
		if m := float64(labels[i]) * dot / norm; m < margin {
			margin = m
		}
	}
	return margin, nil
}

// Margin is EvaluateMargin over the dataset.
func (ds *Dataset) Margin(w []float64) (float64, error) {
	return EvaluateMargin(w, ds.Points, ds.Labels)
}
