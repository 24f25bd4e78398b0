package ml

import (
	"fmt"
)

// Classifier assigns a label to a feature vector.
type Classifier interface {
	Predict(features []float64) (Label, error)
}

var _ Classifier = (*Model)(nil)

// Model is a trained hyperplane through the origin.
type Model struct {
	Weights []float64
}

// NewModel wraps the weights of a finished run.
func NewModel(r *Result) *Model {
	return &Model{Weights: append([]float64(nil), r.Weights...)}
}

// Predict returns the side of the hyperplane x falls on; points on the
// hyperplane are positive.
func (m *Model) Predict(features []float64) (Label, error) {
	return Predict(m.Weights, features)
}

// Predict classifies x with weights w.
func Predict(w, x []float64) (Label, error) {
	dot, err := Dot(w, x)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	return sign(dot), nil
}
