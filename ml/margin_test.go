package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateMargin(t *testing.T) {
	points := [][]float64{{3, 0}, {-1, 0}, {2, 5}}
	labels := []Label{Positive, Negative, Positive}

	margin, err := EvaluateMargin([]float64{2, 0}, points, labels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, margin)

	// A misclassified point gives a negative margin.
	margin, err = EvaluateMargin([]float64{-1, 0}, points, labels)
	require.NoError(t, err)
	assert.Equal(t, -3.0, margin)
}

func TestEvaluateMarginDegenerate(t *testing.T) {
	margin, err := EvaluateMargin([]float64{0, 0}, [][]float64{{1, 1}}, []Label{Positive})
	require.NoError(t, err)
	assert.Zero(t, margin)

	margin, err = EvaluateMargin([]float64{1, 0}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, margin)

	_, err = EvaluateMargin([]float64{1, 0}, [][]float64{{1}}, []Label{Positive})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEvaluate(t *testing.T) {
	ds := mustDataset(t, 1, 4, [][]float64{{1}, {2}, {-1}, {-3}, {0.5}}, []Label{Positive, Positive, Negative, Positive, Negative})

	m, err := Evaluate([]float64{1}, ds)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, m.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-12)
	assert.Equal(t, -3.0, m.Margin)
}

func TestModelPredict(t *testing.T) {
	model := NewModel(&Result{Weights: []float64{1, -1}})

	var c Classifier = model
	label, err := c.Predict([]float64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, Positive, label)

	label, err = c.Predict([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, Positive, label, "points on the hyperplane are positive")

	label, err = c.Predict([]float64{0, 3})
	require.NoError(t, err)
	assert.Equal(t, Negative, label)

	_, err = c.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel(-1)
	require.NoError(t, err)
	assert.Equal(t, Negative, l)
	assert.Equal(t, "-1", l.String())

	_, err = ParseLabel(2)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
