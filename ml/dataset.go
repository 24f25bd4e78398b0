package ml

import (
	"fmt"
	"math"
)

// Label is the class of a point, +1 or -1.
type Label int

const (
	Positive Label = 1
	Negative Label = -1
)

// ParseLabel converts an integer class into a Label.
func ParseLabel(v int) (Label, error) {
	switch Label(v) {
	case Positive, Negative:
		return Label(v), nil
	default:
		return 0, fmt.Errorf("%w: label %d is not +1 or -1", ErrInvalidInput, v)
	}
}

func (l Label) String() string {
	if l == Positive {
		return "+1"
	}
	if l == Negative {
		return "-1"
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// Dataset is a labeled point set together with an upper bound on the point
// norms. It is not modified once built.
type Dataset struct {
	Dimension int
	Radius    float64
	Points    [][]float64
	Labels    []Label
}

// NewDataset validates its arguments and builds a Dataset. The point slices
// are referenced, not copied.
func NewDataset(dimension int, radius float64, points [][]float64, labels []Label) (*Dataset, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidInput, dimension)
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius must be a positive finite number, got %v", ErrInvalidInput, radius)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: dataset is empty", ErrInvalidInput)
	}
	if len(points) != len(labels) {
		return nil, fmt.Errorf("%w: %d points but %d labels", ErrInvalidInput, len(points), len(labels))
	}
	for i, p := range points {
		if len(p) != dimension {
			return nil, fmt.Errorf("%w: point %d has %d features, want %d", ErrDimensionMismatch, i, len(p), dimension)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: point %d has a non-finite feature", ErrInvalidInput, i)
			}
		}
		if _, err := ParseLabel(int(labels[i])); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	return &Dataset{
		Dimension: dimension,
		Radius:    radius,
		Points:    points,
		Labels:    labels,
	}, nil
}

// Len returns the number of points.
func (ds *Dataset) Len() int {
	return len(ds.Points)
}

// MaxNorm returns the largest point norm. For a well-formed file it does not
// exceed Radius.
func (ds *Dataset) MaxNorm() float64 {
	largest := 0.0
	for _, p := range ds.Points {
		if n := Norm(p); n > largest {
			largest = n
		}
	}
	return largest
}
