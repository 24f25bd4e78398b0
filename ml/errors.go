package ml

import "errors"

var (
	// ErrDimensionMismatch is returned when two vectors that must have the
	// same length do not.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidMarginGuess is returned when a non-positive margin guess
	// reaches the iteration budget. The training loop never produces one.
	ErrInvalidMarginGuess = errors.New("invalid margin guess")
	// ErrNonConvergence reports that the margin guess fell to the underflow
	// floor before a separating hyperplane was found.
	ErrNonConvergence = errors.New("margin guess underflow: no separating hyperplane found")
	ErrInvalidInput   = errors.New("invalid input")
)
