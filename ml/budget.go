package ml

import (
	"fmt"
	"math"
)

// budgetFactor is the constant of the margin perceptron mistake bound.
const budgetFactor = 12

// GammaFloor is the margin guess at or below which training gives up.
const GammaFloor = 1e-8

// IterationBudget returns the number of updates allowed for one margin
// guess: ceil(12 * radius^2 / gamma^2). The result saturates at math.MaxInt.
func IterationBudget(radius, gamma float64) (int, error) {
	if !(gamma > 0) || math.IsInf(gamma, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMarginGuess, gamma)
	}
	if !(radius > 0) {
		return 0, fmt.Errorf("%w: radius %v", ErrInvalidInput, radius)
	}
	bound := math.Ceil(budgetFactor * radius * radius / (gamma * gamma))
	if math.IsInf(bound, 0) || bound >= math.MaxInt {
		return math.MaxInt, nil
	}
	return int(bound), nil
}
