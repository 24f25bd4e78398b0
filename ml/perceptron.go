package ml

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// State is the position of a TrainingLoop in its state machine.
type State int

const (
	StateScanning State = iota
	StateUpdating
	StateShrinkingGuess
	StateConverged
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateUpdating:
		return "updating"
	case StateShrinkingGuess:
		return "shrinking_guess"
	case StateConverged:
		return "converged"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for c := StateScanning; c <= StateAborted; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateAborted
}

// cancelCheckInterval is how many updates run between context checks.
const cancelCheckInterval = 256

// Result is the outcome of a TrainingLoop.
type Result struct {
	Weights   []float64 `json:"weights"`
	Converged bool      `json:"converged"`
	State     State     `json:"state"`
	// Gamma is the margin guess in force when the loop stopped.
	Gamma   float64 `json:"gamma"`
	Updates int     `json:"updates"`
	// Rounds counts margin guesses tried, including the first.
	Rounds int `json:"rounds"`
}

// Err returns ErrNonConvergence for an aborted run and nil otherwise.
func (r *Result) Err() error {
	if r.State == StateAborted {
		return ErrNonConvergence
	}
	return nil
}

// Option configures a TrainingLoop.
type Option func(*TrainingLoop)

// WithObserver registers an observer for every transition of the loop.
func WithObserver(o Observer) Option {
	return func(l *TrainingLoop) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// TrainingLoop trains a margin perceptron without bias on one dataset. All
// of its state is private and changes only inside Run.
type TrainingLoop struct {
	ds        *Dataset
	observers Observers

	w       []float64
	gamma   float64
	budget  int
	used    int
	updates int
	rounds  int
	state   State
}

// NewTrainingLoop prepares a loop with zero weights and a margin guess equal
// to the dataset radius.
func NewTrainingLoop(ds *Dataset, opts ...Option) (*TrainingLoop, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrInvalidInput)
	}
	budget, err := IterationBudget(ds.Radius, ds.Radius)
	if err != nil {
		return nil, err
	}
	l := &TrainingLoop{
		ds:     ds,
		w:      make([]float64, ds.Dimension),
		gamma:  ds.Radius,
		budget: budget,
		rounds: 1,
		state:  StateScanning,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Initialize validates raw inputs and prepares a loop over them.
func Initialize(dimension int, radius float64, points [][]float64, labels []Label, opts ...Option) (*TrainingLoop, error) {
	ds, err := NewDataset(dimension, radius, points, labels)
	if err != nil {
		return nil, err
	}
	return NewTrainingLoop(ds, opts...)
}

// State returns the current state.
func (l *TrainingLoop) State() State { return l.state }

// Gamma returns the current margin guess.
func (l *TrainingLoop) Gamma() float64 { return l.gamma }

// Budget returns the update budget of the current margin guess.
func (l *TrainingLoop) Budget() int { return l.budget }

// Weights returns a copy of the current weight vector.
func (l *TrainingLoop) Weights() []float64 {
	return append([]float64(nil), l.w...)
}

// Run drives the loop until it converges or the margin guess underflows.
// Non-convergence is reported through Result, not as an error. If ctx is
// done first, Run returns the context error and keeps its state; calling Run
// again resumes. Once terminal, Run returns the same result every time.
func (l *TrainingLoop) Run(ctx context.Context) (*Result, error) {
	for !l.state.Terminal() {
		if l.updates%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("training interrupted after %d updates: %w", l.updates, err)
			}
		}
		if err := l.step(); err != nil {
			return nil, err
		}
	}
	return l.result(), nil
}

// step performs exactly one transition out of StateScanning. The guess is
// halved only when a violator remains and the budget is spent.
func (l *TrainingLoop) step() error {
	i, err := FindViolation(l.w, l.ds, l.gamma)
	if err != nil {
		return err
	}
	if i == NoViolation {
		l.state = StateConverged
		l.emit(EventConverged, NoViolation)
		return nil
	}
	if l.used >= l.budget {
		l.state = StateShrinkingGuess
		return l.shrink()
	}
	l.state = StateUpdating
	l.update(i)
	l.state = StateScanning
	return nil
}

func (l *TrainingLoop) update(i int) {
	floats.AddScaled(l.w, float64(l.ds.Labels[i]), l.ds.Points[i])
	l.used++
	l.updates++
	l.emit(EventUpdate, i)
}

func (l *TrainingLoop) shrink() error {
	l.gamma /= 2
	if l.gamma <= GammaFloor {
		l.state = StateAborted
		l.emit(EventAborted, NoViolation)
		return nil
	}
	budget, err := IterationBudget(l.ds.Radius, l.gamma)
	if err != nil {
		return err
	}
	l.budget = budget
	l.used = 0
	l.rounds++
	l.state = StateScanning
	l.emit(EventShrink, NoViolation)
	return nil
}

func (l *TrainingLoop) emit(kind EventKind, index int) {
	if len(l.observers) == 0 {
		return
	}
	e := Event{
		Kind:      kind,
		Round:     l.rounds,
		Iteration: l.used,
		Updates:   l.updates,
		Index:     index,
		Gamma:     l.gamma,
		Budget:    l.budget,
		Weights:   l.Weights(),
	}
	if index >= 0 {
		e.Label = l.ds.Labels[index]
	}
	l.observers.Observe(e)
}

func (l *TrainingLoop) result() *Result {
	return &Result{
		Weights:   l.Weights(),
		Converged: l.state == StateConverged,
		State:     l.state,
		Gamma:     l.gamma,
		Updates:   l.updates,
		Rounds:    l.rounds,
	}
}
