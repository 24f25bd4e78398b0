package ml

// EventKind identifies what happened in the training loop.
type EventKind int

const (
	// EventUpdate follows every weight update.
	EventUpdate EventKind = iota
	// EventShrink follows every halving of the margin guess.
	EventShrink
	// EventConverged is emitted once when a scan finds no violation.
	EventConverged
	// EventAborted is emitted once when the guess reaches GammaFloor.
	EventAborted
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "update"
	case EventShrink:
		return "shrink"
	case EventConverged:
		return "converged"
	case EventAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Event describes one state transition of a TrainingLoop. Weights is a
// snapshot shared by all observers of the event; do not modify it.
type Event struct {
	Kind      EventKind `json:"kind"`
	Round     int       `json:"round"`
	Iteration int       `json:"iteration"`
	Updates   int       `json:"updates"`
	Index     int       `json:"index"`
	Label     Label     `json:"label"`
	Gamma     float64   `json:"gamma"`
	Budget    int       `json:"budget"`
	Weights   []float64 `json:"weights"`
}

// Observer receives training events synchronously from Run.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (os Observers) Observe(e Event) {
	for _, o := range os {
		if o != nil {
			o.Observe(e)
		}
	}
}
