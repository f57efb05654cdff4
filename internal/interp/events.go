package interp

import "github.com/san-kum/stepdag/internal/expr"

// Event is one item of the stream a running interpreter yields. Events form
// a closed sum type.
type Event interface {
	isEvent()
}

// StateComputed reports an observation a method emitted: a named value at a
// point in time. For ODE methods this is typically the advanced state at the
// end of a step, but methods may observe intermediate values too.
type StateComputed struct {
	ID    string
	Time  float64
	Value expr.Value
}

// StepCompleted reports that a step finished and time advanced to T.
type StepCompleted struct {
	T float64
}

// StepFailed reports that a step was abandoned at time T and will be
// retried. No observation from the failed attempt is delivered.
type StepFailed struct {
	T float64
}

func (StateComputed) isEvent() {}
func (StepCompleted) isEvent() {}
func (StepFailed) isEvent()    {}
