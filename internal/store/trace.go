// Package store records the event stream of a numeric run and persists
// completed runs to a directory of metadata and state files.
package store

import (
	"github.com/san-kum/stepdag/internal/interp"
)

// Trace accumulates the observations of one run: the observed state at each
// time, plus the times at which steps were abandoned and retried.
type Trace struct {
	Component string
	Times     []float64
	States    [][]float64
	FailedAt  []float64
}

// NewTrace returns a trace for the given state component.
func NewTrace(component string) *Trace {
	return &Trace{Component: component}
}

// Record folds one event into the trace. Events for other components and
// step-completion markers are ignored.
func (tr *Trace) Record(ev interp.Event) {
	switch e := ev.(type) {
	case interp.StateComputed:
		if e.ID != tr.Component {
			return
		}
		switch v := e.Value.(type) {
		case []float64:
			state := make([]float64, len(v))
			copy(state, v)
			tr.Times = append(tr.Times, e.Time)
			tr.States = append(tr.States, state)
		case float64:
			tr.Times = append(tr.Times, e.Time)
			tr.States = append(tr.States, []float64{v})
		}
	case interp.StepFailed:
		tr.FailedAt = append(tr.FailedAt, e.T)
	}
}

// Len returns the number of recorded observations.
func (tr *Trace) Len() int { return len(tr.Times) }

// Dim returns the state dimension, or zero for an empty trace.
func (tr *Trace) Dim() int {
	if len(tr.States) == 0 {
		return 0
	}
	return len(tr.States[0])
}

// Series extracts one state coordinate as a time series for plotting.
func (tr *Trace) Series(i int) []float64 {
	out := make([]float64, 0, len(tr.States))
	for _, s := range tr.States {
		if i < len(s) {
			out = append(out, s[i])
		}
	}
	return out
}

// Final returns the last observed state, or nil.
func (tr *Trace) Final() []float64 {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

// Metrics summarizes the run.
func (tr *Trace) Metrics() map[string]float64 {
	m := map[string]float64{
		"observations": float64(len(tr.Times)),
		"failed_steps": float64(len(tr.FailedAt)),
	}
	if len(tr.Times) > 0 {
		m["t_final"] = tr.Times[len(tr.Times)-1]
	}
	return m
}
