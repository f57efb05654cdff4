// Package interp executes compiled time-integration methods numerically. An
// Interpreter is set up with initial state, initialized once, and then run
// to a final time, yielding a stream of observation and step events.
package interp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/fn"
	"github.com/san-kum/stepdag/internal/ir"
	"github.com/san-kum/stepdag/internal/kind"
)

// maxStepRetries bounds consecutive fail-step retries at one point in time,
// so a method that cannot make progress surfaces as an error instead of
// spinning.
const maxStepRetries = 100

// Interpreter holds the variable state of one numeric run.
type Interpreter struct {
	code     *ir.Code
	registry *fn.Registry
	kinds    *kind.Table

	ctrl *ir.Controller
	exec *executor
	vars map[string]expr.Value

	setUp       bool
	initialized bool
}

// New type-checks code against the registry's kind rules and returns an
// interpreter for it.
func New(code *ir.Code, registry *fn.Registry) (*Interpreter, error) {
	finder := &kind.Finder{Functions: registry.KindRules()}
	kinds, err := finder.Infer(code)
	if err != nil {
		return nil, err
	}
	ip := &Interpreter{
		code:     code,
		registry: registry,
		kinds:    kinds,
		vars:     make(map[string]expr.Value),
	}
	ip.exec = &executor{
		vars:      ip.vars,
		callables: registry.Callables(),
		registry:  registry,
	}
	ip.ctrl = ir.NewController(code.Program, ip.exec)
	return ip, nil
}

// Kinds returns the inferred symbol kind table.
func (ip *Interpreter) Kinds() *kind.Table { return ip.kinds }

// SetUp binds the initial time, step size, state components, and parameters.
// Component and parameter names are user-level and may not use the reserved
// prefix.
func (ip *Interpreter) SetUp(t0, dt0 float64, components, params map[string]expr.Value) error {
	for name := range components {
		if strings.HasPrefix(name, "<") {
			return fmt.Errorf("interp: component name %q uses the reserved prefix", name)
		}
	}
	for name := range params {
		if strings.HasPrefix(name, "<") {
			return fmt.Errorf("interp: parameter name %q uses the reserved prefix", name)
		}
	}
	ip.vars["<t>"] = t0
	ip.vars["<dt>"] = dt0
	for name, v := range components {
		ip.vars["<state>"+name] = v
	}
	for name, v := range params {
		ip.vars["<p>"+name] = v
	}
	ip.setUp = true
	return nil
}

// Initialize runs the initialization phase once and returns any observations
// it emitted.
func (ip *Interpreter) Initialize(ctx context.Context) ([]Event, error) {
	if !ip.setUp {
		return nil, errors.New("interp: Initialize before SetUp")
	}
	if ip.initialized {
		return nil, errors.New("interp: already initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phase := ip.code.Phase(ir.PhaseInitialization)
	if phase == nil {
		return nil, fmt.Errorf("interp: method has no %q phase", ir.PhaseInitialization)
	}
	ip.exec.pending = nil
	if err := ip.ctrl.Run(phase); err != nil {
		return nil, err
	}
	events := ip.exec.pending
	ip.exec.pending = nil
	ip.discardEphemerals()
	ip.initialized = true
	return events, nil
}

// Run advances the method until time reaches tEnd, yielding events as steps
// complete. The final step is clamped so that the run ends at tEnd exactly.
// A failed step discards its partial state, yields StepFailed, and is
// retried without advancing time. Iteration may be abandoned at any point;
// the interpreter stays consistent at the last completed step.
func (ip *Interpreter) Run(ctx context.Context, tEnd float64) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if !ip.initialized {
			yield(nil, errors.New("interp: Run before Initialize"))
			return
		}
		phase := ip.code.Phase(ir.PhaseStep)
		if phase == nil {
			yield(nil, fmt.Errorf("interp: method has no %q phase", ir.PhaseStep))
			return
		}

		eps := 1e-10 * math.Max(1, math.Abs(tEnd))
		retries := 0
		for {
			t := ip.T()
			if tEnd-t <= eps {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if dt := ip.Dt(); t+dt > tEnd {
				ip.vars["<dt>"] = tEnd - t
			}

			ip.exec.pending = nil
			err := ip.ctrl.Run(phase)
			switch {
			case errors.Is(err, ir.ErrFailStep):
				ip.discardEphemerals()
				retries++
				if retries > maxStepRetries {
					yield(nil, fmt.Errorf("interp: step at t=%g failed %d times", t, retries))
					return
				}
				if !yield(StepFailed{T: t}, nil) {
					return
				}
				continue
			case err != nil:
				yield(nil, err)
				return
			}
			retries = 0

			events := ip.exec.pending
			ip.exec.pending = nil
			ip.discardEphemerals()
			for _, ev := range events {
				if !yield(ev, nil) {
					return
				}
			}
			if !yield(StepCompleted{T: ip.T()}, nil) {
				return
			}
		}
	}
}

// T returns the current time.
func (ip *Interpreter) T() float64 {
	t, _ := ip.vars["<t>"].(float64)
	return t
}

// Dt returns the current step size.
func (ip *Interpreter) Dt() float64 {
	dt, _ := ip.vars["<dt>"].(float64)
	return dt
}

// State returns the current value of a state component.
func (ip *Interpreter) State(component string) (expr.Value, bool) {
	v, ok := ip.vars["<state>"+component]
	return v, ok
}

// discardEphemerals drops every variable that does not persist across steps:
// everything but time, step size, parameters, and state components.
func (ip *Interpreter) discardEphemerals() {
	for name := range ip.vars {
		if persistent(name) {
			continue
		}
		delete(ip.vars, name)
	}
}

func persistent(name string) bool {
	return name == "<t>" || name == "<dt>" ||
		strings.HasPrefix(name, "<state>") ||
		strings.HasPrefix(name, "<p>")
}
