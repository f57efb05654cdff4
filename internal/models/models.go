// Package models provides the ODE systems that methods are run against.
// Each model advances one named state component, held as a float64 vector,
// and exposes its right-hand side as an externally bound function.
package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/fn"
	"github.com/san-kum/stepdag/internal/kind"
)

// Model is one ODE system dy/dt = f(t, y).
type Model interface {
	Name() string
	Component() string
	Initial() []float64
	Derivative(t float64, y []float64) []float64
}

// FuncName returns the name the model's right-hand side is bound under.
func FuncName(m Model) string { return "<func>" + m.Name() }

// Function wraps the model's derivative as a callable function. Methods call
// it with the keyword arguments t and the component name; its result kind
// ties every value derived from it to the model's state component.
func Function(m Model) *fn.Function {
	comp := m.Component()
	return &fn.Function{
		Name: FuncName(m),
		Apply: func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error) {
			if len(args) != 0 {
				return nil, fmt.Errorf("positional arguments are not accepted")
			}
			t, ok := kwargs["t"].(float64)
			if !ok {
				return nil, fmt.Errorf("missing scalar argument t")
			}
			y, ok := kwargs[comp].([]float64)
			if !ok {
				return nil, fmt.Errorf("missing state argument %q", comp)
			}
			return []expr.Value{m.Derivative(t, y)}, nil
		},
		ResultKind: fn.FixedKind(kind.ODEComponent{ComponentID: comp}),
	}
}

// ByName returns the named model with its default parameters.
func ByName(name string) (Model, bool) {
	switch name {
	case "decay":
		return NewDecay(), true
	case "oscillator":
		return NewOscillator(), true
	case "vanderpol":
		return NewVanDerPol(), true
	}
	return nil, false
}

// Names lists the available model names in sorted order.
func Names() []string {
	names := []string{"decay", "oscillator", "vanderpol"}
	sort.Strings(names)
	return names
}
