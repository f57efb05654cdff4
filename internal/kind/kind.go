// Package kind implements the mini type system that classifies every symbol
// appearing in a method's instruction graph as boolean, scalar, array, or
// ODE-state, together with the whole-program fixed-point solver that infers
// those classifications.
package kind

import (
	"fmt"
	"strings"
)

// Kind classifies a symbol's runtime value. Kinds compare structurally and
// have no ordering.
type Kind interface {
	isKind()
}

// Boolean marks a flag value. Arithmetic on flags is not permitted.
type Boolean struct{}

// Scalar marks a scalar value. IsReal records whether the value is
// definitely real-valued.
type Scalar struct {
	IsReal bool
}

// Array marks a variable-sized one-dimensional array.
type Array struct {
	IsReal bool
}

// ODEComponent marks a value belonging to one ODE state component.
type ODEComponent struct {
	ComponentID string
}

func (Boolean) isKind()      {}
func (Scalar) isKind()       {}
func (Array) isKind()        {}
func (ODEComponent) isKind() {}

// Equal reports structural kind equality. Two nils are equal: an assignment
// whose kind is still unknown compares consistently with itself.
func Equal(a, b Kind) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Boolean:
		_, ok := b.(Boolean)
		return ok
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x.IsReal == y.IsReal
	case Array:
		y, ok := b.(Array)
		return ok && x.IsReal == y.IsReal
	case ODEComponent:
		y, ok := b.(ODEComponent)
		return ok && x.ComponentID == y.ComponentID
	}
	return false
}

// String renders a kind for diagnostics.
func String(k Kind) string {
	switch x := k.(type) {
	case nil:
		return "unknown"
	case Boolean:
		return "boolean"
	case Scalar:
		if x.IsReal {
			return "scalar(real)"
		}
		return "scalar"
	case Array:
		if x.IsReal {
			return "array(real)"
		}
		return "array"
	case ODEComponent:
		return "ode:" + x.ComponentID
	}
	return fmt.Sprintf("%T", k)
}

// Unify combines the kinds of two values met by an arithmetic operator.
// A nil operand carries no information and yields the other kind unchanged.
func Unify(a, b Kind) (Kind, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	if _, ok := a.(Boolean); ok {
		return nil, fmt.Errorf("kind: arithmetic with flags is not permitted")
	}
	if _, ok := b.(Boolean); ok {
		return nil, fmt.Errorf("kind: arithmetic with flags is not permitted")
	}

	switch x := a.(type) {
	case ODEComponent:
		switch y := b.(type) {
		case ODEComponent:
			if x.ComponentID != y.ComponentID {
				return nil, fmt.Errorf(
					"kind: arithmetic with mismatched ODE components %q and %q",
					x.ComponentID, y.ComponentID)
			}
			return x, nil
		case Scalar:
			return x, nil
		}
		return nil, fmt.Errorf("kind: cannot combine %s with %s", String(a), String(b))
	case Array:
		switch y := b.(type) {
		case Array:
			return Array{IsReal: x.IsReal && y.IsReal}, nil
		case Scalar:
			return Array{IsReal: x.IsReal && y.IsReal}, nil
		}
		return nil, fmt.Errorf("kind: cannot combine %s with %s", String(a), String(b))
	case Scalar:
		switch y := b.(type) {
		case ODEComponent:
			return y, nil
		case Array:
			return Array{IsReal: x.IsReal && y.IsReal}, nil
		case Scalar:
			return Scalar{IsReal: x.IsReal && y.IsReal}, nil
		}
	}
	return nil, fmt.Errorf("kind: cannot combine %s with %s", String(a), String(b))
}

// IsGlobalName reports whether a symbol belongs to the global namespace:
// every reserved-prefix name except externally bound functions.
func IsGlobalName(name string) bool {
	return strings.HasPrefix(name, "<") && !strings.HasPrefix(name, "<func>")
}
