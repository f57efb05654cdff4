// Package fn defines the externally bound functions a method can call: the
// user's right-hand-side functions and a small set of numeric builtins. Each
// function carries its numeric implementation together with the kind rule
// used during inference.
package fn

import (
	"fmt"
	"sort"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/kind"
)

// Function is one externally bound function. Apply computes its results;
// ResultKind decides the kind of its (single) result from the kinds of its
// arguments, keyed "0", "1", ... for positional arguments and by name for
// keyword arguments.
type Function struct {
	Name       string
	Apply      func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error)
	ResultKind kind.ResultKindFunc
}

// CallValues makes a Function usable as a call target inside expressions.
// Expression calls yield exactly one value.
func (f *Function) CallValues(args []expr.Value, kwargs map[string]expr.Value) (expr.Value, error) {
	out, err := f.Apply(args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("fn: %s: %w", f.Name, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("fn: %s returned %d values inside an expression", f.Name, len(out))
	}
	return out[0], nil
}

// Registry maps function names to their definitions.
type Registry struct {
	fns map[string]*Function
}

// NewRegistry returns a registry preloaded with the builtins.
func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]*Function)}
	for _, f := range builtins() {
		r.fns[f.Name] = f
	}
	return r
}

// Register adds a function. Redefining a name is an error.
func (r *Registry) Register(f *Function) error {
	if _, dup := r.fns[f.Name]; dup {
		return fmt.Errorf("fn: function %q already registered", f.Name)
	}
	r.fns[f.Name] = f
	return nil
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (*Function, bool) {
	f, ok := r.fns[name]
	return f, ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KindRules exposes the per-function result kind rules for the inference
// pass.
func (r *Registry) KindRules() map[string]kind.ResultKindFunc {
	rules := make(map[string]kind.ResultKindFunc, len(r.fns))
	for name, f := range r.fns {
		rules[name] = f.ResultKind
	}
	return rules
}

// Callables exposes the functions as evaluation-time call targets.
func (r *Registry) Callables() map[string]expr.Value {
	out := make(map[string]expr.Value, len(r.fns))
	for name, f := range r.fns {
		out[name] = expr.Callable(f)
	}
	return out
}

// FixedKind returns a rule that ignores the arguments.
func FixedKind(k kind.Kind) kind.ResultKindFunc {
	return func(map[string]kind.Kind) (kind.Kind, error) {
		return k, nil
	}
}
