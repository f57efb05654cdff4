package expr

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Value is a runtime value held in the interpreter's state mapping: float64,
// complex128, bool, or []float64.
type Value = any

// Callable is a function value usable as a call target during evaluation.
type Callable interface {
	CallValues(args []Value, kwargs map[string]Value) (Value, error)
}

// Evaluate computes the value of e. Variable names resolve against the value
// context first and the function table second, so a function can be
// referenced as a first-class value. An unresolved name, in either position,
// is a hard error.
func Evaluate(e Expr, context map[string]Value, functions map[string]Value) (Value, error) {
	ev := evaluator{context: context, functions: functions}
	return ev.eval(e)
}

type evaluator struct {
	context   map[string]Value
	functions map[string]Value
}

func (ev *evaluator) eval(e Expr) (Value, error) {
	switch x := e.(type) {
	case *Const:
		if x.IsReal() {
			return x.Real(), nil
		}
		return x.Value, nil
	case *Var:
		if v, ok := ev.context[x.Name]; ok {
			return v, nil
		}
		if f, ok := ev.functions[x.Name]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("expr: undefined variable %q", x.Name)
	case *Sum:
		return ev.fold(x.Terms, AddValues)
	case *Product:
		return ev.fold(x.Factors, MulValues)
	case *Quotient:
		num, err := ev.eval(x.Num)
		if err != nil {
			return nil, err
		}
		den, err := ev.eval(x.Den)
		if err != nil {
			return nil, err
		}
		return DivValues(num, den)
	case *Power:
		base, err := ev.eval(x.Base)
		if err != nil {
			return nil, err
		}
		exp, err := ev.eval(x.Exp)
		if err != nil {
			return nil, err
		}
		return powValues(base, exp)
	case *Comparison:
		return ev.compare(x)
	case *And:
		for _, t := range x.Terms {
			b, err := ev.evalBool(t)
			if err != nil {
				return nil, err
			}
			if !b {
				return false, nil
			}
		}
		return true, nil
	case *Or:
		for _, t := range x.Terms {
			b, err := ev.evalBool(t)
			if err != nil {
				return nil, err
			}
			if b {
				return true, nil
			}
		}
		return false, nil
	case *Not:
		b, err := ev.evalBool(x.Term)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case *Subscript:
		return ev.subscript(x)
	case *Call:
		return ev.call(x)
	case *IfThenElse:
		b, err := ev.evalBool(x.Condition)
		if err != nil {
			return nil, err
		}
		if b {
			return ev.eval(x.Then)
		}
		return ev.eval(x.Else)
	}
	return nil, fmt.Errorf("expr: cannot evaluate %T", e)
}

func (ev *evaluator) fold(terms []Expr, combine func(a, b Value) (Value, error)) (Value, error) {
	acc, err := ev.eval(terms[0])
	if err != nil {
		return nil, err
	}
	for _, t := range terms[1:] {
		v, err := ev.eval(t)
		if err != nil {
			return nil, err
		}
		acc, err = combine(acc, v)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (ev *evaluator) evalBool(e Expr) (bool, error) {
	v, err := ev.eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expr: expected boolean, got %T", v)
	}
	return b, nil
}

func (ev *evaluator) compare(x *Comparison) (Value, error) {
	lv, err := ev.eval(x.Left)
	if err != nil {
		return nil, err
	}
	rv, err := ev.eval(x.Right)
	if err != nil {
		return nil, err
	}
	l, lok := scalarOf(lv)
	r, rok := scalarOf(rv)
	if !lok || !rok {
		return nil, fmt.Errorf("expr: cannot compare %T %s %T", lv, x.Op, rv)
	}
	switch x.Op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return nil, fmt.Errorf("expr: unknown comparison operator %q", x.Op)
}

func (ev *evaluator) subscript(x *Subscript) (Value, error) {
	agg, err := ev.eval(x.Aggregate)
	if err != nil {
		return nil, err
	}
	idx, err := ev.eval(x.Index)
	if err != nil {
		return nil, err
	}
	arr, ok := agg.([]float64)
	if !ok {
		return nil, fmt.Errorf("expr: cannot subscript %T", agg)
	}
	f, ok := scalarOf(idx)
	if !ok || f != math.Trunc(f) {
		return nil, fmt.Errorf("expr: subscript index must be an integer, got %v", idx)
	}
	i := int(f)
	if i < 0 || i >= len(arr) {
		return nil, fmt.Errorf("expr: subscript index %d out of range [0, %d)", i, len(arr))
	}
	return arr[i], nil
}

func (ev *evaluator) call(x *Call) (Value, error) {
	name, ok := x.Function.(*Var)
	if !ok {
		return nil, fmt.Errorf("expr: call target must be a name, got %T", x.Function)
	}
	fv, ok := ev.functions[name.Name]
	if !ok {
		return nil, fmt.Errorf("expr: call to unknown function %q", name.Name)
	}
	fn, ok := fv.(Callable)
	if !ok {
		return nil, fmt.Errorf("expr: %q is not callable", name.Name)
	}
	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	kwargs := make(map[string]Value, len(x.Kwargs))
	for _, kw := range x.Kwargs {
		v, err := ev.eval(kw.Value)
		if err != nil {
			return nil, err
		}
		kwargs[kw.Name] = v
	}
	return fn.CallValues(args, kwargs)
}

// scalarOf converts a real scalar value to float64.
func scalarOf(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case complex128:
		if imag(x) == 0 {
			return real(x), true
		}
	}
	return 0, false
}

// AddValues adds two runtime values, broadcasting scalars over arrays.
func AddValues(a, b Value) (Value, error) {
	return arith(a, b, "add",
		func(x, y float64) float64 { return x + y },
		func(x, y complex128) complex128 { return x + y })
}

// MulValues multiplies two runtime values, broadcasting scalars over arrays.
func MulValues(a, b Value) (Value, error) {
	return arith(a, b, "multiply",
		func(x, y float64) float64 { return x * y },
		func(x, y complex128) complex128 { return x * y })
}

// DivValues divides two runtime values, broadcasting scalars over arrays.
func DivValues(a, b Value) (Value, error) {
	return arith(a, b, "divide",
		func(x, y float64) float64 { return x / y },
		func(x, y complex128) complex128 { return x / y })
}

func arith(a, b Value, verb string,
	ff func(x, y float64) float64,
	cf func(x, y complex128) complex128) (Value, error) {

	switch x := a.(type) {
	case float64:
		switch y := b.(type) {
		case float64:
			return ff(x, y), nil
		case complex128:
			return cf(complex(x, 0), y), nil
		case []float64:
			out := make([]float64, len(y))
			for i, v := range y {
				out[i] = ff(x, v)
			}
			return out, nil
		}
	case complex128:
		switch y := b.(type) {
		case float64:
			return cf(x, complex(y, 0)), nil
		case complex128:
			return cf(x, y), nil
		}
	case []float64:
		switch y := b.(type) {
		case float64:
			out := make([]float64, len(x))
			for i, v := range x {
				out[i] = ff(v, y)
			}
			return out, nil
		case []float64:
			if len(x) != len(y) {
				return nil, fmt.Errorf("expr: cannot %s arrays of length %d and %d", verb, len(x), len(y))
			}
			out := make([]float64, len(x))
			for i, v := range x {
				out[i] = ff(v, y[i])
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expr: cannot %s %T and %T", verb, a, b)
}

func powValues(base, exp Value) (Value, error) {
	switch b := base.(type) {
	case float64:
		switch e := exp.(type) {
		case float64:
			return math.Pow(b, e), nil
		case complex128:
			return cmplx.Pow(complex(b, 0), e), nil
		}
	case complex128:
		switch e := exp.(type) {
		case float64:
			return cmplx.Pow(b, complex(e, 0)), nil
		case complex128:
			return cmplx.Pow(b, e), nil
		}
	case []float64:
		if e, ok := exp.(float64); ok {
			out := make([]float64, len(b))
			for i, v := range b {
				out[i] = math.Pow(v, e)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expr: cannot exponentiate %T by %T", base, exp)
}
