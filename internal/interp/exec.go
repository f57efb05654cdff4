package interp

import (
	"fmt"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/fn"
	"github.com/san-kum/stepdag/internal/ir"
)

// executor carries out instructions against the interpreter's variable map.
// Observations accumulate in pending and are only delivered once the whole
// phase has succeeded.
type executor struct {
	vars      map[string]expr.Value
	callables map[string]expr.Value
	registry  *fn.Registry
	pending   []Event
}

func (ex *executor) Execute(in *ir.Instruction) (bool, error) {
	switch in.Op {
	case ir.OpAssignExpr:
		v, err := ex.eval(in.RHS)
		if err != nil {
			return false, err
		}
		ex.vars[in.Assignees[0]] = v
		return false, nil

	case ir.OpAssignCall:
		return false, ex.call(in)

	case ir.OpAssignNorm:
		v, err := ex.eval(in.Arg)
		if err != nil {
			return false, err
		}
		n, err := fn.Norm(v, in.P)
		if err != nil {
			return false, err
		}
		ex.vars[in.Assignees[0]] = n
		return false, nil

	case ir.OpAssignDot:
		d, err := ex.dot(in)
		if err != nil {
			return false, err
		}
		ex.vars[in.Assignees[0]] = d
		return false, nil

	case ir.OpCond:
		v, err := ex.eval(in.Condition)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Errorf("interp: condition evaluated to %T, want bool", v)
		}
		return b, nil

	case ir.OpRaise:
		return false, &ir.Fault{Name: in.FaultName, Message: in.Message}

	case ir.OpFailStep:
		return false, ir.ErrFailStep

	case ir.OpObserve:
		t, err := ex.eval(in.Time)
		if err != nil {
			return false, err
		}
		tf, ok := t.(float64)
		if !ok {
			return false, fmt.Errorf("interp: observation time evaluated to %T, want float64", t)
		}
		v, err := ex.eval(in.Expression)
		if err != nil {
			return false, err
		}
		ex.pending = append(ex.pending, StateComputed{ID: in.TimeID, Time: tf, Value: v})
		return false, nil
	}
	return false, fmt.Errorf("interp: cannot execute %s instruction", in.Op)
}

func (ex *executor) eval(e expr.Expr) (expr.Value, error) {
	return expr.Evaluate(e, ex.vars, ex.callables)
}

func (ex *executor) call(in *ir.Instruction) error {
	f, ok := ex.registry.Lookup(in.FuncName)
	if !ok {
		return fmt.Errorf("interp: call to unknown function %q", in.FuncName)
	}
	args := make([]expr.Value, len(in.Args))
	for i, a := range in.Args {
		v, err := ex.eval(a)
		if err != nil {
			return err
		}
		args[i] = v
	}
	kwargs := make(map[string]expr.Value, len(in.Kwargs))
	for _, kw := range in.Kwargs {
		v, err := ex.eval(kw.Value)
		if err != nil {
			return err
		}
		kwargs[kw.Name] = v
	}
	out, err := f.Apply(args, kwargs)
	if err != nil {
		return fmt.Errorf("interp: %s: %w", in.FuncName, err)
	}
	if len(out) != len(in.Assignees) {
		return fmt.Errorf("interp: %s returned %d values for %d assignees",
			in.FuncName, len(out), len(in.Assignees))
	}
	for i, name := range in.Assignees {
		ex.vars[name] = out[i]
	}
	return nil
}

func (ex *executor) dot(in *ir.Instruction) (float64, error) {
	xv, err := ex.eval(in.X)
	if err != nil {
		return 0, err
	}
	yv, err := ex.eval(in.Y)
	if err != nil {
		return 0, err
	}
	switch x := xv.(type) {
	case []float64:
		y, ok := yv.([]float64)
		if !ok || len(x) != len(y) {
			return 0, fmt.Errorf("interp: dot of %T and %T", xv, yv)
		}
		return fn.Dot(x, y), nil
	case float64:
		if y, ok := yv.(float64); ok {
			return x * y, nil
		}
	}
	return 0, fmt.Errorf("interp: dot of %T and %T", xv, yv)
}
