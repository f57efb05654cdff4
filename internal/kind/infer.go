package kind

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/ir"
)

// ErrCannotInfer marks an inference attempt that failed only because some
// input kind is not known yet. It is transient: the fixed-point loop retries
// the attempt after other assignments have contributed information. Every
// other inference error is fatal.
var ErrCannotInfer = errors.New("kind: cannot infer yet")

// ResultKindFunc computes the result kind of an externally bound function
// from its argument kinds. Positional arguments are keyed "0", "1", ...;
// keyword arguments by name. An argument whose kind is not yet known maps to
// nil. Implementations return ErrCannotInfer when the known arguments are
// not enough to decide.
type ResultKindFunc func(args map[string]Kind) (Kind, error)

// Finder infers the kind of every symbol assigned anywhere in a compiled
// method. It visits each assignment, possibly repeatedly, until no visit
// changes the table; an assignment that stays uninferable once the table is
// stable is a fatal error.
type Finder struct {
	Functions map[string]ResultKindFunc
}

type workItem struct {
	phase string
	id    ir.InstrID
}

// Infer runs the fixed point over every phase of code and returns the
// completed symbol kind table.
func (f *Finder) Infer(code *ir.Code) (*Table, error) {
	table := NewTable()

	var queue []workItem
	for _, ph := range code.Phases {
		for _, id := range code.Program.Closure(ph.Goals, true) {
			queue = append(queue, workItem{phase: ph.Name, id: id})
		}
	}

	var overflow []workItem
	progress := false
	for len(queue) > 0 || len(overflow) > 0 {
		if len(queue) == 0 {
			if !progress {
				return nil, fmt.Errorf(
					"kind: could not infer kinds for %v", describe(code, overflow))
			}
			queue, overflow = overflow, nil
			progress = false
		}
		item := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		changed, err := f.visit(code, table, item)
		switch {
		case errors.Is(err, ErrCannotInfer):
			overflow = append(overflow, item)
		case err != nil:
			return nil, fmt.Errorf("kind: instruction %d in phase %q: %w",
				item.id, item.phase, err)
		case changed:
			progress = true
		}
	}
	return table, nil
}

// visit infers the kinds assigned by one instruction and records them.
func (f *Finder) visit(code *ir.Code, table *Table, item workItem) (bool, error) {
	in := code.Program.At(item.id)
	inf := &inferrer{phase: item.phase, table: table, functions: f.Functions}

	switch in.Op {
	case ir.OpAssignExpr:
		k, err := inf.infer(in.RHS)
		if err != nil {
			return false, err
		}
		return table.Set(item.phase, in.Assignees[0], k)
	case ir.OpAssignNorm:
		return table.Set(item.phase, in.Assignees[0], Scalar{IsReal: true})
	case ir.OpAssignDot:
		return table.Set(item.phase, in.Assignees[0], Scalar{IsReal: false})
	case ir.OpAssignCall:
		if len(in.Assignees) != 1 {
			// Multi-result calls contribute no kind information.
			return false, nil
		}
		rule, ok := f.Functions[in.FuncName]
		if !ok {
			return false, fmt.Errorf("call to unknown function %q", in.FuncName)
		}
		args := make(map[string]Kind, len(in.Args)+len(in.Kwargs))
		for i, a := range in.Args {
			args[fmt.Sprint(i)] = inf.tryInfer(a)
		}
		for _, kw := range in.Kwargs {
			args[kw.Name] = inf.tryInfer(kw.Value)
		}
		k, err := rule(args)
		if err != nil {
			return false, err
		}
		return table.Set(item.phase, in.Assignees[0], k)
	}
	return false, nil
}

func describe(code *ir.Code, items []workItem) []string {
	seen := make(map[string]bool)
	var names []string
	for _, item := range items {
		for _, name := range code.Program.At(item.id).Assignees {
			key := item.phase + "/" + name
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
	}
	sort.Strings(names)
	return names
}

// inferrer computes the kind of a single expression against the current
// table. A nil kind with a nil error means the expression yields no kind
// information (exponentiation results are left unclassified).
type inferrer struct {
	phase     string
	table     *Table
	functions map[string]ResultKindFunc
}

// tryInfer is infer with transient failures mapped to nil.
func (in *inferrer) tryInfer(e expr.Expr) Kind {
	k, err := in.infer(e)
	if err != nil {
		return nil
	}
	return k
}

func (in *inferrer) infer(e expr.Expr) (Kind, error) {
	switch x := e.(type) {
	case *expr.Const:
		return Scalar{IsReal: x.IsReal()}, nil
	case *expr.Var:
		if k, ok := in.table.Lookup(in.phase, x.Name); ok {
			return k, nil
		}
		return nil, ErrCannotInfer
	case *expr.Sum:
		// A sum's kind is the unification of the children whose kinds are
		// already known; children that are merely not known yet do not block
		// the sum, but a sum with no inferable child at all does.
		var k Kind
		known := false
		for _, t := range x.Terms {
			tk, err := in.infer(t)
			if errors.Is(err, ErrCannotInfer) {
				continue
			}
			if err != nil {
				return nil, err
			}
			known = true
			k, err = Unify(k, tk)
			if err != nil {
				return nil, err
			}
		}
		if !known {
			return nil, ErrCannotInfer
		}
		return k, nil
	case *expr.Product:
		return in.inferAll(x.Factors)
	case *expr.Quotient:
		return in.inferAll([]expr.Expr{x.Num, x.Den})
	case *expr.Power:
		ek, err := in.infer(x.Exp)
		if err != nil {
			return nil, err
		}
		if _, ok := ek.(Scalar); !ok {
			return nil, fmt.Errorf("exponent is %s, expected a scalar", String(ek))
		}
		return nil, nil
	case *expr.Comparison:
		return Boolean{}, nil
	case *expr.And:
		return in.inferLogical(x.Terms)
	case *expr.Or:
		return in.inferLogical(x.Terms)
	case *expr.Not:
		return in.inferLogical([]expr.Expr{x.Term})
	case *expr.Subscript:
		ak, err := in.infer(x.Aggregate)
		if err != nil {
			return nil, err
		}
		arr, ok := ak.(Array)
		if !ok {
			return nil, fmt.Errorf("cannot subscript %s", String(ak))
		}
		return Scalar{IsReal: arr.IsReal}, nil
	case *expr.Call:
		return in.inferCall(x)
	case *expr.IfThenElse:
		ck, err := in.infer(x.Condition)
		if err != nil {
			return nil, err
		}
		if _, ok := ck.(Boolean); !ok {
			return nil, fmt.Errorf("condition is %s, expected boolean", String(ck))
		}
		return in.inferAll([]expr.Expr{x.Then, x.Else})
	}
	return nil, fmt.Errorf("cannot infer kind of %T", e)
}

// inferAll unifies children that must all be inferable.
func (in *inferrer) inferAll(children []expr.Expr) (Kind, error) {
	var k Kind
	for _, ch := range children {
		ck, err := in.infer(ch)
		if err != nil {
			return nil, err
		}
		k, err = Unify(k, ck)
		if err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (in *inferrer) inferLogical(children []expr.Expr) (Kind, error) {
	for _, ch := range children {
		ck, err := in.infer(ch)
		if err != nil {
			return nil, err
		}
		if _, ok := ck.(Boolean); !ok {
			return nil, fmt.Errorf(
				"logical operation on %s is undefined", String(ck))
		}
	}
	return Boolean{}, nil
}

func (in *inferrer) inferCall(x *expr.Call) (Kind, error) {
	name, ok := x.Function.(*expr.Var)
	if !ok {
		return nil, fmt.Errorf("call target must be a name, got %T", x.Function)
	}
	// max and min preserve realness and are always real in practice here.
	if name.Name == "max" || name.Name == "min" {
		return Scalar{IsReal: true}, nil
	}
	rule, ok := in.functions[name.Name]
	if !ok {
		return nil, fmt.Errorf("call to unknown function %q", name.Name)
	}
	args := make(map[string]Kind, len(x.Args)+len(x.Kwargs))
	for i, a := range x.Args {
		args[fmt.Sprint(i)] = in.tryInfer(a)
	}
	for _, kw := range x.Kwargs {
		args[kw.Name] = in.tryInfer(kw.Value)
	}
	return rule(args)
}
