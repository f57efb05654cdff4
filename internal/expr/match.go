package expr

import "errors"

// ErrNoMatch is returned by Match when no consistent binding exists.
var ErrNoMatch = errors.New("expr: no unifying assignment")

// Match attempts one-directional unification of template against target,
// binding the names in freeVars to subexpressions of target. Sums and
// products unify modulo commutativity and associativity, and a trailing free
// variable may absorb the remaining terms of a longer concrete sum/product.
// Calls unify when the callee, arity, and keyword sets agree. The first
// binding found is returned; the search is not exhaustive.
func Match(template, target Expr, freeVars []string) (map[string]Expr, error) {
	m := &matcher{free: make(map[string]bool, len(freeVars)), bind: make(map[string]Expr)}
	for _, name := range freeVars {
		m.free[name] = true
	}
	if !m.unify(template, target) {
		return nil, ErrNoMatch
	}
	return m.bind, nil
}

type matcher struct {
	free map[string]bool
	bind map[string]Expr
}

func (m *matcher) snapshot() map[string]Expr {
	s := make(map[string]Expr, len(m.bind))
	for k, v := range m.bind {
		s[k] = v
	}
	return s
}

func (m *matcher) restore(s map[string]Expr) {
	m.bind = s
}

func (m *matcher) unify(t, e Expr) bool {
	switch x := t.(type) {
	case *Var:
		if m.free[x.Name] {
			if old, ok := m.bind[x.Name]; ok {
				return Equal(old, e)
			}
			m.bind[x.Name] = e
			return true
		}
		y, ok := e.(*Var)
		return ok && y.Name == x.Name
	case *Const:
		y, ok := e.(*Const)
		return ok && x.Value == y.Value
	case *Sum:
		y, ok := e.(*Sum)
		return ok && m.unifyAC(x.Terms, y.Terms, Add)
	case *Product:
		y, ok := e.(*Product)
		return ok && m.unifyAC(x.Factors, y.Factors, Mul)
	case *Quotient:
		y, ok := e.(*Quotient)
		return ok && m.unify(x.Num, y.Num) && m.unify(x.Den, y.Den)
	case *Power:
		y, ok := e.(*Power)
		return ok && m.unify(x.Base, y.Base) && m.unify(x.Exp, y.Exp)
	case *Comparison:
		y, ok := e.(*Comparison)
		return ok && x.Op == y.Op && m.unify(x.Left, y.Left) && m.unify(x.Right, y.Right)
	case *And:
		y, ok := e.(*And)
		return ok && m.unifyAll(x.Terms, y.Terms)
	case *Or:
		y, ok := e.(*Or)
		return ok && m.unifyAll(x.Terms, y.Terms)
	case *Not:
		y, ok := e.(*Not)
		return ok && m.unify(x.Term, y.Term)
	case *Subscript:
		y, ok := e.(*Subscript)
		return ok && m.unify(x.Aggregate, y.Aggregate) && m.unify(x.Index, y.Index)
	case *Call:
		return m.unifyCall(x, e)
	case *IfThenElse:
		y, ok := e.(*IfThenElse)
		return ok && m.unify(x.Condition, y.Condition) &&
			m.unify(x.Then, y.Then) && m.unify(x.Else, y.Else)
	}
	return false
}

func (m *matcher) unifyAll(ts, es []Expr) bool {
	if len(ts) != len(es) {
		return false
	}
	for i := range ts {
		if !m.unify(ts[i], es[i]) {
			return false
		}
	}
	return true
}

// unifyCall matches calls with the same callee and arity; keyword arguments
// are compared by key (both sides keep kwargs sorted by name).
func (m *matcher) unifyCall(t *Call, e Expr) bool {
	y, ok := e.(*Call)
	if !ok || !m.unify(t.Function, y.Function) {
		return false
	}
	if len(t.Args) != len(y.Args) || len(t.Kwargs) != len(y.Kwargs) {
		return false
	}
	for i := range t.Kwargs {
		if t.Kwargs[i].Name != y.Kwargs[i].Name {
			return false
		}
	}
	for i := range t.Args {
		if !m.unify(t.Args[i], y.Args[i]) {
			return false
		}
	}
	for i := range t.Kwargs {
		if !m.unify(t.Kwargs[i].Value, y.Kwargs[i].Value) {
			return false
		}
	}
	return true
}

// unifyAC assigns template children to distinct concrete children,
// backtracking over the choice. Non-variable template children are matched
// first; a free variable in final position may absorb every remaining
// concrete child as one combined term.
func (m *matcher) unifyAC(ts, es []Expr, combine func(...Expr) Expr) bool {
	if len(ts) > len(es) {
		return false
	}
	ordered := make([]Expr, 0, len(ts))
	var frees []Expr
	for _, t := range ts {
		if v, ok := t.(*Var); ok && m.free[v.Name] {
			frees = append(frees, t)
		} else {
			ordered = append(ordered, t)
		}
	}
	ordered = append(ordered, frees...)
	used := make([]bool, len(es))
	return m.assignAC(ordered, es, used, combine)
}

func (m *matcher) assignAC(ts, es []Expr, used []bool, combine func(...Expr) Expr) bool {
	if len(ts) == 0 {
		for _, u := range used {
			if !u {
				return false
			}
		}
		return true
	}
	t := ts[0]
	for j := range es {
		if used[j] {
			continue
		}
		saved := m.snapshot()
		if m.unify(t, es[j]) {
			used[j] = true
			if m.assignAC(ts[1:], es, used, combine) {
				return true
			}
			used[j] = false
		}
		m.restore(saved)
	}
	if v, ok := t.(*Var); ok && m.free[v.Name] && len(ts) == 1 {
		var rest []Expr
		for j, u := range used {
			if !u {
				rest = append(rest, es[j])
			}
		}
		if len(rest) > 1 {
			saved := m.snapshot()
			if m.unify(t, combine(rest...)) {
				return true
			}
			m.restore(saved)
		}
	}
	return false
}
