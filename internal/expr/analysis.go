package expr

// FreeVariables returns the set of variable names e depends on.
func FreeVariables(e Expr) map[string]struct{} {
	out := make(map[string]struct{})
	collectVars(e, out)
	return out
}

// FreeVariablesOf collects free variables across several expressions,
// skipping nil entries. Instruction payloads mix expression and
// non-expression fields; absent fields contribute no dependencies.
func FreeVariablesOf(exprs ...Expr) map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range exprs {
		if e != nil {
			collectVars(e, out)
		}
	}
	return out
}

func collectVars(e Expr, out map[string]struct{}) {
	switch x := e.(type) {
	case *Const:
	case *Var:
		out[x.Name] = struct{}{}
	case *Sum:
		for _, t := range x.Terms {
			collectVars(t, out)
		}
	case *Product:
		for _, f := range x.Factors {
			collectVars(f, out)
		}
	case *Quotient:
		collectVars(x.Num, out)
		collectVars(x.Den, out)
	case *Power:
		collectVars(x.Base, out)
		collectVars(x.Exp, out)
	case *Comparison:
		collectVars(x.Left, out)
		collectVars(x.Right, out)
	case *And:
		for _, t := range x.Terms {
			collectVars(t, out)
		}
	case *Or:
		for _, t := range x.Terms {
			collectVars(t, out)
		}
	case *Not:
		collectVars(x.Term, out)
	case *Subscript:
		collectVars(x.Aggregate, out)
		collectVars(x.Index, out)
	case *Call:
		collectVars(x.Function, out)
		for _, a := range x.Args {
			collectVars(a, out)
		}
		for _, kw := range x.Kwargs {
			collectVars(kw.Value, out)
		}
	case *IfThenElse:
		collectVars(x.Condition, out)
		collectVars(x.Then, out)
		collectVars(x.Else, out)
	}
}

// CollapseConstants rewrites e so that every maximal constant subexpression
// (one containing none of freeVars beneath it) is hoisted into a fresh-named
// assignment, emitted through assign. For sums and products the children are
// partitioned into a constant and a non-constant group and the constant
// group is folded into a single hoisted node; a lone variable-free literal
// stays inline. Evaluating the returned expression together with the emitted
// assignments is equivalent to evaluating e.
func CollapseConstants(e Expr, freeVars []string, assign func(name string, value Expr), fresh func() string) Expr {
	c := &collapser{
		free:    make(map[string]bool, len(freeVars)),
		isConst: make(map[Expr]bool),
		assign:  assign,
		fresh:   fresh,
	}
	for _, name := range freeVars {
		c.free[name] = true
	}
	return c.rec(e)
}

type collapser struct {
	free    map[string]bool
	isConst map[Expr]bool
	assign  func(string, Expr)
	fresh   func() string
}

func atomic(e Expr) bool {
	switch e.(type) {
	case *Const, *Var:
		return true
	}
	return false
}

// constant reports whether e has no free variable beneath it. Callee names
// of calls count as constants.
func (c *collapser) constant(e Expr) bool {
	if r, ok := c.isConst[e]; ok {
		return r
	}
	r := true
	switch x := e.(type) {
	case *Const:
	case *Var:
		r = !c.free[x.Name]
	case *Sum:
		r = c.allConstant(x.Terms)
	case *Product:
		r = c.allConstant(x.Factors)
	case *Quotient:
		r = c.constant(x.Num) && c.constant(x.Den)
	case *Power:
		r = c.constant(x.Base) && c.constant(x.Exp)
	case *Comparison:
		r = c.constant(x.Left) && c.constant(x.Right)
	case *And:
		r = c.allConstant(x.Terms)
	case *Or:
		r = c.allConstant(x.Terms)
	case *Not:
		r = c.constant(x.Term)
	case *Subscript:
		r = c.constant(x.Aggregate) && c.constant(x.Index)
	case *Call:
		r = c.allConstant(x.Args)
		for _, kw := range x.Kwargs {
			r = r && c.constant(kw.Value)
		}
	case *IfThenElse:
		r = c.constant(x.Condition) && c.constant(x.Then) && c.constant(x.Else)
	}
	c.isConst[e] = r
	return r
}

func (c *collapser) allConstant(children []Expr) bool {
	r := true
	for _, ch := range children {
		// Evaluate all children so the memo table is fully populated.
		r = c.constant(ch) && r
	}
	return r
}

func (c *collapser) rec(e Expr) Expr {
	if atomic(e) {
		return e
	}
	if c.constant(e) {
		return c.hoist(e)
	}
	switch x := e.(type) {
	case *Sum:
		return c.commutAssoc(x.Terms, Add)
	case *Product:
		return c.commutAssoc(x.Factors, Mul)
	case *Quotient:
		return &Quotient{Num: c.rec(x.Num), Den: c.rec(x.Den)}
	case *Power:
		return &Power{Base: c.rec(x.Base), Exp: c.rec(x.Exp)}
	case *Comparison:
		return &Comparison{Left: c.rec(x.Left), Op: x.Op, Right: c.rec(x.Right)}
	case *And:
		return &And{Terms: c.recAll(x.Terms)}
	case *Or:
		return &Or{Terms: c.recAll(x.Terms)}
	case *Not:
		return &Not{Term: c.rec(x.Term)}
	case *Subscript:
		return &Subscript{Aggregate: c.rec(x.Aggregate), Index: c.rec(x.Index)}
	case *Call:
		kw := make([]Kwarg, len(x.Kwargs))
		for i, k := range x.Kwargs {
			kw[i] = Kwarg{Name: k.Name, Value: c.rec(k.Value)}
		}
		return &Call{Function: x.Function, Args: c.recAll(x.Args), Kwargs: kw}
	case *IfThenElse:
		return &IfThenElse{
			Condition: c.rec(x.Condition),
			Then:      c.rec(x.Then),
			Else:      c.rec(x.Else),
		}
	}
	return e
}

func (c *collapser) recAll(children []Expr) []Expr {
	out := make([]Expr, len(children))
	for i, ch := range children {
		out[i] = c.rec(ch)
	}
	return out
}

func (c *collapser) hoist(e Expr) Expr {
	name := c.fresh()
	c.assign(name, e)
	return V(name)
}

// commutAssoc rewrites one associative/commutative node. Constant children
// fold into a single hoisted assignment; non-constant children are processed
// recursively (their own subexpressions may still be constant).
func (c *collapser) commutAssoc(children []Expr, combine func(...Expr) Expr) Expr {
	var constants, nonConstants []Expr
	for _, ch := range children {
		if c.constant(ch) {
			constants = append(constants, ch)
		} else {
			nonConstants = append(nonConstants, c.rec(ch))
		}
	}

	if len(constants) == 0 {
		return combine(nonConstants...)
	}

	var folded Expr
	if len(constants) == 1 && atomic(constants[0]) {
		folded = constants[0]
	} else {
		folded = c.hoist(combine(constants...))
	}

	if len(nonConstants) == 0 {
		return folded
	}
	return combine(append([]Expr{folded}, nonConstants...)...)
}
