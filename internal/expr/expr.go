// Package expr implements the immutable symbolic expression trees that
// time-integration methods are written in, together with parsing,
// evaluation, dependency analysis, constant collapsing, and unification.
//
// Expressions form a closed sum type: every node is one of the variants
// declared in this file, and the passes in this package switch exhaustively
// over them.
package expr

import (
	"sort"
	"strconv"
	"strings"
)

// Expr is one node of an immutable expression tree. Nodes are never mutated
// after construction and may be structurally shared between trees.
type Expr interface {
	isExpr()
}

// Const is a numeric literal. Real literals carry a zero imaginary part.
type Const struct {
	Value complex128
}

// Var is a named variable. Reserved prefixes (<t>, <dt>, <p>..., <state>...,
// <func>...) mark cross-step-persistent or externally bound symbols.
type Var struct {
	Name string
}

// Sum is an n-ary associative/commutative sum.
type Sum struct {
	Terms []Expr
}

// Product is an n-ary associative/commutative product.
type Product struct {
	Factors []Expr
}

type Quotient struct {
	Num, Den Expr
}

type Power struct {
	Base, Exp Expr
}

// Comparison is a single (non-chained) comparison with one of the operators
// ==, !=, <, <=, >, >=.
type Comparison struct {
	Left  Expr
	Op    string
	Right Expr
}

type And struct {
	Terms []Expr
}

type Or struct {
	Terms []Expr
}

type Not struct {
	Term Expr
}

type Subscript struct {
	Aggregate Expr
	Index     Expr
}

// Kwarg is one keyword argument of a Call. Call keeps kwargs sorted by name
// so that structurally equal calls compare equal regardless of construction
// order.
type Kwarg struct {
	Name  string
	Value Expr
}

type Call struct {
	Function Expr
	Args     []Expr
	Kwargs   []Kwarg
}

type IfThenElse struct {
	Condition Expr
	Then      Expr
	Else      Expr
}

func (*Const) isExpr()      {}
func (*Var) isExpr()        {}
func (*Sum) isExpr()        {}
func (*Product) isExpr()    {}
func (*Quotient) isExpr()   {}
func (*Power) isExpr()      {}
func (*Comparison) isExpr() {}
func (*And) isExpr()        {}
func (*Or) isExpr()         {}
func (*Not) isExpr()        {}
func (*Subscript) isExpr()  {}
func (*Call) isExpr()       {}
func (*IfThenElse) isExpr() {}

// Num returns a real constant.
func Num(v float64) *Const { return &Const{Value: complex(v, 0)} }

// Cplx returns a complex constant.
func Cplx(v complex128) *Const { return &Const{Value: v} }

// V returns a variable reference.
func V(name string) *Var { return &Var{Name: name} }

// IsReal reports whether the constant has no imaginary part.
func (c *Const) IsReal() bool { return imag(c.Value) == 0 }

// Real returns the real part of the constant.
func (c *Const) Real() float64 { return real(c.Value) }

// Add combines terms into a sum, flattening nested sums. A single term is
// returned unchanged; no term yields the constant zero.
func Add(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if s, ok := t.(*Sum); ok {
			flat = append(flat, s.Terms...)
		} else {
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return Num(0)
	case 1:
		return flat[0]
	}
	return &Sum{Terms: flat}
}

// Mul combines factors into a product, flattening nested products. A single
// factor is returned unchanged; no factor yields the constant one.
func Mul(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if p, ok := f.(*Product); ok {
			flat = append(flat, p.Factors...)
		} else {
			flat = append(flat, f)
		}
	}
	switch len(flat) {
	case 0:
		return Num(1)
	case 1:
		return flat[0]
	}
	return &Product{Factors: flat}
}

// SubOf returns a - b, encoded as a + (-1)*b.
func SubOf(a, b Expr) Expr { return Add(a, Neg(b)) }

// Neg returns -e, encoded as (-1)*e, folding constants.
func Neg(e Expr) Expr {
	if c, ok := e.(*Const); ok {
		return &Const{Value: -c.Value}
	}
	return Mul(Num(-1), e)
}

// Div returns a / b.
func Div(a, b Expr) Expr { return &Quotient{Num: a, Den: b} }

// PowOf returns a ** b.
func PowOf(a, b Expr) Expr { return &Power{Base: a, Exp: b} }

// NewCall builds a call with kwargs in sorted order.
func NewCall(fn Expr, args []Expr, kwargs map[string]Expr) *Call {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	kw := make([]Kwarg, 0, len(names))
	for _, name := range names {
		kw = append(kw, Kwarg{Name: name, Value: kwargs[name]})
	}
	return &Call{Function: fn, Args: args, Kwargs: kw}
}

// Equal reports structural equality. Two structurally identical trees are
// interchangeable everywhere in the IR.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case *Const:
		y, ok := b.(*Const)
		return ok && x.Value == y.Value
	case *Var:
		y, ok := b.(*Var)
		return ok && x.Name == y.Name
	case *Sum:
		y, ok := b.(*Sum)
		return ok && equalSlices(x.Terms, y.Terms)
	case *Product:
		y, ok := b.(*Product)
		return ok && equalSlices(x.Factors, y.Factors)
	case *Quotient:
		y, ok := b.(*Quotient)
		return ok && Equal(x.Num, y.Num) && Equal(x.Den, y.Den)
	case *Power:
		y, ok := b.(*Power)
		return ok && Equal(x.Base, y.Base) && Equal(x.Exp, y.Exp)
	case *Comparison:
		y, ok := b.(*Comparison)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *And:
		y, ok := b.(*And)
		return ok && equalSlices(x.Terms, y.Terms)
	case *Or:
		y, ok := b.(*Or)
		return ok && equalSlices(x.Terms, y.Terms)
	case *Not:
		y, ok := b.(*Not)
		return ok && Equal(x.Term, y.Term)
	case *Subscript:
		y, ok := b.(*Subscript)
		return ok && Equal(x.Aggregate, y.Aggregate) && Equal(x.Index, y.Index)
	case *Call:
		y, ok := b.(*Call)
		if !ok || !Equal(x.Function, y.Function) {
			return false
		}
		if !equalSlices(x.Args, y.Args) || len(x.Kwargs) != len(y.Kwargs) {
			return false
		}
		for i := range x.Kwargs {
			if x.Kwargs[i].Name != y.Kwargs[i].Name || !Equal(x.Kwargs[i].Value, y.Kwargs[i].Value) {
				return false
			}
		}
		return true
	case *IfThenElse:
		y, ok := b.(*IfThenElse)
		return ok && Equal(x.Condition, y.Condition) && Equal(x.Then, y.Then) && Equal(x.Else, y.Else)
	}
	return false
}

func equalSlices(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Operator precedence levels used by Render and the parser.
const (
	precIfElse = iota
	precOr
	precAnd
	precNot
	precComparison
	precSum
	precProduct
	precUnary
	precPower
	precPostfix
	precAtom
)

// Render produces text that Parse maps back to a structurally equal tree.
// Identifiers containing reserved-prefix characters are backtick-quoted.
func Render(e Expr) string {
	return render(e, precIfElse)
}

func render(e Expr, enclosing int) string {
	var s string
	prec := precAtom
	switch x := e.(type) {
	case *Const:
		s = renderConst(x)
		if strings.HasPrefix(s, "-") {
			prec = precUnary
		}
	case *Var:
		s = renderName(x.Name)
	case *Sum:
		prec = precSum
		var b strings.Builder
		for i, t := range x.Terms {
			if i == 0 {
				b.WriteString(render(t, precSum+1))
				continue
			}
			if neg, ok := negatedTerm(t); ok {
				b.WriteString(" - ")
				b.WriteString(render(neg, precSum+1))
			} else {
				b.WriteString(" + ")
				b.WriteString(render(t, precSum+1))
			}
		}
		s = b.String()
	case *Product:
		prec = precProduct
		if neg, ok := negatedTerm(x); ok {
			prec = precUnary
			s = "-" + render(neg, precUnary)
			break
		}
		parts := make([]string, len(x.Factors))
		for i, f := range x.Factors {
			parts[i] = render(f, precProduct+1)
		}
		s = strings.Join(parts, "*")
	case *Quotient:
		prec = precProduct
		s = render(x.Num, precProduct) + " / " + render(x.Den, precProduct+1)
	case *Power:
		prec = precPower
		s = render(x.Base, precPower+1) + "**" + render(x.Exp, precPower)
	case *Comparison:
		prec = precComparison
		s = render(x.Left, precComparison+1) + " " + x.Op + " " + render(x.Right, precComparison+1)
	case *And:
		prec = precAnd
		parts := make([]string, len(x.Terms))
		for i, t := range x.Terms {
			parts[i] = render(t, precAnd+1)
		}
		s = strings.Join(parts, " and ")
	case *Or:
		prec = precOr
		parts := make([]string, len(x.Terms))
		for i, t := range x.Terms {
			parts[i] = render(t, precOr+1)
		}
		s = strings.Join(parts, " or ")
	case *Not:
		prec = precNot
		s = "not " + render(x.Term, precNot+1)
	case *Subscript:
		prec = precPostfix
		s = render(x.Aggregate, precPostfix) + "[" + render(x.Index, precIfElse) + "]"
	case *Call:
		prec = precPostfix
		parts := make([]string, 0, len(x.Args)+len(x.Kwargs))
		for _, a := range x.Args {
			parts = append(parts, render(a, precIfElse))
		}
		for _, kw := range x.Kwargs {
			parts = append(parts, kw.Name+"="+render(kw.Value, precIfElse))
		}
		s = render(x.Function, precPostfix) + "(" + strings.Join(parts, ", ") + ")"
	case *IfThenElse:
		prec = precIfElse
		s = render(x.Then, precIfElse+1) + " if " + render(x.Condition, precIfElse+1) +
			" else " + render(x.Else, precIfElse)
	}
	if prec < enclosing {
		return "(" + s + ")"
	}
	return s
}

// negatedTerm recognizes (-1)*rest (or a negative real literal) and returns
// the negated remainder.
func negatedTerm(e Expr) (Expr, bool) {
	if c, ok := e.(*Const); ok && c.IsReal() && c.Real() < 0 {
		return Num(-c.Real()), true
	}
	p, ok := e.(*Product)
	if !ok || len(p.Factors) < 2 {
		return nil, false
	}
	c, ok := p.Factors[0].(*Const)
	if !ok || c.Value != complex(-1, 0) {
		return nil, false
	}
	return Mul(p.Factors[1:]...), true
}

func renderConst(c *Const) string {
	re, im := real(c.Value), imag(c.Value)
	if im == 0 {
		return strconv.FormatFloat(re, 'g', -1, 64)
	}
	if re == 0 {
		return strconv.FormatFloat(im, 'g', -1, 64) + "j"
	}
	return "(" + strconv.FormatFloat(re, 'g', -1, 64) + " + " +
		strconv.FormatFloat(im, 'g', -1, 64) + "j)"
}

func renderName(name string) string {
	if plainIdentifier(name) {
		return name
	}
	return "`" + name + "`"
}

func plainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	switch name {
	case "and", "or", "not", "if", "else":
		return false
	}
	return true
}
