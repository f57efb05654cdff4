package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads an infix expression: arithmetic (+ - * / **), comparisons,
// and/or/not, subscripts, calls with positional and keyword arguments, and
// `a if cond else b` conditionals. Identifiers may be delimited with a
// backtick pair to admit otherwise-illegal characters; the backticks are
// stripped from the resulting variable name.
func Parse(text string) (Expr, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, fmt.Errorf("expr: unexpected %q after expression", p.peek().text)
	}
	return e, nil
}

// MustParse is Parse for known-good input; it panics on error.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	val  complex128
}

func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(text) && (text[j] >= '0' && text[j] <= '9' || text[j] == '.') {
				j++
			}
			if j < len(text) && (text[j] == 'e' || text[j] == 'E') {
				k := j + 1
				if k < len(text) && (text[k] == '+' || text[k] == '-') {
					k++
				}
				for k < len(text) && text[k] >= '0' && text[k] <= '9' {
					k++
				}
				j = k
			}
			v, err := strconv.ParseFloat(text[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("expr: bad number %q", text[i:j])
			}
			val := complex(v, 0)
			if j < len(text) && text[j] == 'j' {
				val = complex(0, v)
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: text[i:j], val: val})
			i = j
		case c == '`':
			j := strings.IndexByte(text[i+1:], '`')
			if j < 0 {
				return nil, fmt.Errorf("expr: unterminated backtick identifier")
			}
			toks = append(toks, token{kind: tokIdent, text: text[i+1 : i+1+j]})
			i += j + 2
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
			j := i
			for j < len(text) && (text[j] >= 'a' && text[j] <= 'z' ||
				text[j] >= 'A' && text[j] <= 'Z' ||
				text[j] >= '0' && text[j] <= '9' || text[j] == '_') {
				j++
			}
			word := text[i:j]
			switch word {
			case "and", "or", "not", "if", "else":
				toks = append(toks, token{kind: tokOp, text: word})
			default:
				toks = append(toks, token{kind: tokIdent, text: word})
			}
			i = j
		default:
			op := ""
			for _, cand := range []string{"**", "==", "!=", "<=", ">=",
				"+", "-", "*", "/", "(", ")", "[", "]", ",", "<", ">", "="} {
				if strings.HasPrefix(text[i:], cand) {
					op = cand
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("expr: unexpected character %q", c)
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) next() token  { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEOF() bool  { return p.peek().kind == tokEOF }
func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos+n]
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return fmt.Errorf("expr: expected %q, got %q", op, p.peek().text)
	}
	return nil
}

func (p *parser) parseExpr() (Expr, error) {
	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("if") {
		return then, nil
	}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &IfThenElse{Condition: cond, Then: then, Else: els}, nil
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.acceptOp("or") {
		t, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.acceptOp("and") {
		t, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &And{Terms: terms}, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptOp("not") {
		t, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Term: t}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			right, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			return &Comparison{Left: left, Op: t.text, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseSum() (Expr, error) {
	first, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for {
		switch {
		case p.acceptOp("+"):
			t, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
		case p.acceptOp("-"):
			t, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			terms = append(terms, Neg(t))
		default:
			if len(terms) == 1 {
				return first, nil
			}
			return &Sum{Terms: terms}, nil
		}
	}
}

func (p *parser) parseProduct() (Expr, error) {
	cur, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("*"):
			f, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			cur = Mul(cur, f)
		case p.acceptOp("/"):
			d, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			cur = &Quotient{Num: cur, Den: d}
		default:
			return cur, nil
		}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.acceptOp("-") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Neg(e), nil
	}
	if p.acceptOp("+") {
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.acceptOp("**") {
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Power{Base: base, Exp: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("("):
			e, err = p.parseCall(e)
			if err != nil {
				return nil, err
			}
		case p.acceptOp("["):
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &Subscript{Aggregate: e, Index: idx}
		default:
			return e, nil
		}
	}
}

func (p *parser) parseCall(fn Expr) (Expr, error) {
	var args []Expr
	kwargs := make(map[string]Expr)
	for !p.acceptOp(")") {
		if len(args)+len(kwargs) > 0 {
			if err := p.expectOp(","); err != nil {
				return nil, err
			}
		}
		if t := p.peek(); t.kind == tokIdent &&
			p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=" {
			p.next()
			p.next()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, dup := kwargs[t.text]; dup {
				return nil, fmt.Errorf("expr: duplicate keyword argument %q", t.text)
			}
			kwargs[t.text] = v
			continue
		}
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("expr: positional argument after keyword argument")
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return NewCall(fn, args, kwargs), nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &Const{Value: t.val}, nil
	case tokIdent:
		return &Var{Name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, fmt.Errorf("expr: unexpected token %q", t.text)
}
