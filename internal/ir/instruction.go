// Package ir defines the instruction graph a time-integration method compiles
// to: flat instructions held in an arena and referenced by integer id, with
// explicit dependency edges, plus the builder that constructs graphs and the
// controller that executes them in a deterministic dependency order.
package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/stepdag/internal/expr"
)

// InstrID indexes an instruction inside its Program arena.
type InstrID int

// Op discriminates the instruction variants.
type Op int

const (
	// OpAssignExpr assigns the value of RHS to Assignees[0].
	OpAssignExpr Op = iota
	// OpAssignCall calls the externally bound function FuncName and assigns
	// its results to Assignees in order.
	OpAssignCall
	// OpAssignNorm assigns the P-norm of Arg to Assignees[0].
	OpAssignNorm
	// OpAssignDot assigns the inner product of X and Y to Assignees[0].
	OpAssignDot
	// OpCond evaluates Condition and executes exactly one of the Then or
	// Else instruction sets.
	OpCond
	// OpRaise aborts execution with a user-level fault.
	OpRaise
	// OpFailStep abandons the current step; the driver retries it.
	OpFailStep
	// OpObserve emits a state observation to the driver.
	OpObserve
)

func (op Op) String() string {
	switch op {
	case OpAssignExpr:
		return "assign"
	case OpAssignCall:
		return "call"
	case OpAssignNorm:
		return "norm"
	case OpAssignDot:
		return "dot"
	case OpCond:
		return "if"
	case OpRaise:
		return "raise"
	case OpFailStep:
		return "fail-step"
	case OpObserve:
		return "observe"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Instruction is one node of the graph. Which payload fields are meaningful
// depends on Op; the rest stay zero. Deps lists the instructions that must
// complete before this one may execute.
type Instruction struct {
	ID   InstrID
	Op   Op
	Deps []InstrID

	Assignees []string

	// OpAssignExpr
	RHS expr.Expr

	// OpAssignCall
	FuncName string
	Args     []expr.Expr
	Kwargs   []expr.Kwarg

	// OpAssignNorm
	Arg expr.Expr
	P   float64

	// OpAssignDot
	X, Y expr.Expr

	// OpCond. Then and Else hold the ids of the two branch bodies; the two
	// sets are disjoint and are not part of the dependency closure until the
	// condition selects one.
	Condition expr.Expr
	Then      []InstrID
	Else      []InstrID

	// OpRaise
	FaultName string
	Message   string

	// OpObserve
	TimeID     string
	Time       expr.Expr
	Expression expr.Expr
}

// payloadExprs returns every expression the instruction reads.
func (in *Instruction) payloadExprs() []expr.Expr {
	switch in.Op {
	case OpAssignExpr:
		return []expr.Expr{in.RHS}
	case OpAssignCall:
		es := make([]expr.Expr, 0, len(in.Args)+len(in.Kwargs))
		es = append(es, in.Args...)
		for _, kw := range in.Kwargs {
			es = append(es, kw.Value)
		}
		return es
	case OpAssignNorm:
		return []expr.Expr{in.Arg}
	case OpAssignDot:
		return []expr.Expr{in.X, in.Y}
	case OpCond:
		return []expr.Expr{in.Condition}
	case OpObserve:
		return []expr.Expr{in.Time, in.Expression}
	}
	return nil
}

// ReadVariables returns the variables the instruction's payload references.
func (in *Instruction) ReadVariables() map[string]struct{} {
	return expr.FreeVariablesOf(in.payloadExprs()...)
}

func (in *Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: ", in.ID)
	switch in.Op {
	case OpAssignExpr:
		fmt.Fprintf(&b, "%s <- %s", in.Assignees[0], expr.Render(in.RHS))
	case OpAssignCall:
		parts := make([]string, 0, len(in.Args)+len(in.Kwargs))
		for _, a := range in.Args {
			parts = append(parts, expr.Render(a))
		}
		for _, kw := range in.Kwargs {
			parts = append(parts, kw.Name+"="+expr.Render(kw.Value))
		}
		fmt.Fprintf(&b, "%s <- %s(%s)",
			strings.Join(in.Assignees, ", "), in.FuncName, strings.Join(parts, ", "))
	case OpAssignNorm:
		fmt.Fprintf(&b, "%s <- norm[%g](%s)", in.Assignees[0], in.P, expr.Render(in.Arg))
	case OpAssignDot:
		fmt.Fprintf(&b, "%s <- dot(%s, %s)",
			in.Assignees[0], expr.Render(in.X), expr.Render(in.Y))
	case OpCond:
		fmt.Fprintf(&b, "if %s then %v else %v", expr.Render(in.Condition), in.Then, in.Else)
	case OpRaise:
		fmt.Fprintf(&b, "raise %s: %s", in.FaultName, in.Message)
	case OpFailStep:
		b.WriteString("fail-step")
	case OpObserve:
		fmt.Fprintf(&b, "observe %s at %s: %s",
			in.TimeID, expr.Render(in.Time), expr.Render(in.Expression))
	}
	if len(in.Deps) > 0 {
		fmt.Fprintf(&b, "  {deps %v}", in.Deps)
	}
	return b.String()
}

// Program is the arena holding every instruction of a method, across all of
// its phases. Instruction ids are indices into the arena and reflect
// construction order.
type Program struct {
	instrs []Instruction
}

// NewProgram returns an empty arena.
func NewProgram() *Program {
	return &Program{}
}

// Len returns the number of instructions in the arena.
func (p *Program) Len() int { return len(p.instrs) }

// At returns the instruction with the given id.
func (p *Program) At(id InstrID) *Instruction {
	return &p.instrs[id]
}

func (p *Program) append(in Instruction) InstrID {
	in.ID = InstrID(len(p.instrs))
	p.instrs = append(p.instrs, in)
	return in.ID
}

// Closure returns the dependency closure of goals in ascending id order.
// With withBranches set, conditional branch bodies are included even though
// they are not dependency edges; analysis passes need to see them, the
// scheduler does not.
func (p *Program) Closure(goals []InstrID, withBranches bool) []InstrID {
	seen := make(map[InstrID]bool)
	var visit func(id InstrID)
	visit = func(id InstrID) {
		if seen[id] {
			return
		}
		seen[id] = true
		in := p.At(id)
		for _, d := range in.Deps {
			visit(d)
		}
		if withBranches && in.Op == OpCond {
			for _, b := range in.Then {
				visit(b)
			}
			for _, b := range in.Else {
				visit(b)
			}
		}
	}
	for _, g := range goals {
		visit(g)
	}
	out := make([]InstrID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Canonical phase names. Every method has an initialization phase, run once
// before time stepping, and a step phase, run once per step.
const (
	PhaseInitialization = "initialization"
	PhaseStep           = "step"
)

// Phase is one executable unit of a method: the instructions reachable from
// its goal set, run to completion per invocation.
type Phase struct {
	Name  string
	Goals []InstrID
}

// Code is a compiled method: the shared arena plus its named phases.
type Code struct {
	Program *Program
	Phases  []*Phase
}

// Phase returns the named phase, or nil.
func (c *Code) Phase(name string) *Phase {
	for _, ph := range c.Phases {
		if ph.Name == name {
			return ph
		}
	}
	return nil
}

// Dump renders the whole program phase by phase, for debugging and trace
// export.
func (c *Code) Dump() string {
	var b strings.Builder
	for _, ph := range c.Phases {
		fmt.Fprintf(&b, "phase %q (goals %v):\n", ph.Name, ph.Goals)
		for _, id := range c.Program.Closure(ph.Goals, true) {
			fmt.Fprintf(&b, "  %s\n", c.Program.At(id))
		}
	}
	return b.String()
}
