package ir

import (
	"fmt"
	"sort"

	"github.com/san-kum/stepdag/internal/expr"
)

// Builder emits the instructions of one phase into a shared Program,
// computing dependency edges as it goes. Each emitted instruction depends on
// the most recent writer of every variable it reads, on the previous writer
// of every variable it writes, and on every instruction emitted before the
// latest Fence call.
type Builder struct {
	prog    *Program
	name    string
	emitted []InstrID

	lastWriter map[string]InstrID
	barrier    []InstrID

	freshCounter *int
}

// NewCodeBuilder returns a fresh arena plus one builder per requested phase,
// in order. All builders share the arena and the fresh-name counter.
func NewCodeBuilder(phaseNames ...string) (*Program, []*Builder) {
	prog := NewProgram()
	counter := new(int)
	bs := make([]*Builder, len(phaseNames))
	for i, name := range phaseNames {
		bs[i] = &Builder{
			prog:         prog,
			name:         name,
			lastWriter:   make(map[string]InstrID),
			freshCounter: counter,
		}
	}
	return prog, bs
}

// Fresh returns a new unique temporary name with the given prefix.
func (b *Builder) Fresh(prefix string) string {
	*b.freshCounter++
	return fmt.Sprintf("%s_%d", prefix, *b.freshCounter)
}

// deps assembles the dependency set for an instruction that reads the given
// expressions and writes the given names.
func (b *Builder) deps(reads map[string]struct{}, writes []string) []InstrID {
	set := make(map[InstrID]struct{}, len(reads)+len(writes)+len(b.barrier))
	for name := range reads {
		if w, ok := b.lastWriter[name]; ok {
			set[w] = struct{}{}
		}
	}
	for _, name := range writes {
		if w, ok := b.lastWriter[name]; ok {
			set[w] = struct{}{}
		}
	}
	for _, id := range b.barrier {
		set[id] = struct{}{}
	}
	out := make([]InstrID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *Builder) emit(in Instruction) InstrID {
	in.Deps = b.deps(in.ReadVariables(), in.Assignees)
	id := b.prog.append(in)
	for _, name := range b.prog.At(id).Assignees {
		b.lastWriter[name] = id
	}
	b.emitted = append(b.emitted, id)
	return id
}

// Assign emits name <- rhs.
func (b *Builder) Assign(name string, rhs expr.Expr) InstrID {
	return b.emit(Instruction{Op: OpAssignExpr, Assignees: []string{name}, RHS: rhs})
}

// AssignFolded emits name <- rhs after hoisting every maximal constant
// subexpression of rhs into its own temporary assignment. Variables bound in
// vary are the ones considered non-constant.
func (b *Builder) AssignFolded(name string, rhs expr.Expr, vary []string) InstrID {
	folded := expr.CollapseConstants(rhs, vary,
		func(tmp string, value expr.Expr) { b.Assign(tmp, value) },
		func() string { return b.Fresh("fold") })
	return b.Assign(name, folded)
}

// AssignCall emits assignees <- funcName(args, kwargs).
func (b *Builder) AssignCall(assignees []string, funcName string, args []expr.Expr, kwargs map[string]expr.Expr) InstrID {
	names := make([]string, 0, len(kwargs))
	for n := range kwargs {
		names = append(names, n)
	}
	sort.Strings(names)
	kw := make([]expr.Kwarg, 0, len(names))
	for _, n := range names {
		kw = append(kw, expr.Kwarg{Name: n, Value: kwargs[n]})
	}
	return b.emit(Instruction{
		Op: OpAssignCall, Assignees: assignees,
		FuncName: funcName, Args: args, Kwargs: kw,
	})
}

// Norm emits name <- the p-norm of arg.
func (b *Builder) Norm(name string, arg expr.Expr, p float64) InstrID {
	return b.emit(Instruction{Op: OpAssignNorm, Assignees: []string{name}, Arg: arg, P: p})
}

// Dot emits name <- the inner product of x and y.
func (b *Builder) Dot(name string, x, y expr.Expr) InstrID {
	return b.emit(Instruction{Op: OpAssignDot, Assignees: []string{name}, X: x, Y: y})
}

// Observe emits a state observation with the given identifier, time
// expression, and observed expression.
func (b *Builder) Observe(timeID string, time, e expr.Expr) InstrID {
	return b.emit(Instruction{Op: OpObserve, TimeID: timeID, Time: time, Expression: e})
}

// Raise emits a user-level fault.
func (b *Builder) Raise(faultName, message string) InstrID {
	return b.emit(Instruction{Op: OpRaise, FaultName: faultName, Message: message})
}

// FailStep emits an instruction that abandons the current step.
func (b *Builder) FailStep() InstrID {
	return b.emit(Instruction{Op: OpFailStep})
}

// Fence orders everything emitted after it behind everything emitted before
// it. Fences are the builder's tool for write-after-read hazards, which the
// variable-based dependency tracking does not see.
func (b *Builder) Fence() {
	b.barrier = append([]InstrID(nil), b.emitted...)
}

// If emits a conditional. The then and els functions receive branch builders
// that inherit the surrounding dependency state; instructions they emit form
// the two branch bodies. Variables written in either branch appear, to later
// instructions, as written by the conditional itself.
func (b *Builder) If(cond expr.Expr, then func(*Builder), els func(*Builder)) InstrID {
	thenIDs, thenWrites := b.branch(then)
	elseIDs, elseWrites := b.branch(els)

	id := b.emit(Instruction{Op: OpCond, Condition: cond, Then: thenIDs, Else: elseIDs})

	for name := range thenWrites {
		b.lastWriter[name] = id
	}
	for name := range elseWrites {
		b.lastWriter[name] = id
	}
	return id
}

func (b *Builder) branch(body func(*Builder)) ([]InstrID, map[string]struct{}) {
	if body == nil {
		return nil, nil
	}
	sub := &Builder{
		prog:         b.prog,
		name:         b.name,
		lastWriter:   make(map[string]InstrID, len(b.lastWriter)),
		barrier:      b.barrier,
		freshCounter: b.freshCounter,
	}
	for k, v := range b.lastWriter {
		sub.lastWriter[k] = v
	}
	body(sub)

	writes := make(map[string]struct{})
	for _, id := range sub.emitted {
		for _, name := range b.prog.At(id).Assignees {
			writes[name] = struct{}{}
		}
	}
	return sub.emitted, writes
}

// Tail returns the phase goal set: every emitted instruction no other
// emitted instruction depends on.
func (b *Builder) Tail() []InstrID {
	depended := make(map[InstrID]bool)
	for _, id := range b.emitted {
		for _, d := range b.prog.At(id).Deps {
			depended[d] = true
		}
	}
	var goals []InstrID
	for _, id := range b.emitted {
		if !depended[id] {
			goals = append(goals, id)
		}
	}
	return goals
}

// Phase closes the builder into a Phase with Tail as its goal set.
func (b *Builder) Phase() *Phase {
	return &Phase{Name: b.name, Goals: b.Tail()}
}
