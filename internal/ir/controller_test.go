package ir

import (
	"errors"
	"testing"

	"github.com/san-kum/stepdag/internal/expr"
)

// testExec interprets assignments and conditions against a small variable
// map and records execution order.
type testExec struct {
	order []InstrID
	vars  map[string]expr.Value
}

func newTestExec() *testExec {
	return &testExec{vars: make(map[string]expr.Value)}
}

func (e *testExec) Execute(in *Instruction) (bool, error) {
	e.order = append(e.order, in.ID)
	switch in.Op {
	case OpAssignExpr:
		v, err := expr.Evaluate(in.RHS, e.vars, nil)
		if err != nil {
			return false, err
		}
		e.vars[in.Assignees[0]] = v
	case OpCond:
		v, err := expr.Evaluate(in.Condition, e.vars, nil)
		if err != nil {
			return false, err
		}
		return v.(bool), nil
	case OpRaise:
		return false, &Fault{Name: in.FaultName, Message: in.Message}
	case OpFailStep:
		return false, ErrFailStep
	}
	return false, nil
}

func runPhase(t *testing.T, b *Builder, prog *Program, exec *testExec) error {
	t.Helper()
	return NewController(prog, exec).Run(b.Phase())
}

func TestBuilderDataDependencies(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]

	a := b.Assign("a", expr.Num(1))
	c := b.Assign("c", expr.MustParse("a + 1"))
	d := b.Assign("d", expr.MustParse("a + c"))

	if deps := prog.At(c).Deps; len(deps) != 1 || deps[0] != a {
		t.Errorf("c deps = %v, want [%d]", deps, a)
	}
	if deps := prog.At(d).Deps; len(deps) != 2 || deps[0] != a || deps[1] != c {
		t.Errorf("d deps = %v, want [%d %d]", deps, a, c)
	}
	if goals := b.Tail(); len(goals) != 1 || goals[0] != d {
		t.Errorf("goals = %v, want [%d]", goals, d)
	}
}

func TestBuilderWriteAfterWrite(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]

	first := b.Assign("x", expr.Num(1))
	second := b.Assign("x", expr.MustParse("x + 1"))

	if deps := prog.At(second).Deps; len(deps) != 1 || deps[0] != first {
		t.Errorf("second write deps = %v, want [%d]", deps, first)
	}
}

func TestControllerRunsInDependencyOrder(t *testing.T) {
	// c depends on a and b; a and b are independent and must run in id
	// order.
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]
	ia := b.Assign("a", expr.Num(2))
	ib := b.Assign("b", expr.Num(3))
	ic := b.Assign("c", expr.MustParse("a*b"))

	exec := newTestExec()
	if err := runPhase(t, b, prog, exec); err != nil {
		t.Fatal(err)
	}
	want := []InstrID{ia, ib, ic}
	if len(exec.order) != 3 {
		t.Fatalf("executed %v", exec.order)
	}
	for i := range want {
		if exec.order[i] != want[i] {
			t.Fatalf("order = %v, want %v", exec.order, want)
		}
	}
	if exec.vars["c"] != 6.0 {
		t.Errorf("c = %v, want 6", exec.vars["c"])
	}
}

func TestControllerDeterministicAcrossRuns(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		b.Assign(name, expr.Num(1))
	}
	b.Assign("total", expr.MustParse("a + b + c + d + e"))

	first := newTestExec()
	if err := runPhase(t, b, prog, first); err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 5; run++ {
		exec := newTestExec()
		if err := runPhase(t, b, prog, exec); err != nil {
			t.Fatal(err)
		}
		for i := range first.order {
			if exec.order[i] != first.order[i] {
				t.Fatalf("run %d order %v differs from %v", run, exec.order, first.order)
			}
		}
	}
}

func TestControllerFence(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]

	read := b.Assign("copy", expr.V("x"))
	b.Fence()
	write := b.Assign("x", expr.Num(9))

	if deps := prog.At(write).Deps; len(deps) != 1 || deps[0] != read {
		t.Errorf("post-fence deps = %v, want [%d]", deps, read)
	}

	exec := newTestExec()
	exec.vars["x"] = 1.0
	if err := runPhase(t, b, prog, exec); err != nil {
		t.Fatal(err)
	}
	if exec.vars["copy"] != 1.0 {
		t.Errorf("copy = %v, want the pre-fence value 1", exec.vars["copy"])
	}
	if exec.vars["x"] != 9.0 {
		t.Errorf("x = %v, want 9", exec.vars["x"])
	}
}

func TestControllerConditionalBranches(t *testing.T) {
	build := func() (*Program, *Builder) {
		prog, builders := NewCodeBuilder(PhaseStep)
		b := builders[0]
		b.If(expr.MustParse("x == 1"),
			func(then *Builder) { then.Assign("out", expr.Num(2)) },
			func(els *Builder) { els.Assign("out", expr.Num(99)) },
		)
		b.Assign("final", expr.MustParse("out + 1"))
		return prog, b
	}

	for _, tt := range []struct {
		x    float64
		want float64
	}{
		{1, 3},
		{0, 100},
	} {
		prog, b := build()
		exec := newTestExec()
		exec.vars["x"] = tt.x
		if err := runPhase(t, b, prog, exec); err != nil {
			t.Fatalf("x=%g: %v", tt.x, err)
		}
		if exec.vars["final"] != tt.want {
			t.Errorf("x=%g: final = %v, want %g", tt.x, exec.vars["final"], tt.want)
		}
	}
}

func TestControllerUnselectedBranchNeverRuns(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]
	b.If(expr.MustParse("x == 1"),
		func(then *Builder) { then.Assign("out", expr.Num(1)) },
		func(els *Builder) { els.Raise("Unreachable", "else branch ran") },
	)

	exec := newTestExec()
	exec.vars["x"] = 1.0
	if err := runPhase(t, b, prog, exec); err != nil {
		t.Fatalf("unselected branch executed: %v", err)
	}
}

func TestControllerFailStepStopsExecution(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]
	b.Assign("a", expr.Num(1))
	b.Fence()
	b.FailStep()
	b.Fence()
	after := b.Assign("late", expr.Num(1))

	exec := newTestExec()
	err := runPhase(t, b, prog, exec)
	if !errors.Is(err, ErrFailStep) {
		t.Fatalf("got %v, want ErrFailStep", err)
	}
	for _, id := range exec.order {
		if id == after {
			t.Error("instruction after fail-step should not run")
		}
	}
}

func TestControllerFaultCarriesName(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]
	b.Raise("StateBlowUp", "norm too large")

	err := runPhase(t, b, prog, newTestExec())
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("got %v, want *Fault", err)
	}
	if fault.Name != "StateBlowUp" {
		t.Errorf("fault name = %q", fault.Name)
	}
}

func TestClosureIncludesBranchesOnDemand(t *testing.T) {
	prog, builders := NewCodeBuilder(PhaseStep)
	b := builders[0]
	b.If(expr.MustParse("x == 1"),
		func(then *Builder) { then.Assign("out", expr.Num(1)) },
		nil,
	)
	goals := b.Tail()

	withOut := prog.Closure(goals, true)
	withoutOut := prog.Closure(goals, false)
	if len(withOut) != len(withoutOut)+1 {
		t.Errorf("branch closure %v vs plain %v", withOut, withoutOut)
	}
}
