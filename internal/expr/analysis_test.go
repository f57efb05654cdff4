package expr

import (
	"fmt"
	"testing"
)

func TestFreeVariables(t *testing.T) {
	e := MustParse("a + f(b, k=c)[d] if p and not q else r**s")
	got := FreeVariables(e)
	want := []string{"a", "f", "b", "c", "d", "p", "q", "r", "s"}
	if len(got) != len(want) {
		t.Fatalf("got %d variables %v, want %d", len(got), got, len(want))
	}
	for _, name := range want {
		if _, ok := got[name]; !ok {
			t.Errorf("missing variable %q", name)
		}
	}
}

func TestFreeVariablesOfSkipsNil(t *testing.T) {
	got := FreeVariablesOf(V("a"), nil, V("b"))
	if len(got) != 2 {
		t.Fatalf("got %v, want {a b}", got)
	}
}

// collapseAll runs CollapseConstants and returns the rewritten expression
// with the emitted assignments.
func collapseAll(e Expr, freeVars []string) (Expr, map[string]Expr) {
	assigned := make(map[string]Expr)
	n := 0
	folded := CollapseConstants(e, freeVars,
		func(name string, value Expr) { assigned[name] = value },
		func() string { n++; return fmt.Sprintf("tmp_%d", n) })
	return folded, assigned
}

func TestCollapseConstantsHoistsConstantGroup(t *testing.T) {
	// In a*b + x, the product a*b contains no free variable and must be
	// hoisted into a single assignment.
	folded, assigned := collapseAll(MustParse("a*b + x"), []string{"x"})
	if len(assigned) != 1 {
		t.Fatalf("expected one hoisted assignment, got %v", assigned)
	}
	for name, value := range assigned {
		if !Equal(value, MustParse("a*b")) {
			t.Errorf("hoisted %s = %s, want a*b", name, Render(value))
		}
		if !Equal(folded, Add(V(name), V("x"))) && !Equal(folded, Add(V("x"), V(name))) {
			t.Errorf("folded expression %s does not reference %s", Render(folded), name)
		}
	}
}

func TestCollapseConstantsLeavesAtomsInline(t *testing.T) {
	// A lone constant or variable child is not worth a temporary.
	folded, assigned := collapseAll(MustParse("2*x"), []string{"x"})
	if len(assigned) != 0 {
		t.Fatalf("expected no assignments, got %v", assigned)
	}
	if !Equal(folded, MustParse("2*x")) {
		t.Errorf("got %s, want 2*x", Render(folded))
	}
}

func TestCollapseConstantsFullyConstant(t *testing.T) {
	folded, assigned := collapseAll(MustParse("a + b*c"), []string{"x"})
	if len(assigned) != 1 {
		t.Fatalf("expected the whole expression hoisted, got %v", assigned)
	}
	v, ok := folded.(*Var)
	if !ok {
		t.Fatalf("expected a variable reference, got %s", Render(folded))
	}
	if !Equal(assigned[v.Name], MustParse("a + b*c")) {
		t.Errorf("hoisted %s, want a + b*c", Render(assigned[v.Name]))
	}
}

func TestCollapseConstantsEquivalence(t *testing.T) {
	// Evaluating the collapsed form with its hoisted assignments must agree
	// with evaluating the original.
	inputs := []string{
		"a*b + x",
		"(a + b)*(x + c)",
		"a + b + x",
		"a*x + b*x + c",
		"x / (a + b)",
		"(a*b)**2 + x**2",
		"f(a + b, k=c*x)",
	}
	base := map[string]Value{"a": 2.0, "b": 3.0, "c": 5.0, "x": 7.0}
	fns := map[string]Value{"f": adder{}}

	for _, in := range inputs {
		orig := MustParse(in)
		want, err := Evaluate(orig, base, fns)
		if err != nil {
			t.Fatalf("Evaluate(%q) failed: %v", in, err)
		}

		folded, assigned := collapseAll(orig, []string{"x"})
		ctx := map[string]Value{"x": base["x"], "a": base["a"], "b": base["b"], "c": base["c"]}
		for name, value := range assigned {
			v, err := Evaluate(value, ctx, fns)
			if err != nil {
				t.Fatalf("%q: evaluating hoisted %s failed: %v", in, name, err)
			}
			ctx[name] = v
		}
		got, err := Evaluate(folded, ctx, fns)
		if err != nil {
			t.Fatalf("%q: evaluating folded form failed: %v", in, err)
		}
		if got != want {
			t.Errorf("%q: folded form = %v, original = %v", in, got, want)
		}
	}
}
