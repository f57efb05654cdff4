package expr

import (
	"errors"
	"testing"
)

func TestMatchBindsFreeVariables(t *testing.T) {
	bind, err := Match(MustParse("a*x + b"), MustParse("3*x + 7"), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(bind["a"], Num(3)) {
		t.Errorf("a bound to %s, want 3", Render(bind["a"]))
	}
	if !Equal(bind["b"], Num(7)) {
		t.Errorf("b bound to %s, want 7", Render(bind["b"]))
	}
}

func TestMatchCommutative(t *testing.T) {
	// The template's term order need not match the target's.
	bind, err := Match(MustParse("a + x"), MustParse("x + 5"), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(bind["a"], Num(5)) {
		t.Errorf("a bound to %s, want 5", Render(bind["a"]))
	}
}

func TestMatchAbsorbsRemainder(t *testing.T) {
	// A free variable may absorb several leftover terms as one combined sum.
	bind, err := Match(MustParse("x + rest"), MustParse("x + y + z"), []string{"rest"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := bind["rest"].(*Sum); !ok {
		t.Fatalf("rest bound to %s, want a sum", Render(bind["rest"]))
	}
	if len(FreeVariables(bind["rest"])) != 2 {
		t.Errorf("rest = %s, want y + z", Render(bind["rest"]))
	}
}

func TestMatchConsistentBinding(t *testing.T) {
	// The same free variable must bind to equal subexpressions everywhere.
	if _, err := Match(MustParse("a*x + a*y"), MustParse("2*x + 3*y"), []string{"a"}); err == nil {
		t.Error("expected inconsistent binding to fail")
	}
	bind, err := Match(MustParse("a*x + a*y"), MustParse("2*x + 2*y"), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(bind["a"], Num(2)) {
		t.Errorf("a bound to %s, want 2", Render(bind["a"]))
	}
}

func TestMatchCalls(t *testing.T) {
	bind, err := Match(MustParse("f(a, k=b)"), MustParse("f(x + 1, k=2)"), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(bind["a"], MustParse("x + 1")) || !Equal(bind["b"], Num(2)) {
		t.Errorf("got a=%s b=%s", Render(bind["a"]), Render(bind["b"]))
	}

	// Arity and keyword sets must agree exactly.
	if _, err := Match(MustParse("f(a)"), MustParse("f(1, 2)"), []string{"a"}); err == nil {
		t.Error("arity mismatch should not match")
	}
	if _, err := Match(MustParse("f(k=a)"), MustParse("f(j=1)"), []string{"a"}); err == nil {
		t.Error("keyword mismatch should not match")
	}
}

func TestMatchNoMatch(t *testing.T) {
	_, err := Match(MustParse("a*x"), MustParse("x + y"), []string{"a"})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("got %v, want ErrNoMatch", err)
	}
}

func TestMatchLiteralStructure(t *testing.T) {
	// Non-free names must match themselves.
	if _, err := Match(MustParse("x + a"), MustParse("y + 1"), []string{"a"}); err == nil {
		t.Error("bound variable x should not match y")
	}
	bind, err := Match(MustParse("x**a"), MustParse("x**2"), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(bind["a"], Num(2)) {
		t.Errorf("a bound to %s, want 2", Render(bind["a"]))
	}
}
