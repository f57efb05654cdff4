package kind

import "testing"

func TestUnify(t *testing.T) {
	tests := []struct {
		name string
		a, b Kind
		want Kind
	}{
		{"nil is identity", nil, Scalar{IsReal: true}, Scalar{IsReal: true}},
		{"scalar scalar keeps realness", Scalar{IsReal: true}, Scalar{IsReal: true}, Scalar{IsReal: true}},
		{"scalar scalar loses realness", Scalar{IsReal: true}, Scalar{}, Scalar{}},
		{"scalar array", Scalar{IsReal: true}, Array{IsReal: true}, Array{IsReal: true}},
		{"array array", Array{IsReal: true}, Array{}, Array{}},
		{"ode scalar", ODEComponent{ComponentID: "y"}, Scalar{IsReal: true}, ODEComponent{ComponentID: "y"}},
		{"scalar ode", Scalar{}, ODEComponent{ComponentID: "y"}, ODEComponent{ComponentID: "y"}},
		{"ode ode same", ODEComponent{ComponentID: "y"}, ODEComponent{ComponentID: "y"}, ODEComponent{ComponentID: "y"}},
	}
	for _, tt := range tests {
		got, err := Unify(tt.a, tt.b)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if !Equal(got, tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, String(got), String(tt.want))
		}
	}
}

func TestUnifyCommutative(t *testing.T) {
	kinds := []Kind{
		Scalar{}, Scalar{IsReal: true},
		Array{}, Array{IsReal: true},
		ODEComponent{ComponentID: "y"},
	}
	for _, a := range kinds {
		for _, b := range kinds {
			x, errX := Unify(a, b)
			y, errY := Unify(b, a)
			if (errX == nil) != (errY == nil) {
				t.Errorf("Unify(%s, %s) error asymmetry: %v vs %v",
					String(a), String(b), errX, errY)
				continue
			}
			if errX == nil && !Equal(x, y) {
				t.Errorf("Unify(%s, %s) = %s but reversed = %s",
					String(a), String(b), String(x), String(y))
			}
		}
	}
}

func TestUnifyErrors(t *testing.T) {
	cases := [][2]Kind{
		{Boolean{}, Scalar{}},
		{Scalar{}, Boolean{}},
		{Boolean{}, Boolean{}},
		{ODEComponent{ComponentID: "y"}, ODEComponent{ComponentID: "z"}},
		{ODEComponent{ComponentID: "y"}, Array{}},
		{Array{}, ODEComponent{ComponentID: "y"}},
	}
	for _, c := range cases {
		if _, err := Unify(c[0], c[1]); err == nil {
			t.Errorf("Unify(%s, %s) should fail", String(c[0]), String(c[1]))
		}
	}
}

func TestTableSeedsTimeSymbols(t *testing.T) {
	table := NewTable()
	for _, name := range []string{"<t>", "<dt>"} {
		k, ok := table.Lookup("step", name)
		if !ok || !Equal(k, Scalar{IsReal: true}) {
			t.Errorf("%s: got (%v, %v), want real scalar", name, k, ok)
		}
	}
}

func TestTableSetOnceSemantics(t *testing.T) {
	table := NewTable()

	changed, err := table.Set("step", "x", Scalar{IsReal: true})
	if err != nil || !changed {
		t.Fatalf("first set: (%v, %v)", changed, err)
	}
	changed, err = table.Set("step", "x", Scalar{IsReal: true})
	if err != nil || changed {
		t.Fatalf("idempotent set: (%v, %v)", changed, err)
	}
	if _, err := table.Set("step", "x", Array{}); err == nil {
		t.Error("conflicting set should fail")
	}
}

func TestTableNamespaces(t *testing.T) {
	table := NewTable()

	// Local names are per phase; global names are shared.
	if _, err := table.Set("a", "x", Scalar{}); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Set("b", "x", Array{}); err != nil {
		t.Errorf("same local name in another phase should be independent: %v", err)
	}

	if _, err := table.Set("a", "<state>y", ODEComponent{ComponentID: "y"}); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Set("b", "<state>y", Array{}); err == nil {
		t.Error("global name must be consistent across phases")
	}
}

func TestIsGlobalName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"<t>", true},
		{"<dt>", true},
		{"<state>y", true},
		{"<p>alpha", true},
		{"<func>f", false},
		{"local", false},
	}
	for _, tt := range tests {
		if got := IsGlobalName(tt.name); got != tt.want {
			t.Errorf("IsGlobalName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
