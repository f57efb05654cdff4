package kind

import (
	"fmt"
	"sort"
)

// Table maps symbol names to kinds, split into a global namespace shared by
// every phase and one local namespace per phase. A symbol's kind is write-once:
// recording a conflicting kind for an already-known symbol is an error.
type Table struct {
	global map[string]Kind
	local  map[string]map[string]Kind
}

// NewTable returns a table seeded with the time symbols, which are always
// real scalars.
func NewTable() *Table {
	return &Table{
		global: map[string]Kind{
			"<t>":  Scalar{IsReal: true},
			"<dt>": Scalar{IsReal: true},
		},
		local: make(map[string]map[string]Kind),
	}
}

// Global returns the kind recorded for a global symbol, or nil.
func (t *Table) Global(name string) Kind {
	return t.global[name]
}

// Local returns the kind recorded for a phase-local symbol, or nil.
func (t *Table) Local(phase, name string) Kind {
	return t.local[phase][name]
}

// Lookup resolves name in phase, consulting the global namespace first.
func (t *Table) Lookup(phase, name string) (Kind, bool) {
	if k, ok := t.global[name]; ok {
		return k, true
	}
	k, ok := t.local[phase][name]
	return k, ok
}

// Set records the kind of name as seen in phase. Global names go to the
// shared namespace. Setting a symbol twice is fine as long as the kinds
// agree; a disagreement is an error. It reports whether the table changed.
func (t *Table) Set(phase, name string, k Kind) (bool, error) {
	ns := t.global
	if !IsGlobalName(name) {
		ns = t.local[phase]
		if ns == nil {
			ns = make(map[string]Kind)
			t.local[phase] = ns
		}
	}
	old, seen := ns[name]
	if seen {
		if !Equal(old, k) {
			return false, fmt.Errorf(
				"kind: conflicting kinds for %q in phase %q: %s vs %s",
				name, phase, String(old), String(k))
		}
		return false, nil
	}
	ns[name] = k
	return true, nil
}

// GlobalNames returns the known global symbols in sorted order.
func (t *Table) GlobalNames() []string {
	names := make([]string, 0, len(t.global))
	for name := range t.global {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LocalNames returns the known symbols of one phase in sorted order.
func (t *Table) LocalNames(phase string) []string {
	names := make([]string, 0, len(t.local[phase]))
	for name := range t.local[phase] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
