// Package methods compiles time-integration methods into instruction graphs.
// The only family implemented is the explicit Runge-Kutta methods, described
// by their Butcher tableaux; adaptive step control is available for tableaux
// that carry embedded error weights.
package methods

import (
	"fmt"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/ir"
)

// Tableau is a Butcher tableau for an explicit Runge-Kutta method. A must be
// strictly lower triangular. BHat, when present, holds the weights of an
// embedded lower-order solution used for error estimation.
type Tableau struct {
	Name  string
	Order int
	A     [][]float64
	B     []float64
	C     []float64
	BHat  []float64
}

// Stages returns the number of stages.
func (tb Tableau) Stages() int { return len(tb.B) }

func (tb Tableau) validate() error {
	s := tb.Stages()
	if s == 0 {
		return fmt.Errorf("methods: tableau %q has no stages", tb.Name)
	}
	if len(tb.A) != s || len(tb.C) != s {
		return fmt.Errorf("methods: tableau %q has inconsistent dimensions", tb.Name)
	}
	for i, row := range tb.A {
		if len(row) > i {
			return fmt.Errorf("methods: tableau %q is not strictly lower triangular in row %d",
				tb.Name, i)
		}
	}
	if tb.BHat != nil && len(tb.BHat) != s {
		return fmt.Errorf("methods: tableau %q has %d embedded weights for %d stages",
			tb.Name, len(tb.BHat), s)
	}
	return nil
}

// ExplicitRK compiles one explicit Runge-Kutta method advancing a single
// state component with a single right-hand-side function. The function is
// called as RHS(t=..., <component>=...).
type ExplicitRK struct {
	Tableau   Tableau
	Component string
	RHS       string

	// Tolerance enables adaptive step control when the tableau carries
	// embedded weights: a step whose error estimate exceeds Tolerance is
	// abandoned with a halved step size.
	Tolerance float64

	// MaxNorm, when positive, aborts the run with a fault as soon as the
	// advanced state's norm exceeds it.
	MaxNorm float64
}

// Compile lowers the method to an instruction graph with an initialization
// phase, which observes the initial state, and a step phase.
func (m ExplicitRK) Compile() (*ir.Code, error) {
	if err := m.Tableau.validate(); err != nil {
		return nil, err
	}
	if m.Component == "" || m.RHS == "" {
		return nil, fmt.Errorf("methods: explicit RK needs a component and an RHS function")
	}
	if m.Tolerance > 0 && m.Tableau.BHat == nil {
		return nil, fmt.Errorf("methods: tableau %q has no embedded weights for adaptive control",
			m.Tableau.Name)
	}

	prog, builders := ir.NewCodeBuilder(ir.PhaseInitialization, ir.PhaseStep)
	init, step := builders[0], builders[1]

	state := expr.V("<state>" + m.Component)
	t := expr.V("<t>")

	init.Observe(m.Component, t, state)
	m.emitStep(step, state)

	return &ir.Code{
		Program: prog,
		Phases:  []*ir.Phase{init.Phase(), step.Phase()},
	}, nil
}

func (m ExplicitRK) emitStep(b *ir.Builder, state *expr.Var) {
	tb := m.Tableau
	t := expr.V("<t>")

	// The step size in effect is latched so that adaptive control may adjust
	// <dt> for the next step without disturbing this one.
	dtName := b.Fresh("dt_used")
	b.Assign(dtName, expr.V("<dt>"))
	dt := expr.V(dtName)

	stages := make([]expr.Expr, tb.Stages())
	for i := range stages {
		name := b.Fresh("rk_stage")
		stageT := expr.Add(t, expr.Mul(expr.Num(tb.C[i]), dt))
		stageY := addScaled(state, dt, lincomb(tb.A[i], stages[:i]))
		b.AssignCall([]string{name}, m.RHS, nil, map[string]expr.Expr{
			"t":         stageT,
			m.Component: stageY,
		})
		stages[i] = expr.V(name)
	}

	vary := []string{"<t>", dtName, state.Name}
	for _, s := range stages {
		vary = append(vary, s.(*expr.Var).Name)
	}

	next := b.Fresh("rk_update")
	b.AssignFolded(next, addScaled(state, dt, lincomb(tb.B, stages)), vary)

	if m.MaxNorm > 0 {
		guard := b.Fresh("rk_guard")
		b.Norm(guard, expr.V(next), 2)
		b.If(
			&expr.Comparison{Left: expr.V(guard), Op: ">", Right: expr.Num(m.MaxNorm)},
			func(then *ir.Builder) {
				then.Raise("StateBlowUp", fmt.Sprintf(
					"state norm exceeded %g", m.MaxNorm))
			},
			nil,
		)
	}

	if m.Tolerance > 0 {
		diff := make([]float64, tb.Stages())
		for i := range diff {
			diff[i] = tb.B[i] - tb.BHat[i]
		}
		errName := b.Fresh("rk_err")
		b.Norm(errName, expr.Mul(dt, lincomb(diff, stages)), 2)
		b.If(
			&expr.Comparison{Left: expr.V(errName), Op: ">", Right: expr.Num(m.Tolerance)},
			func(then *ir.Builder) {
				then.Assign("<dt>", expr.Mul(expr.Num(0.5), dt))
				then.FailStep()
			},
			func(els *ir.Builder) {
				// Grow cautiously toward the error target.
				els.Assign("<dt>", expr.Mul(
					expr.Num(0.9), dt,
					expr.PowOf(
						expr.Div(expr.Num(m.Tolerance), expr.Add(expr.V(errName), expr.Num(1e-300))),
						expr.Num(0.2))))
			},
		)
	}

	b.Observe(m.Component, expr.Add(t, dt), expr.V(next))

	b.Fence()
	b.Assign(state.Name, expr.V(next))
	b.Assign("<t>", expr.Add(t, dt))
}

// addScaled builds base + scale*comb, eliding the addition when the
// combination is empty.
func addScaled(base, scale, comb expr.Expr) expr.Expr {
	if c, ok := comb.(*expr.Const); ok && c.Value == 0 {
		return base
	}
	return expr.Add(base, expr.Mul(scale, comb))
}

// lincomb builds sum_i coeffs[i]*terms[i], skipping zero coefficients and
// eliding unit ones.
func lincomb(coeffs []float64, terms []expr.Expr) expr.Expr {
	var parts []expr.Expr
	for i, c := range coeffs {
		if i >= len(terms) || c == 0 {
			continue
		}
		if c == 1 {
			parts = append(parts, terms[i])
		} else {
			parts = append(parts, expr.Mul(expr.Num(c), terms[i]))
		}
	}
	return expr.Add(parts...)
}
