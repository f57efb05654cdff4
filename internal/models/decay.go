package models

import "math"

const DefaultDecayRate = 1.0

// Decay is scalar exponential decay, y' = -rate*y. Its closed-form solution
// makes it the reference problem for convergence checks.
type Decay struct {
	Rate float64
	Y0   float64
}

func NewDecay() *Decay {
	return &Decay{Rate: DefaultDecayRate, Y0: 1}
}

func (d *Decay) Name() string      { return "decay" }
func (d *Decay) Component() string { return "y" }
func (d *Decay) Initial() []float64 {
	return []float64{d.Y0}
}

func (d *Decay) Derivative(t float64, y []float64) []float64 {
	return []float64{-d.Rate * y[0]}
}

// Exact returns the analytic solution at time t.
func (d *Decay) Exact(t float64) []float64 {
	return []float64{d.Y0 * math.Exp(-d.Rate*t)}
}
