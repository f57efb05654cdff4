package models

import "math"

const DefaultOmega = 1.0

// Oscillator is the undamped harmonic oscillator, x'' = -omega^2 x, as a
// first-order system over [x, v].
type Oscillator struct {
	Omega float64
	X0    float64
	V0    float64
}

func NewOscillator() *Oscillator {
	return &Oscillator{Omega: DefaultOmega, X0: 1, V0: 0}
}

func (o *Oscillator) Name() string      { return "oscillator" }
func (o *Oscillator) Component() string { return "y" }
func (o *Oscillator) Initial() []float64 {
	return []float64{o.X0, o.V0}
}

func (o *Oscillator) Derivative(t float64, y []float64) []float64 {
	return []float64{y[1], -o.Omega * o.Omega * y[0]}
}

// Exact returns the analytic solution at time t.
func (o *Oscillator) Exact(t float64) []float64 {
	w := o.Omega
	return []float64{
		o.X0*math.Cos(w*t) + o.V0/w*math.Sin(w*t),
		-o.X0*w*math.Sin(w*t) + o.V0*math.Cos(w*t),
	}
}

// Energy returns the conserved energy at a state, for drift checks.
func (o *Oscillator) Energy(y []float64) float64 {
	return 0.5*y[1]*y[1] + 0.5*o.Omega*o.Omega*y[0]*y[0]
}
