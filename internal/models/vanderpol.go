package models

const DefaultMu = 1.0

// VanDerPol is the van der Pol oscillator, x'' = mu*(1-x^2)*x' - x. It has
// no closed form and stiffens as mu grows, which exercises adaptive step
// control.
type VanDerPol struct {
	Mu float64
	X0 float64
	V0 float64
}

func NewVanDerPol() *VanDerPol {
	return &VanDerPol{Mu: DefaultMu, X0: 2, V0: 0}
}

func (v *VanDerPol) Name() string      { return "vanderpol" }
func (v *VanDerPol) Component() string { return "y" }
func (v *VanDerPol) Initial() []float64 {
	return []float64{v.X0, v.V0}
}

func (v *VanDerPol) Derivative(t float64, y []float64) []float64 {
	x, xd := y[0], y[1]
	return []float64{xd, v.Mu*(1-x*x)*xd - x}
}
