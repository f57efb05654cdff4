package methods

// The classic explicit tableaux.

// ForwardEuler is the first-order forward Euler method.
var ForwardEuler = Tableau{
	Name:  "euler",
	Order: 1,
	A:     [][]float64{{}},
	B:     []float64{1},
	C:     []float64{0},
}

// Midpoint is the second-order explicit midpoint method.
var Midpoint = Tableau{
	Name:  "midpoint",
	Order: 2,
	A:     [][]float64{{}, {0.5}},
	B:     []float64{0, 1},
	C:     []float64{0, 0.5},
}

// Heun is the second-order trapezoidal (Heun) method. Its embedded Euler
// weights give a first-order error estimate for adaptive control.
var Heun = Tableau{
	Name:  "heun",
	Order: 2,
	A:     [][]float64{{}, {1}},
	B:     []float64{0.5, 0.5},
	C:     []float64{0, 1},
	BHat:  []float64{1, 0},
}

// RK4 is the classic fourth-order Runge-Kutta method.
var RK4 = Tableau{
	Name:  "rk4",
	Order: 4,
	A: [][]float64{
		{},
		{0.5},
		{0, 0.5},
		{0, 0, 1},
	},
	B: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
	C: []float64{0, 0.5, 0.5, 1},
}

// ByName returns the tableau registered under name.
func ByName(name string) (Tableau, bool) {
	for _, tb := range []Tableau{ForwardEuler, Midpoint, Heun, RK4} {
		if tb.Name == name {
			return tb, true
		}
	}
	return Tableau{}, false
}

// Names lists the available tableau names.
func Names() []string {
	return []string{ForwardEuler.Name, Midpoint.Name, Heun.Name, RK4.Name}
}
