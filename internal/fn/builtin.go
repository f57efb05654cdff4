package fn

import (
	"fmt"
	"math"

	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/kind"
)

// builtins returns the numeric primitives available to every method:
// the three common vector norms, dot products, array construction, length,
// and NaN detection.
func builtins() []*Function {
	return []*Function{
		normBuiltin("norm_1", 1),
		normBuiltin("norm_2", 2),
		normBuiltin("norm_inf", math.Inf(1)),
		{
			Name: "dot",
			Apply: func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error) {
				x, y, err := twoArrays(args, kwargs)
				if err != nil {
					return nil, err
				}
				return []expr.Value{Dot(x, y)}, nil
			},
			ResultKind: FixedKind(kind.Scalar{IsReal: true}),
		},
		{
			Name: "array",
			Apply: func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error) {
				n, err := oneInteger(args, kwargs)
				if err != nil {
					return nil, err
				}
				return []expr.Value{make([]float64, n)}, nil
			},
			ResultKind: FixedKind(kind.Array{IsReal: true}),
		},
		{
			Name: "len",
			Apply: func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error) {
				v, err := oneArg(args, kwargs)
				if err != nil {
					return nil, err
				}
				switch x := v.(type) {
				case []float64:
					return []expr.Value{float64(len(x))}, nil
				case float64, complex128:
					return []expr.Value{1.0}, nil
				}
				return nil, fmt.Errorf("len of %T", v)
			},
			ResultKind: FixedKind(kind.Scalar{IsReal: true}),
		},
		{
			Name: "isnan",
			Apply: func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error) {
				v, err := oneArg(args, kwargs)
				if err != nil {
					return nil, err
				}
				switch x := v.(type) {
				case float64:
					return []expr.Value{math.IsNaN(x)}, nil
				case complex128:
					return []expr.Value{math.IsNaN(real(x)) || math.IsNaN(imag(x))}, nil
				case []float64:
					for _, e := range x {
						if math.IsNaN(e) {
							return []expr.Value{true}, nil
						}
					}
					return []expr.Value{false}, nil
				}
				return nil, fmt.Errorf("isnan of %T", v)
			},
			ResultKind: FixedKind(kind.Boolean{}),
		},
	}
}

func normBuiltin(name string, p float64) *Function {
	return &Function{
		Name: name,
		Apply: func(args []expr.Value, kwargs map[string]expr.Value) ([]expr.Value, error) {
			v, err := oneArg(args, kwargs)
			if err != nil {
				return nil, err
			}
			n, err := Norm(v, p)
			if err != nil {
				return nil, err
			}
			return []expr.Value{n}, nil
		},
		ResultKind: FixedKind(kind.Scalar{IsReal: true}),
	}
}

// Norm computes the p-norm of a value. Scalars norm to their absolute
// value regardless of p.
func Norm(v expr.Value, p float64) (float64, error) {
	switch x := v.(type) {
	case float64:
		return math.Abs(x), nil
	case complex128:
		return math.Hypot(real(x), imag(x)), nil
	case []float64:
		if math.IsInf(p, 1) {
			m := 0.0
			for _, e := range x {
				m = math.Max(m, math.Abs(e))
			}
			return m, nil
		}
		s := 0.0
		for _, e := range x {
			s += math.Pow(math.Abs(e), p)
		}
		return math.Pow(s, 1/p), nil
	}
	return 0, fmt.Errorf("norm of %T", v)
}

// Dot computes the inner product of two equal-length arrays.
func Dot(x, y []float64) float64 {
	s := 0.0
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}

func oneArg(args []expr.Value, kwargs map[string]expr.Value) (expr.Value, error) {
	if len(args) != 1 || len(kwargs) != 0 {
		return nil, fmt.Errorf("expected exactly one positional argument")
	}
	return args[0], nil
}

func oneInteger(args []expr.Value, kwargs map[string]expr.Value) (int, error) {
	v, err := oneArg(args, kwargs)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("expected a nonnegative integer, got %v", v)
	}
	return int(f), nil
}

func twoArrays(args []expr.Value, kwargs map[string]expr.Value) ([]float64, []float64, error) {
	if len(args) != 2 || len(kwargs) != 0 {
		return nil, nil, fmt.Errorf("expected exactly two positional arguments")
	}
	x, xok := args[0].([]float64)
	y, yok := args[1].([]float64)
	if !xok || !yok {
		return nil, nil, fmt.Errorf("expected two arrays, got %T and %T", args[0], args[1])
	}
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("array lengths differ: %d vs %d", len(x), len(y))
	}
	return x, y, nil
}
