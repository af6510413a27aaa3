package eval

import (
	"math"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func powf(a, b float64) float64 { return math.Pow(a, b) }

// callScalarFn evaluates the FnScalar/FnVector builtins named in
// SPEC_FULL.md §12.3: per-element math functions, the linear() helper
// (spec.md scenario 1), and the two-argument elementwise min/max.
func callScalarFn(name string, kind types.FnKind, args [][]float64) ([]float64, error) {
	if name == "linear" {
		return linear(args), nil
	}
	if kind == types.FnVector && (name == "min" || name == "max") {
		return broadcastOp(args[0], args[1], func(a, b float64) float64 {
			if name == "min" {
				if a < b {
					return a
				}
				return b
			}
			if a > b {
				return a
			}
			return b
		}), nil
	}

	fn, ok := scalarMath[name]
	if !ok {
		return nil, types.NewError(types.KindCompileError, "eval", unknownFnErr(name))
	}
	x := args[0]
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = fn(v)
	}
	return out, nil
}

var scalarMath = map[string]func(float64) float64{
	"sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
	"sqrt": math.Sqrt, "abs": math.Abs, "exp": math.Exp, "log": math.Log,
	"floor": math.Floor, "ceil": math.Ceil, "round": math.Round,
}

// linear implements the spec's canonical range-mapping builtin:
// y0 + (x-x0)*(y1-y0)/(x1-x0), elementwise over x.
func linear(args [][]float64) []float64 {
	x, x0, x1, y0, y1 := args[0], args[1][0], args[2][0], args[3][0], args[4][0]
	out := make([]float64, len(x))
	span := x1 - x0
	for i, v := range x {
		if span == 0 {
			out[i] = y0
			continue
		}
		out[i] = y0 + (v-x0)*(y1-y0)/span
	}
	return out
}

// callStateful evaluates ema/schmitt, reading and updating the map's
// hidden per-instance state slot (spec.md §4.H).
func callStateful(name string, args [][]float64, state []float64) []float64 {
	switch name {
	case "ema":
		x, a := args[0], args[1][0]
		out := make([]float64, len(x))
		for i, v := range x {
			if i >= len(state) {
				break
			}
			state[i] = a*v + (1-a)*state[i]
			out[i] = state[i]
		}
		return out
	case "schmitt":
		x, lo, hi := args[0], args[1][0], args[2][0]
		out := make([]float64, len(x))
		for i, v := range x {
			if i >= len(state) {
				break
			}
			if v > hi {
				state[i] = 1
			} else if v < lo {
				state[i] = 0
			}
			out[i] = state[i]
		}
		return out
	default:
		return args[0]
	}
}

type unknownFn string

func (u unknownFn) Error() string { return "unknown function: " + string(u) }

func unknownFnErr(name string) error { return unknownFn(name) }
