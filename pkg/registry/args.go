package registry

import (
	"math"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// numberResult converts a computed float into a value. NaN and infinities
// are domain errors.
func numberResult(call *Call, f float64) core.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return core.ErrorValue(core.InvalidArgument, "%s: result is not a finite number", call.Name)
	}
	return core.Number(f)
}

// optNumber returns args[i] as a number, or def when the argument is
// absent.
func optNumber(args []core.Value, i int, def float64) (float64, *core.EvalError) {
	if i >= len(args) {
		return def, nil
	}
	return args[i].AsNumber()
}

// optText returns args[i] as text, or def when the argument is absent.
func optText(args []core.Value, i int, def string) string {
	if i >= len(args) {
		return def
	}
	return args[i].AsText()
}

// numbers flattens args and coerces every leaf to a number. Empty text
// leaves inside arrays are skipped.
func numbers(args []core.Value) ([]float64, *core.EvalError) {
	var out []float64
	for _, arg := range args {
		for _, leaf := range arg.Flatten() {
			if leaf.IsError() {
				return nil, leaf.Err()
			}
			if arg.Kind() == core.KindArray && leaf.Kind() == core.KindText && leaf.Str() == "" {
				continue
			}
			n, err := leaf.AsNumber()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	return out, nil
}

// integer truncates a numeric argument toward zero.
func integer(args []core.Value, i int, def int) (int, *core.EvalError) {
	f, err := optNumber(args, i, float64(def))
	if err != nil {
		return 0, err
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, core.NewEvalError(core.InvalidArgument, "%s is out of range", core.FormatNumber(f))
	}
	return int(f), nil
}
