package registry

import (
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

func numericFunctions() []*Function {
	num := returns(core.TypeNumber)
	return []*Function{
		{Name: "SUM", Category: CategoryNumeric, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamNumbers}, Returns: num, Eval: fnSum,
			Description: "Sum of the numbers and number arrays given."},
		{Name: "AVERAGE", Category: CategoryNumeric, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamNumbers}, Returns: num, Eval: fnAverage,
			Description: "Arithmetic mean of the numbers given."},
		{Name: "MAX", Category: CategoryNumeric, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamNumbers}, Returns: num, Eval: fnMax,
			Description: "Largest of the numbers given, 0 when there are none."},
		{Name: "MIN", Category: CategoryNumeric, MinArgs: 1, MaxArgs: Variadic, Params: []Param{ParamNumbers}, Returns: num, Eval: fnMin,
			Description: "Smallest of the numbers given, 0 when there are none."},
		{Name: "ROUND", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: rounder(roundNearest),
			Description: "Rounds half away from zero to the given number of decimal places."},
		{Name: "ROUNDUP", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: rounder(roundUp),
			Description: "Rounds away from zero to the given number of decimal places."},
		{Name: "ROUNDDOWN", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: rounder(roundDown),
			Description: "Rounds toward zero to the given number of decimal places."},
		{Name: "CEILING", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: multiple(math.Ceil),
			Description: "Rounds up to the nearest multiple of significance (default 1)."},
		{Name: "FLOOR", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: multiple(math.Floor),
			Description: "Rounds down to the nearest multiple of significance (default 1)."},
		{Name: "EVEN", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamNumber}, Returns: num, Eval: parity(0),
			Description: "Rounds away from zero to the nearest even integer."},
		{Name: "ODD", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamNumber}, Returns: num, Eval: parity(1),
			Description: "Rounds away from zero to the nearest odd integer."},
		{Name: "INT", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamNumber}, Returns: num, Eval: unaryMath(math.Floor),
			Description: "Largest integer less than or equal to the number."},
		{Name: "ABS", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamNumber}, Returns: num, Eval: unaryMath(math.Abs),
			Description: "Absolute value."},
		{Name: "SQRT", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamNumber}, Returns: num, Eval: fnSqrt,
			Description: "Square root of a non-negative number."},
		{Name: "POWER", Category: CategoryNumeric, MinArgs: 2, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: fnPower,
			Description: "Base raised to the power of the exponent."},
		{Name: "EXP", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamNumber}, Returns: num, Eval: unaryMath(math.Exp),
			Description: "e raised to the power of the number."},
		{Name: "LOG", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: fnLog,
			Description: "Logarithm in the given base (default 10)."},
		{Name: "MOD", Category: CategoryNumeric, MinArgs: 2, MaxArgs: 2, Params: []Param{ParamNumber, ParamNumber}, Returns: num, Eval: fnMod,
			Description: "Remainder of a division; the result has the sign of the divisor."},
		{Name: "VALUE", Category: CategoryNumeric, MinArgs: 1, MaxArgs: 1, Params: []Param{ParamText}, Returns: num, Eval: fnValue,
			Description: "Converts text such as \"$1,200.50\" or \"15%\" to a number."},
	}
}

func fnSum(call *Call, args []core.Value) core.Value {
	ns, err := numbers(args)
	if err != nil {
		return core.FromError(err)
	}
	var total float64
	for _, n := range ns {
		total += n
	}
	return numberResult(call, total)
}

func fnAverage(call *Call, args []core.Value) core.Value {
	ns, err := numbers(args)
	if err != nil {
		return core.FromError(err)
	}
	if len(ns) == 0 {
		return core.ErrorValue(core.DivisionByZero, "AVERAGE of no numbers")
	}
	var total float64
	for _, n := range ns {
		total += n
	}
	return numberResult(call, total/float64(len(ns)))
}

func fnMax(_ *Call, args []core.Value) core.Value {
	ns, err := numbers(args)
	if err != nil {
		return core.FromError(err)
	}
	if len(ns) == 0 {
		return core.Number(0)
	}
	out := ns[0]
	for _, n := range ns[1:] {
		out = max(out, n)
	}
	return core.Number(out)
}

func fnMin(_ *Call, args []core.Value) core.Value {
	ns, err := numbers(args)
	if err != nil {
		return core.FromError(err)
	}
	if len(ns) == 0 {
		return core.Number(0)
	}
	out := ns[0]
	for _, n := range ns[1:] {
		out = min(out, n)
	}
	return core.Number(out)
}

type roundMode int

const (
	roundNearest roundMode = iota
	roundUp
	roundDown
)

// roundTo rounds x to digits decimal places. The scaled value is first
// reduced to 15 significant digits so that 1.005 rounds to 1.01.
func roundTo(x float64, digits int, mode roundMode) float64 {
	p := math.Pow(10, float64(digits))
	scaled, _ := strconv.ParseFloat(strconv.FormatFloat(x*p, 'g', 15, 64), 64)
	var r float64
	switch mode {
	case roundUp:
		if scaled < 0 {
			r = math.Floor(scaled)
		} else {
			r = math.Ceil(scaled)
		}
	case roundDown:
		r = math.Trunc(scaled)
	default:
		r = math.Round(scaled)
	}
	return r / p
}

func rounder(mode roundMode) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		x, err := args[0].AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		digits, err := integer(args, 1, 0)
		if err != nil {
			return core.FromError(err)
		}
		if digits > 15 || digits < -15 {
			return core.ErrorValue(core.InvalidArgument, "%s: digits must be between -15 and 15", call.Name)
		}
		return numberResult(call, roundTo(x, digits, mode))
	}
}

func multiple(fn func(float64) float64) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		x, err := args[0].AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		sig, err := optNumber(args, 1, 1)
		if err != nil {
			return core.FromError(err)
		}
		if sig == 0 {
			return core.Number(0)
		}
		return numberResult(call, fn(x/sig)*sig)
	}
}

func parity(rem float64) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		x, err := args[0].AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		sign := 1.0
		if x < 0 {
			sign = -1
		}
		n := math.Ceil(math.Abs(x))
		if math.Mod(n, 2) != rem {
			n++
		}
		return numberResult(call, sign*n)
	}
}

func unaryMath(fn func(float64) float64) func(*Call, []core.Value) core.Value {
	return func(call *Call, args []core.Value) core.Value {
		x, err := args[0].AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		return numberResult(call, fn(x))
	}
}

func fnSqrt(call *Call, args []core.Value) core.Value {
	x, err := args[0].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	if x < 0 {
		return core.ErrorValue(core.InvalidArgument, "SQRT of negative number %s", core.FormatNumber(x))
	}
	return numberResult(call, math.Sqrt(x))
}

func fnPower(call *Call, args []core.Value) core.Value {
	base, err := args[0].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	exp, err := args[1].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	if base == 0 && exp < 0 {
		return core.ErrorValue(core.DivisionByZero, "POWER of zero to a negative exponent")
	}
	return numberResult(call, math.Pow(base, exp))
}

func fnLog(call *Call, args []core.Value) core.Value {
	x, err := args[0].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	base, err := optNumber(args, 1, 10)
	if err != nil {
		return core.FromError(err)
	}
	if x <= 0 || base <= 0 || base == 1 {
		return core.ErrorValue(core.InvalidArgument, "LOG(%s, %s) is undefined", core.FormatNumber(x), core.FormatNumber(base))
	}
	return numberResult(call, math.Log(x)/math.Log(base))
}

func fnMod(call *Call, args []core.Value) core.Value {
	n, err := args[0].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	d, err := args[1].AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	if d == 0 {
		return core.ErrorValue(core.DivisionByZero, "MOD by zero")
	}
	return numberResult(call, n-d*math.Floor(n/d))
}

var valueReplacer = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "¥", "", " ", "")

func fnValue(call *Call, args []core.Value) core.Value {
	if args[0].Kind() == core.KindNumber {
		return args[0]
	}
	s := valueReplacer.Replace(strings.TrimSpace(args[0].AsText()))
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = 0.01
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return core.ErrorValue(core.TypeMismatch, "VALUE cannot convert %q to a number", args[0].AsText())
	}
	return numberResult(call, f*scale)
}
