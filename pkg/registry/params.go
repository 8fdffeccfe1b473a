package registry

import "github.com/leapstack-labs/leapformula/pkg/core"

// Param is the type rule for one argument position.
type Param int

// Parameter rules.
const (
	// ParamAny accepts every type.
	ParamAny Param = iota
	// ParamNumber accepts numbers and booleans.
	ParamNumber
	// ParamText accepts every type; values are rendered as text.
	ParamText
	// ParamBoolean accepts types with a truthiness: booleans, numbers,
	// text and arrays.
	ParamBoolean
	// ParamDate accepts dates and text parsed as a date at run time.
	ParamDate
	// ParamArray accepts arrays only.
	ParamArray
	// ParamNumbers accepts a number or an array of numbers.
	ParamNumbers
)

func (p Param) String() string {
	switch p {
	case ParamNumber:
		return "number"
	case ParamText:
		return "text"
	case ParamBoolean:
		return "boolean"
	case ParamDate:
		return "date"
	case ParamArray:
		return "array"
	case ParamNumbers:
		return "numbers"
	default:
		return "any"
	}
}

// Accepts reports whether an argument of static type t satisfies p.
// TypeAny is accepted everywhere and checked at run time.
func (p Param) Accepts(t core.Type) bool {
	if t == core.TypeAny {
		return true
	}
	switch p {
	case ParamNumber:
		return t == core.TypeNumber || t == core.TypeBoolean
	case ParamBoolean:
		return t != core.TypeDate
	case ParamDate:
		return t == core.TypeDate || t == core.TypeText
	case ParamArray:
		return t == core.TypeArray
	case ParamNumbers:
		return t == core.TypeNumber || t == core.TypeBoolean || t == core.TypeArray
	default:
		return true
	}
}

// Result type helpers.

func returns(t core.Type) func([]core.Type) core.Type {
	return func([]core.Type) core.Type { return t }
}

// unify returns the common type of ts, or TypeAny when they disagree.
func unify(ts ...core.Type) core.Type {
	if len(ts) == 0 {
		return core.TypeAny
	}
	out := ts[0]
	for _, t := range ts[1:] {
		if t != out {
			return core.TypeAny
		}
	}
	return out
}

// unifyArgs unifies the argument types at the given positions, skipping
// positions beyond the call's arity.
func unifyArgs(positions ...int) func([]core.Type) core.Type {
	return func(args []core.Type) core.Type {
		var ts []core.Type
		for _, i := range positions {
			if i < len(args) {
				ts = append(ts, args[i])
			}
		}
		return unify(ts...)
	}
}
