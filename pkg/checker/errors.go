package checker

import (
	"fmt"

	"github.com/leapstack-labs/leapformula/pkg/token"
)

// TypeErrorKind classifies a type checking failure.
type TypeErrorKind int

// Type error kinds.
const (
	UnknownField TypeErrorKind = iota + 1
	UnknownFunction
	ArityMismatch
	ArgumentTypeMismatch
	OperandTypeMismatch
)

func (k TypeErrorKind) String() string {
	switch k {
	case UnknownField:
		return "UnknownField"
	case UnknownFunction:
		return "UnknownFunction"
	case ArityMismatch:
		return "ArityMismatch"
	case ArgumentTypeMismatch:
		return "ArgumentTypeMismatch"
	case OperandTypeMismatch:
		return "OperandTypeMismatch"
	default:
		return fmt.Sprintf("TypeErrorKind(%d)", int(k))
	}
}

// TypeError is a compile-time error found while checking a parsed formula.
type TypeError struct {
	Kind    TypeErrorKind
	At      token.Span
	Message string
	// Suggestion is the closest known name for UnknownFunction errors.
	Suggestion string
}

func (e *TypeError) Error() string {
	msg := fmt.Sprintf("type error at line %d, column %d: %s", e.At.Start.Line, e.At.Start.Column, e.Message)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %s?)", e.Suggestion)
	}
	return msg
}

// Code returns "TypeError.<Kind>".
func (e *TypeError) Code() string { return "TypeError." + e.Kind.String() }

// Span returns the offending node's range.
func (e *TypeError) Span() token.Span { return e.At }

// Diagnostic codes for warnings.
const (
	CodeIncomparableTypes = "TypeWarning.IncomparableTypes"
	CodeFormulaFieldAny   = "TypeWarning.UntypedFormulaField"
)
