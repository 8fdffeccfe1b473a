package core

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapformula/pkg/token"
)

// =============================================================================
// Run-time errors
// =============================================================================

// EvalErrorKind classifies a per-cell evaluation error.
type EvalErrorKind int

// Evaluation error kinds.
const (
	DivisionByZero EvalErrorKind = iota + 1
	InvalidDate
	MissingFieldValue
	DepthExceeded
	UnknownFunctionFailure
	TypeMismatch
	InvalidArgument
	UserError
)

var evalErrorNames = map[EvalErrorKind]string{
	DivisionByZero:         "DivisionByZero",
	InvalidDate:            "InvalidDate",
	MissingFieldValue:      "MissingFieldValue",
	DepthExceeded:          "DepthExceeded",
	UnknownFunctionFailure: "UnknownFunctionFailure",
	TypeMismatch:           "TypeMismatch",
	InvalidArgument:        "InvalidArgument",
	UserError:              "UserError",
}

var evalErrorCodes = map[EvalErrorKind]string{
	DivisionByZero:         "#DIV/0!",
	InvalidDate:            "#DATE!",
	MissingFieldValue:      "#MISSING!",
	DepthExceeded:          "#DEPTH!",
	UnknownFunctionFailure: "#FUNC!",
	TypeMismatch:           "#VALUE!",
	InvalidArgument:        "#NUM!",
	UserError:              "#ERROR!",
}

// String returns the kind name.
func (k EvalErrorKind) String() string {
	if name, ok := evalErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EvalErrorKind(%d)", int(k))
}

// Code returns the spreadsheet-style display code, e.g. "#DIV/0!".
func (k EvalErrorKind) Code() string {
	if code, ok := evalErrorCodes[k]; ok {
		return code
	}
	return "#ERROR!"
}

// ParseEvalErrorKind converts a kind name back to its constant.
func ParseEvalErrorKind(s string) (EvalErrorKind, bool) {
	for k, name := range evalErrorNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// EvalError is a run-time error carried as a value. It never escapes the
// evaluator as a Go error or panic.
type EvalError struct {
	Kind    EvalErrorKind
	Message string
}

// Error implements error so callers can log it directly.
func (e *EvalError) Error() string {
	if e.Message == "" {
		return e.Kind.Code()
	}
	return fmt.Sprintf("%s %s", e.Kind.Code(), e.Message)
}

// NewEvalError creates an EvalError with a formatted message.
func NewEvalError(kind EvalErrorKind, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// Compile-time errors
// =============================================================================

// CompileError is implemented by every error raised while compiling a
// formula: lexing, parsing, type checking and dependency validation.
type CompileError interface {
	error
	// Code returns a stable identifier such as "ParseError.UnexpectedToken".
	Code() string
	// Span returns the offending source range, if known.
	Span() token.Span
}

// CircularDependencyError reports a formula whose dependencies would form
// a cycle. Path lists field ids along the cycle and ends where it started.
type CircularDependencyError struct {
	FieldID       string
	Path          []string
	SelfReference bool
	At            token.Span
}

func (e *CircularDependencyError) Error() string {
	if e.SelfReference {
		return fmt.Sprintf("circular dependency: field %s references itself", e.FieldID)
	}
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Path, " -> "))
}

// Code implements CompileError.
func (e *CircularDependencyError) Code() string {
	if e.SelfReference {
		return "CircularDependencyError.SelfReference"
	}
	return "CircularDependencyError.Cycle"
}

// Span implements CompileError.
func (e *CircularDependencyError) Span() token.Span { return e.At }

// =============================================================================
// Diagnostics
// =============================================================================

// Diagnostic is a non-fatal finding recorded on a compiled program.
type Diagnostic struct {
	Severity Severity   `json:"severity"`
	Code     string     `json:"code"`
	Message  string     `json:"message"`
	Span     token.Span `json:"-"`
}

// String formats the diagnostic for terminal output.
func (d Diagnostic) String() string {
	if d.Span.IsValid() {
		return fmt.Sprintf("%s at %s: %s [%s]", d.Severity, d.Span.Start, d.Message, d.Code)
	}
	return fmt.Sprintf("%s: %s [%s]", d.Severity, d.Message, d.Code)
}
