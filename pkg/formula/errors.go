package formula

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// Errors is the error returned when a formula fails to compile. It lists
// the compile errors found; compilation stops at the first, so List holds
// one entry today.
//
// The entries are reachable with errors.As, e.g. *parser.ParseError or
// *checker.TypeError.
type Errors struct {
	FieldID string
	Source  string
	List    []core.CompileError
}

func (e *Errors) Error() string {
	var sb strings.Builder
	if e.FieldID != "" {
		fmt.Fprintf(&sb, "field %s: ", e.FieldID)
	}
	for i, err := range e.List {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual compile errors to errors.Is and errors.As.
func (e *Errors) Unwrap() []error {
	out := make([]error, len(e.List))
	for i, err := range e.List {
		out[i] = err
	}
	return out
}

// First returns the first compile error.
func (e *Errors) First() core.CompileError {
	if len(e.List) == 0 {
		return nil
	}
	return e.List[0]
}

func compileFailure(fieldID, source string, err error) error {
	ce, ok := err.(core.CompileError)
	if !ok {
		return fmt.Errorf("compile %s: %w", fieldID, err)
	}
	return &Errors{FieldID: fieldID, Source: source, List: []core.CompileError{ce}}
}
