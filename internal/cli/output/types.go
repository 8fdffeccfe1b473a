package output

import "github.com/leapstack-labs/leapformula/pkg/core"

// JSON output shapes shared by the commands.

// ErrorInfo describes a compile error.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// FieldCheck is the result of compiling one formula field.
type FieldCheck struct {
	FieldID      string            `json:"field_id"`
	Source       string            `json:"source"`
	Canonical    string            `json:"canonical,omitempty"`
	ResultType   string            `json:"result_type,omitempty"`
	Dependencies []string          `json:"dependencies"`
	Diagnostics  []core.Diagnostic `json:"diagnostics"`
	Error        *ErrorInfo        `json:"error,omitempty"`
}

// CheckOutput is the JSON output of the check command.
type CheckOutput struct {
	Workbook string       `json:"workbook"`
	Fields   []FieldCheck `json:"fields"`
	Summary  CheckSummary `json:"summary"`
}

// CheckSummary counts check results.
type CheckSummary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Warnings int `json:"warnings"`
}

// EvalOutput is the JSON output of the eval command.
type EvalOutput struct {
	Formula      string     `json:"formula"`
	Canonical    string     `json:"canonical"`
	ResultType   string     `json:"result_type"`
	Dependencies []string   `json:"dependencies"`
	Row          string     `json:"row,omitempty"`
	Value        core.Value `json:"value"`
}

// FunctionInfo describes one built-in function.
type FunctionInfo struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Category    string   `json:"category"`
	Signature   string   `json:"signature"`
	Arity       string   `json:"arity"`
	Description string   `json:"description,omitempty"`
}

// DepsOutput is the JSON output of the deps command.
type DepsOutput struct {
	FieldID      string   `json:"field_id"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// PlanOutput is the JSON output of the plan command.
type PlanOutput struct {
	Changed []string   `json:"changed"`
	Order   []string   `json:"order"`
	Levels  [][]string `json:"levels"`
}

// RowResult holds the computed values of one row.
type RowResult struct {
	ID     string                `json:"id"`
	Values map[string]core.Value `json:"values"`
}

// RecomputeOutput is the JSON output of the recompute command.
type RecomputeOutput struct {
	Workbook string      `json:"workbook"`
	Fields   []string    `json:"fields"`
	Rows     []RowResult `json:"rows"`
	Errors   int         `json:"errors"`
	Saved    bool        `json:"saved"`
}
