// Package formula is the public entry point of the engine: it compiles
// formula text into immutable programs and evaluates them against rows.
//
// Compile runs the lexer, parser, type checker and dependency extractor in
// that order and stops at the first error. A compiled *Program is
// read-only and may be evaluated from any number of goroutines.
package formula

import (
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapformula/pkg/checker"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/deps"
	"github.com/leapstack-labs/leapformula/pkg/eval"
	"github.com/leapstack-labs/leapformula/pkg/parser"
	"github.com/leapstack-labs/leapformula/pkg/registry"
)

// Row maps field ids to the values of one record.
type Row map[string]core.Value

// Program is a compiled formula.
type Program struct {
	id           string
	fieldID      string
	source       string
	root         core.Expr
	resultType   core.Type
	dependencies []string
	diagnostics  []core.Diagnostic
	compiledAt   time.Time
	registry     *registry.Registry
}

// ID returns the program's unique id.
func (p *Program) ID() string { return p.id }

// FieldID returns the id of the field the formula belongs to, or "" for
// ad-hoc formulas.
func (p *Program) FieldID() string { return p.fieldID }

// Source returns the formula text as written.
func (p *Program) Source() string { return p.source }

// Root returns the checked syntax tree. Callers must not modify it.
func (p *Program) Root() core.Expr { return p.root }

// ResultType returns the static type of the formula's result.
func (p *Program) ResultType() core.Type { return p.resultType }

// Dependencies returns the referenced field ids in order of first
// occurrence.
func (p *Program) Dependencies() []string {
	out := make([]string, len(p.dependencies))
	copy(out, p.dependencies)
	return out
}

// Diagnostics returns the warnings found while compiling.
func (p *Program) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, len(p.diagnostics))
	copy(out, p.diagnostics)
	return out
}

// CompiledAt returns when the program was compiled.
func (p *Program) CompiledAt() time.Time { return p.compiledAt }

// Canonical returns the formula in canonical form.
func (p *Program) Canonical() string { return parser.Format(p.root) }

// String implements fmt.Stringer.
func (p *Program) String() string { return p.Canonical() }

// Compiler compiles formulas against a schema and a function registry.
// The zero value compiles with registry.Default and an empty schema.
type Compiler struct {
	Registry *registry.Registry
	Schema   core.Schema
	// Now stamps CompiledAt. Nil uses time.Now.
	Now func() time.Time
}

// Compile compiles the formula stored in fieldID. A reference to fieldID
// itself is rejected; pass "" to compile a formula that belongs to no
// field. Errors are *Errors.
func (c *Compiler) Compile(fieldID, source string) (*Program, error) {
	return c.compile(uuid.NewString(), fieldID, source)
}

// Recompile compiles source again under an existing program id, used when
// loading stored artifacts or after the schema changed.
func (c *Compiler) Recompile(id, fieldID, source string) (*Program, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	return c.compile(id, fieldID, source)
}

func (c *Compiler) compile(id, fieldID, source string) (*Program, error) {
	reg := c.Registry
	if reg == nil {
		reg = registry.Default()
	}

	root, err := parser.Parse(source)
	if err != nil {
		return nil, compileFailure(fieldID, source, err)
	}

	// A self reference is a cycle even when the field is not in the
	// schema yet, so it is reported before type checking.
	var refs []string
	if fieldID == "" {
		refs = deps.Extract(root)
	} else if refs, err = deps.ExtractFor(fieldID, root); err != nil {
		return nil, compileFailure(fieldID, source, err)
	}

	resultType, diagnostics, err := checker.Check(root, c.Schema, reg)
	if err != nil {
		return nil, compileFailure(fieldID, source, err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return &Program{
		id:           id,
		fieldID:      fieldID,
		source:       source,
		root:         root,
		resultType:   resultType,
		dependencies: refs,
		diagnostics:  diagnostics,
		compiledAt:   now().UTC(),
		registry:     reg,
	}, nil
}

// Compile compiles an ad-hoc formula with the default registry.
func Compile(source string, schema core.Schema) (*Program, error) {
	c := &Compiler{Schema: schema}
	return c.Compile("", source)
}

// Dependencies returns the field ids p reads.
func Dependencies(p *Program) []string {
	return p.Dependencies()
}

// Evaluate computes p against row. It never panics and never returns a Go
// error; failures are error values.
func Evaluate(p *Program, row Row, opts ...Option) core.Value {
	if p == nil {
		return core.ErrorValue(core.UnknownFunctionFailure, "no program")
	}
	ctx := &eval.Context{Values: row, Registry: p.registry}
	for _, opt := range opts {
		opt(ctx)
	}
	return eval.Evaluate(p.root, ctx)
}

// Option configures an evaluation.
type Option func(*eval.Context)

// WithNow fixes the clock reading used by TODAY and NOW.
func WithNow(t time.Time) Option {
	return func(c *eval.Context) { c.Now = t }
}

// WithLocation sets the time zone for dates without an explicit offset.
func WithLocation(loc *time.Location) Option {
	return func(c *eval.Context) { c.Location = loc }
}

// WithMaxDepth overrides the evaluator's recursion bound.
func WithMaxDepth(n int) Option {
	return func(c *eval.Context) { c.MaxDepth = n }
}
