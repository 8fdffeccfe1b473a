// Package eval evaluates checked formula trees against a row of field
// values.
//
// Evaluation never fails with a Go error or a panic. Every problem becomes
// an error value (core.KindError) that propagates through operators and
// eager function arguments, left to right, first error wins.
package eval

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/registry"
)

// DefaultMaxDepth bounds evaluator recursion when Context.MaxDepth is zero.
const DefaultMaxDepth = 128

// Context is the read-only input to one evaluation. It must not be
// modified while an evaluation that uses it is running.
type Context struct {
	// Values holds the row's field values keyed by field id.
	Values map[string]core.Value
	// MaxDepth bounds recursion; zero selects DefaultMaxDepth.
	MaxDepth int
	// Now is the clock reading used by TODAY, NOW and friends. Zero means
	// the wall clock at the start of the evaluation.
	Now time.Time
	// Location interprets dates without an explicit offset. Nil is UTC.
	Location *time.Location
	// Registry resolves function names. Nil selects registry.Default.
	Registry *registry.Registry
}

// NewContext returns a context over values with default settings.
func NewContext(values map[string]core.Value) *Context {
	return &Context{Values: values}
}

type evaluator struct {
	values   map[string]core.Value
	maxDepth int
	now      time.Time
	loc      *time.Location
	registry *registry.Registry
	depth    int
}

// Evaluate computes the value of expr. A nil ctx evaluates with no field
// values and default settings.
func Evaluate(expr core.Expr, ctx *Context) (result core.Value) {
	if ctx == nil {
		ctx = &Context{}
	}
	ev := &evaluator{
		values:   ctx.Values,
		maxDepth: ctx.MaxDepth,
		now:      ctx.Now,
		loc:      ctx.Location,
		registry: ctx.Registry,
	}
	if ev.maxDepth <= 0 {
		ev.maxDepth = DefaultMaxDepth
	}
	if ev.now.IsZero() {
		ev.now = time.Now()
	}
	if ev.loc == nil {
		ev.loc = time.UTC
	}
	if ev.registry == nil {
		ev.registry = registry.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			result = core.ErrorValue(core.UnknownFunctionFailure, "evaluation failed: %v", r)
		}
	}()

	if expr == nil {
		return core.ErrorValue(core.UnknownFunctionFailure, "nothing to evaluate")
	}
	return ev.eval(expr)
}

func (ev *evaluator) eval(expr core.Expr) core.Value {
	// Operator chains such as a + b + c are flat in the source; only
	// parens, unary operators and calls count as nesting.
	if e, ok := expr.(*core.BinaryExpr); ok {
		return ev.binary(e)
	}

	ev.depth++
	defer func() { ev.depth-- }()
	if ev.depth > ev.maxDepth {
		return core.ErrorValue(core.DepthExceeded, "formula nesting exceeds %d levels", ev.maxDepth)
	}

	switch e := expr.(type) {
	case *core.Literal:
		return e.Value
	case *core.FieldRef:
		v, ok := ev.values[e.FieldID]
		if !ok || !v.IsValid() {
			return core.ErrorValue(core.MissingFieldValue, "no value for field {%s}", e.FieldID)
		}
		return v
	case *core.ParenExpr:
		return ev.eval(e.Inner)
	case *core.UnaryExpr:
		return ev.unary(e)
	case *core.FuncCall:
		return ev.call(e)
	default:
		return core.ErrorValue(core.UnknownFunctionFailure, "cannot evaluate %T", expr)
	}
}

func (ev *evaluator) call(e *core.FuncCall) core.Value {
	fn, ok := ev.registry.Lookup(e.Name)
	if !ok {
		return core.ErrorValue(core.UnknownFunctionFailure, "unknown function %s", e.Name)
	}
	if !fn.AcceptsArity(len(e.Args)) {
		return core.ErrorValue(core.UnknownFunctionFailure, "%s called with %d arguments", fn.Name, len(e.Args))
	}
	c := &registry.Call{Name: fn.Name, Now: ev.now, Location: ev.loc}

	if fn.Lazy != nil {
		thunks := make([]registry.Thunk, len(e.Args))
		for i, arg := range e.Args {
			thunks[i] = func() core.Value { return ev.eval(arg) }
		}
		return invoke(fn, func() core.Value { return fn.Lazy(c, thunks) })
	}

	args := make([]core.Value, len(e.Args))
	for i, arg := range e.Args {
		v := ev.eval(arg)
		if v.IsError() && !fn.PassErrors {
			return v
		}
		args[i] = v
	}
	return invoke(fn, func() core.Value { return fn.Eval(c, args) })
}

// invoke runs a function implementation, turning panics and empty results
// into UnknownFunctionFailure.
func invoke(fn *registry.Function, run func() core.Value) (v core.Value) {
	defer func() {
		if r := recover(); r != nil {
			v = core.ErrorValue(core.UnknownFunctionFailure, "%s failed: %s", fn.Name, fmt.Sprint(r))
		}
	}()
	v = run()
	if !v.IsValid() {
		return core.ErrorValue(core.UnknownFunctionFailure, "%s returned no value", fn.Name)
	}
	return v
}
