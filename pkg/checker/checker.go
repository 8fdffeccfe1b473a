// Package checker assigns static result types to a parsed formula and
// rejects formulas whose operands or arguments cannot work together.
//
// Checking is bottom-up and left to right. The first error stops the walk;
// warnings are collected as diagnostics and do not reject the formula.
package checker

import (
	"fmt"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/registry"
	"github.com/leapstack-labs/leapformula/pkg/token"
)

// Checker type-checks expressions against a schema and a function registry.
// A Checker is not safe for concurrent use; create one per compile.
type Checker struct {
	schema      core.Schema
	registry    *registry.Registry
	diagnostics []core.Diagnostic
}

// New creates a checker. A nil registry selects registry.Default and a
// nil schema knows no fields.
func New(schema core.Schema, reg *registry.Registry) *Checker {
	if reg == nil {
		reg = registry.Default()
	}
	if schema == nil {
		schema = core.MapSchema{}
	}
	return &Checker{schema: schema, registry: reg}
}

// Check annotates every node of expr with its result type and returns the
// root's type. The returned error is a *TypeError.
func (c *Checker) Check(expr core.Expr) (core.Type, error) {
	if expr == nil {
		return core.TypeInvalid, &TypeError{Kind: OperandTypeMismatch, Message: "nothing to check"}
	}
	return c.check(expr)
}

// Diagnostics returns the warnings recorded so far.
func (c *Checker) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}

// Check is a convenience wrapper that checks expr with a fresh Checker.
func Check(expr core.Expr, schema core.Schema, reg *registry.Registry) (core.Type, []core.Diagnostic, error) {
	c := New(schema, reg)
	t, err := c.Check(expr)
	return t, c.Diagnostics(), err
}

func (c *Checker) check(expr core.Expr) (core.Type, error) {
	var (
		t   core.Type
		err error
	)
	switch e := expr.(type) {
	case *core.Literal:
		t = literalType(e.Kind)
	case *core.FieldRef:
		t, err = c.checkField(e)
	case *core.ParenExpr:
		t, err = c.check(e.Inner)
	case *core.FuncCall:
		t, err = c.checkCall(e)
	case *core.UnaryExpr:
		t, err = c.checkUnary(e)
	case *core.BinaryExpr:
		t, err = c.checkBinary(e)
	default:
		err = &TypeError{Kind: OperandTypeMismatch, At: span(expr), Message: fmt.Sprintf("unsupported node %T", expr)}
	}
	if err != nil {
		return core.TypeInvalid, err
	}
	expr.SetResultType(t)
	return t, nil
}

func literalType(k core.LiteralKind) core.Type {
	switch k {
	case core.LiteralNumber:
		return core.TypeNumber
	case core.LiteralString:
		return core.TypeText
	case core.LiteralBool:
		return core.TypeBoolean
	case core.LiteralDate:
		return core.TypeDate
	default:
		return core.TypeAny
	}
}

func (c *Checker) checkField(ref *core.FieldRef) (core.Type, error) {
	meta, ok := c.schema.ResolveField(ref.FieldID)
	if !ok {
		return 0, &TypeError{
			Kind:    UnknownField,
			At:      ref.Span,
			Message: fmt.Sprintf("unknown field {%s}", ref.FieldID),
		}
	}
	t := meta.ValueType()
	if t == core.TypeInvalid {
		return 0, &TypeError{
			Kind:    UnknownField,
			At:      ref.Span,
			Message: fmt.Sprintf("field {%s} has unsupported type %q", ref.FieldID, meta.Type),
		}
	}
	if meta.Type == core.FieldFormula && meta.ResultType == core.TypeInvalid {
		c.note(core.SeverityInfo, CodeFormulaFieldAny, ref.Span,
			"formula field {%s} has no compiled result type; its values are checked at run time", ref.FieldID)
	}
	return t, nil
}

func (c *Checker) checkCall(call *core.FuncCall) (core.Type, error) {
	argTypes := make([]core.Type, len(call.Args))
	for i, arg := range call.Args {
		t, err := c.check(arg)
		if err != nil {
			return 0, err
		}
		argTypes[i] = t
	}

	fn, ok := c.registry.Lookup(call.Name)
	if !ok {
		return 0, &TypeError{
			Kind:       UnknownFunction,
			At:         nameSpan(call),
			Message:    fmt.Sprintf("unknown function %s", call.Name),
			Suggestion: c.registry.Suggest(call.Name),
		}
	}
	if !fn.AcceptsArity(len(call.Args)) {
		return 0, &TypeError{
			Kind: ArityMismatch,
			At:   call.Span,
			Message: fmt.Sprintf("%s expects %s arguments, got %d; usage: %s",
				fn.Name, fn.Arity(), len(call.Args), fn.Signature()),
		}
	}
	for i, t := range argTypes {
		if p := fn.ParamAt(i); !p.Accepts(t) {
			return 0, &TypeError{
				Kind:    ArgumentTypeMismatch,
				At:      span(call.Args[i]),
				Message: fmt.Sprintf("argument %d of %s must be %s, got %s", i+1, fn.Name, p, t),
			}
		}
	}

	result := fn.Returns(argTypes)
	if result == core.TypeInvalid {
		result = core.TypeAny
	}
	return result, nil
}

func (c *Checker) checkUnary(u *core.UnaryExpr) (core.Type, error) {
	t, err := c.check(u.Operand)
	if err != nil {
		return 0, err
	}
	switch u.Op {
	case token.NOT:
		if !registry.ParamBoolean.Accepts(t) {
			return 0, operandError(u, "NOT cannot be applied to %s", t)
		}
		return core.TypeBoolean, nil
	default:
		if !t.IsNumeric() {
			return 0, operandError(u, "unary %s cannot be applied to %s", u.Op, t)
		}
		return core.TypeNumber, nil
	}
}

func (c *Checker) checkBinary(b *core.BinaryExpr) (core.Type, error) {
	left, err := c.check(b.Left)
	if err != nil {
		return 0, err
	}
	right, err := c.check(b.Right)
	if err != nil {
		return 0, err
	}

	if t, ok := binaryResult(b.Op, left, right); ok {
		if (b.Op == token.EQ || b.Op == token.NE) && alwaysUnequal(left, right) {
			c.note(core.SeverityWarning, CodeIncomparableTypes, b.Span,
				"comparing %s with %s is never equal", left, right)
		}
		return t, nil
	}
	return 0, operandError(b, "operator %s cannot be applied to %s and %s", b.Op, left, right)
}

// binaryResult applies the operator typing table.
func binaryResult(op token.TokenType, l, r core.Type) (core.Type, bool) {
	switch op {
	case token.PLUS:
		switch {
		case l == core.TypeDate && r.IsNumeric(), l.IsNumeric() && r == core.TypeDate:
			return core.TypeDate, true
		case l.IsNumeric() && r.IsNumeric():
			return core.TypeNumber, true
		}
	case token.MINUS:
		switch {
		case l == core.TypeDate && r == core.TypeDate:
			return core.TypeNumber, true
		case l == core.TypeDate && r == core.TypeAny:
			return core.TypeAny, true
		case l == core.TypeDate && r.IsNumeric():
			return core.TypeDate, true
		case l == core.TypeAny && r == core.TypeDate:
			return core.TypeNumber, true
		case l.IsNumeric() && r.IsNumeric():
			return core.TypeNumber, true
		}
	case token.STAR, token.SLASH:
		if l.IsNumeric() && r.IsNumeric() {
			return core.TypeNumber, true
		}
	case token.AMP:
		return core.TypeText, true
	case token.EQ, token.NE:
		return core.TypeBoolean, true
	case token.LT, token.LE, token.GT, token.GE:
		if ordered(l, r) {
			return core.TypeBoolean, true
		}
	case token.AND, token.OR:
		if registry.ParamBoolean.Accepts(l) && registry.ParamBoolean.Accepts(r) {
			return core.TypeBoolean, true
		}
	}
	return core.TypeInvalid, false
}

// family groups types whose values compare with each other.
type family int

const (
	familyAny family = iota
	familyNumeric
	familyText
	familyDate
	familyArray
)

func familyOf(t core.Type) family {
	switch t {
	case core.TypeNumber, core.TypeBoolean:
		return familyNumeric
	case core.TypeText:
		return familyText
	case core.TypeDate:
		return familyDate
	case core.TypeArray:
		return familyArray
	default:
		return familyAny
	}
}

// dateText reports whether one side is a date and the other text, which
// compare by parsing the text as a date.
func dateText(a, b family) bool {
	return (a == familyDate && b == familyText) || (a == familyText && b == familyDate)
}

func ordered(l, r core.Type) bool {
	a, b := familyOf(l), familyOf(r)
	if a == familyArray || b == familyArray {
		return false
	}
	return a == familyAny || b == familyAny || a == b || dateText(a, b)
}

func alwaysUnequal(l, r core.Type) bool {
	a, b := familyOf(l), familyOf(r)
	return a != familyAny && b != familyAny && a != b && !dateText(a, b)
}

func (c *Checker) note(sev core.Severity, code string, at token.Span, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, core.Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     at,
	})
}

func operandError(expr core.Expr, format string, args ...any) *TypeError {
	return &TypeError{Kind: OperandTypeMismatch, At: span(expr), Message: fmt.Sprintf(format, args...)}
}

func span(expr core.Expr) token.Span {
	return token.Span{Start: expr.Pos(), End: expr.End()}
}

// nameSpan covers only the function name of a call.
func nameSpan(call *core.FuncCall) token.Span {
	end := call.Span.Start
	end.Column += len(call.Name)
	end.Offset += len(call.Name)
	return token.Span{Start: call.Span.Start, End: end}
}
