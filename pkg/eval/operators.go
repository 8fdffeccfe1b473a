package eval

import (
	"math"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/token"
)

const day = 24 * time.Hour

func (ev *evaluator) unary(e *core.UnaryExpr) core.Value {
	v := ev.eval(e.Operand)
	if v.IsError() {
		return v
	}
	switch e.Op {
	case token.NOT:
		b, err := v.AsBool()
		if err != nil {
			return core.FromError(err)
		}
		return core.Bool(!b)
	case token.MINUS:
		n, err := v.AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		return core.Number(-n)
	case token.PLUS:
		n, err := v.AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		return core.Number(n)
	default:
		return core.ErrorValue(core.UnknownFunctionFailure, "unknown unary operator %s", e.Op)
	}
}

func (ev *evaluator) binary(e *core.BinaryExpr) core.Value {
	left := ev.eval(e.Left)
	if left.IsError() {
		return left
	}

	// AND and OR stop as soon as the left operand decides the result.
	if e.Op == token.AND || e.Op == token.OR {
		l, err := left.AsBool()
		if err != nil {
			return core.FromError(err)
		}
		if (e.Op == token.AND && !l) || (e.Op == token.OR && l) {
			return core.Bool(l)
		}
		right := ev.eval(e.Right)
		if right.IsError() {
			return right
		}
		r, err := right.AsBool()
		if err != nil {
			return core.FromError(err)
		}
		return core.Bool(r)
	}

	right := ev.eval(e.Right)
	if right.IsError() {
		return right
	}

	switch e.Op {
	case token.PLUS:
		return ev.add(left, right)
	case token.MINUS:
		return ev.subtract(left, right)
	case token.STAR, token.SLASH:
		return arithmetic(e.Op, left, right)
	case token.AMP:
		return core.Text(left.AsText() + right.AsText())
	case token.EQ:
		return core.Bool(core.Equal(left, right, ev.loc))
	case token.NE:
		return core.Bool(!core.Equal(left, right, ev.loc))
	case token.LT, token.LE, token.GT, token.GE:
		c, err := core.Compare(left, right, ev.loc)
		if err != nil {
			return core.FromError(err)
		}
		return core.Bool(compareResult(e.Op, c))
	default:
		return core.ErrorValue(core.UnknownFunctionFailure, "unknown operator %s", e.Op)
	}
}

func compareResult(op token.TokenType, c int) bool {
	switch op {
	case token.LT:
		return c < 0
	case token.LE:
		return c <= 0
	case token.GT:
		return c > 0
	default:
		return c >= 0
	}
}

// add handles number + number and date + days in either order.
func (ev *evaluator) add(l, r core.Value) core.Value {
	switch {
	case l.Kind() == core.KindDate && r.Kind() == core.KindDate:
		return core.ErrorValue(core.TypeMismatch, "cannot add two dates")
	case l.Kind() == core.KindDate:
		return shiftDate(l.Time(), r)
	case r.Kind() == core.KindDate:
		return shiftDate(r.Time(), l)
	}
	return arithmetic(token.PLUS, l, r)
}

// subtract handles number - number, date - days and date - date, the last
// yielding a possibly fractional number of days.
func (ev *evaluator) subtract(l, r core.Value) core.Value {
	switch {
	case l.Kind() == core.KindDate && r.Kind() == core.KindDate:
		return core.Number(float64(l.Time().Sub(r.Time())) / float64(day))
	case l.Kind() == core.KindDate:
		n, err := r.AsNumber()
		if err != nil {
			return core.FromError(err)
		}
		return shiftDate(l.Time(), core.Number(-n))
	case r.Kind() == core.KindDate:
		return core.ErrorValue(core.TypeMismatch, "cannot subtract a date from a %s", l.Kind())
	}
	return arithmetic(token.MINUS, l, r)
}

// shiftDate adds a possibly fractional number of days to t. Whole days
// follow the calendar so the wall-clock time survives DST changes.
func shiftDate(t time.Time, days core.Value) core.Value {
	n, err := days.AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	if math.IsNaN(n) || math.Abs(n) > 1e6 {
		return core.ErrorValue(core.InvalidDate, "date offset %s days is out of range", core.FormatNumber(n))
	}
	whole := math.Trunc(n)
	frac := n - whole
	return core.Date(t.AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(day))))
}

func arithmetic(op token.TokenType, l, r core.Value) core.Value {
	x, err := l.AsNumber()
	if err != nil {
		return core.FromError(err)
	}
	y, err := r.AsNumber()
	if err != nil {
		return core.FromError(err)
	}

	var out float64
	switch op {
	case token.PLUS:
		out = x + y
	case token.MINUS:
		out = x - y
	case token.STAR:
		out = x * y
	case token.SLASH:
		if y == 0 {
			return core.ErrorValue(core.DivisionByZero, "division by zero")
		}
		out = x / y
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return core.ErrorValue(core.InvalidArgument, "result of %s is not a finite number", op)
	}
	return core.Number(out)
}
