package parser

import (
	"strings"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/token"
)

// Format prints expr in canonical form: single spaces around binary
// operators, keywords upper-cased, strings double-quoted. Parentheses
// present in the tree are kept, and missing ones are added where the tree
// shape requires them, so Parse(Format(e)) reproduces the structure of e.
func Format(expr core.Expr) string {
	var sb strings.Builder
	formatExpr(&sb, expr)
	return sb.String()
}

func formatExpr(sb *strings.Builder, expr core.Expr) {
	switch e := expr.(type) {
	case *core.Literal:
		formatLiteral(sb, e)
	case *core.FieldRef:
		sb.WriteByte('{')
		sb.WriteString(e.FieldID)
		sb.WriteByte('}')
	case *core.FuncCall:
		sb.WriteString(e.Name)
		sb.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatExpr(sb, arg)
		}
		sb.WriteByte(')')
	case *core.ParenExpr:
		sb.WriteByte('(')
		formatExpr(sb, e.Inner)
		sb.WriteByte(')')
	case *core.UnaryExpr:
		if e.Op == token.NOT {
			sb.WriteString("NOT ")
			formatTrailing(sb, e.Operand, PrecedenceNot)
			return
		}
		sb.WriteString(e.Op.String())
		formatTrailing(sb, e.Operand, PrecedenceUnary)
	case *core.BinaryExpr:
		prec := Precedence(e.Op)
		formatOperand(sb, e.Left, prec)
		sb.WriteByte(' ')
		sb.WriteString(e.Op.String())
		sb.WriteByte(' ')
		formatTrailing(sb, e.Right, prec+1)
	}
}

// formatTrailing formats an operand that ends its parent. A prefix NOT
// there extends to the end of the operand, which is how the parser built
// it, so it needs no parentheses.
func formatTrailing(sb *strings.Builder, e core.Expr, minPrec int) {
	if u, ok := e.(*core.UnaryExpr); ok && u.Op == token.NOT {
		formatExpr(sb, u)
		return
	}
	formatOperand(sb, e, minPrec)
}

// formatOperand wraps e in parentheses when it binds looser than min.
func formatOperand(sb *strings.Builder, e core.Expr, minPrec int) {
	if bindingPower(e) < minPrec {
		sb.WriteByte('(')
		formatExpr(sb, e)
		sb.WriteByte(')')
		return
	}
	formatExpr(sb, e)
}

func bindingPower(e core.Expr) int {
	switch n := e.(type) {
	case *core.BinaryExpr:
		return Precedence(n.Op)
	case *core.UnaryExpr:
		if n.Op == token.NOT {
			return PrecedenceNot
		}
		return PrecedenceUnary
	default:
		return PrecedencePrimary
	}
}

func formatLiteral(sb *strings.Builder, lit *core.Literal) {
	switch lit.Kind {
	case core.LiteralNumber:
		if lit.Raw != "" {
			sb.WriteString(lit.Raw)
		} else {
			sb.WriteString(core.FormatNumber(lit.Value.Num()))
		}
	case core.LiteralString:
		sb.WriteString(Quote(lit.Value.Str()))
	case core.LiteralBool:
		if lit.Value.Boolean() {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
	case core.LiteralDate:
		sb.WriteByte('#')
		if lit.Raw != "" {
			sb.WriteString(lit.Raw)
		} else {
			sb.WriteString(core.FormatDate(lit.Value.Time()))
		}
		sb.WriteByte('#')
	}
}

// Quote returns s as a double-quoted formula string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
