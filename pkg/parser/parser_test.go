package parser_test

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/parser"
	"github.com/leapstack-labs/leapformula/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sexpr renders an AST as a fully parenthesized string so tests can
// assert on structure without comparing spans.
func sexpr(e core.Expr) string {
	switch n := e.(type) {
	case *core.Literal:
		switch n.Kind {
		case core.LiteralString:
			return `"` + n.Value.Str() + `"`
		case core.LiteralDate:
			return "#" + n.Raw + "#"
		default:
			return n.Value.AsText()
		}
	case *core.FieldRef:
		return "{" + n.FieldID + "}"
	case *core.FuncCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = sexpr(a)
		}
		return n.Name + "[" + strings.Join(args, " ") + "]"
	case *core.BinaryExpr:
		return "(" + n.Op.String() + " " + sexpr(n.Left) + " " + sexpr(n.Right) + ")"
	case *core.UnaryExpr:
		return "(" + n.Op.String() + " " + sexpr(n.Operand) + ")"
	case *core.ParenExpr:
		return "<" + sexpr(n.Inner) + ">"
	default:
		return "?"
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"8 / 4 / 2", "(/ (/ 8 4) 2)"},
		{"1 + 2 & 3", "(& (+ 1 2) 3)"},
		{`"a" & "b" & "c"`, `(& (& "a" "b") "c")`},
		{"1 & 2 = 12", "(= (& 1 2) 12)"},
		{"1 < 2 AND 3 > 2", "(AND (< 1 2) (> 3 2))"},
		{"TRUE OR FALSE AND FALSE", "(OR true (AND false false))"},
		{"NOT 1 = 2", "(NOT (= 1 2))"},
		{"NOT TRUE AND FALSE", "(AND (NOT true) false)"},
		{"-2 * 3", "(* (- 2) 3)"},
		{"--1", "(- (- 1))"},
		{"+{fldA}", "(+ {fldA})"},
		{"(1 + 2) * 3", "(* <(+ 1 2)> 3)"},
		{"1 <> 2", "(<> 1 2)"},
		{"1 != 2", "(<> 1 2)"},
		{"#2024-01-31# + 1", "(+ #2024-01-31# 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := parser.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sexpr(expr))
		})
	}
}

func TestParseCalls(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"TODAY()", "TODAY[]"},
		{"sum(1, 2, {fldA})", "sum[1 2 {fldA}]"},
		{"IF({fldA} > 1, \"big\", \"small\")", `IF[(> {fldA} 1) "big" "small"]`},
		{"AND(TRUE, FALSE)", "AND[true false]"},
		{"or(TRUE, NOT FALSE)", "or[true (NOT false)]"},
		{"TRUE AND(FALSE)", "(AND true <false>)"},
		{"ROUND(SUM(1, 2) / 3, 2)", "ROUND[(/ SUM[1 2] 3) 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := parser.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sexpr(expr))
		})
	}
}

func TestParseSpans(t *testing.T) {
	expr, err := parser.Parse("SUM({fldA}, 2) + 1")
	require.NoError(t, err)

	bin, ok := expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, 0, bin.Pos().Offset)
	assert.Equal(t, 18, bin.End().Offset)

	call, ok := bin.Left.(*core.FuncCall)
	require.True(t, ok)
	assert.Equal(t, 14, call.End().Offset)
	assert.Equal(t, 4, call.Args[0].Pos().Offset)

	// Nodes are unchecked until the type checker runs.
	assert.Equal(t, core.TypeInvalid, expr.ResultType())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  parser.ParseErrorKind
	}{
		{name: "empty", input: "", kind: parser.EmptyExpression},
		{name: "whitespace", input: " \n\t", kind: parser.EmptyExpression},
		{name: "empty parens", input: "()", kind: parser.EmptyExpression},
		{name: "nested empty parens", input: "1 + ()", kind: parser.EmptyExpression},
		{name: "missing paren", input: "(1 + 2", kind: parser.MissingClosingParen},
		{name: "missing call paren", input: "SUM(1, 2", kind: parser.MissingClosingParen},
		{name: "unmatched close", input: "1 + 2)", kind: parser.UnexpectedToken},
		{name: "dangling operator", input: "1 +", kind: parser.UnexpectedToken},
		{name: "leading operator", input: "* 2", kind: parser.UnexpectedToken},
		{name: "bare identifier", input: "foo + 1", kind: parser.UnexpectedToken},
		{name: "trailing comma", input: "SUM(1,)", kind: parser.UnexpectedToken},
		{name: "missing comma", input: "SUM(1 2)", kind: parser.UnexpectedToken},
		{name: "adjacent values", input: "1 2", kind: parser.UnexpectedToken},
		{name: "bare AND", input: "AND", kind: parser.UnexpectedToken},
		{name: "trailing NOT", input: "TRUE AND NOT", kind: parser.UnexpectedToken},
		{name: "too deep", input: strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300), kind: parser.NestingTooDeep},
		{name: "too many unary", input: strings.Repeat("-", 300) + "1", kind: parser.NestingTooDeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, expr)

			var parseErr *parser.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.kind, parseErr.Kind, err.Error())
			assert.Equal(t, "ParseError."+tt.kind.String(), parseErr.Code())
		})
	}
}

func TestParseLexErrorWins(t *testing.T) {
	_, err := parser.Parse(`SUM(1, "abc`)
	var lexErr *parser.LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, parser.UnterminatedString, lexErr.Kind)
}

func TestParseNestingLimit(t *testing.T) {
	depth := parser.MaxNestingDepth / 2
	input := strings.Repeat("(", depth) + "1" + strings.Repeat(")", depth)
	_, err := parser.Parse(input)
	require.NoError(t, err)
}

func TestParseDeterministic(t *testing.T) {
	input := `IF(AND({fldA} > 1, NOT {fldB}), CONCATENATE("x", {fldC} & 1), -({fldA} - 2) * 3)`
	first, err := parser.Parse(input)
	require.NoError(t, err)
	for range 5 {
		again, err := parser.Parse(input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseUnaryOps(t *testing.T) {
	expr, err := parser.Parse("NOT -1")
	require.NoError(t, err)

	not, ok := expr.(*core.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.NOT, not.Op)

	neg, ok := not.Operand.(*core.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.MINUS, neg.Op)
}
