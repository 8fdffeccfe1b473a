package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/parser"
	"github.com/leapstack-labs/leapformula/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1+2*3", "1 + 2 * 3"},
		{"(1+2)*3", "(1 + 2) * 3"},
		{"sum( {fldA},2 )", "sum({fldA}, 2)"},
		{"'it\\'s' & \"x\"", `"it's" & "x"`},
		{"not true and false", "NOT TRUE AND FALSE"},
		{"1 != 2", "1 <> 2"},
		{"#2024-01-31#", "#2024-01-31#"},
		{"- -1", "--1"},
		{"1 = NOT 2", "1 = NOT 2"},
		{"\"line\\nbreak\"", `"line\nbreak"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := parser.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, parser.Format(expr))
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	inputs := []string{
		`IF(AND({fldA} > 1, NOT {fldB}), CONCATENATE("x", {fldC} & 1), -({fldA} - 2) * 3)`,
		`1 - (2 - 3)`,
		`NOT NOT TRUE OR FALSE`,
		`-NOT 1 = 2`,
		`1 * NOT 2 + 3`,
		`DATETIME_DIFF(#2024-03-01#, #2024-01-01 08:00#, "hour")`,
		`"quote \" and backslash \\"`,
		`SWITCH({fldS}, "a", 1, "b", 2, 0)`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := parser.Parse(input)
			require.NoError(t, err)

			formatted := parser.Format(first)
			second, err := parser.Parse(formatted)
			require.NoError(t, err, formatted)

			assert.Equal(t, sexpr(first), sexpr(second))
			assert.Equal(t, formatted, parser.Format(second), "format is idempotent")
		})
	}
}

func TestFormatAddsParensForBuiltTrees(t *testing.T) {
	one := &core.Literal{Kind: core.LiteralNumber, Value: core.Number(1)}
	two := &core.Literal{Kind: core.LiteralNumber, Value: core.Number(2)}
	three := &core.Literal{Kind: core.LiteralNumber, Value: core.Number(3)}

	// 1 * (2 + 3) without an explicit ParenExpr
	expr := &core.BinaryExpr{
		Op:   token.STAR,
		Left: one,
		Right: &core.BinaryExpr{
			Op:    token.PLUS,
			Left:  two,
			Right: three,
		},
	}
	assert.Equal(t, "1 * (2 + 3)", parser.Format(expr))

	// (1 - 2) - 3 needs none, 1 - (2 - 3) does
	left := &core.BinaryExpr{Op: token.MINUS, Left: &core.BinaryExpr{Op: token.MINUS, Left: one, Right: two}, Right: three}
	right := &core.BinaryExpr{Op: token.MINUS, Left: one, Right: &core.BinaryExpr{Op: token.MINUS, Left: two, Right: three}}
	assert.Equal(t, "1 - 2 - 3", parser.Format(left))
	assert.Equal(t, "1 - (2 - 3)", parser.Format(right))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, parser.Quote("plain"))
	assert.Equal(t, `"a\"b\\c\t"`, parser.Quote("a\"b\\c\t"))
}
