package eval_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/eval"
	"github.com/leapstack-labs/leapformula/pkg/parser"
	"github.com/leapstack-labs/leapformula/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func row() map[string]core.Value {
	return map[string]core.Value{
		"fldA":    core.Number(10),
		"fldZero": core.Number(0),
		"fldName": core.Text("ada"),
		"fldFlag": core.Bool(true),
		"fldDue":  core.Date(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)),
		"fldTags": core.Array(core.Text("x"), core.Text("y")),
		"fldErr":  core.ErrorValue(core.DivisionByZero, "upstream"),
	}
}

func run(t *testing.T, src string) core.Value {
	t.Helper()
	expr, err := parser.Parse(src)
	require.NoError(t, err, src)
	return eval.Evaluate(expr, &eval.Context{Values: row(), Now: now})
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		input string
		want  core.Value
	}{
		{"1 + 2 * 3", core.Number(7)},
		{"(1 + 2) * 3", core.Number(9)},
		{"10 / 4", core.Number(2.5)},
		{"2 - 3 - 4", core.Number(-5)},
		{"{fldA} * 2", core.Number(20)},
		{"TRUE + 1", core.Number(2)},
		{`"3" * 2`, core.Number(6)},
		{`"a" & 1 & TRUE`, core.Text("a1true")},
		{`{fldName} & "!"`, core.Text("ada!")},
		{"-{fldA}", core.Number(-10)},
		{`-"3"`, core.Number(-3)},
		{"+5", core.Number(5)},
		{"NOT 0", core.Bool(true)},
		{`NOT ""`, core.Bool(true)},
		{"1 < 2", core.Bool(true)},
		{"2 <= 2", core.Bool(true)},
		{`"b" > "a"`, core.Bool(true)},
		{`"a" >= "b"`, core.Bool(false)},
		{"1 = 1.0", core.Bool(true)},
		{`1 = "1"`, core.Bool(false)},
		{`1 <> "1"`, core.Bool(true)},
		{"TRUE = 1", core.Bool(true)},
		{`#2024-01-02# > "2024-01-01"`, core.Bool(true)},
		{`{fldDue} = "2024-01-31"`, core.Bool(true)},
		{"{fldTags} = {fldTags}", core.Bool(true)},
		{"1 < 2 AND 2 < 3", core.Bool(true)},
		{"FALSE OR 0", core.Bool(false)},
		{"FALSE AND 1/0", core.Bool(false)},
		{"TRUE OR 1/0", core.Bool(true)},
		{"#2024-01-31# + 1", core.Date(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))},
		{"1 + {fldDue}", core.Date(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))},
		{"{fldDue} - 30", core.Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"#2024-01-10# - 2.5", core.Date(time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC))},
		{"#2024-01-10# - #2024-01-01#", core.Number(9)},
		{"#2024-01-02T12:00:00Z# - #2024-01-01#", core.Number(1.5)},
		{`IF(TRUE, 1, 1/0)`, core.Number(1)},
		{`IF({fldFlag}, "yes", "no")`, core.Text("yes")},
		{`IF({fldA} > 100, "big")`, core.Bool(false)},
		{`SWITCH({fldName}, "bob", 1, "ada", 2, 3)`, core.Number(2)},
		{`IFERROR(1/0, "fallback")`, core.Text("fallback")},
		{`IFERROR({fldMissing}, 0)`, core.Number(0)},
		{`ISERROR({fldErr})`, core.Bool(true)},
		{`ISERROR({fldA})`, core.Bool(false)},
		{`AND(TRUE, {fldFlag})`, core.Bool(true)},
		{`OR(FALSE, 1/0 = 1, TRUE)`, core.ErrorValue(core.DivisionByZero, "")},
		{`SUM({fldA}, 5, TRUE)`, core.Number(16)},
		{`UPPER({fldName})`, core.Text("ADA")},
		{`COUNTA({fldTags})`, core.Number(2)},
		{`ROUND({fldA} / 3, 2)`, core.Number(3.33)},
		{`TODAY()`, core.Date(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))},
		{`DATETIME_DIFF(TODAY(), {fldDue})`, core.Number(44)},
		{`DATEADD({fldDue}, 1, "month")`, core.Date(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := run(t, tt.input)
			if tt.want.IsError() {
				require.True(t, got.IsError(), "got %s", got)
				assert.Equal(t, tt.want.Err().Kind, got.Err().Kind)
				return
			}
			require.False(t, got.IsError(), "unexpected %s", got)
			require.Equal(t, tt.want.Kind(), got.Kind())
			switch tt.want.Kind() {
			case core.KindNumber:
				assert.InDelta(t, tt.want.Num(), got.Num(), 1e-9)
			case core.KindDate:
				assert.True(t, tt.want.Time().Equal(got.Time()), "want %s, got %s", tt.want, got)
			default:
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  core.EvalErrorKind
	}{
		{"1 / 0", core.DivisionByZero},
		{"{fldA} / {fldZero}", core.DivisionByZero},
		{"{fldMissing}", core.MissingFieldValue},
		{"{fldErr} + 1", core.DivisionByZero},
		{"1 / 0 + {fldMissing}", core.DivisionByZero},
		{"{fldMissing} + 1 / 0", core.MissingFieldValue},
		{"TRUE AND 1/0", core.DivisionByZero},
		{`"x" * 2`, core.TypeMismatch},
		{`-"x"`, core.TypeMismatch},
		{"1 - #2024-01-01#", core.TypeMismatch},
		{"#2024-01-01# + #2024-01-02#", core.TypeMismatch},
		{"1 < {fldTags}", core.TypeMismatch},
		{`{fldDue} < "someday"`, core.InvalidDate},
		{"1e308 * 10", core.InvalidArgument},
		{"SQRT(-1)", core.InvalidArgument},
		{"SUM(1, 1/0)", core.DivisionByZero},
		{`LEFT({fldMissing}, 1)`, core.MissingFieldValue},
		{`ERROR("nope")`, core.UserError},
		{"FROB(1)", core.UnknownFunctionFailure},
		{"ROUND()", core.UnknownFunctionFailure},
		{`SWITCH(1, 2, "two")`, core.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := run(t, tt.input)
			require.True(t, got.IsError(), "got %s", got)
			assert.Equal(t, tt.kind, got.Err().Kind, got.Err().Message)
		})
	}
}

func TestErrorValueKeepsMessage(t *testing.T) {
	got := run(t, `ERROR("stock is negative")`)
	require.True(t, got.IsError())
	assert.Equal(t, "stock is negative", got.Err().Message)
	assert.Equal(t, "#ERROR!", got.AsText())
}

func TestEvaluateDepthLimit(t *testing.T) {
	src := strings.Repeat("(", 130) + "1" + strings.Repeat(")", 130)
	expr, err := parser.Parse(src)
	require.NoError(t, err)

	got := eval.Evaluate(expr, nil)
	require.True(t, got.IsError())
	assert.Equal(t, core.DepthExceeded, got.Err().Kind)

	got = eval.Evaluate(expr, &eval.Context{MaxDepth: 200})
	assert.Equal(t, core.Number(1), got)
}

func TestEvaluateLongOperatorChain(t *testing.T) {
	src := strings.Repeat("{fldA} + ", 250) + "1"
	expr, err := parser.Parse(src)
	require.NoError(t, err)

	got := eval.Evaluate(expr, eval.NewContext(map[string]core.Value{"fldA": core.Number(2)}))
	assert.Equal(t, core.Number(501), got)

	got = eval.Evaluate(expr, &eval.Context{MaxDepth: 2, Values: map[string]core.Value{"fldA": core.Number(1)}})
	assert.Equal(t, core.Number(251), got)
}

func TestEvaluateRecoversFromPanics(t *testing.T) {
	ret := func([]core.Type) core.Type { return core.TypeNumber }
	reg, err := registry.New(
		&registry.Function{
			Name: "BOOM", MaxArgs: 0, Returns: ret,
			Eval: func(*registry.Call, []core.Value) core.Value { panic("kaboom") },
		},
		&registry.Function{
			Name: "NOTHING", MaxArgs: 0, Returns: ret,
			Eval: func(*registry.Call, []core.Value) core.Value { return core.Value{} },
		},
		&registry.Function{
			Name: "LAZYBOOM", MinArgs: 1, MaxArgs: 1, Returns: ret,
			Lazy: func(_ *registry.Call, args []registry.Thunk) core.Value {
				var m map[string]bool
				m["x"] = args[0]().AsText() == "" // nil map write
				return core.Number(1)
			},
		},
	)
	require.NoError(t, err)

	for _, src := range []string{"BOOM()", "NOTHING()", "LAZYBOOM(1)", "1 + BOOM()"} {
		t.Run(src, func(t *testing.T) {
			expr, err := parser.Parse(src)
			require.NoError(t, err)

			var got core.Value
			assert.NotPanics(t, func() {
				got = eval.Evaluate(expr, &eval.Context{Registry: reg})
			})
			require.True(t, got.IsError())
			assert.Equal(t, core.UnknownFunctionFailure, got.Err().Kind)
		})
	}
}

func TestEvaluateUsesLocation(t *testing.T) {
	expr, err := parser.Parse(`DATETIME_FORMAT(#2024-01-01T03:00:00Z#, "YYYY-MM-DD HH")`)
	require.NoError(t, err)

	ctx := &eval.Context{Now: now, Location: time.FixedZone("UTC-5", -5*3600)}
	assert.Equal(t, core.Text("2023-12-31 22"), eval.Evaluate(expr, ctx))
}

func TestEvaluateNilInputs(t *testing.T) {
	got := eval.Evaluate(nil, nil)
	require.True(t, got.IsError())

	expr, err := parser.Parse("1 + 1")
	require.NoError(t, err)
	assert.Equal(t, core.Number(2), eval.Evaluate(expr, nil))
}

func TestEvaluateIsSafeForConcurrentUse(t *testing.T) {
	expr, err := parser.Parse(`IF({fldA} > 5, CONCATENATE({fldName}, "-", {fldA} * 2), "small")`)
	require.NoError(t, err)

	ctx := &eval.Context{Values: row(), Now: now}
	var wg sync.WaitGroup
	results := make([]core.Value, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = eval.Evaluate(expr, ctx)
		}()
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, core.Text("ada-20"), got)
	}
}
