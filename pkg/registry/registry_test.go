package registry_test

import (
	"testing"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := registry.Default()
	assert.Same(t, r, registry.Default(), "built once")

	for _, name := range []string{
		"SUM", "AVERAGE", "ROUND", "CONCATENATE", "LEFT", "RIGHT", "DATEADD",
		"DATETIME_DIFF", "IF", "AND", "OR", "SWITCH", "COUNT", "ARRAY_JOIN",
	} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
	}

	for _, c := range registry.Categories {
		assert.NotEmpty(t, r.ByCategory(c), c)
	}
	assert.Len(t, r.Functions(), r.Len())
}

func TestLookupIgnoresCase(t *testing.T) {
	r := registry.Default()

	upper, ok := r.Lookup("SUM")
	require.True(t, ok)
	for _, name := range []string{"sum", "Sum", "sUm"} {
		fn, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Same(t, upper, fn)
	}

	alias, ok := r.Lookup("date_add")
	require.True(t, ok)
	assert.Equal(t, "DATEADD", alias.Name)

	_, ok = r.Lookup("FOO")
	assert.False(t, ok)
}

func TestControlFunctionsAreLazy(t *testing.T) {
	r := registry.Default()
	for _, name := range []string{"IF", "SWITCH", "AND", "OR", "IFERROR"} {
		fn, ok := r.Lookup(name)
		require.True(t, ok)
		assert.NotNil(t, fn.Lazy, name)
		assert.Nil(t, fn.Eval, name)
	}
}

func TestNewRejectsInvalidTables(t *testing.T) {
	eval := func(*registry.Call, []core.Value) core.Value { return core.Number(1) }
	ret := func([]core.Type) core.Type { return core.TypeNumber }

	tests := []struct {
		name string
		fns  []*registry.Function
	}{
		{
			name: "duplicate ignoring case",
			fns: []*registry.Function{
				{Name: "ONE", Returns: ret, Eval: eval},
				{Name: "one", Returns: ret, Eval: eval},
			},
		},
		{
			name: "alias collides",
			fns: []*registry.Function{
				{Name: "ONE", Returns: ret, Eval: eval},
				{Name: "TWO", Aliases: []string{"One"}, Returns: ret, Eval: eval},
			},
		},
		{name: "no implementation", fns: []*registry.Function{{Name: "ONE", Returns: ret}}},
		{name: "no result type", fns: []*registry.Function{{Name: "ONE", Eval: eval}}},
		{name: "bad arity", fns: []*registry.Function{{Name: "ONE", MinArgs: 2, MaxArgs: 1, Returns: ret, Eval: eval}}},
		{name: "no name", fns: []*registry.Function{{Returns: ret, Eval: eval}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.New(tt.fns...)
			assert.Error(t, err)
		})
	}
}

func TestNewCustomRegistry(t *testing.T) {
	r, err := registry.New(&registry.Function{
		Name:    "DOUBLE",
		MinArgs: 1,
		MaxArgs: 1,
		Params:  []registry.Param{registry.ParamNumber},
		Returns: func([]core.Type) core.Type { return core.TypeNumber },
		Eval: func(_ *registry.Call, args []core.Value) core.Value {
			n, _ := args[0].AsNumber()
			return core.Number(n * 2)
		},
	})
	require.NoError(t, err)

	fn, ok := r.Lookup("double")
	require.True(t, ok)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"DOUBLE"}, r.Names())
	assert.Equal(t, core.Number(8), fn.Eval(&registry.Call{}, []core.Value{core.Number(4)}))
}

func TestSuggest(t *testing.T) {
	r := registry.Default()
	assert.Equal(t, "SUM", r.Suggest("SUMM"))
	assert.Equal(t, "CONCATENATE", r.Suggest("concatenat"))
	assert.Equal(t, "AVERAGE", r.Suggest("AVERGAE"))
	assert.Equal(t, "", r.Suggest("XYZZY"))
}

func TestArityAndSignature(t *testing.T) {
	r := registry.Default()

	round, _ := r.Lookup("ROUND")
	assert.True(t, round.AcceptsArity(1))
	assert.True(t, round.AcceptsArity(2))
	assert.False(t, round.AcceptsArity(0))
	assert.False(t, round.AcceptsArity(3))
	assert.Equal(t, "1-2", round.Arity())
	assert.Equal(t, "ROUND(number, [number])", round.Signature())

	sum, _ := r.Lookup("SUM")
	assert.True(t, sum.AcceptsArity(50))
	assert.Equal(t, "1+", sum.Arity())
	assert.Equal(t, "SUM(numbers, ...)", sum.Signature())

	today, _ := r.Lookup("TODAY")
	assert.Equal(t, "0", today.Arity())
	assert.Equal(t, "TODAY()", today.Signature())
}

func TestParamAccepts(t *testing.T) {
	assert.True(t, registry.ParamNumber.Accepts(core.TypeNumber))
	assert.True(t, registry.ParamNumber.Accepts(core.TypeBoolean))
	assert.True(t, registry.ParamNumber.Accepts(core.TypeAny))
	assert.False(t, registry.ParamNumber.Accepts(core.TypeText))
	assert.False(t, registry.ParamNumber.Accepts(core.TypeDate))

	assert.True(t, registry.ParamDate.Accepts(core.TypeText))
	assert.False(t, registry.ParamDate.Accepts(core.TypeNumber))

	assert.True(t, registry.ParamNumbers.Accepts(core.TypeArray))
	assert.False(t, registry.ParamArray.Accepts(core.TypeNumber))
	assert.True(t, registry.ParamText.Accepts(core.TypeDate))
	assert.False(t, registry.ParamBoolean.Accepts(core.TypeDate))
}

func TestResultTypes(t *testing.T) {
	r := registry.Default()

	ifFn, _ := r.Lookup("IF")
	assert.Equal(t, core.TypeNumber, ifFn.Returns([]core.Type{core.TypeBoolean, core.TypeNumber, core.TypeNumber}))
	assert.Equal(t, core.TypeAny, ifFn.Returns([]core.Type{core.TypeBoolean, core.TypeNumber, core.TypeText}))
	assert.Equal(t, core.TypeAny, ifFn.Returns([]core.Type{core.TypeBoolean, core.TypeNumber}))

	switchFn, _ := r.Lookup("SWITCH")
	assert.Equal(t, core.TypeText, switchFn.Returns([]core.Type{
		core.TypeText, core.TypeText, core.TypeText, core.TypeText, core.TypeText, core.TypeText,
	}))
	assert.Equal(t, core.TypeAny, switchFn.Returns([]core.Type{
		core.TypeText, core.TypeText, core.TypeNumber, core.TypeText,
	}))
}
