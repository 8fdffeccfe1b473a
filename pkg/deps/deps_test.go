package deps_test

import (
	"testing"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/deps"
	"github.com/leapstack-labs/leapformula/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"1 + 2", nil},
		{"{fldA}", []string{"fldA"}},
		{"{fldB} + {fldA} * {fldB}", []string{"fldB", "fldA"}},
		{`IF({fldC}, SUM({fldA}, {fldB}), -{fldC})`, []string{"fldC", "fldA", "fldB"}},
		{`NOT ({fldX} = "a") AND {fldY}`, []string{"fldX", "fldY"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := parser.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, deps.Extract(expr))
		})
	}
}

func TestExtractIncludesUntakenBranches(t *testing.T) {
	expr, err := parser.Parse(`IF(FALSE, {fldNever}, 0)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"fldNever"}, deps.Extract(expr))
}

func TestExtractForRejectsSelfReference(t *testing.T) {
	expr, err := parser.Parse("{fldA} + {fldSelf}")
	require.NoError(t, err)

	_, err = deps.ExtractFor("fldSelf", expr)
	var cyc *core.CircularDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.True(t, cyc.SelfReference)
	assert.Equal(t, []string{"fldSelf", "fldSelf"}, cyc.Path)
	assert.Equal(t, 10, cyc.Span().Start.Column)
	assert.Equal(t, "CircularDependencyError.SelfReference", cyc.Code())

	got, err := deps.ExtractFor("fldOther", expr)
	require.NoError(t, err)
	assert.Equal(t, []string{"fldA", "fldSelf"}, got)
}

func TestReferences(t *testing.T) {
	expr, err := parser.Parse("{fldA} & {fldA}")
	require.NoError(t, err)

	refs := deps.References(expr)
	require.Len(t, refs, 2)
	assert.Equal(t, 1, refs[0].Pos().Column)
	assert.Equal(t, 10, refs[1].Pos().Column)
}
