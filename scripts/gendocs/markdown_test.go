package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownWriter(t *testing.T) {
	w := NewMarkdownWriter()
	w.Frontmatter("Title", "Desc")
	w.Header(2, "Section")
	w.Table([]string{"A", "B"}, [][]string{{"x|y", "z"}})
	w.CodeBlock("yaml", "a: 1\n")

	got := string(w.Bytes())
	assert.True(t, strings.HasPrefix(got, "---\ntitle: \"Title\"\n"))
	assert.Contains(t, got, "## Section\n\n")
	assert.Contains(t, got, "| A | B |\n| --- | --- |\n| x\\|y | z |\n")
	assert.Contains(t, got, "```yaml\na: 1\n```\n")
}

func TestCleanHelpers(t *testing.T) {
	assert.Equal(t, "Rounds a number", cleanDescription("Rounds  a\nnumber."))
	assert.Equal(t, "leapformula check\n  --output json", dedent("\n  leapformula check\n    --output json\n"))
	assert.Equal(t, "LEAPFORMULA_WATCH__DEBOUNCE", envVar("watch.debounce"))
}

func TestGenerators(t *testing.T) {
	dir := t.TempDir()
	for _, g := range generators {
		require.NoError(t, g.run(filepath.Join(dir, g.name)), g.name)
	}

	functions, err := os.ReadFile(filepath.Join(dir, "functions", "functions.md"))
	require.NoError(t, err)
	assert.Contains(t, string(functions), generatedHeader)
	assert.Contains(t, string(functions), "`ROUND(number, [number])`")

	check, err := os.ReadFile(filepath.Join(dir, "cli", "check.md"))
	require.NoError(t, err)
	assert.Contains(t, string(check), "leapformula check [workbook]")

	programs, err := os.ReadFile(filepath.Join(dir, "cli", "state-programs.md"))
	require.NoError(t, err)
	assert.Contains(t, string(programs), "# state programs")

	index, err := os.ReadFile(filepath.Join(dir, "cli", "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "`LEAPFORMULA_MAX_DEPTH`")

	cfg, err := os.ReadFile(filepath.Join(dir, "schema", "configuration.md"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "`watch.debounce`")

	_, err = os.Stat(filepath.Join(dir, "schema", "workbook.md"))
	assert.NoError(t, err)
}
