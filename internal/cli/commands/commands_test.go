package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/config"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

const ordersWorkbook = `name: orders
fields:
  - id: fldItem
    type: text
  - id: fldPrice
    type: currency
  - id: fldQty
    type: number
  - id: fldTotal
    type: formula
    formula: "{fldPrice} * {fldQty}"
  - id: fldLabel
    type: formula
    formula: '{fldItem} & ": " & {fldTotal}'
  - id: fldUnit
    type: formula
    formula: "{fldTotal} / {fldQty}"
rows:
  - id: rec1
    values: {fldItem: Widget, fldPrice: 12.5, fldQty: 2}
  - id: rec2
    values: {fldItem: Gadget, fldPrice: 3, fldQty: 0}
`

const brokenWorkbook = `fields:
  - id: fldA
    type: number
  - id: fldOk
    type: formula
    formula: "{fldA} + 1"
  - id: fldBad
    type: formula
    formula: "1 +"
  - id: fldX
    type: formula
    formula: "{fldY}"
  - id: fldY
    type: formula
    formula: "{fldX}"
`

// testConfig returns a config with its state in a temp dir and, unless
// workbook is empty, a workbook file.
func testConfig(t *testing.T, workbook, mode string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutputFormat = mode
	cfg.StatePath = filepath.Join(dir, "state", "state.db")
	if workbook != "" {
		cfg.Workbook = filepath.Join(dir, "workbook.yaml")
		require.NoError(t, os.WriteFile(cfg.Workbook, []byte(workbook), 0o600))
	}
	return cfg
}

func execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(config.WithConfig(context.Background(), cfg))
	return out.String(), errOut.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewCheckCommand(), "check [workbook]", nil},
		{NewEvalCommand(), "eval <formula>", []string{"row"}},
		{NewDepsCommand(), "deps <field>", nil},
		{NewFunctionsCommand(), "functions [name]", []string{"category"}},
		{NewPlanCommand(), "plan [changed-field...]", nil},
		{NewRecomputeCommand(), "recompute [workbook]", []string{"row", "changed", "save"}},
		{NewREPLCommand(), "repl [workbook]", nil},
		{NewWatchCommand(), "watch [workbook]", []string{"debounce", "save"}},
		{NewStateCommand(), "state", nil},
		{NewDoctorCommand(), "doctor [workbook]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	assert.Equal(t, []string{"run"}, NewRecomputeCommand().Aliases)
}

func TestCheckCommand(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "json")
	out, _, err := execute(t, NewCheckCommand(), cfg)
	require.NoError(t, err)

	result := decode[output.CheckOutput](t, out)
	assert.Equal(t, output.CheckSummary{Total: 3, Valid: 3}, result.Summary)
	require.Len(t, result.Fields, 3)
	total := result.Fields[0]
	assert.Equal(t, "fldTotal", total.FieldID)
	assert.Equal(t, "number", total.ResultType)
	assert.Equal(t, "{fldPrice} * {fldQty}", total.Canonical)
	assert.ElementsMatch(t, []string{"fldPrice", "fldQty"}, total.Dependencies)
	assert.Equal(t, "text", result.Fields[1].ResultType)
}

func TestCheckCommand_Failures(t *testing.T) {
	cfg := testConfig(t, brokenWorkbook, "json")
	out, _, err := execute(t, NewCheckCommand(), cfg)
	require.Error(t, err)
	assert.Equal(t, "3 of 4 formulas failed to compile", err.Error())

	result := decode[output.CheckOutput](t, out)
	byID := make(map[string]output.FieldCheck)
	for _, fc := range result.Fields {
		byID[fc.FieldID] = fc
	}
	assert.Nil(t, byID["fldOk"].Error)
	require.NotNil(t, byID["fldBad"].Error)
	assert.Equal(t, "ParseError.UnexpectedToken", byID["fldBad"].Error.Code)
	require.NotNil(t, byID["fldX"].Error)
	assert.Equal(t, "CircularDependencyError.Cycle", byID["fldX"].Error.Code)
	require.NotNil(t, byID["fldY"].Error)
}

func TestCheckCommand_Markdown(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "auto")
	out, _, err := execute(t, NewCheckCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "## fldTotal")
	assert.Contains(t, out, "- **Type:** number")
	assert.Contains(t, out, "- **Valid:** 3")
}

func TestCheckCommand_NoWorkbook(t *testing.T) {
	cfg := testConfig(t, "", "json")
	_, _, err := execute(t, NewCheckCommand(), cfg)
	assert.ErrorContains(t, err, "no workbook")

	_, _, err = execute(t, NewCheckCommand(), cfg, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEvalCommand(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		cfg := testConfig(t, "", "text")
		out, _, err := execute(t, NewEvalCommand(), cfg, "ROUND(10 / 3, 2)")
		require.NoError(t, err)
		assert.Equal(t, "3.33\nnumber\n", out)
	})

	t.Run("error value", func(t *testing.T) {
		cfg := testConfig(t, "", "text")
		out, _, err := execute(t, NewEvalCommand(), cfg, "1 / 0")
		require.NoError(t, err)
		assert.Contains(t, out, "#DIV/0!")
	})

	t.Run("row", func(t *testing.T) {
		cfg := testConfig(t, ordersWorkbook, "json")
		out, _, err := execute(t, NewEvalCommand(), cfg, "{fldTotal} + 1", "--row", "rec1")
		require.NoError(t, err)
		result := decode[output.EvalOutput](t, out)
		assert.Equal(t, core.Number(26), result.Value)
		assert.Equal(t, "number", result.ResultType)
		assert.Equal(t, []string{"fldTotal"}, result.Dependencies)
		assert.Equal(t, "rec1", result.Row)
	})

	t.Run("compile error", func(t *testing.T) {
		cfg := testConfig(t, ordersWorkbook, "json")
		_, _, err := execute(t, NewEvalCommand(), cfg, "{fldNope} + 1")
		assert.ErrorContains(t, err, "fldNope")
	})

	t.Run("row without workbook", func(t *testing.T) {
		cfg := testConfig(t, "", "json")
		_, _, err := execute(t, NewEvalCommand(), cfg, "1", "--row", "rec1")
		assert.ErrorContains(t, err, "no workbook")
	})

	t.Run("unknown row", func(t *testing.T) {
		cfg := testConfig(t, ordersWorkbook, "json")
		_, _, err := execute(t, NewEvalCommand(), cfg, "1", "--row", "rec9")
		assert.ErrorContains(t, err, `row "rec9" not found`)
	})
}

func TestDepsCommand(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "json")

	out, _, err := execute(t, NewDepsCommand(), cfg, "fldTotal")
	require.NoError(t, err)
	result := decode[output.DepsOutput](t, out)
	assert.ElementsMatch(t, []string{"fldPrice", "fldQty"}, result.Dependencies)
	assert.ElementsMatch(t, []string{"fldLabel", "fldUnit"}, result.Dependents)

	out, _, err = execute(t, NewDepsCommand(), cfg, "fldPrice")
	require.NoError(t, err)
	result = decode[output.DepsOutput](t, out)
	assert.Empty(t, result.Dependencies)
	assert.Equal(t, []string{"fldTotal"}, result.Dependents)

	_, _, err = execute(t, NewDepsCommand(), cfg, "fldNope")
	assert.ErrorContains(t, err, `field "fldNope" not found`)
}

func TestFunctionsCommand(t *testing.T) {
	cfg := testConfig(t, "", "json")

	out, _, err := execute(t, NewFunctionsCommand(), cfg)
	require.NoError(t, err)
	all := decode[[]output.FunctionInfo](t, out)
	names := make([]string, len(all))
	for i, info := range all {
		names[i] = info.Name
	}
	assert.Contains(t, names, "SUM")
	assert.Contains(t, names, "DATETIME_DIFF")

	out, _, err = execute(t, NewFunctionsCommand(), cfg, "--category", "date")
	require.NoError(t, err)
	for _, info := range decode[[]output.FunctionInfo](t, out) {
		assert.Equal(t, "date", info.Category, info.Name)
	}

	out, _, err = execute(t, NewFunctionsCommand(), cfg, "round")
	require.NoError(t, err)
	round := decode[output.FunctionInfo](t, out)
	assert.Equal(t, "ROUND", round.Name)
	assert.True(t, strings.HasPrefix(round.Signature, "ROUND("))

	_, _, err = execute(t, NewFunctionsCommand(), cfg, "--category", "finance")
	assert.ErrorContains(t, err, `unknown category "finance"`)

	cfg.DisabledFunctions = []string{"NOW"}
	_, _, err = execute(t, NewFunctionsCommand(), cfg, "now")
	assert.ErrorContains(t, err, `function "now" not found`)
}

func TestFunctionsCommand_Table(t *testing.T) {
	cfg := testConfig(t, "", "markdown")
	out, _, err := execute(t, NewFunctionsCommand(), cfg, "--category", "logical")
	require.NoError(t, err)
	assert.Contains(t, out, "| Function | Category | Description |")
	assert.Contains(t, out, "IF(")
}

func TestPlanCommand(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "json")

	out, _, err := execute(t, NewPlanCommand(), cfg)
	require.NoError(t, err)
	plan := decode[output.PlanOutput](t, out)
	require.Len(t, plan.Order, 3)
	assert.Equal(t, "fldTotal", plan.Order[0])
	assert.Equal(t, [][]string{{"fldTotal"}, {"fldLabel", "fldUnit"}}, plan.Levels)

	out, _, err = execute(t, NewPlanCommand(), cfg, "fldItem")
	require.NoError(t, err)
	plan = decode[output.PlanOutput](t, out)
	assert.Equal(t, []string{"fldItem"}, plan.Changed)
	assert.Equal(t, []string{"fldLabel"}, plan.Order)
	assert.Equal(t, [][]string{{"fldLabel"}}, plan.Levels)

	_, _, err = execute(t, NewPlanCommand(), cfg, "fldNope")
	assert.ErrorContains(t, err, `field "fldNope" not found`)
}

func TestRecomputeCommand(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "json")

	out, _, err := execute(t, NewRecomputeCommand(), cfg)
	require.NoError(t, err)
	result := decode[output.RecomputeOutput](t, out)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Errors)
	assert.False(t, result.Saved)

	rec1 := result.Rows[0]
	assert.Equal(t, "rec1", rec1.ID)
	assert.Equal(t, core.Number(25), rec1.Values["fldTotal"])
	assert.Equal(t, core.Text("Widget: 25"), rec1.Values["fldLabel"])
	assert.Equal(t, core.Number(12.5), rec1.Values["fldUnit"])

	rec2 := result.Rows[1]
	require.True(t, rec2.Values["fldUnit"].IsError())
	assert.Equal(t, core.DivisionByZero, rec2.Values["fldUnit"].Err().Kind)

	_, _, err = execute(t, NewRecomputeCommand(), cfg, "--row", "rec9")
	assert.ErrorContains(t, err, `row "rec9" not found`)
}

func TestRecomputeCommand_Changed(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "json")
	args := []string{"--row", "rec2", "--changed", "fldItem"}

	out, _, err := execute(t, NewRecomputeCommand(), cfg, args...)
	require.NoError(t, err)
	result := decode[output.RecomputeOutput](t, out)
	assert.Equal(t, []string{"fldLabel"}, result.Fields)
	require.Len(t, result.Rows, 1)
	label := result.Rows[0].Values["fldLabel"]
	require.True(t, label.IsError(), "fldTotal was never computed")
	assert.Equal(t, core.MissingFieldValue, label.Err().Kind)

	_, _, err = execute(t, NewRecomputeCommand(), cfg, "--save")
	require.NoError(t, err)

	out, _, err = execute(t, NewRecomputeCommand(), cfg, args...)
	require.NoError(t, err)
	result = decode[output.RecomputeOutput](t, out)
	assert.Equal(t, core.Text("Gadget: 0"), result.Rows[0].Values["fldLabel"])
	assert.NotContains(t, result.Rows[0].Values, "fldTotal", "only planned fields are reported")
}

func TestRecomputeCommand_Markdown(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "markdown")
	out, _, err := execute(t, NewRecomputeCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "| rec1 | 25 |")
	assert.Contains(t, out, "#DIV/0!")
	assert.Contains(t, out, "2 rows, 3 formulas, 1 error values")
	assert.Contains(t, out, "- **rec2.fldUnit:** #DIV/0!")
}

func TestRecomputeCommand_SkipsBrokenFormulas(t *testing.T) {
	cfg := testConfig(t, brokenWorkbook, "json")
	out, errOut, err := execute(t, NewRecomputeCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, errOut, "skipping fldBad")

	result := decode[output.RecomputeOutput](t, out)
	assert.Equal(t, []string{"fldOk"}, result.Fields)
	assert.Empty(t, result.Rows)
}

func TestRecomputeSaveAndState(t *testing.T) {
	cfg := testConfig(t, ordersWorkbook, "json")

	out, _, err := execute(t, NewRecomputeCommand(), cfg, "--save")
	require.NoError(t, err)
	assert.True(t, decode[output.RecomputeOutput](t, out).Saved)

	out, _, err = execute(t, NewStateCommand(), cfg, "programs")
	require.NoError(t, err)
	programs := decode[[]output.FieldCheck](t, out)
	require.Len(t, programs, 3)
	assert.Equal(t, "fldLabel", programs[0].FieldID, "ordered by field id")

	out, _, err = execute(t, NewStateCommand(), cfg, "programs", "fldTotal")
	require.NoError(t, err)
	one := decode[[]output.FieldCheck](t, out)
	require.Len(t, one, 1)
	assert.Equal(t, "number", one[0].ResultType)

	out, _, err = execute(t, NewStateCommand(), cfg, "values", "rec1")
	require.NoError(t, err)
	values := decode[output.RowResult](t, out)
	assert.Equal(t, core.Number(25), values.Values["fldTotal"])
	assert.Len(t, values.Values, 3)

	_, _, err = execute(t, NewStateCommand(), cfg, "forget", "fldTotal")
	require.NoError(t, err)

	out, _, err = execute(t, NewStateCommand(), cfg, "values", "rec1")
	require.NoError(t, err)
	assert.NotContains(t, decode[output.RowResult](t, out).Values, "fldTotal")

	_, _, err = execute(t, NewStateCommand(), cfg, "forget", "fldTotal")
	assert.ErrorContains(t, err, "no saved program for fldTotal")
}

func newTestSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg := testConfig(t, ordersWorkbook, "text")
	var out, errOut bytes.Buffer
	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   slog.New(slog.DiscardHandler),
		Renderer: output.NewRenderer(&out, &errOut, output.ModeText),
	}
	proj, err := cc.LoadProject(context.Background(), cfg.Workbook)
	require.NoError(t, err)
	return &replSession{
		ctx: context.Background(),
		r:   cc.Renderer,
		eng: proj.Engine,
		wb:  proj.Workbook,
	}, &out, &errOut
}

func TestREPLSession(t *testing.T) {
	s, out, errOut := newTestSession(t)

	assert.False(t, s.handle("   "))
	assert.False(t, s.handle("1 + 2"))
	assert.Equal(t, "3 (number)\n", out.String())

	out.Reset()
	s.handle("{fldTotal}")
	assert.Contains(t, out.String(), "#MISSING!", "no row selected")

	out.Reset()
	s.handle(".row rec1")
	s.handle(`{fldLabel} & "?"`)
	assert.Equal(t, "row rec1\nWidget: 25? (text)\n", out.String())

	out.Reset()
	s.handle(".row")
	assert.Equal(t, "row rec1\n", out.String())
	s.handle(".row -")
	assert.Nil(t, s.row)

	s.handle(".row rec9")
	s.handle("{fldPrice} +")
	s.handle(".nope")
	assert.Contains(t, errOut.String(), `row "rec9" not found`)
	assert.Contains(t, errOut.String(), "parse error")
	assert.Contains(t, errOut.String(), "unknown command: .nope")

	out.Reset()
	s.handle(".fields")
	assert.Contains(t, out.String(), "fldTotal")
	assert.Contains(t, out.String(), "{fldPrice} * {fldQty}")

	assert.True(t, s.handle(".quit"))
	assert.True(t, s.handle(".EXIT"))
}

func TestREPLCompleter(t *testing.T) {
	s, _, _ := newTestSession(t)
	line := []rune("DATE")
	candidates, _ := s.completer().Do(line, len(line))
	var got []string
	for _, c := range candidates {
		got = append(got, strings.TrimSpace(string(c)))
	}
	assert.Contains(t, got, "ADD(")
	assert.Contains(t, got, "TIME_DIFF(")
}

func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "workbook.yaml")
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	var runs atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, events, errs, target, 20*time.Millisecond, func() { runs.Add(1) },
			slog.New(slog.DiscardHandler))
	}()

	events <- fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: target, Op: fsnotify.Chmod}
	for range 3 {
		events <- fsnotify.Event{Name: target, Op: fsnotify.Write}
	}
	errs <- assert.AnError

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "a burst of events runs once")

	events <- fsnotify.Event{Name: target, Op: fsnotify.Rename}
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestFieldErrors(t *testing.T) {
	got, rest := fieldErrors(nil)
	assert.Empty(t, got)
	assert.NoError(t, rest)

	cycle := &core.CircularDependencyError{FieldID: "fldX", Path: []string{"fldX", "fldY", "fldX"}}
	_, compileErr := formula.Compile("1 +", core.MapSchema{})
	require.Error(t, compileErr)

	got, rest = fieldErrors(errors.Join(cycle, compileErr, context.Canceled))
	assert.Len(t, got, 2)
	assert.Same(t, cycle, got["fldX"])
	assert.Contains(t, got, "")
	assert.ErrorIs(t, rest, context.Canceled)
}
