package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/engine"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// EvalOptions holds options for the eval command.
type EvalOptions struct {
	Row string // Row to evaluate against
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	opts := &EvalOptions{}
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula",
		Long: `Compile and evaluate a single formula.

With a workbook, field references resolve against its fields and --row
selects the record to read; formula fields of that row are recomputed
first. Without a workbook only literal formulas can be evaluated.`,
		Example: `  # Evaluate a literal formula
  leapformula eval 'ROUND(10 / 3, 2)'

  # Evaluate against a row of the configured workbook
  leapformula eval '{fldPrice} * {fldQty}' --row rec1

  # Output as JSON
  leapformula eval 'DATEADD(TODAY(), 7, "days")' -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Row, "row", "r", "", "Row id to evaluate against")
	return cmd
}

func runEval(cmd *cobra.Command, source string, opts *EvalOptions) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	var (
		eng *engine.Engine
		row = formula.Row{}
		err error
	)
	if path, pathErr := cc.workbookPath(nil); pathErr == nil {
		proj, err := cc.LoadProject(ctx, path)
		if err != nil {
			return err
		}
		eng = proj.Engine
		if opts.Row != "" {
			wr, ok := proj.Workbook.Row(opts.Row)
			if !ok {
				return fmt.Errorf("row %q not found in %s", opts.Row, path)
			}
			if row, err = eng.Recompute(ctx, wr.Values); err != nil {
				return err
			}
		}
	} else {
		if opts.Row != "" {
			return pathErr
		}
		if eng, err = cc.newEngine(core.MapSchema{}); err != nil {
			return err
		}
	}

	prog, err := eng.Compile(source)
	if err != nil {
		return err
	}
	value := eng.Evaluate(prog, row)

	result := output.EvalOutput{
		Formula:      source,
		Canonical:    prog.Canonical(),
		ResultType:   prog.ResultType().String(),
		Dependencies: append([]string{}, prog.Dependencies()...),
		Row:          opts.Row,
		Value:        value,
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatKeyValue("Formula", output.FormatCode(result.Canonical)))
		r.Println(output.FormatKeyValue("Type", result.ResultType))
		if len(result.Dependencies) > 0 {
			r.Println(output.FormatKeyValue("Dependencies", strings.Join(result.Dependencies, ", ")))
		}
		r.Println(output.FormatKeyValue("Value", describeValue(value)))
	default:
		styles := r.Styles()
		if value.IsError() {
			r.Println(styles.Error.Render(describeValue(value)))
		} else {
			r.Println(output.FormatValue(value))
		}
		r.Println(styles.Muted.Render(result.ResultType))
	}
	return nil
}

// describeValue renders error values with their message.
func describeValue(v core.Value) string {
	if v.IsError() {
		return fmt.Sprintf("%s %s", v.Err().Kind.Code(), v.Err().Message)
	}
	return output.FormatValue(v)
}
