package commands

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// RecomputeOptions holds options for the recompute command.
type RecomputeOptions struct {
	Rows    []string // Restrict to these row ids
	Changed []string // Recompute only formulas affected by these fields
	Save    bool     // Persist programs and values to the state store
}

// NewRecomputeCommand creates the recompute command.
func NewRecomputeCommand() *cobra.Command {
	opts := &RecomputeOptions{}
	cmd := &cobra.Command{
		Use:     "recompute [workbook]",
		Aliases: []string{"run"},
		Short:   "Recompute formula fields for every row",
		Long: `Recompute the formula fields of a workbook's rows in dependency order.

Rows are processed in parallel (see workers); within a row every formula
runs once, after the formulas it reads. Formula failures show up as
error values and do not stop the run.

With --save, compiled programs and computed values are written to the
state database. With --changed, only formulas affected by the changed
fields run; the other formula values are read from the state database.`,
		Example: `  # Recompute all rows
  leapformula recompute

  # Only formulas affected by a price change, for two rows
  leapformula recompute --changed fldPrice --row rec1 --row rec2

  # Persist results
  leapformula recompute orders.yaml --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			path, err := cc.workbookPath(args)
			if err != nil {
				return err
			}
			result, err := recompute(cmd.Context(), cc, path, opts)
			if err != nil {
				return err
			}
			return renderRecompute(cc.Renderer, result)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rows, "row", "r", nil, "Row ids to recompute (default all)")
	cmd.Flags().StringSliceVar(&opts.Changed, "changed", nil, "Recompute only formulas affected by these fields")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save programs and values to the state database")
	return cmd
}

func recompute(ctx context.Context, cc *CommandContext, path string, opts *RecomputeOptions) (*output.RecomputeOutput, error) {
	proj, err := cc.LoadProject(ctx, path)
	if err != nil {
		return nil, err
	}
	for id, ferr := range proj.Errors {
		cc.Renderer.Warning(fmt.Sprintf("skipping %s: %v", id, ferr))
	}
	for _, id := range opts.Changed {
		if _, ok := proj.Workbook.Field(id); !ok {
			return nil, fmt.Errorf("field %q not found in %s", id, path)
		}
	}

	rowIDs := make([]string, 0, len(proj.Workbook.Rows))
	rows := make([]formula.Row, 0, len(proj.Workbook.Rows))
	if len(opts.Rows) == 0 {
		for _, wr := range proj.Workbook.Rows {
			rowIDs = append(rowIDs, wr.ID)
			rows = append(rows, wr.Values)
		}
	} else {
		for _, id := range opts.Rows {
			wr, ok := proj.Workbook.Row(id)
			if !ok {
				return nil, fmt.Errorf("row %q not found in %s", id, path)
			}
			rowIDs = append(rowIDs, wr.ID)
			rows = append(rows, wr.Values)
		}
	}

	if len(opts.Changed) > 0 {
		if err := seedSavedValues(ctx, cc, rowIDs, rows); err != nil {
			return nil, err
		}
	}

	eng := proj.Engine
	var fields []string
	if len(opts.Changed) == 0 {
		fields, err = eng.Order()
	} else {
		fields, err = eng.Plan(opts.Changed...)
	}
	if err != nil {
		return nil, err
	}

	computed, err := eng.RecomputeRows(ctx, rows, opts.Changed...)
	if err != nil {
		return nil, err
	}

	result := &output.RecomputeOutput{
		Workbook: path,
		Fields:   append([]string{}, fields...),
		Rows:     make([]output.RowResult, len(computed)),
	}
	for i, row := range computed {
		values := make(map[string]core.Value, len(fields))
		for _, id := range fields {
			v := row[id]
			values[id] = v
			if v.IsError() {
				result.Errors++
			}
		}
		result.Rows[i] = output.RowResult{ID: rowIDs[i], Values: values}
	}

	if opts.Save {
		if err := saveResults(ctx, cc, proj, result); err != nil {
			return nil, err
		}
		result.Saved = true
	}
	return result, nil
}

// seedSavedValues fills formula values saved by an earlier run into rows,
// so formulas outside an incremental plan can still be read. Workbook
// inputs win over saved values.
func seedSavedValues(ctx context.Context, cc *CommandContext, rowIDs []string, rows []formula.Row) error {
	store, err := cc.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for i, id := range rowIDs {
		saved, err := store.GetRowValues(ctx, id)
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			continue
		}
		merged := formula.Row(saved)
		maps.Copy(merged, rows[i])
		rows[i] = merged
	}
	return nil
}

func saveResults(ctx context.Context, cc *CommandContext, proj *Project, result *output.RecomputeOutput) error {
	store, err := cc.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, prog := range proj.Engine.Programs() {
		if err := store.SaveProgram(ctx, prog); err != nil {
			return err
		}
	}
	for _, row := range result.Rows {
		if err := store.SaveRowValues(ctx, row.ID, row.Values); err != nil {
			return err
		}
	}
	cc.Logger.Info("saved results", "path", cc.Cfg.StatePath, "rows", len(result.Rows))
	return nil
}

func renderRecompute(r *output.Renderer, result *output.RecomputeOutput) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(result)
	}

	header := append([]string{"row"}, result.Fields...)
	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells := make([]string, 0, len(header))
		cells = append(cells, row.ID)
		for _, id := range result.Fields {
			cells = append(cells, output.FormatValue(row.Values[id]))
		}
		rows[i] = cells
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, "Recompute: "+result.Workbook))
		r.Println()
	}
	r.Table(header, rows)
	r.Println()

	summary := fmt.Sprintf("%d rows, %d formulas, %d error values", len(result.Rows), len(result.Fields), result.Errors)
	if result.Saved {
		summary += ", saved"
	}
	r.Muted(summary)

	if result.Errors > 0 && r.EffectiveMode() == output.ModeMarkdown {
		r.Println()
		r.Println(output.FormatHeader(2, "Errors"))
		r.Println()
		for _, row := range result.Rows {
			for _, id := range sortedErrorFields(row.Values) {
				r.Println(output.FormatKeyValue(row.ID+"."+id, describeValue(row.Values[id])))
			}
		}
	}
	return nil
}

func sortedErrorFields(values map[string]core.Value) []string {
	var ids []string
	for id, v := range values {
		if v.IsError() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
