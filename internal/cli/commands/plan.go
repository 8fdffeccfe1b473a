package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [changed-field...]",
		Short: "Show the recompute order",
		Long: `Show the order in which formula fields are recomputed.

With changed fields, only the formulas affected by them are listed.
Levels group formulas that do not depend on each other.`,
		Example: `  # Full recompute order
  leapformula plan

  # Formulas affected by a change to fldPrice
  leapformula plan fldPrice

  # Output as JSON
  leapformula plan fldPrice -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args)
		},
	}
	return cmd
}

func runPlan(cmd *cobra.Command, changed []string) error {
	cc := NewCommandContext(cmd)
	path, err := cc.workbookPath(nil)
	if err != nil {
		return err
	}
	proj, err := cc.LoadProject(cmd.Context(), path)
	if err != nil {
		return err
	}
	for _, id := range changed {
		if _, ok := proj.Workbook.Field(id); !ok {
			return fmt.Errorf("field %q not found in %s", id, path)
		}
	}

	eng := proj.Engine
	var order []string
	if len(changed) == 0 {
		order, err = eng.Order()
	} else {
		order, err = eng.Plan(changed...)
	}
	if err != nil {
		return err
	}
	all, err := eng.Levels()
	if err != nil {
		return err
	}
	// keep the levels of planned fields only
	var levels [][]string
	for _, level := range all {
		level = slices.DeleteFunc(level, func(id string) bool { return !slices.Contains(order, id) })
		if len(level) > 0 {
			levels = append(levels, level)
		}
	}

	result := output.PlanOutput{
		Changed: append([]string{}, changed...),
		Order:   append([]string{}, order...),
		Levels:  append([][]string{}, levels...),
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Recompute Plan"))
		r.Println()
		for i, level := range levels {
			r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))
			r.Println()
			for _, id := range level {
				deps, _ := eng.Dependencies(id)
				r.Println(output.FormatKeyValue(id, "reads "+listOrNone(deps)))
			}
			r.Println()
		}
		r.Println(output.FormatKeyValue("Order", strings.Join(order, " → ")))
	default:
		styles := r.Styles()
		r.Header(1, "Recompute Plan")
		for i, level := range levels {
			r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
			for _, id := range level {
				r.Printf("  %s\n", styles.FieldID.Render(id))
				if deps, _ := eng.Dependencies(id); len(deps) > 0 {
					r.Printf("    %s %s\n", styles.Muted.Render("reads:"), strings.Join(deps, ", "))
				}
			}
		}
		r.Println()
		r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d formulas", len(order))))
	}
	return nil
}
