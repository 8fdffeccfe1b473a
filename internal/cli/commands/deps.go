package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/engine"
)

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps <field>",
		Short: "Show the direct dependencies and dependents of a field",
		Long: `Show which fields a formula reads and which formulas read the field.

Input fields have no dependencies but may have dependents.`,
		Example: `  # Show dependencies of a formula field
  leapformula deps fldTotal

  # Output as JSON
  leapformula deps fldPrice -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, args[0])
		},
	}
	return cmd
}

func runDeps(cmd *cobra.Command, fieldID string) error {
	cc := NewCommandContext(cmd)
	path, err := cc.workbookPath(nil)
	if err != nil {
		return err
	}
	proj, err := cc.LoadProject(cmd.Context(), path)
	if err != nil {
		return err
	}
	if _, ok := proj.Workbook.Field(fieldID); !ok {
		return fmt.Errorf("field %q not found in %s", fieldID, path)
	}
	if ferr, failed := proj.Errors[fieldID]; failed {
		return ferr
	}

	deps, err := proj.Engine.Dependencies(fieldID)
	if err != nil && !errors.Is(err, engine.ErrUnknownField) {
		return err
	}
	result := output.DepsOutput{
		FieldID:      fieldID,
		Dependencies: append([]string{}, deps...),
		Dependents:   append([]string{}, proj.Engine.Dependents(fieldID)...),
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fieldID))
		r.Println()
		r.Println(output.FormatKeyValue("Dependencies", listOrNone(result.Dependencies)))
		r.Println(output.FormatKeyValue("Dependents", listOrNone(result.Dependents)))
	default:
		styles := r.Styles()
		r.Println(styles.FieldID.Render(fieldID))
		r.Printf("  %s %s\n", styles.Muted.Render("depends on:"), listOrNone(result.Dependencies))
		r.Printf("  %s %s\n", styles.Muted.Render("used by:"), listOrNone(result.Dependents))
	}
	return nil
}

func listOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
