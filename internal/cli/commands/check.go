package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/pkg/core"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [workbook]",
		Short: "Compile every formula in a workbook",
		Long: `Compile every formula field of a workbook and report syntax errors,
type errors, unknown references and circular dependencies.

Warnings do not fail the check. The command exits non-zero if any
formula fails to compile.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Check the workbook named in leapformula.yaml
  leapformula check

  # Check a specific workbook
  leapformula check orders.yaml

  # Output as JSON
  leapformula check orders.yaml --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cc := NewCommandContext(cmd)
	path, err := cc.workbookPath(args)
	if err != nil {
		return err
	}
	proj, err := cc.LoadProject(cmd.Context(), path)
	if err != nil {
		return err
	}

	result := buildCheckOutput(proj)
	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(result); err != nil {
			return err
		}
	case output.ModeMarkdown:
		checkMarkdown(r, result)
	default:
		checkText(r, result)
	}

	if result.Summary.Invalid > 0 {
		return fmt.Errorf("%d of %d formulas failed to compile", result.Summary.Invalid, result.Summary.Total)
	}
	return nil
}

func buildCheckOutput(proj *Project) output.CheckOutput {
	out := output.CheckOutput{
		Workbook: proj.Workbook.Path,
		Fields:   []output.FieldCheck{},
	}
	for _, f := range proj.Workbook.Fields {
		if f.Type != core.FieldFormula {
			continue
		}
		fc := output.FieldCheck{
			FieldID:      f.ID,
			Source:       f.Formula,
			Dependencies: []string{},
			Diagnostics:  []core.Diagnostic{},
		}
		out.Summary.Total++

		if err, failed := proj.Errors[f.ID]; failed {
			fc.Error = errorInfo(err)
			out.Summary.Invalid++
			out.Fields = append(out.Fields, fc)
			continue
		}

		prog, err := proj.Engine.Program(f.ID)
		if err != nil {
			fc.Error = errorInfo(err)
			out.Summary.Invalid++
			out.Fields = append(out.Fields, fc)
			continue
		}
		fc.Canonical = prog.Canonical()
		fc.ResultType = prog.ResultType().String()
		fc.Dependencies = append(fc.Dependencies, prog.Dependencies()...)
		fc.Diagnostics = append(fc.Diagnostics, prog.Diagnostics()...)
		for _, d := range fc.Diagnostics {
			if d.Severity == core.SeverityWarning {
				out.Summary.Warnings++
			}
		}
		out.Summary.Valid++
		out.Fields = append(out.Fields, fc)
	}
	return out
}

func checkText(r *output.Renderer, result output.CheckOutput) {
	styles := r.Styles()
	r.Header(1, "Checking "+result.Workbook)
	for _, fc := range result.Fields {
		if fc.Error != nil {
			r.StatusLine(fc.FieldID, "failed", fc.Error.Code)
			r.Printf("    %s\n", styles.Error.Render(fc.Error.Message))
			continue
		}
		r.StatusLine(fc.FieldID, "success", fc.ResultType)
		for _, d := range fc.Diagnostics {
			r.Printf("    %s\n", styles.Warning.Render(d.String()))
		}
	}
	r.Println()
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d formulas, %d valid, %d invalid, %d warnings",
		result.Summary.Total, result.Summary.Valid, result.Summary.Invalid, result.Summary.Warnings)))
}

func checkMarkdown(r *output.Renderer, result output.CheckOutput) {
	r.Println(output.FormatHeader(1, "Check: "+result.Workbook))
	r.Println()
	for _, fc := range result.Fields {
		r.Println(output.FormatHeader(2, fc.FieldID))
		r.Println()
		r.Println(output.FormatKeyValue("Formula", output.FormatCode(fc.Source)))
		if fc.Error != nil {
			r.Println(output.FormatKeyValue("Status", "failed"))
			r.Println(output.FormatKeyValue("Error", fmt.Sprintf("%s (%s)", fc.Error.Message, fc.Error.Code)))
			r.Println()
			continue
		}
		r.Println(output.FormatKeyValue("Status", "ok"))
		r.Println(output.FormatKeyValue("Type", fc.ResultType))
		if len(fc.Dependencies) > 0 {
			r.Println(output.FormatKeyValue("Dependencies", strings.Join(fc.Dependencies, ", ")))
		}
		for _, d := range fc.Diagnostics {
			r.Println(output.FormatKeyValue(d.Severity.String(), d.Message))
		}
		r.Println()
	}
	r.Println(output.FormatHeader(2, "Summary"))
	r.Println()
	r.Println(output.FormatKeyValue("Total", fmt.Sprintf("%d", result.Summary.Total)))
	r.Println(output.FormatKeyValue("Valid", fmt.Sprintf("%d", result.Summary.Valid)))
	r.Println(output.FormatKeyValue("Invalid", fmt.Sprintf("%d", result.Summary.Invalid)))
	r.Println(output.FormatKeyValue("Warnings", fmt.Sprintf("%d", result.Summary.Warnings)))
}
