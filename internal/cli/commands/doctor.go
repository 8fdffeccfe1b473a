package commands

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor [workbook]",
		Short: "Run a workbook health check",
		Long: `Analyze a workbook for problems that make formulas fail or go stale.

The report includes:
- Workbook summary (fields, formulas, rows, dependency depth)
- Health checks grouped by category (Formulas, Graph, Data, State)
- Health score (0-100)
- Actionable recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  leapformula doctor

  # Output as JSON
  leapformula doctor -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, args)
		},
	}
	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         WorkbookSummary `json:"summary"`
	HealthChecks    []HealthCheck   `json:"health_checks"`
	Score           int             `json:"score"`
	Recommendations []string        `json:"recommendations"`
	IssueCount      int             `json:"issue_count"`
}

// WorkbookSummary contains workbook-level statistics.
type WorkbookSummary struct {
	Fields   int `json:"fields"`
	Formulas int `json:"formulas"`
	Rows     int `json:"rows"`
	Depth    int `json:"depth"`
	Edges    int `json:"edges"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

type doctorRule struct {
	id, name, group string
	severity        core.Severity
	recommendation  string
	run             func(ctx context.Context, cc *CommandContext, proj *Project) ([]string, error)
}

var doctorRules = []doctorRule{
	{
		id: "FD01", name: "Formulas compile", group: "formulas",
		severity:       core.SeverityError,
		recommendation: "Fix formulas that fail to compile; run 'leapformula check' for positions",
		run:            checkCompileErrors,
	},
	{
		id: "FD02", name: "No circular references", group: "formulas",
		severity:       core.SeverityError,
		recommendation: "Break circular references so every formula can be ordered",
		run:            checkCycles,
	},
	{
		id: "FD03", name: "No compile warnings", group: "formulas",
		severity:       core.SeverityWarning,
		recommendation: "Review formula warnings; they usually mean an implicit conversion",
		run:            checkWarnings,
	},
	{
		id: "FG01", name: "Inputs are referenced", group: "graph",
		severity:       core.SeverityWarning,
		recommendation: "Remove input fields that no formula reads, or reference them",
		run:            checkUnusedInputs,
	},
	{
		id: "FR01", name: "Rows fill referenced inputs", group: "data",
		severity:       core.SeverityWarning,
		recommendation: "Fill input values that formulas read; empty inputs evaluate to #MISSING!",
		run:            checkMissingValues,
	},
	{
		id: "FS01", name: "Saved programs match workbook", group: "state",
		severity:       core.SeverityWarning,
		recommendation: "Run 'leapformula recompute --save' to refresh saved programs",
		run:            checkSavedPrograms,
	},
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cc := NewCommandContext(cmd)
	path, err := cc.workbookPath(args)
	if err != nil {
		return err
	}
	proj, err := cc.LoadProject(cmd.Context(), path)
	if err != nil {
		return err
	}

	out, err := buildDoctorOutput(cmd.Context(), cc, proj)
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	return nil
}

func buildDoctorOutput(ctx context.Context, cc *CommandContext, proj *Project) (*DoctorOutput, error) {
	out := &DoctorOutput{
		Summary:         buildWorkbookSummary(proj),
		HealthChecks:    make([]HealthCheck, 0, len(doctorRules)),
		Recommendations: []string{},
	}

	for _, rule := range doctorRules {
		details, err := rule.run(ctx, cc, proj)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.id, err)
		}
		status := "pass"
		if len(details) > 0 {
			status = "warn"
			if rule.severity == core.SeverityError {
				status = "error"
			}
			out.Recommendations = append(out.Recommendations, rule.recommendation)
		}
		out.HealthChecks = append(out.HealthChecks, HealthCheck{
			RuleID:     rule.id,
			Name:       rule.name,
			Group:      rule.group,
			Status:     status,
			IssueCount: len(details),
			Details:    details,
		})
		out.IssueCount += len(details)
	}

	out.Score = calculateHealthScore(out.HealthChecks, out.Summary.Formulas)
	if len(out.Recommendations) > 5 {
		out.Recommendations = out.Recommendations[:5]
	}
	return out, nil
}

func buildWorkbookSummary(proj *Project) WorkbookSummary {
	stats := proj.Engine.Stats()
	summary := WorkbookSummary{
		Fields:   len(proj.Workbook.Fields),
		Formulas: len(proj.Workbook.Formulas()),
		Rows:     len(proj.Workbook.Rows),
		Edges:    stats.Edges,
	}
	if levels, err := proj.Engine.Levels(); err == nil {
		summary.Depth = len(levels)
	}
	return summary
}

func checkCompileErrors(_ context.Context, _ *CommandContext, proj *Project) ([]string, error) {
	var details []string
	for _, id := range slices.Sorted(maps.Keys(proj.Errors)) {
		var ce *core.CircularDependencyError
		if errors.As(proj.Errors[id], &ce) {
			continue
		}
		info := errorInfo(proj.Errors[id])
		details = append(details, fmt.Sprintf("%s: %s", id, info.Message))
	}
	return details, nil
}

func checkCycles(_ context.Context, _ *CommandContext, proj *Project) ([]string, error) {
	var details []string
	for _, id := range slices.Sorted(maps.Keys(proj.Errors)) {
		var ce *core.CircularDependencyError
		if errors.As(proj.Errors[id], &ce) {
			details = append(details, ce.Error())
		}
	}
	return details, nil
}

func checkWarnings(_ context.Context, _ *CommandContext, proj *Project) ([]string, error) {
	var details []string
	for _, p := range proj.Engine.Programs() {
		for _, d := range p.Diagnostics() {
			if d.Severity == core.SeverityWarning {
				details = append(details, fmt.Sprintf("%s: %s", p.FieldID(), d.Message))
			}
		}
	}
	return details, nil
}

func checkUnusedInputs(_ context.Context, _ *CommandContext, proj *Project) ([]string, error) {
	var details []string
	for _, id := range proj.Workbook.Inputs() {
		if len(proj.Engine.Dependents(id)) == 0 {
			details = append(details, id+" is not referenced by any formula")
		}
	}
	return details, nil
}

// referencedInputs returns the input fields read by registered formulas.
func referencedInputs(proj *Project) []string {
	inputs := proj.Workbook.Inputs()
	var out []string
	for _, p := range proj.Engine.Programs() {
		for _, dep := range p.Dependencies() {
			if slices.Contains(inputs, dep) && !slices.Contains(out, dep) {
				out = append(out, dep)
			}
		}
	}
	slices.Sort(out)
	return out
}

func checkMissingValues(_ context.Context, _ *CommandContext, proj *Project) ([]string, error) {
	refs := referencedInputs(proj)
	var details []string
	for _, row := range proj.Workbook.Rows {
		var missing []string
		for _, id := range refs {
			if _, ok := row.Values[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			details = append(details, fmt.Sprintf("row %s has no value for %s", row.ID, strings.Join(missing, ", ")))
		}
	}
	return details, nil
}

// checkSavedPrograms compares saved programs against the workbook. A
// missing state database is not an issue.
func checkSavedPrograms(ctx context.Context, cc *CommandContext, proj *Project) ([]string, error) {
	if cc.Cfg.StatePath == "" || cc.Cfg.StatePath == ":memory:" {
		return nil, nil
	}
	if _, err := os.Stat(cc.Cfg.StatePath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	store, err := cc.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	saved, err := store.ListPrograms(ctx)
	if err != nil {
		return nil, err
	}
	formulas := proj.Workbook.Formulas()
	var details []string
	for _, rec := range saved {
		source, ok := formulas[rec.FieldID]
		switch {
		case !ok:
			details = append(details, rec.FieldID+" is saved but no longer in the workbook")
		case source != rec.Source:
			details = append(details, rec.FieldID+" changed since it was saved")
		}
	}
	return details, nil
}

// calculateHealthScore computes a health score from 0-100. Errors count
// double, and each issue weighs less in larger workbooks.
func calculateHealthScore(checks []HealthCheck, formulaCount int) int {
	score := 100.0

	penalty := 5.0
	switch {
	case formulaCount > 100:
		penalty = 1.0
	case formulaCount > 50:
		penalty = 2.0
	case formulaCount > 10:
		penalty = 3.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * penalty * 2
		case "warn":
			score -= float64(check.IssueCount) * penalty
		}
	}

	return int(max(0, min(100, score)))
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println(styles.Header.Render("Workbook Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println()

	r.Println(styles.Header2.Render("Workbook Summary"))
	r.Printf("   Fields: %d | Formulas: %d | Rows: %d\n", out.Summary.Fields, out.Summary.Formulas, out.Summary.Rows)
	r.Printf("   Depth: %d levels | Edges: %d\n", out.Summary.Depth, out.Summary.Edges)
	r.Println()

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println()

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.Render("✓")
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println()

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))

	if len(out.Recommendations) > 0 {
		r.Println()
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println(output.FormatHeader(1, "Workbook Health Report"))
	r.Println()

	r.Println(output.FormatHeader(2, "Workbook Summary"))
	r.Println()
	r.Println(output.FormatKeyValue("Fields", fmt.Sprint(out.Summary.Fields)))
	r.Println(output.FormatKeyValue("Formulas", fmt.Sprint(out.Summary.Formulas)))
	r.Println(output.FormatKeyValue("Rows", fmt.Sprint(out.Summary.Rows)))
	r.Println(output.FormatKeyValue("Depth", fmt.Sprintf("%d levels", out.Summary.Depth)))
	r.Println(output.FormatKeyValue("Edges", fmt.Sprint(out.Summary.Edges)))
	r.Println()

	r.Println(output.FormatHeader(2, "Health Checks"))
	r.Println()

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(output.FormatHeader(3, titleCaser.String(currentGroup)))
			r.Println()
		}

		line := fmt.Sprintf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			line += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println(line)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println()

	r.Println(output.FormatHeader(2, "Health Score"))
	r.Println()
	r.Printf("**%d/100**\n", out.Score)

	if len(out.Recommendations) > 0 {
		r.Println()
		r.Println(output.FormatHeader(2, "Recommendations"))
		r.Println()
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
	}
}
