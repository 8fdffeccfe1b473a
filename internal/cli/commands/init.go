package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapformula project",
		Long: `Initialize a new leapformula project.

This creates:
  - leapformula.yaml configuration file
  - workbook.yaml with a small starter workbook
  - .gitignore excluding the state directory

Use --example to create an invoices workbook with chained formulas
covering numbers, dates, text and multi-select values.`,
		Example: `  # Initialize in current directory
  leapformula init

  # Initialize with the invoices example
  leapformula init --example

  # Initialize in a new directory
  leapformula init my-project --example

  # Force overwrite existing config
  leapformula init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := config.FromContext(cmd.Context())
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			template := templateMinimal
			if example {
				template = templateExample
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create the invoices example workbook")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	tmpl, err := loadTemplate(template)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	files, err := tmpl.Install(dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	sections := []struct {
		kind  fileKind
		title string
	}{
		{kindConfig, "Configuration"},
		{kindWorkbook, "Workbooks"},
	}
	for _, sec := range sections {
		r.Header(2, sec.title)
		for _, f := range files {
			if f.Kind != sec.kind {
				continue
			}
			status := "success"
			if f.Status == fileKept {
				status = "skipped"
			}
			r.StatusLine(f.Path, status, f.Status)
		}
		r.Println("")
	}

	r.Success("leapformula project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  leapformula check       Compile every formula")
	r.Println("  leapformula recompute   Compute formula values for all rows")
	r.Println("  leapformula plan        Show the recompute order")
	r.Println("  leapformula repl        Try formulas interactively")

	return nil
}
