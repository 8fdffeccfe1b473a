package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/pkg/registry"
)

// FunctionsOptions holds options for the functions command.
type FunctionsOptions struct {
	Category string // Filter by category
}

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand() *cobra.Command {
	opts := &FunctionsOptions{}
	cmd := &cobra.Command{
		Use:   "functions [name]",
		Short: "List available formula functions",
		Long: `List the built-in formula functions with their signatures.

Functions listed in disabled_functions are left out. Names are
case-insensitive.`,
		Example: `  # List all functions
  leapformula functions

  # Show one function
  leapformula functions datetime_diff

  # List date functions as JSON
  leapformula functions --category date -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showFunction(cmd, args[0])
			}
			return listFunctions(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Category, "category", "c", "", "Filter by category: numeric, text, logical, date, array")
	_ = cmd.RegisterFlagCompletionFunc("category", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, len(registry.Categories))
		for i, c := range registry.Categories {
			out[i] = string(c)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func functionInfo(fn *registry.Function) output.FunctionInfo {
	return output.FunctionInfo{
		Name:        fn.Name,
		Aliases:     fn.Aliases,
		Category:    string(fn.Category),
		Signature:   fn.Signature(),
		Arity:       fn.Arity(),
		Description: fn.Description,
	}
}

func listFunctions(cmd *cobra.Command, opts *FunctionsOptions) error {
	cc := NewCommandContext(cmd)
	reg, err := cc.Cfg.Registry()
	if err != nil {
		return err
	}

	fns := reg.Functions()
	if opts.Category != "" {
		fns = reg.ByCategory(registry.Category(strings.ToLower(opts.Category)))
		if len(fns) == 0 {
			return fmt.Errorf("unknown category %q", opts.Category)
		}
	}

	infos := make([]output.FunctionInfo, len(fns))
	for i, fn := range fns {
		infos[i] = functionInfo(fn)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{info.Signature, info.Category, info.Description}
	}
	r.Table([]string{"Function", "Category", "Description"}, rows)
	return nil
}

func showFunction(cmd *cobra.Command, name string) error {
	cc := NewCommandContext(cmd)
	reg, err := cc.Cfg.Registry()
	if err != nil {
		return err
	}
	fn, ok := reg.Lookup(name)
	if !ok {
		return fmt.Errorf("function %q not found", name)
	}
	info := functionInfo(fn)

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(info)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, info.Name))
		r.Println()
		r.Println(output.FormatKeyValue("Signature", output.FormatCode(info.Signature)))
		r.Println(output.FormatKeyValue("Category", info.Category))
		if len(info.Aliases) > 0 {
			r.Println(output.FormatKeyValue("Aliases", strings.Join(info.Aliases, ", ")))
		}
		if info.Description != "" {
			r.Println()
			r.Println(info.Description)
		}
	default:
		styles := r.Styles()
		r.Println(styles.Bold.Render(info.Signature))
		r.Println(styles.Muted.Render(info.Category))
		if len(info.Aliases) > 0 {
			r.Println(styles.Muted.Render("aliases: " + strings.Join(info.Aliases, ", ")))
		}
		if info.Description != "" {
			r.Println(info.Description)
		}
	}
	return nil
}
