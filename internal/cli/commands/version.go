package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/config"
	"github.com/leapstack-labs/leapformula/pkg/registry"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Functions int    `json:"functions"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the leapformula version, the commit and date it was built from,
and the number of built-in formula functions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// version runs without loading leapformula.yaml, so only an
			// explicit --output flag changes the mode.
			mode := output.Mode(config.FromContext(cmd.Context()).OutputFormat)
			if f := cmd.Flag("output"); f != nil && f.Changed {
				mode = output.Mode(f.Value.String())
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			info.GoVersion = runtime.Version()
			info.Functions = registry.Default().Len()
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}

			r.Printf("leapformula v%s\n", info.Version)
			r.Println("Formula engine for computed fields")
			r.Println()
			fields := [][2]string{
				{"Commit", info.GitCommit},
				{"Built", info.BuildDate},
				{"Go", info.GoVersion},
				{"Functions", fmt.Sprint(info.Functions)},
			}
			for _, kv := range fields {
				if r.EffectiveMode() == output.ModeMarkdown {
					r.Println(output.FormatKeyValue(kv[0], kv[1]))
					continue
				}
				r.Printf("%s %s\n", r.Styles().Muted.Render(fmt.Sprintf("%-10s", kv[0]+":")), kv[1])
			}
			return nil
		},
	}
}
