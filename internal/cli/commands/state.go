package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/state"
)

// NewStateCommand creates the state command and its subcommands.
func NewStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect saved programs and values",
		Long: `Inspect the state database written by recompute --save.

The database location is set by state_path (default .leapformula/state.db).`,
	}
	cmd.AddCommand(newStateProgramsCommand(), newStateValuesCommand(), newStateForgetCommand())
	return cmd
}

func newStateProgramsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "programs [field]",
		Short: "List saved programs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			ctx := cmd.Context()
			store, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var records []*state.ProgramRecord
			if len(args) == 1 {
				rec, err := store.GetProgram(ctx, args[0])
				if err != nil {
					return err
				}
				records = append(records, rec)
			} else if records, err = store.ListPrograms(ctx); err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				infos := make([]output.FieldCheck, len(records))
				for i, rec := range records {
					infos[i] = output.FieldCheck{
						FieldID:      rec.FieldID,
						Source:       rec.Source,
						Canonical:    rec.Canonical,
						ResultType:   rec.ResultType.String(),
						Dependencies: rec.Dependencies,
						Diagnostics:  rec.Diagnostics,
					}
				}
				return r.JSON(infos)
			}
			if len(records) == 0 {
				r.Muted("no saved programs")
				return nil
			}
			rows := make([][]string, len(records))
			for i, rec := range records {
				rows[i] = []string{rec.FieldID, rec.Canonical, rec.ResultType.String(), listOrNone(rec.Dependencies),
					rec.UpdatedAt.Local().Format("2006-01-02 15:04:05")}
			}
			r.Table([]string{"field", "formula", "type", "reads", "updated"}, rows)
			return nil
		},
	}
}

func newStateValuesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "values <row>",
		Short: "Show saved values of a row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			ctx := cmd.Context()
			store, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			values, err := store.GetRowValues(ctx, args[0])
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.RowResult{ID: args[0], Values: values})
			}
			if len(values) == 0 {
				r.Muted(fmt.Sprintf("no saved values for row %s", args[0]))
				return nil
			}
			ids := make([]string, 0, len(values))
			for id := range values {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			rows := make([][]string, len(ids))
			for i, id := range ids {
				rows[i] = []string{id, describeValue(values[id])}
			}
			r.Table([]string{"field", "value"}, rows)
			return nil
		},
	}
}

func newStateForgetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <field>",
		Short: "Delete a saved program and its values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			ctx := cmd.Context()
			store, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteProgram(ctx, args[0]); err != nil {
				if errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("no saved program for %s", args[0])
				}
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("forgot %s", args[0]))
			return nil
		},
	}
}
