package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapformula/internal/cli/output"
	"github.com/leapstack-labs/leapformula/internal/config"
	"github.com/leapstack-labs/leapformula/internal/engine"
	"github.com/leapstack-labs/leapformula/internal/loader"
	"github.com/leapstack-labs/leapformula/internal/state"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext reads the config and logger stored in the command
// context and creates a renderer for the configured output mode.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.FromContext(ctx)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// Project is a loaded workbook with its formulas registered.
type Project struct {
	Workbook *loader.Workbook
	Engine   *engine.Engine
	// Errors maps formula fields that failed to register to their
	// *formula.Errors or *core.CircularDependencyError.
	Errors map[string]error
}

// workbookPath returns the positional workbook argument, or the
// configured workbook.
func (c *CommandContext) workbookPath(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if c.Cfg.Workbook != "" {
		return c.Cfg.Workbook, nil
	}
	return "", errors.New("no workbook: pass a path or set workbook in " + config.ConfigFileName)
}

// newEngine creates an engine over schema using the configured limits.
func (c *CommandContext) newEngine(schema core.Schema) (*engine.Engine, error) {
	loc, err := c.Cfg.Location()
	if err != nil {
		return nil, err
	}
	reg, err := c.Cfg.Registry()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Logger:   c.Logger,
		Schema:   schema,
		Registry: reg,
		Workers:  c.Cfg.Workers,
		MaxDepth: c.Cfg.MaxDepth,
		Location: loc,
	}), nil
}

// LoadProject loads the workbook at path and registers its formulas.
// Formulas that fail to compile are collected in Project.Errors.
func (c *CommandContext) LoadProject(ctx context.Context, path string) (*Project, error) {
	loc, err := c.Cfg.Location()
	if err != nil {
		return nil, err
	}
	wb, err := loader.Load(path, loc)
	if err != nil {
		return nil, err
	}

	eng, err := c.newEngine(wb.Schema())
	if err != nil {
		return nil, err
	}

	regErr := eng.RegisterAll(ctx, wb.Formulas())
	fieldErrs, err := fieldErrors(regErr)
	if err != nil {
		return nil, err
	}

	c.Logger.Debug("loaded workbook",
		"path", path,
		"fields", len(wb.Fields),
		"rows", len(wb.Rows),
		"failed", len(fieldErrs))
	return &Project{Workbook: wb, Engine: eng, Errors: fieldErrs}, nil
}

// fieldErrors splits a RegisterAll error by field. Errors that belong to
// no field are joined and returned.
func fieldErrors(err error) (map[string]error, error) {
	out := make(map[string]error)
	if err == nil {
		return out, nil
	}

	list := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		list = joined.Unwrap()
	}

	var rest []error
	for _, e := range list {
		var fe *formula.Errors
		var ce *core.CircularDependencyError
		switch {
		case errors.As(e, &fe):
			out[fe.FieldID] = fe
		case errors.As(e, &ce):
			out[ce.FieldID] = ce
		default:
			rest = append(rest, e)
		}
	}
	return out, errors.Join(rest...)
}

// errorInfo describes a compile error for output.
func errorInfo(err error) *output.ErrorInfo {
	info := &output.ErrorInfo{Code: "Error", Message: err.Error()}
	var ce core.CompileError
	if errors.As(err, &ce) {
		info.Code = ce.Code()
		info.Message = ce.Error()
		if span := ce.Span(); span.IsValid() {
			info.Line = span.Start.Line
			info.Column = span.Start.Column
		}
	}
	return info
}

// openStore opens the configured state database, creating its directory.
func (c *CommandContext) openStore(ctx context.Context) (*state.SQLiteStore, error) {
	path := c.Cfg.StatePath
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store, err := state.OpenAndMigrate(ctx, path, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}
