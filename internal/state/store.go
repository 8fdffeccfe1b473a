// Package state persists compiled formula artifacts and computed cell values
// in SQLite. The formula engine itself never writes anything; the CLI saves
// through this package when asked to.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// ErrNotFound is returned when a program does not exist.
var ErrNotFound = errors.New("not found")

// Store is the artifact store used by the CLI.
type Store interface {
	SaveProgram(ctx context.Context, p *formula.Program) error
	GetProgram(ctx context.Context, fieldID string) (*ProgramRecord, error)
	ListPrograms(ctx context.Context) ([]*ProgramRecord, error)
	DeleteProgram(ctx context.Context, fieldID string) error

	SaveRowValues(ctx context.Context, rowID string, values map[string]core.Value) error
	GetRowValues(ctx context.Context, rowID string) (map[string]core.Value, error)

	Close() error
}

// ProgramRecord is a stored compiled program. The tree itself is not
// stored; Source is recompiled when the program is needed again.
type ProgramRecord struct {
	ID           string
	FieldID      string
	Source       string
	Canonical    string
	ResultType   core.Type
	Dependencies []string
	Diagnostics  []core.Diagnostic
	CompiledAt   time.Time
	UpdatedAt    time.Time
}

// Recompile compiles the stored source again, keeping the program id.
func (r *ProgramRecord) Recompile(c *formula.Compiler) (*formula.Program, error) {
	return c.Recompile(r.ID, r.FieldID, r.Source)
}

var _ Store = (*SQLiteStore)(nil)
