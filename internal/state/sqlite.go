package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	// pure Go sqlite driver, registered as "sqlite"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger, now: time.Now}
}

// NewWithDB wraps an existing connection. The schema is not migrated.
func NewWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state store", "path", path)
	return nil
}

// OpenAndMigrate opens path and brings its schema up to date.
func OpenAndMigrate(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- Program operations ---

// SaveProgram inserts or replaces the stored program of p's field.
func (s *SQLiteStore) SaveProgram(ctx context.Context, p *formula.Program) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if p.FieldID() == "" {
		return fmt.Errorf("cannot save a program without a field id")
	}

	depsJSON, err := json.Marshal(p.Dependencies())
	if err != nil {
		return fmt.Errorf("failed to encode dependencies: %w", err)
	}
	diagJSON, err := json.Marshal(p.Diagnostics())
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO programs (id, field_id, source, canonical, result_type, dependencies, diagnostics, compiled_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(field_id) DO UPDATE SET
			id = excluded.id,
			source = excluded.source,
			canonical = excluded.canonical,
			result_type = excluded.result_type,
			dependencies = excluded.dependencies,
			diagnostics = excluded.diagnostics,
			compiled_at = excluded.compiled_at,
			updated_at = excluded.updated_at`,
		p.ID(), p.FieldID(), p.Source(), p.Canonical(), p.ResultType().String(),
		string(depsJSON), string(diagJSON), formatTime(p.CompiledAt()), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save program %s: %w", p.FieldID(), err)
	}

	s.logger.Debug("saved program", "field", p.FieldID(), "program", p.ID())
	return nil
}

const programColumns = `id, field_id, source, canonical, result_type, dependencies, diagnostics, compiled_at, updated_at`

// GetProgram returns the stored program of fieldID.
func (s *SQLiteStore) GetProgram(ctx context.Context, fieldID string) (*ProgramRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE field_id = ?`, fieldID)
	rec, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("program for field %s: %w", fieldID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program: %w", err)
	}
	return rec, nil
}

// ListPrograms returns every stored program ordered by field id.
func (s *SQLiteStore) ListPrograms(ctx context.Context) ([]*ProgramRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+programColumns+` FROM programs ORDER BY field_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ProgramRecord
	for rows.Next() {
		rec, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return out, nil
}

// DeleteProgram removes the stored program of fieldID and its cell values.
func (s *SQLiteStore) DeleteProgram(ctx context.Context, fieldID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE field_id = ?`, fieldID)
	if err != nil {
		return fmt.Errorf("failed to delete program: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete program: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("program for field %s: %w", fieldID, ErrNotFound)
	}

	s.logger.Debug("deleted program", "field", fieldID)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(sc scanner) (*ProgramRecord, error) {
	var (
		rec                            ProgramRecord
		resultType, depsJSON, diagJSON string
		compiledAt, updatedAt          string
	)
	if err := sc.Scan(&rec.ID, &rec.FieldID, &rec.Source, &rec.Canonical, &resultType,
		&depsJSON, &diagJSON, &compiledAt, &updatedAt); err != nil {
		return nil, err
	}

	t, ok := core.ParseType(resultType)
	if !ok {
		return nil, fmt.Errorf("invalid result type %q", resultType)
	}
	rec.ResultType = t
	if err := json.Unmarshal([]byte(depsJSON), &rec.Dependencies); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if err := json.Unmarshal([]byte(diagJSON), &rec.Diagnostics); err != nil {
		return nil, fmt.Errorf("invalid diagnostics: %w", err)
	}
	var err error
	if rec.CompiledAt, err = parseTime(compiledAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// --- Cell value operations ---

// SaveRowValues stores computed values of one row in a single transaction.
// Every field must have a stored program.
func (s *SQLiteStore) SaveRowValues(ctx context.Context, rowID string, values map[string]core.Value) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cell_values (row_id, field_id, value, computed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(row_id, field_id) DO UPDATE SET value = excluded.value, computed_at = excluded.computed_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := formatTime(s.now())
	for _, fieldID := range slices.Sorted(maps.Keys(values)) {
		raw, err := json.Marshal(values[fieldID])
		if err != nil {
			return fmt.Errorf("failed to encode %s of row %s: %w", fieldID, rowID, err)
		}
		if _, err := stmt.ExecContext(ctx, rowID, fieldID, string(raw), now); err != nil {
			return fmt.Errorf("failed to save %s of row %s: %w", fieldID, rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit values: %w", err)
	}
	return nil
}

// GetRowValues returns the stored values of one row keyed by field id.
func (s *SQLiteStore) GetRowValues(ctx context.Context, rowID string) (map[string]core.Value, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT field_id, value FROM cell_values WHERE row_id = ? ORDER BY field_id`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get row values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]core.Value)
	for rows.Next() {
		var fieldID, raw string
		if err := rows.Scan(&fieldID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		var v core.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid stored value for %s of row %s: %w", fieldID, rowID, err)
		}
		out[fieldID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get row values: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
