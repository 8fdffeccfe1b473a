package state

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapformula/internal/testutil"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

var (
	compiledAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	savedAt    = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenAndMigrate(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	store.now = func() time.Time { return savedAt }
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func compile(t *testing.T, fieldID, source string) *formula.Program {
	t.Helper()
	c := &formula.Compiler{
		Schema: core.MapSchema{
			"fldPrice": {ID: "fldPrice", Type: core.FieldNumber},
			"fldQty":   {ID: "fldQty", Type: core.FieldNumber},
			"fldName":  {ID: "fldName", Type: core.FieldText},
		},
		Now: func() time.Time { return compiledAt },
	}
	p, err := c.Compile(fieldID, source)
	require.NoError(t, err)
	return p
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Close())

	assert.NoError(t, NewSQLiteStore(nil).Close(), "closing an unopened store is a no-op")
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"programs", "cell_values"} {
		rows, err := store.DB().QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		require.NoError(t, err, "table %s does not exist", table)
		_ = rows.Close()
	}

	version, err := store.GetMigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, store.Migrate(ctx), "migrating twice is a no-op")
}

func TestSQLiteStore_ProgramLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := compile(t, "fldTotal", "{fldPrice}*{fldQty}")
	require.NoError(t, store.SaveProgram(ctx, p))

	rec, err := store.GetProgram(ctx, "fldTotal")
	require.NoError(t, err)
	assert.Equal(t, p.ID(), rec.ID)
	assert.Equal(t, "fldTotal", rec.FieldID)
	assert.Equal(t, "{fldPrice}*{fldQty}", rec.Source)
	assert.Equal(t, "{fldPrice} * {fldQty}", rec.Canonical)
	assert.Equal(t, core.TypeNumber, rec.ResultType)
	assert.Equal(t, []string{"fldPrice", "fldQty"}, rec.Dependencies)
	assert.Empty(t, rec.Diagnostics)
	assert.True(t, compiledAt.Equal(rec.CompiledAt))
	assert.True(t, savedAt.Equal(rec.UpdatedAt))

	// saving again replaces the row for the field
	warn := compile(t, "fldTotal", `{fldPrice} = "x"`)
	require.NoError(t, store.SaveProgram(ctx, warn))
	rec, err = store.GetProgram(ctx, "fldTotal")
	require.NoError(t, err)
	assert.Equal(t, warn.ID(), rec.ID)
	assert.Equal(t, core.TypeBoolean, rec.ResultType)
	require.Len(t, rec.Diagnostics, 1)
	assert.Equal(t, core.SeverityWarning, rec.Diagnostics[0].Severity)
	assert.Equal(t, warn.Diagnostics()[0].Code, rec.Diagnostics[0].Code)

	require.NoError(t, store.SaveProgram(ctx, compile(t, "fldLabel", `UPPER({fldName})`)))
	list, err := store.ListPrograms(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "fldLabel", list[0].FieldID)
	assert.Equal(t, "fldTotal", list[1].FieldID)

	require.NoError(t, store.DeleteProgram(ctx, "fldLabel"))
	_, err = store.GetProgram(ctx, "fldLabel")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteProgram(ctx, "fldLabel"), ErrNotFound)

	adHoc, err := formula.Compile("1 + 1", nil)
	require.NoError(t, err)
	assert.Error(t, store.SaveProgram(ctx, adHoc))
}

func TestProgramRecord_Recompile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := compile(t, "fldTotal", "{fldPrice} * 2")
	require.NoError(t, store.SaveProgram(ctx, p))
	rec, err := store.GetProgram(ctx, "fldTotal")
	require.NoError(t, err)

	again, err := rec.Recompile(&formula.Compiler{
		Schema: core.MapSchema{"fldPrice": {ID: "fldPrice", Type: core.FieldNumber}},
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID(), again.ID())
	assert.Equal(t, p.Canonical(), again.Canonical())
	assert.Equal(t, core.Number(8), formula.Evaluate(again, formula.Row{"fldPrice": core.Number(4)}))
}

func TestSQLiteStore_RowValues(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"fldA", "fldB", "fldC", "fldD", "fldE", "fldF"} {
		require.NoError(t, store.SaveProgram(ctx, compile(t, id, "1")))
	}

	due := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)
	values := map[string]core.Value{
		"fldA": core.Number(12.5),
		"fldB": core.Text("hello"),
		"fldC": core.Bool(true),
		"fldD": core.Date(due),
		"fldE": core.Array(core.Text("x"), core.Number(2)),
		"fldF": core.ErrorValue(core.DivisionByZero, "division by zero"),
	}
	require.NoError(t, store.SaveRowValues(ctx, "rec1", values))

	got, err := store.GetRowValues(ctx, "rec1")
	require.NoError(t, err)
	require.Len(t, got, len(values))
	assert.Equal(t, core.Number(12.5), got["fldA"])
	assert.Equal(t, core.Text("hello"), got["fldB"])
	assert.Equal(t, core.Bool(true), got["fldC"])
	assert.True(t, due.Equal(got["fldD"].Time()))
	assert.Equal(t, core.Array(core.Text("x"), core.Number(2)), got["fldE"])
	require.True(t, got["fldF"].IsError())
	assert.Equal(t, core.DivisionByZero, got["fldF"].Err().Kind)
	assert.Equal(t, "division by zero", got["fldF"].Err().Message)

	// overwrite one value
	require.NoError(t, store.SaveRowValues(ctx, "rec1", map[string]core.Value{"fldA": core.Number(1)}))
	got, err = store.GetRowValues(ctx, "rec1")
	require.NoError(t, err)
	assert.Equal(t, core.Number(1), got["fldA"])

	empty, err := store.GetRowValues(ctx, "rec2")
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, store.SaveRowValues(ctx, "rec2", nil))

	// values need a stored program
	err = store.SaveRowValues(ctx, "rec1", map[string]core.Value{"fldNope": core.Number(1)})
	assert.Error(t, err)

	// deleting a program drops its values
	require.NoError(t, store.DeleteProgram(ctx, "fldB"))
	got, err = store.GetRowValues(ctx, "rec1")
	require.NoError(t, err)
	assert.NotContains(t, got, "fldB")
	assert.Len(t, got, 5)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()
	p := compile(t, "fldTotal", "1")

	assert.EqualError(t, store.SaveProgram(ctx, p), "database not opened")
	_, err := store.GetProgram(ctx, "fldTotal")
	assert.EqualError(t, err, "database not opened")
	_, err = store.ListPrograms(ctx)
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, store.DeleteProgram(ctx, "fldTotal"), "database not opened")
	assert.EqualError(t, store.SaveRowValues(ctx, "r", nil), "database not opened")
	_, err = store.GetRowValues(ctx, "r")
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, store.Migrate(ctx), "database not opened")
}

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, nil), mock
}

func TestSQLiteStore_FailurePaths(t *testing.T) {
	ctx := context.Background()
	p := compile(t, "fldTotal", "{fldPrice} + 1")

	tests := []struct {
		name     string
		setup    func(mock sqlmock.Sqlmock)
		run      func(s *SQLiteStore) error
		errMsg   string
		notFound bool
	}{
		{
			name: "save program exec error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO programs").WillReturnError(assert.AnError)
			},
			run:    func(s *SQLiteStore) error { return s.SaveProgram(ctx, p) },
			errMsg: "failed to save program fldTotal",
		},
		{
			name: "get program missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM programs WHERE field_id").
					WithArgs("fldTotal").
					WillReturnError(sql.ErrNoRows)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.GetProgram(ctx, "fldTotal")
				return err
			},
			notFound: true,
		},
		{
			name: "get program corrupt type",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "field_id", "source", "canonical", "result_type",
					"dependencies", "diagnostics", "compiled_at", "updated_at"}).
					AddRow("id", "fldTotal", "1", "1", "money", "[]", "[]", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z")
				mock.ExpectQuery("SELECT (.+) FROM programs WHERE field_id").WillReturnRows(rows)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.GetProgram(ctx, "fldTotal")
				return err
			},
			errMsg: `invalid result type "money"`,
		},
		{
			name: "list programs query error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM programs ORDER BY field_id").WillReturnError(assert.AnError)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.ListPrograms(ctx)
				return err
			},
			errMsg: "failed to list programs",
		},
		{
			name: "delete affects nothing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM programs").WithArgs("fldTotal").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			run:      func(s *SQLiteStore) error { return s.DeleteProgram(ctx, "fldTotal") },
			notFound: true,
		},
		{
			name: "save values begin error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			run: func(s *SQLiteStore) error {
				return s.SaveRowValues(ctx, "rec1", map[string]core.Value{"fldTotal": core.Number(1)})
			},
			errMsg: "failed to begin transaction",
		},
		{
			name: "save values exec error rolls back",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare("INSERT INTO cell_values").
					ExpectExec().
					WithArgs("rec1", "fldTotal", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				return s.SaveRowValues(ctx, "rec1", map[string]core.Value{"fldTotal": core.Number(1)})
			},
			errMsg: "failed to save fldTotal of row rec1",
		},
		{
			name: "save values commit error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare("INSERT INTO cell_values").
					ExpectExec().
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit().WillReturnError(assert.AnError)
			},
			run: func(s *SQLiteStore) error {
				return s.SaveRowValues(ctx, "rec1", map[string]core.Value{"fldTotal": core.Number(1)})
			},
			errMsg: "failed to commit values",
		},
		{
			name: "get values corrupt json",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"field_id", "value"}).AddRow("fldTotal", `{"kind":"blob"}`)
				mock.ExpectQuery("SELECT field_id, value FROM cell_values").WithArgs("rec1").WillReturnRows(rows)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.GetRowValues(ctx, "rec1")
				return err
			},
			errMsg: "invalid stored value for fldTotal of row rec1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)

			err := tt.run(store)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, errors.Is(err, ErrNotFound), err.Error())
			} else {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
