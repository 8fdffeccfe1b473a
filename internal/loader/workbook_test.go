package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersYAML = `name: orders
fields:
  - id: fldItem
    name: Item
    type: text
  - id: fldPrice
    name: Price
    type: currency
  - id: fldQty
    type: number
  - id: fldPaid
    name: Paid
    type: checkbox
  - id: fldDue
    name: Due
    type: date
  - id: fldTags
    name: Tags
    type: multiSelect
  - id: fldTotal
    name: Total
    type: formula
    formula: "{fldPrice} * {fldQty}"
rows:
  - id: rec1
    values:
      fldItem: Widget
      fldPrice: 12.5
      fldQty: 2
      fldPaid: true
      fldDue: 2024-01-31
      fldTags: [red, blue]
  - values:
      fldItem: 42
      fldPrice: ~
      fldDue: "2024-02-01 09:30"
      fldTags: green
`

func TestParse(t *testing.T) {
	wb, err := Parse([]byte(ordersYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "orders", wb.Name)
	require.Len(t, wb.Fields, 7)
	assert.Equal(t, Field{ID: "fldQty", Name: "fldQty", Type: core.FieldNumber, Line: 9}, wb.Fields[2])

	total, ok := wb.Field("fldTotal")
	require.True(t, ok)
	assert.Equal(t, core.FieldFormula, total.Type)
	assert.Equal(t, "{fldPrice} * {fldQty}", total.Formula)
	_, ok = wb.Field("fldNope")
	assert.False(t, ok)

	require.Len(t, wb.Rows, 2)
	first := wb.Rows[0]
	assert.Equal(t, "rec1", first.ID)
	assert.Equal(t, core.Text("Widget"), first.Values["fldItem"])
	assert.Equal(t, core.Number(12.5), first.Values["fldPrice"])
	assert.Equal(t, core.Number(2), first.Values["fldQty"])
	assert.Equal(t, core.Bool(true), first.Values["fldPaid"])
	assert.True(t, first.Values["fldDue"].Time().Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, core.Array(core.Text("red"), core.Text("blue")), first.Values["fldTags"])

	second, ok := wb.Row("row2")
	require.True(t, ok)
	assert.Equal(t, core.Text("42"), second.Values["fldItem"])
	assert.NotContains(t, second.Values, "fldPrice", "null values are left out")
	assert.True(t, second.Values["fldDue"].Time().Equal(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, core.Array(core.Text("green")), second.Values["fldTags"])
}

func TestParse_Location(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	wb, err := Parse([]byte(ordersYAML), loc)
	require.NoError(t, err)

	due := wb.Rows[0].Values["fldDue"].Time()
	assert.True(t, due.Equal(time.Date(2024, 1, 31, 5, 0, 0, 0, time.UTC)))
}

func TestWorkbookAccessors(t *testing.T) {
	wb, err := Parse([]byte(ordersYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"fldTotal": "{fldPrice} * {fldQty}"}, wb.Formulas())
	assert.Equal(t, []string{"fldItem", "fldPrice", "fldQty", "fldPaid", "fldDue", "fldTags"}, wb.Inputs())

	schema := wb.Schema()
	meta, ok := schema.ResolveField("fldPrice")
	require.True(t, ok)
	assert.Equal(t, core.TypeNumber, meta.ValueType())
	meta, ok = schema.ResolveField("fldTotal")
	require.True(t, ok)
	assert.Equal(t, core.TypeAny, meta.ValueType())

	rows := wb.RowValues()
	require.Len(t, rows, 2)
	assert.Equal(t, core.Number(2), rows[0]["fldQty"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
		line    int
	}{
		{
			name:    "empty",
			yaml:    "",
			wantMsg: "workbook is empty",
		},
		{
			name:    "unknown top-level key",
			yaml:    "name: x\ncolumns: []\n",
			wantMsg: "field columns not found",
		},
		{
			name:    "unknown field key",
			yaml:    "fields:\n  - id: fldA\n    type: number\n    width: 3\n",
			wantMsg: "field width not found",
		},
		{
			name:    "bad field id",
			yaml:    "fields:\n  - id: price\n    type: number\n",
			wantMsg: `invalid field id "price"`,
			line:    2,
		},
		{
			name:    "unknown type",
			yaml:    "fields:\n  - id: fldA\n    type: money\n",
			wantMsg: `unknown type "money"`,
			line:    2,
		},
		{
			name:    "formula without source",
			yaml:    "fields:\n  - id: fldA\n    type: formula\n",
			wantMsg: "formula fields need a formula",
		},
		{
			name:    "formula on input",
			yaml:    "fields:\n  - id: fldA\n    type: number\n    formula: \"1\"\n",
			wantMsg: "only formula fields can have a formula",
		},
		{
			name:    "duplicate field",
			yaml:    "fields:\n  - id: fldA\n    type: number\n  - id: fldA\n    type: text\n",
			wantMsg: `duplicate field id "fldA"`,
			line:    4,
		},
		{
			name:    "duplicate row",
			yaml:    "fields:\n  - id: fldA\n    type: number\nrows:\n  - id: r\n  - id: r\n",
			wantMsg: `duplicate row id "r"`,
			line:    6,
		},
		{
			name:    "unknown value field",
			yaml:    "fields:\n  - id: fldA\n    type: number\nrows:\n  - values:\n      fldB: 1\n",
			wantMsg: `row row1: unknown field "fldB"`,
			line:    6,
		},
		{
			name:    "value for formula",
			yaml:    "fields:\n  - id: fldA\n    type: formula\n    formula: \"1\"\nrows:\n  - values:\n      fldA: 1\n",
			wantMsg: "cannot hold a value",
		},
		{
			name:    "not a number",
			yaml:    "fields:\n  - id: fldA\n    type: number\nrows:\n  - values:\n      fldA: lots\n",
			wantMsg: `"lots" is not a number`,
		},
		{
			name:    "not a boolean",
			yaml:    "fields:\n  - id: fldA\n    type: checkbox\nrows:\n  - values:\n      fldA: maybe\n",
			wantMsg: `"maybe" is not a boolean`,
		},
		{
			name:    "not a date",
			yaml:    "fields:\n  - id: fldA\n    type: date\nrows:\n  - values:\n      fldA: soon\n",
			wantMsg: `"soon" is not a date`,
		},
		{
			name:    "list for scalar",
			yaml:    "fields:\n  - id: fldA\n    type: text\nrows:\n  - values:\n      fldA: [a]\n",
			wantMsg: "expected a single value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), nil)
			require.Error(t, err)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Contains(t, le.Message, tt.wantMsg)
			if tt.line > 0 {
				assert.Equal(t, tt.line, le.Line)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ordersYAML), 0o600))

	wb, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, wb.Path)
	assert.Len(t, wb.Rows, 2)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("fields:\n  - id: nope\n    type: text\n"), 0o600))
	_, err = Load(bad, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad+":2:")

	_, err = Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadError_Error(t *testing.T) {
	assert.Equal(t, "a.yaml:3: boom", (&LoadError{File: "a.yaml", Line: 3, Message: "boom"}).Error())
	assert.Equal(t, "a.yaml: boom", (&LoadError{File: "a.yaml", Message: "boom"}).Error())
	assert.Equal(t, "line 3: boom", (&LoadError{Line: 3, Message: "boom"}).Error())
	assert.Equal(t, "boom", (&LoadError{Message: "boom"}).Error())
}
