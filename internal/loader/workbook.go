// Package loader reads workbooks: YAML files declaring the fields of a table
// (inputs and formulas) and its rows of input values.
//
// A workbook looks like:
//
//	name: orders
//	fields:
//	  - id: fldPrice
//	    name: Price
//	    type: currency
//	  - id: fldTotal
//	    name: Total
//	    type: formula
//	    formula: "{fldPrice} * {fldQty}"
//	rows:
//	  - id: rec1
//	    values:
//	      fldPrice: 12.5
//	      fldQty: 2
//
// Unknown keys are rejected.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// Workbook is a parsed workbook file.
type Workbook struct {
	Name   string
	Path   string
	Fields []Field
	Rows   []Row
}

// Field declares one column of the table.
type Field struct {
	ID      string
	Name    string
	Type    core.FieldType
	Formula string
	Line    int
}

// Row is one record: its id and the values of its input fields.
type Row struct {
	ID     string
	Values formula.Row
}

// LoadError reports a problem in a workbook file.
type LoadError struct {
	File    string
	Line    int
	Message string
}

func (e *LoadError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// fieldIDPattern matches the ids formulas can reference.
var fieldIDPattern = regexp.MustCompile(`^fld[A-Za-z0-9]+$`)

type workbookYAML struct {
	Name   string      `yaml:"name"`
	Fields []fieldYAML `yaml:"fields"`
	Rows   []rowYAML   `yaml:"rows"`
}

type fieldYAML struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Formula string `yaml:"formula"`
	line    int
}

type rowYAML struct {
	ID     string               `yaml:"id"`
	Values map[string]yaml.Node `yaml:"values"`
	line   int
}

// positions is decoded alongside workbookYAML to recover the line of each
// field and row entry.
type positions struct {
	Fields []yaml.Node `yaml:"fields"`
	Rows   []yaml.Node `yaml:"rows"`
}

// Load reads and parses the workbook at path. Dates without a zone are
// interpreted in loc (UTC when nil).
func Load(path string, loc *time.Location) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	wb, err := Parse(data, loc)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	wb.Path = path
	return wb, nil
}

// Parse parses workbook YAML.
func Parse(data []byte, loc *time.Location) (*Workbook, error) {
	if loc == nil {
		loc = time.UTC
	}

	var raw workbookYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Message: "workbook is empty"}
		}
		return nil, &LoadError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	var pos positions
	if err := yaml.Unmarshal(data, &pos); err == nil {
		for i := range raw.Fields {
			if i < len(pos.Fields) {
				raw.Fields[i].line = pos.Fields[i].Line
			}
		}
		for i := range raw.Rows {
			if i < len(pos.Rows) {
				raw.Rows[i].line = pos.Rows[i].Line
			}
		}
	}

	wb := &Workbook{Name: raw.Name}
	byID := make(map[string]Field, len(raw.Fields))
	for _, f := range raw.Fields {
		field, err := convertField(f)
		if err != nil {
			return nil, err
		}
		if _, dup := byID[field.ID]; dup {
			return nil, &LoadError{Line: f.line, Message: fmt.Sprintf("duplicate field id %q", field.ID)}
		}
		byID[field.ID] = field
		wb.Fields = append(wb.Fields, field)
	}

	seen := make(map[string]bool, len(raw.Rows))
	for i, r := range raw.Rows {
		row := Row{ID: r.ID, Values: make(formula.Row, len(r.Values))}
		if row.ID == "" {
			row.ID = fmt.Sprintf("row%d", i+1)
		}
		if seen[row.ID] {
			return nil, &LoadError{Line: r.line, Message: fmt.Sprintf("duplicate row id %q", row.ID)}
		}
		seen[row.ID] = true

		for id, node := range r.Values {
			field, ok := byID[id]
			if !ok {
				return nil, &LoadError{Line: node.Line, Message: fmt.Sprintf("row %s: unknown field %q", row.ID, id)}
			}
			if field.Type == core.FieldFormula {
				return nil, &LoadError{Line: node.Line, Message: fmt.Sprintf("row %s: field %s is a formula and cannot hold a value", row.ID, id)}
			}
			v, ok, err := convertValue(field, &node, loc)
			if err != nil {
				return nil, &LoadError{Line: node.Line, Message: fmt.Sprintf("row %s: %v", row.ID, err)}
			}
			if ok {
				row.Values[id] = v
			}
		}
		wb.Rows = append(wb.Rows, row)
	}
	return wb, nil
}

func convertField(f fieldYAML) (Field, error) {
	fail := func(format string, args ...any) (Field, error) {
		return Field{}, &LoadError{Line: f.line, Message: fmt.Sprintf(format, args...)}
	}
	if !fieldIDPattern.MatchString(f.ID) {
		return fail("invalid field id %q, must match fld<letters or digits>", f.ID)
	}
	ft := core.FieldType(f.Type)
	if !ft.IsValid() {
		return fail("field %s: unknown type %q", f.ID, f.Type)
	}
	if ft == core.FieldFormula && f.Formula == "" {
		return fail("field %s: formula fields need a formula", f.ID)
	}
	if ft != core.FieldFormula && f.Formula != "" {
		return fail("field %s: only formula fields can have a formula", f.ID)
	}
	name := f.Name
	if name == "" {
		name = f.ID
	}
	return Field{ID: f.ID, Name: name, Type: ft, Formula: f.Formula, Line: f.line}, nil
}

// convertValue turns a YAML value into a core.Value of the field's type.
// Null values report ok=false and are left out of the row.
func convertValue(field Field, node *yaml.Node, loc *time.Location) (core.Value, bool, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return core.Value{}, false, nil
	}

	switch field.Type.ValueType() {
	case core.TypeArray:
		if node.Kind != yaml.SequenceNode {
			var s string
			if err := node.Decode(&s); err != nil {
				return core.Value{}, false, fmt.Errorf("field %s: expected a list of options", field.ID)
			}
			return core.Array(core.Text(s)), true, nil
		}
		var items []string
		if err := node.Decode(&items); err != nil {
			return core.Value{}, false, fmt.Errorf("field %s: expected a list of options", field.ID)
		}
		vals := make([]core.Value, len(items))
		for i, s := range items {
			vals[i] = core.Text(s)
		}
		return core.Array(vals...), true, nil
	}

	if node.Kind != yaml.ScalarNode {
		return core.Value{}, false, fmt.Errorf("field %s: expected a single value", field.ID)
	}

	switch field.Type.ValueType() {
	case core.TypeNumber:
		var f float64
		if err := node.Decode(&f); err != nil {
			return core.Value{}, false, fmt.Errorf("field %s: %q is not a number", field.ID, node.Value)
		}
		return core.Number(f), true, nil
	case core.TypeBoolean:
		var b bool
		if err := node.Decode(&b); err != nil {
			return core.Value{}, false, fmt.Errorf("field %s: %q is not a boolean", field.ID, node.Value)
		}
		return core.Bool(b), true, nil
	case core.TypeDate:
		t, ok := core.ParseDate(node.Value, loc)
		if !ok {
			return core.Value{}, false, fmt.Errorf("field %s: %q is not a date", field.ID, node.Value)
		}
		return core.Date(t), true, nil
	default:
		return core.Text(node.Value), true, nil
	}
}

// Field returns the field with the given id.
func (w *Workbook) Field(id string) (Field, bool) {
	for _, f := range w.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Schema returns the field metadata for compiling the workbook's formulas.
// Formula fields resolve to TypeAny until an engine registers them.
func (w *Workbook) Schema() core.MapSchema {
	s := make(core.MapSchema, len(w.Fields))
	for _, f := range w.Fields {
		s[f.ID] = core.FieldMeta{ID: f.ID, Name: f.Name, Type: f.Type}
	}
	return s
}

// Formulas returns the formula sources keyed by field id.
func (w *Workbook) Formulas() map[string]string {
	out := make(map[string]string)
	for _, f := range w.Fields {
		if f.Type == core.FieldFormula {
			out[f.ID] = f.Formula
		}
	}
	return out
}

// Inputs returns the ids of the non-formula fields in declaration order.
func (w *Workbook) Inputs() []string {
	var out []string
	for _, f := range w.Fields {
		if f.Type != core.FieldFormula {
			out = append(out, f.ID)
		}
	}
	return out
}

// RowValues returns the input values of every row, in row order.
func (w *Workbook) RowValues() []formula.Row {
	out := make([]formula.Row, len(w.Rows))
	for i, r := range w.Rows {
		out[i] = r.Values
	}
	return out
}

// Row returns the row with the given id.
func (w *Workbook) Row(id string) (Row, bool) {
	for _, r := range w.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}
