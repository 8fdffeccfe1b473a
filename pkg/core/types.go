package core

import "strings"

// Type is the static result type of an expression.
type Type int

// Type constants. TypeInvalid is the zero value and marks an unchecked node.
const (
	TypeInvalid Type = iota
	TypeNumber
	TypeText
	TypeBoolean
	TypeDate
	TypeArray
	// TypeAny is produced when branches of a control function disagree.
	// It is accepted wherever a concrete type is expected and checked at
	// run time instead.
	TypeAny
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeText:
		return "text"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeArray:
		return "array"
	case TypeAny:
		return "any"
	default:
		return "invalid"
	}
}

// ParseType converts a type name back to a Type.
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(s) {
	case "number":
		return TypeNumber, true
	case "text":
		return TypeText, true
	case "boolean":
		return TypeBoolean, true
	case "date":
		return TypeDate, true
	case "array":
		return TypeArray, true
	case "any":
		return TypeAny, true
	default:
		return TypeInvalid, false
	}
}

// IsNumeric reports whether values of t can take part in arithmetic
// without a compile-time error. Booleans coerce to 1 and 0.
func (t Type) IsNumeric() bool {
	return t == TypeNumber || t == TypeBoolean || t == TypeAny
}

// FieldType is the declared type of a field in the host schema.
type FieldType string

// Field types understood by the engine.
const (
	FieldText        FieldType = "text"
	FieldLongText    FieldType = "longText"
	FieldNumber      FieldType = "number"
	FieldCurrency    FieldType = "currency"
	FieldPercent     FieldType = "percent"
	FieldRating      FieldType = "rating"
	FieldDate        FieldType = "date"
	FieldCreatedTime FieldType = "createdTime"
	FieldBoolean     FieldType = "boolean"
	FieldCheckbox    FieldType = "checkbox"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiSelect"
	FieldFormula     FieldType = "formula"
)

// ValueType maps a declared field type to the type its values have inside
// a formula. Formula fields resolve to TypeAny unless the schema supplies
// a ResultType.
func (f FieldType) ValueType() Type {
	switch f {
	case FieldText, FieldLongText, FieldSelect:
		return TypeText
	case FieldNumber, FieldCurrency, FieldPercent, FieldRating:
		return TypeNumber
	case FieldDate, FieldCreatedTime:
		return TypeDate
	case FieldBoolean, FieldCheckbox:
		return TypeBoolean
	case FieldMultiSelect:
		return TypeArray
	case FieldFormula:
		return TypeAny
	default:
		return TypeInvalid
	}
}

// IsValid reports whether f is a known field type.
func (f FieldType) IsValid() bool {
	return f.ValueType() != TypeInvalid
}

// FieldMeta describes a field as supplied by the schema collaborator.
// It is read-only to the engine.
type FieldMeta struct {
	ID   string
	Name string
	Type FieldType
	// ResultType overrides the type derived from Type. Hosts set it for
	// formula fields whose program has already been compiled.
	ResultType Type
}

// ValueType returns the type the field's values have inside a formula.
func (m FieldMeta) ValueType() Type {
	if m.ResultType != TypeInvalid {
		return m.ResultType
	}
	return m.Type.ValueType()
}

// Schema resolves field ids to their metadata. Implementations must be
// safe for concurrent reads and must not block.
type Schema interface {
	ResolveField(id string) (FieldMeta, bool)
}

// SchemaFunc adapts a function to the Schema interface.
type SchemaFunc func(id string) (FieldMeta, bool)

// ResolveField implements Schema.
func (f SchemaFunc) ResolveField(id string) (FieldMeta, bool) { return f(id) }

// MapSchema is a Schema backed by a map keyed by field id.
type MapSchema map[string]FieldMeta

// ResolveField implements Schema.
func (m MapSchema) ResolveField(id string) (FieldMeta, bool) {
	meta, ok := m[id]
	return meta, ok
}
