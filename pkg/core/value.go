package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the tag of a Value.
type Kind uint8

// Value kinds. The zero Kind marks an unset Value.
const (
	KindNumber Kind = iota + 1
	KindText
	KindBoolean
	KindDate
	KindArray
	KindError
)

var kindNames = map[Kind]string{
	KindNumber:  "number",
	KindText:    "text",
	KindBoolean: "boolean",
	KindDate:    "date",
	KindArray:   "array",
	KindError:   "error",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Value is the closed run-time value variant: Number, Text, Boolean, Date,
// Array or Error. Values are immutable; Array returns copies.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	t    time.Time
	arr  []Value
	err  *EvalError
}

// Number creates a number value. Negative zero is normalized to zero.
func Number(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{kind: KindNumber, num: f}
}

// Text creates a text value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Date creates a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Array creates an array value holding a copy of items.
func Array(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: KindArray, arr: arr}
}

// ErrorValue creates an error value with a formatted message.
func ErrorValue(kind EvalErrorKind, format string, args ...any) Value {
	return FromError(NewEvalError(kind, format, args...))
}

// FromError wraps an EvalError as a value.
func FromError(err *EvalError) Value {
	return Value{kind: KindError, err: err}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was created by one of the constructors.
func (v Value) IsValid() bool { return v.kind != 0 }

// IsError reports whether v is an error value.
func (v Value) IsError() bool { return v.kind == KindError }

// Err returns the error carried by an error value, or nil.
func (v Value) Err() *EvalError { return v.err }

// Num returns the number of a number value.
func (v Value) Num() float64 { return v.num }

// Str returns the string of a text value.
func (v Value) Str() string { return v.str }

// Boolean returns the flag of a boolean value.
func (v Value) Boolean() bool { return v.b }

// Time returns the instant of a date value.
func (v Value) Time() time.Time { return v.t }

// Items returns a copy of an array value's elements.
func (v Value) Items() []Value {
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out
}

// Len returns the number of elements of an array value.
func (v Value) Len() int { return len(v.arr) }

// Type returns the static type corresponding to the value's kind.
// Error values report TypeAny.
func (v Value) Type() Type {
	switch v.kind {
	case KindNumber:
		return TypeNumber
	case KindText:
		return TypeText
	case KindBoolean:
		return TypeBoolean
	case KindDate:
		return TypeDate
	case KindArray:
		return TypeArray
	default:
		return TypeAny
	}
}

// =============================================================================
// Coercions
// =============================================================================

// AsNumber coerces v to a number. Booleans become 1 or 0, empty text
// becomes 0, numeric text is parsed and a single-element array unwraps.
func (v Value) AsNumber() (float64, *EvalError) {
	switch v.kind {
	case KindNumber:
		return v.num, nil
	case KindBoolean:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindText:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, NewEvalError(TypeMismatch, "cannot convert %q to a number", v.str)
		}
		return f, nil
	case KindArray:
		switch len(v.arr) {
		case 0:
			return 0, nil
		case 1:
			return v.arr[0].AsNumber()
		}
		return 0, NewEvalError(TypeMismatch, "cannot convert an array of %d items to a number", len(v.arr))
	case KindError:
		return 0, v.err
	case KindDate:
		return 0, NewEvalError(TypeMismatch, "cannot convert a date to a number")
	default:
		return 0, NewEvalError(TypeMismatch, "invalid value")
	}
}

// AsText coerces v to text. It never fails; errors render as their code.
func (v Value) AsText() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.str
	case KindBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case KindDate:
		return FormatDate(v.t)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.AsText()
		}
		return strings.Join(parts, ", ")
	case KindError:
		return v.err.Kind.Code()
	default:
		return ""
	}
}

// AsBool coerces v to a boolean: non-zero numbers, non-empty text,
// dates and non-empty arrays are true.
func (v Value) AsBool() (bool, *EvalError) {
	switch v.kind {
	case KindBoolean:
		return v.b, nil
	case KindNumber:
		return v.num != 0, nil
	case KindText:
		return v.str != "", nil
	case KindDate:
		return true, nil
	case KindArray:
		return len(v.arr) > 0, nil
	case KindError:
		return false, v.err
	default:
		return false, NewEvalError(TypeMismatch, "invalid value")
	}
}

// AsDate coerces v to a date. Text is parsed in loc when it carries no
// zone of its own.
func (v Value) AsDate(loc *time.Location) (time.Time, *EvalError) {
	switch v.kind {
	case KindDate:
		return v.t, nil
	case KindText:
		t, ok := ParseDate(v.str, loc)
		if !ok {
			return time.Time{}, NewEvalError(InvalidDate, "cannot parse %q as a date", v.str)
		}
		return t, nil
	case KindArray:
		if len(v.arr) == 1 {
			return v.arr[0].AsDate(loc)
		}
	case KindError:
		return time.Time{}, v.err
	}
	return time.Time{}, NewEvalError(InvalidDate, "%s is not a date", v.kind)
}

// Flatten returns the scalar leaves of v in order. Scalars flatten to
// themselves.
func (v Value) Flatten() []Value {
	if v.kind != KindArray {
		return []Value{v}
	}
	var out []Value
	for _, item := range v.arr {
		out = append(out, item.Flatten()...)
	}
	return out
}

// =============================================================================
// Comparison
// =============================================================================

func isNumeric(k Kind) bool { return k == KindNumber || k == KindBoolean }

// Equal reports whether a and b are equal. Numbers and booleans compare
// numerically, dates compare as instants (text is parsed as a date when
// the other side is a date), arrays compare element-wise. Values of
// unrelated kinds are never equal.
func Equal(a, b Value, loc *time.Location) bool {
	switch {
	case isNumeric(a.kind) && isNumeric(b.kind):
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		return x == y
	case a.kind == KindText && b.kind == KindText:
		return a.str == b.str
	case a.kind == KindDate || b.kind == KindDate:
		x, errA := a.AsDate(loc)
		y, errB := b.AsDate(loc)
		return errA == nil && errB == nil && x.Equal(y)
	case a.kind == KindArray && b.kind == KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i], loc) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders a and b, returning -1, 0 or +1. Only numeric, text and
// date pairs are ordered; other pairs yield TypeMismatch.
func Compare(a, b Value, loc *time.Location) (int, *EvalError) {
	switch {
	case isNumeric(a.kind) && isNumeric(b.kind):
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		return cmpFloat(x, y), nil
	case a.kind == KindText && b.kind == KindText:
		return strings.Compare(a.str, b.str), nil
	case a.kind == KindDate || b.kind == KindDate:
		x, err := a.AsDate(loc)
		if err != nil {
			return 0, err
		}
		y, err := b.AsDate(loc)
		if err != nil {
			return 0, err
		}
		return x.Compare(y), nil
	default:
		return 0, NewEvalError(TypeMismatch, "cannot compare %s with %s", a.kind, b.kind)
	}
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// Formatting
// =============================================================================

// FormatNumber renders a number without exponent or trailing zeros where
// that is practical.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.Abs(f) >= 1e21:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatDate renders midnight values as a calendar date and everything
// else as RFC 3339.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.DateOnly,
	time.DateTime,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
}

// ParseDate parses the date forms accepted in formulas and row values.
// Strings without a zone are interpreted in loc (UTC when nil).
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// String renders the value for display.
func (v Value) String() string {
	if v.kind == KindError {
		return v.err.Error()
	}
	return v.AsText()
}

// =============================================================================
// JSON
// =============================================================================

type valueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

type errorJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("cannot encode non-finite number %v", v.num)
		}
		payload = v.num
	case KindText:
		payload = v.str
	case KindBoolean:
		payload = v.b
	case KindDate:
		payload = v.t.Format(time.RFC3339Nano)
	case KindArray:
		payload = v.arr
	case KindError:
		payload = errorJSON{Kind: v.err.Kind.String(), Message: v.err.Message}
	default:
		return nil, fmt.Errorf("cannot encode invalid value")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env valueJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Kind {
	case "number":
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return err
		}
		*v = Number(f)
	case "text":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		*v = Text(s)
	case "boolean":
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "date":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*v = Date(t)
	case "array":
		var items []Value
		if err := json.Unmarshal(env.Value, &items); err != nil {
			return err
		}
		*v = Value{kind: KindArray, arr: items}
	case "error":
		var e errorJSON
		if err := json.Unmarshal(env.Value, &e); err != nil {
			return err
		}
		kind, ok := ParseEvalErrorKind(e.Kind)
		if !ok {
			return fmt.Errorf("unknown error kind %q", e.Kind)
		}
		*v = FromError(&EvalError{Kind: kind, Message: e.Message})
	default:
		return fmt.Errorf("unknown value kind %q", env.Kind)
	}
	return nil
}
