package xbase

import (
	"fmt"
	"time"

	"github.com/mkfoss/xbase/internal/xbformat"
)

// FieldType enumerates the 8 field types this engine's codec actually
// reads and writes. Currency, blob, general/picture OLE objects, varchar,
// and other dBase-family extensions are not represented.
type FieldType int

const (
	FTUnknown FieldType = iota
	FTCharacter
	FTNumeric
	FTLogical
	FTDate
	FTInteger
	FTDateTime
	FTFloat
	FTMemo
)

func fieldTypeFromByte(b byte) FieldType {
	switch b {
	case 'C':
		return FTCharacter
	case 'N':
		return FTNumeric
	case 'L':
		return FTLogical
	case 'D':
		return FTDate
	case 'I':
		return FTInteger
	case 'T':
		return FTDateTime
	case 'F':
		return FTFloat
	case 'M':
		return FTMemo
	default:
		return FTUnknown
	}
}

// String returns the single-character on-disk type code.
func (ft FieldType) String() string {
	switch ft {
	case FTCharacter:
		return "C"
	case FTNumeric:
		return "N"
	case FTLogical:
		return "L"
	case FTDate:
		return "D"
	case FTInteger:
		return "I"
	case FTDateTime:
		return "T"
	case FTFloat:
		return "F"
	case FTMemo:
		return "M"
	default:
		return "?"
	}
}

// Name returns the descriptive type name.
func (ft FieldType) Name() string {
	switch ft {
	case FTCharacter:
		return "character"
	case FTNumeric:
		return "numeric"
	case FTLogical:
		return "logical"
	case FTDate:
		return "date"
	case FTInteger:
		return "integer"
	case FTDateTime:
		return "datetime"
	case FTFloat:
		return "float"
	case FTMemo:
		return "memo"
	default:
		return "unknown"
	}
}

// Field is a value view bound to one field of the table's current record,
// offering typed access alongside its schema metadata. Returned by
// Table.Field/Table.FieldByIndex; stale once the cursor moves.
type Field struct {
	desc     xbformat.FieldDescriptor
	value    xbformat.Value
	memoText string
	hasMemo  bool
}

// Name returns the field's schema name.
func (f Field) Name() string { return f.desc.Name }

// Type returns the field's type.
func (f Field) Type() FieldType { return fieldTypeFromByte(f.desc.Type) }

// Size returns the field's on-disk width in bytes.
func (f Field) Size() uint8 { return f.desc.Length }

// Decimals returns the field's decimal-place count (numeric/float only).
func (f Field) Decimals() uint8 { return f.desc.Decimals }

// IsSystem reports whether the field name marks it as a system-reserved
// column (conventionally a leading '_', matching common dBase usage).
func (f Field) IsSystem() bool {
	return len(f.desc.Name) > 0 && f.desc.Name[0] == '_'
}

// IsNullable reports whether the field's type can represent an explicit
// absence of value: character fields cannot (they decode to "" which is
// not distinguishable from a genuine empty string), but date, numeric,
// logical, memo, and datetime all have a blank/unknown encoding.
func (f Field) IsNullable() bool {
	switch f.Type() {
	case FTCharacter:
		return false
	default:
		return true
	}
}

// IsBinary reports whether the field's bytes are not meant to be
// interpreted as displayable text — true only for memo fields here, since
// this engine's 8 supported types have no dedicated binary/blob type.
func (f Field) IsBinary() bool { return f.Type() == FTMemo }

// Value returns the field's value in its natural Go type.
func (f Field) Value() (any, error) {
	switch f.Type() {
	case FTCharacter:
		return f.value.Text, nil
	case FTNumeric, FTFloat:
		if f.desc.Decimals == 0 {
			return f.value.Integer, nil
		}
		return f.value.Real, nil
	case FTInteger:
		return f.value.Integer, nil
	case FTLogical:
		return f.value.Logical == xbformat.LogicalTrue, nil
	case FTDate:
		if f.value.Date.IsEmpty() {
			return time.Time{}, nil
		}
		return time.Date(f.value.Date.Year, time.Month(f.value.Date.Month), f.value.Date.Day, 0, 0, 0, 0, time.UTC), nil
	case FTDateTime:
		return f.value.Instant, nil
	case FTMemo:
		if f.hasMemo {
			return f.memoText, nil
		}
		return f.value.MemoRef, nil
	default:
		return nil, fmt.Errorf("xbase: field %q: unknown type", f.desc.Name)
	}
}

// AsString renders the field's value as text.
func (f Field) AsString() (string, error) {
	v, err := f.Value()
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return fmt.Sprintf("%d", t), nil
	case float64:
		return fmt.Sprintf("%g", t), nil
	case bool:
		return fmt.Sprintf("%t", t), nil
	case uint32:
		return fmt.Sprintf("%d", t), nil
	case time.Time:
		if t.IsZero() {
			return "", nil
		}
		return t.Format("2006-01-02"), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// AsInt renders the field's value as an int64, valid for numeric, integer,
// and float fields (the latter truncated toward zero).
func (f Field) AsInt() (int64, error) {
	switch f.Type() {
	case FTInteger:
		return f.value.Integer, nil
	case FTNumeric, FTFloat:
		if f.desc.Decimals == 0 {
			return f.value.Integer, nil
		}
		return int64(f.value.Real), nil
	default:
		return 0, fmt.Errorf("xbase: field %q: not a numeric type", f.desc.Name)
	}
}

// AsFloat renders the field's value as a float64, valid for numeric and
// float fields.
func (f Field) AsFloat() (float64, error) {
	switch f.Type() {
	case FTNumeric, FTFloat:
		if f.desc.Decimals == 0 {
			return float64(f.value.Integer), nil
		}
		return f.value.Real, nil
	case FTInteger:
		return float64(f.value.Integer), nil
	default:
		return 0, fmt.Errorf("xbase: field %q: not a numeric type", f.desc.Name)
	}
}

// AsBool renders the field's value as a bool, valid for logical fields. An
// unknown ('?') logical value reports false with no error, matching the
// three-valued domain's "unset" reading as falsy.
func (f Field) AsBool() (bool, error) {
	if f.Type() != FTLogical {
		return false, fmt.Errorf("xbase: field %q: not a logical type", f.desc.Name)
	}
	return f.value.Logical == xbformat.LogicalTrue, nil
}

// AsTime renders the field's value as a time.Time, valid for date and
// datetime fields.
func (f Field) AsTime() (time.Time, error) {
	switch f.Type() {
	case FTDate:
		if f.value.Date.IsEmpty() {
			return time.Time{}, nil
		}
		return time.Date(f.value.Date.Year, time.Month(f.value.Date.Month), f.value.Date.Day, 0, 0, 0, 0, time.UTC), nil
	case FTDateTime:
		return f.value.Instant, nil
	default:
		return time.Time{}, fmt.Errorf("xbase: field %q: not a date/datetime type", f.desc.Name)
	}
}

// IsNull reports whether the field currently holds its type's blank/unset
// encoding.
func (f Field) IsNull() (bool, error) {
	switch f.Type() {
	case FTCharacter:
		return f.value.Text == "", nil
	case FTDate:
		return f.value.Date.IsEmpty(), nil
	case FTLogical:
		return f.value.Logical == xbformat.LogicalUnknown, nil
	case FTMemo:
		return f.value.MemoRef == 0, nil
	case FTDateTime:
		return f.value.Instant.IsZero(), nil
	default:
		return false, nil
	}
}

// Must variants, for callers treating a given field failure as a
// programming error.

func (f Field) MustValue() any {
	v, err := f.Value()
	if err != nil {
		panic(err)
	}
	return v
}

func (f Field) MustAsString() string {
	v, err := f.AsString()
	if err != nil {
		panic(err)
	}
	return v
}

func (f Field) MustAsInt() int64 {
	v, err := f.AsInt()
	if err != nil {
		panic(err)
	}
	return v
}

func (f Field) MustAsFloat() float64 {
	v, err := f.AsFloat()
	if err != nil {
		panic(err)
	}
	return v
}

func (f Field) MustAsBool() bool {
	v, err := f.AsBool()
	if err != nil {
		panic(err)
	}
	return v
}

func (f Field) MustAsTime() time.Time {
	v, err := f.AsTime()
	if err != nil {
		panic(err)
	}
	return v
}

func (f Field) MustIsNull() bool {
	v, err := f.IsNull()
	if err != nil {
		panic(err)
	}
	return v
}

// Fields is the field collection for a table's schema.
type Fields struct {
	descs   []xbformat.FieldDescriptor
	indices map[string]int
}

func newFields(descs []xbformat.FieldDescriptor) *Fields {
	indices := make(map[string]int, len(descs))
	for i, d := range descs {
		indices[d.Name] = i
	}
	return &Fields{descs: descs, indices: indices}
}

// Count returns the number of fields in the schema.
func (fs *Fields) Count() int { return len(fs.descs) }

// Descriptor returns the raw schema descriptor at index, for callers that
// only need name/type/size metadata with no bound record value.
func (fs *Fields) Descriptor(index int) (xbformat.FieldDescriptor, bool) {
	if index < 0 || index >= len(fs.descs) {
		return xbformat.FieldDescriptor{}, false
	}
	return fs.descs[index], true
}

// Names returns every field name in schema order.
func (fs *Fields) Names() []string {
	out := make([]string, len(fs.descs))
	for i, d := range fs.descs {
		out[i] = d.Name
	}
	return out
}
