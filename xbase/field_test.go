package xbase

import (
	"testing"
	"time"

	"github.com/mkfoss/xbase/internal/xbformat"
)

func TestFieldTypeStringAndName(t *testing.T) {
	cases := []struct {
		ft     FieldType
		letter string
		name   string
	}{
		{FTCharacter, "C", "character"},
		{FTNumeric, "N", "numeric"},
		{FTLogical, "L", "logical"},
		{FTDate, "D", "date"},
		{FTInteger, "I", "integer"},
		{FTDateTime, "T", "datetime"},
		{FTFloat, "F", "float"},
		{FTMemo, "M", "memo"},
		{FTUnknown, "?", "unknown"},
	}
	for _, c := range cases {
		if got := c.ft.String(); got != c.letter {
			t.Errorf("%v.String() = %q, want %q", c.ft, got, c.letter)
		}
		if got := c.ft.Name(); got != c.name {
			t.Errorf("%v.Name() = %q, want %q", c.ft, got, c.name)
		}
	}
}

func TestFieldTypeFromByte(t *testing.T) {
	if fieldTypeFromByte('C') != FTCharacter {
		t.Error("fieldTypeFromByte('C') should report FTCharacter")
	}
	if fieldTypeFromByte('Z') != FTUnknown {
		t.Error("fieldTypeFromByte('Z') should report FTUnknown")
	}
}

func characterField(text string) Field {
	return Field{
		desc:  xbformat.FieldDescriptor{Name: "NAME", Type: 'C', Length: uint8(len(text))},
		value: xbformat.Value{Type: 'C', Text: text},
	}
}

func numericField(n int64, decimals uint8) Field {
	v := xbformat.Value{Type: 'N'}
	if decimals == 0 {
		v.Integer = n
	} else {
		v.Real = float64(n)
	}
	return Field{
		desc:  xbformat.FieldDescriptor{Name: "AGE", Type: 'N', Length: 5, Decimals: decimals},
		value: v,
	}
}

func TestFieldValueCharacter(t *testing.T) {
	f := characterField("Ada")
	v, err := f.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v.(string) != "Ada" {
		t.Errorf("Value() = %v, want %q", v, "Ada")
	}
}

func TestFieldAsIntAndAsFloat(t *testing.T) {
	f := numericField(42, 0)
	n, err := f.AsInt()
	if err != nil {
		t.Fatalf("AsInt: %v", err)
	}
	if n != 42 {
		t.Errorf("AsInt() = %d, want 42", n)
	}

	flt := numericField(7, 2)
	asFloat, err := flt.AsFloat()
	if err != nil {
		t.Fatalf("AsFloat: %v", err)
	}
	if asFloat != 7.0 {
		t.Errorf("AsFloat() = %v, want 7.0", asFloat)
	}

	if _, err := characterField("x").AsInt(); err == nil {
		t.Error("expected AsInt on a character field to error")
	}
}

func TestFieldAsBool(t *testing.T) {
	trueField := Field{
		desc:  xbformat.FieldDescriptor{Name: "OK", Type: 'L'},
		value: xbformat.Value{Type: 'L', Logical: xbformat.LogicalTrue},
	}
	ok, err := trueField.AsBool()
	if err != nil {
		t.Fatalf("AsBool: %v", err)
	}
	if !ok {
		t.Error("AsBool() = false, want true")
	}

	unknownField := Field{
		desc:  xbformat.FieldDescriptor{Name: "OK", Type: 'L'},
		value: xbformat.Value{Type: 'L', Logical: xbformat.LogicalUnknown},
	}
	ok, err = unknownField.AsBool()
	if err != nil {
		t.Fatalf("AsBool: %v", err)
	}
	if ok {
		t.Error("AsBool() on an unknown logical should report false")
	}

	if _, err := characterField("x").AsBool(); err == nil {
		t.Error("expected AsBool on a character field to error")
	}
}

func TestFieldAsTimeDateAndDateTime(t *testing.T) {
	dateField := Field{
		desc:  xbformat.FieldDescriptor{Name: "DOB", Type: 'D'},
		value: xbformat.Value{Type: 'D', Date: xbformat.Date{Year: 2000, Month: 1, Day: 2}},
	}
	got, err := dateField.AsTime()
	if err != nil {
		t.Fatalf("AsTime: %v", err)
	}
	want := time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("AsTime() = %v, want %v", got, want)
	}

	emptyDate := Field{
		desc:  xbformat.FieldDescriptor{Name: "DOB", Type: 'D'},
		value: xbformat.Value{Type: 'D'},
	}
	got, err = emptyDate.AsTime()
	if err != nil {
		t.Fatalf("AsTime: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("AsTime() on an empty date = %v, want zero", got)
	}

	stamp := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	instantField := Field{
		desc:  xbformat.FieldDescriptor{Name: "SEEN", Type: 'T'},
		value: xbformat.Value{Type: 'T', Instant: stamp},
	}
	got, err = instantField.AsTime()
	if err != nil {
		t.Fatalf("AsTime: %v", err)
	}
	if !got.Equal(stamp) {
		t.Errorf("AsTime() = %v, want %v", got, stamp)
	}
}

func TestFieldIsNull(t *testing.T) {
	empty := characterField("")
	isNull, err := empty.IsNull()
	if err != nil {
		t.Fatalf("IsNull: %v", err)
	}
	if !isNull {
		t.Error("an empty character field should report IsNull() = true")
	}

	filled := characterField("x")
	isNull, err = filled.IsNull()
	if err != nil {
		t.Fatalf("IsNull: %v", err)
	}
	if isNull {
		t.Error("a non-empty character field should report IsNull() = false")
	}
}

func TestFieldIsSystemAndIsNullable(t *testing.T) {
	sys := Field{desc: xbformat.FieldDescriptor{Name: "_DELETED", Type: 'C'}}
	if !sys.IsSystem() {
		t.Error("a field named with a leading underscore should report IsSystem() = true")
	}
	if characterField("x").IsNullable() {
		t.Error("character fields should report IsNullable() = false")
	}
	if !numericField(1, 0).IsNullable() {
		t.Error("numeric fields should report IsNullable() = true")
	}
}

func TestFieldMustVariantsPanicOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustAsInt on a character field should panic")
		}
	}()
	characterField("x").MustAsInt()
}

func TestFieldsCollection(t *testing.T) {
	descs := []xbformat.FieldDescriptor{
		{Name: "NAME", Type: 'C', Length: 20},
		{Name: "AGE", Type: 'N', Length: 3},
	}
	fs := newFields(descs)
	if fs.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", fs.Count())
	}
	if got := fs.Names(); len(got) != 2 || got[0] != "NAME" || got[1] != "AGE" {
		t.Errorf("Names() = %v, want [NAME AGE]", got)
	}
	d, ok := fs.Descriptor(0)
	if !ok || d.Name != "NAME" {
		t.Errorf("Descriptor(0) = %+v, %v", d, ok)
	}
	if _, ok := fs.Descriptor(5); ok {
		t.Error("Descriptor(5) should report ok=false for an out-of-range index")
	}
}
