package xbformat

import (
	"testing"
	"time"
)

func TestEncodeDecodeCharacterRoundTrip(t *testing.T) {
	fd := FieldDescriptor{Name: "NAME", Type: 'C', Length: 20}
	v := Value{Type: 'C', Text: "hello"}
	buf, err := EncodeField(fd, v, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	if len(buf) != 20 {
		t.Fatalf("encoded width = %d, want 20", len(buf))
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("Text = %q, want %q", got.Text, "hello")
	}
}

func TestEncodeDecodeNumericRoundTrip(t *testing.T) {
	fd := FieldDescriptor{Name: "AMOUNT", Type: 'N', Length: 10, Decimals: 2}
	v := Value{Type: 'N', Real: 123.45}
	buf, err := EncodeField(fd, v, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if got.Real != 123.45 {
		t.Errorf("Real = %v, want 123.45", got.Real)
	}
}

func TestEncodeNumericOutOfRange(t *testing.T) {
	fd := FieldDescriptor{Name: "TINY", Type: 'N', Length: 2, Decimals: 0}
	_, err := EncodeField(fd, Value{Type: 'N', Integer: 12345}, false)
	if err == nil {
		t.Fatal("expected ValueOutOfRange error, got nil")
	}
	if !Is(err, KindValueOutOfRange) {
		t.Errorf("expected KindValueOutOfRange, got %v", err)
	}
}

func TestDecodeBlankNumericIsZero(t *testing.T) {
	fd := FieldDescriptor{Name: "N", Type: 'N', Length: 6, Decimals: 0}
	blank := PadLeft("", 6)
	v, err := DecodeField(fd, blank, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if v.Integer != 0 {
		t.Errorf("Integer = %d, want 0", v.Integer)
	}
}

func TestEncodeDecodeDateRoundTrip(t *testing.T) {
	fd := FieldDescriptor{Name: "DOB", Type: 'D', Length: 8}
	v := Value{Type: 'D', Date: Date{Year: 1999, Month: 12, Day: 31}}
	buf, err := EncodeField(fd, v, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if got.Date != v.Date {
		t.Errorf("Date = %+v, want %+v", got.Date, v.Date)
	}
}

func TestEncodeDecodeEmptyDate(t *testing.T) {
	fd := FieldDescriptor{Name: "DOB", Type: 'D', Length: 8}
	buf, err := EncodeField(fd, Value{Type: 'D'}, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if !got.Date.IsEmpty() {
		t.Errorf("Date = %+v, want empty", got.Date)
	}
}

func TestLogicalThreeValued(t *testing.T) {
	fd := FieldDescriptor{Name: "ACTIVE", Type: 'L', Length: 1}
	cases := []struct {
		slot string
		want Logical
	}{
		{"T", LogicalTrue},
		{"y", LogicalTrue},
		{"F", LogicalFalse},
		{"n", LogicalFalse},
		{"?", LogicalUnknown},
	}
	for _, c := range cases {
		v, err := DecodeField(fd, []byte(c.slot), false)
		if err != nil {
			t.Fatalf("DecodeField(%q): %v", c.slot, err)
		}
		if v.Logical != c.want {
			t.Errorf("DecodeField(%q) = %v, want %v", c.slot, v.Logical, c.want)
		}
	}
}

func TestMemoReferenceFormatIII(t *testing.T) {
	fd := FieldDescriptor{Name: "NOTES", Type: 'M', Length: 10}
	buf, err := EncodeField(fd, Value{Type: 'M', MemoRef: 42}, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if got.MemoRef != 42 {
		t.Errorf("MemoRef = %d, want 42", got.MemoRef)
	}
}

func TestMemoReferenceFormatIV(t *testing.T) {
	fd := FieldDescriptor{Name: "NOTES", Type: 'M', Length: 4}
	buf, err := EncodeField(fd, Value{Type: 'M', MemoRef: 7}, true)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	if len(buf) != 4 {
		t.Fatalf("encoded width = %d, want 4", len(buf))
	}
	got, err := DecodeField(fd, buf, true)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if got.MemoRef != 7 {
		t.Errorf("MemoRef = %d, want 7", got.MemoRef)
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	fd := FieldDescriptor{Name: "QTY", Type: 'I', Length: 4}
	buf, err := EncodeField(fd, Value{Type: 'I', Integer: -12345}, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if got.Integer != -12345 {
		t.Errorf("Integer = %d, want -12345", got.Integer)
	}
}

func TestDateTimeRoundTripViaJulian(t *testing.T) {
	fd := FieldDescriptor{Name: "STAMP", Type: 'T', Length: 8}
	want := time.Date(2024, time.March, 15, 13, 45, 30, 500_000_000, time.UTC)
	buf, err := EncodeField(fd, Value{Type: 'T', Instant: want}, false)
	if err != nil {
		t.Fatalf("EncodeField: %v", err)
	}
	got, err := DecodeField(fd, buf, false)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if !got.Instant.Equal(want) {
		t.Errorf("Instant = %v, want %v", got.Instant, want)
	}
}

func TestDecodeUnknownFieldType(t *testing.T) {
	fd := FieldDescriptor{Name: "X", Type: 'Z', Length: 1}
	_, err := DecodeField(fd, []byte{'x'}, false)
	if err == nil {
		t.Fatal("expected error for unknown field type")
	}
	if !Is(err, KindUnknownFieldType) {
		t.Errorf("expected KindUnknownFieldType, got %v", err)
	}
}
