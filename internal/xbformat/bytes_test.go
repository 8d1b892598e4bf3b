package xbformat

import (
	"bytes"
	"os"
	"testing"
)

func TestPositionedReadWriteRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "xbformat-bytes-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	if err := f.Truncate(64); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	want := []byte("hello, dbase")
	if err := PositionedWrite(f, 10, want); err != nil {
		t.Fatalf("PositionedWrite: %v", err)
	}
	got := make([]byte, len(want))
	if err := PositionedRead(f, 10, got); err != nil {
		t.Fatalf("PositionedRead: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("PositionedRead = %q, want %q", got, want)
	}
}

func TestPositionedReadShort(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "xbformat-bytes-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	buf := make([]byte, 16)
	if err := PositionedRead(f, 0, buf); !Is(err, KindIO) {
		t.Errorf("expected KindIO for short read, got %v", err)
	}
}

func TestPadRightTruncatesAndPads(t *testing.T) {
	if got := string(PadRight("abc", 5)); got != "abc  " {
		t.Errorf("PadRight short = %q, want %q", got, "abc  ")
	}
	if got := string(PadRight("abcdef", 3)); got != "abc" {
		t.Errorf("PadRight long = %q, want %q", got, "abc")
	}
}

func TestPadLeftTruncatesAndPads(t *testing.T) {
	if got := string(PadLeft("42", 5)); got != "   42" {
		t.Errorf("PadLeft short = %q, want %q", got, "   42")
	}
	if got := string(PadLeft("123456", 3)); got != "456" {
		t.Errorf("PadLeft long = %q, want %q", got, "456")
	}
}

func TestTrimTrailingSpaceKeepsLeading(t *testing.T) {
	if got := TrimTrailingSpace([]byte("  abc  ")); got != "  abc" {
		t.Errorf("TrimTrailingSpace = %q, want %q", got, "  abc")
	}
}

func TestTrimSpaceBothSides(t *testing.T) {
	if got := TrimSpace([]byte("  42  ")); got != "42" {
		t.Errorf("TrimSpace = %q, want %q", got, "42")
	}
}

func TestIsAllBlank(t *testing.T) {
	if !IsAllBlank([]byte("    ")) {
		t.Error("IsAllBlank on spaces = false, want true")
	}
	if IsAllBlank([]byte("  x ")) {
		t.Error("IsAllBlank with non-space = true, want false")
	}
}
