package xbindex

import (
	"bytes"
	"testing"
)

func TestEncodeDecodePageRoundTrip(t *testing.T) {
	p := &Page{
		Attributes:   attrLeaf,
		LeftSibling:  -1,
		RightSibling: 2,
		Entries: []Entry{
			{Key: []byte("AAAAAAAAAA"), Pointer: 0},
			{Key: []byte("BBBBBBBBBB"), Pointer: 1},
		},
	}
	buf := EncodePage(p, 10)
	if len(buf) != PageSize {
		t.Fatalf("encoded page size = %d, want %d", len(buf), PageSize)
	}
	got, err := DecodePage(buf, 10)
	if err != nil {
		t.Fatalf("DecodePage: %v", err)
	}
	if !got.IsLeaf() || got.IsRoot() {
		t.Errorf("attribute flags lost in round trip: leaf=%v root=%v", got.IsLeaf(), got.IsRoot())
	}
	if got.LeftSibling != -1 || got.RightSibling != 2 {
		t.Errorf("sibling pointers = (%d, %d), want (-1, 2)", got.LeftSibling, got.RightSibling)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(got.Entries))
	}
	if !bytes.Equal(got.Entries[0].Key, []byte("AAAAAAAAAA")) || got.Entries[1].Pointer != 1 {
		t.Errorf("entries did not round trip: %+v", got.Entries)
	}
}

func TestIsRootIsBranch(t *testing.T) {
	root := &Page{Attributes: attrRoot}
	if !root.IsRoot() {
		t.Error("IsRoot() = false, want true")
	}
	if !root.IsBranch() {
		t.Error("a root page with no leaf bit should report IsBranch() = true")
	}
	leaf := &Page{Attributes: attrLeaf}
	if leaf.IsBranch() {
		t.Error("IsBranch() = true for a leaf page, want false")
	}
}

func TestMaxEntriesShrinksWithKeyLength(t *testing.T) {
	short := MaxEntries(10)
	long := MaxEntries(100)
	if short <= long {
		t.Errorf("MaxEntries(10) = %d, MaxEntries(100) = %d; expected shorter keys to fit more entries", short, long)
	}
}

func TestDecodePageRejectsOversizedKeyCount(t *testing.T) {
	buf := make([]byte, PageSize)
	buf[2] = 0xFF
	buf[3] = 0xFF
	if _, err := DecodePage(buf, 10); err == nil {
		t.Fatal("expected an error for an impossibly large key count")
	}
}
