package xbindex

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mkfoss/xbase/internal/xbformat"
)

func buildTestIndex(t *testing.T, path string, pairs ...string) {
	t.Helper()
	entries := keyEntries(pairs...)
	if err := BuildFromRecords(path, entries, BuildOptions{KeyLength: 10, KeyExpr: "NAME"}); err != nil {
		t.Fatalf("BuildFromRecords: %v", err)
	}
}

func TestOpenCloseAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.cdx")
	buildTestIndex(t, path, "AAAAAAAAAA", "BBBBBBBBBB")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.Path() != path {
		t.Errorf("Path() = %q, want %q", e.Path(), path)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.cdx"))
	if !xbformat.Is(err, xbformat.KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}

func TestSearchExactMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2.cdx")
	buildTestIndex(t, path, "AAAAAAAAAA", "CCCCCCCCCC")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if _, err := e.SearchExact([]byte("BBBBBBBBBB")); !xbformat.Is(err, xbformat.KindNotFoundKey) {
		t.Errorf("expected KindNotFoundKey, got %v", err)
	}
}

func TestSearchPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t3.cdx")
	buildTestIndex(t, path, "SMITH0001A", "SMITH0002A", "SMITH0003A", "TODD00001A")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	got, err := e.SearchPrefix([]byte("SMITH"))
	if err != nil {
		t.Fatalf("SearchPrefix: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("SearchPrefix(SMITH) returned %d entries, want 3", len(got))
	}
	for _, entry := range got {
		if !bytes.HasPrefix(entry.Key, []byte("SMITH")) {
			t.Errorf("entry key %q does not carry the SMITH prefix", entry.Key)
		}
	}
}

func TestSetComparatorOverridesOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t4.cdx")
	buildTestIndex(t, path, "AAAAAAAAAA", "BBBBBBBBBB", "CCCCCCCCCC")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	calls := 0
	e.SetComparator(func(a, b []byte) int {
		calls++
		return bytes.Compare(a, b)
	})
	if _, err := e.SearchExact([]byte("BBBBBBBBBB")); err != nil {
		t.Fatalf("SearchExact: %v", err)
	}
	if calls == 0 {
		t.Error("custom comparator was never invoked during descent")
	}
}

func TestCachedPageCountAndClearCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t5.cdx")
	buildTestIndex(t, path, "AAAAAAAAAA", "BBBBBBBBBB")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if _, err := e.SearchExact([]byte("AAAAAAAAAA")); err != nil {
		t.Fatalf("SearchExact: %v", err)
	}
	if e.CachedPageCount() == 0 {
		t.Error("expected at least one page cached after a search")
	}
	e.ClearCache()
	if e.CachedPageCount() != 0 {
		t.Errorf("CachedPageCount after ClearCache = %d, want 0", e.CachedPageCount())
	}
}

func TestNormalizeKeyRejectsOverLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t6.cdx")
	buildTestIndex(t, path, "AAAAAAAAAA")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	_, err = e.normalizeKey("test", make([]byte, 11))
	if !xbformat.Is(err, xbformat.KindKeyTooLong) {
		t.Errorf("expected KindKeyTooLong, got %v", err)
	}

	padded, err := e.normalizeKey("test", []byte("AB"))
	if err != nil {
		t.Fatalf("normalizeKey: %v", err)
	}
	if len(padded) != 10 || padded[2] != ' ' {
		t.Errorf("normalizeKey did not pad short key correctly: %q", padded)
	}
}
