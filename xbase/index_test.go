package xbase

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mkfoss/xbase/internal/xbindex"
)

func TestConventionalIndexPath(t *testing.T) {
	if got := conventionalIndexPath("/data/people.dbf"); got != "/data/people.cdx" {
		t.Errorf("conventionalIndexPath = %q, want %q", got, "/data/people.cdx")
	}
	if got := conventionalIndexPath("noext"); got != "noext.cdx" {
		t.Errorf("conventionalIndexPath(no extension) = %q, want %q", got, "noext.cdx")
	}
}

func TestIndexesLoadMissingCompanionIsSilent(t *testing.T) {
	idx := newIndexes(filepath.Join(t.TempDir(), "people.dbf"), zap.NewNop())
	if err := idx.Load(); err != nil {
		t.Fatalf("Load should swallow a missing companion file, got %v", err)
	}
	if !idx.Loaded() {
		t.Error("Loaded() should be true after Load")
	}
	if idx.Count() != 0 {
		t.Errorf("Count() = %d, want 0 with no companion index", idx.Count())
	}
	if idx.ByIndex(0) != nil {
		t.Error("ByIndex(0) should be nil with no companion index")
	}
	if len(idx.List()) != 0 {
		t.Error("List() should be empty with no companion index")
	}
}

func TestIndexesLazyLoadOnFirstAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	idx := newIndexes(path, zap.NewNop())
	if idx.Loaded() {
		t.Fatal("Loaded() should be false before any accessor call")
	}
	idx.Count()
	if !idx.Loaded() {
		t.Error("Loaded() should become true after the first accessor call")
	}
}

func buildCompanionIndex(t *testing.T, dataPath string) {
	t.Helper()
	indexPath := conventionalIndexPath(dataPath)
	entries := []xbindex.IndexEntry{
		{Key: []byte("AAAAAAAAAA"), RecordIndex: 0},
		{Key: []byte("BBBBBBBBBB"), RecordIndex: 1},
		{Key: []byte("CCCCCCCCCC"), RecordIndex: 2},
	}
	if err := xbindex.BuildFromRecords(indexPath, entries, xbindex.BuildOptions{KeyLength: 10, KeyExpr: "NAME"}); err != nil {
		t.Fatalf("BuildFromRecords: %v", err)
	}
}

func TestIndexesWithCompanionFile(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "people.dbf")
	buildCompanionIndex(t, dataPath)

	idx := newIndexes(dataPath, zap.NewNop())
	if err := idx.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer idx.Close()

	if idx.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", idx.Count())
	}
	ix := idx.ByIndex(0)
	if ix == nil {
		t.Fatal("ByIndex(0) returned nil")
	}
	if ix.Name() != "people" {
		t.Errorf("Name() = %q, want %q", ix.Name(), "people")
	}
	if !ix.IsOpen() {
		t.Error("IsOpen() should report true")
	}
	if ix.TagCount() != 1 {
		t.Errorf("TagCount() = %d, want 1", ix.TagCount())
	}

	byName := idx.ByName("PEOPLE")
	if byName == nil {
		t.Error("ByName should match case-insensitively")
	}
	if idx.ByName("nope") != nil {
		t.Error("ByName should return nil for a non-matching name")
	}
}

func TestTagSeekAndNavigate(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "people2.dbf")
	buildCompanionIndex(t, dataPath)

	idx := newIndexes(dataPath, zap.NewNop())
	if err := idx.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer idx.Close()

	tag := idx.ByIndex(0).Tag(0)
	if tag == nil {
		t.Fatal("Tag(0) returned nil")
	}
	if tag.KeyLength() != 10 {
		t.Errorf("KeyLength() = %d, want 10", tag.KeyLength())
	}

	result, err := tag.Seek([]byte("BBBBBBBBBB"))
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if result != SeekSuccess {
		t.Errorf("Seek(BBBBBBBBBB) = %v, want SeekSuccess", result)
	}
	recIdx, ok := tag.CurrentRecordIndex()
	if !ok || recIdx != 1 {
		t.Errorf("CurrentRecordIndex() = (%d, %v), want (1, true)", recIdx, ok)
	}

	result, err = tag.Seek([]byte("ZZZZZZZZZZ"))
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if result != SeekEOF {
		t.Errorf("Seek past every key = %v, want SeekEOF", result)
	}
	if !tag.EOF() {
		t.Error("EOF() should be true after a Seek that lands past every key")
	}
}

func TestSeekResultString(t *testing.T) {
	cases := map[SeekResult]string{
		SeekSuccess: "success",
		SeekAfter:   "after",
		SeekEOF:     "eof",
	}
	for sr, want := range cases {
		if got := sr.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", sr, got, want)
		}
	}
}

func TestIndexesMustLoadDoesNotPanicOnMissingFile(t *testing.T) {
	idx := newIndexes(filepath.Join(t.TempDir(), "people.dbf"), zap.NewNop())
	idx.MustLoad()
	if idx.Count() != 0 {
		t.Errorf("Count() = %d, want 0 with no companion index", idx.Count())
	}
}
