package xbase

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestMustOpenAndMustCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.dbf")
	tbl := MustCreate(path, plainSchema(), CreateOptions{})
	defer tbl.Close()
	if tbl.Path() != path {
		t.Errorf("Path() = %q, want %q", tbl.Path(), path)
	}

	reopened := MustOpen(path, OpenOptions{})
	defer reopened.Close()
	if reopened.RecordCount() != 0 {
		t.Errorf("RecordCount() = %d, want 0", reopened.RecordCount())
	}
}

func TestMustCreatePanicsOnDuplicatePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.dbf")
	first := MustCreate(path, plainSchema(), CreateOptions{})
	defer first.Close()

	defer func() {
		if recover() == nil {
			t.Error("MustCreate should panic when the target path already exists")
		}
	}()
	MustCreate(path, plainSchema(), CreateOptions{})
}

func TestMustNavigationVariants(t *testing.T) {
	tbl, _ := createTestTable(t)
	rec := tbl.MustAppend(map[string]any{"NAME": "Ada", "AGE": ageValue(1)})
	if rec == nil {
		t.Fatal("MustAppend returned nil")
	}

	tbl.MustFirst()
	if tbl.Position() != 1 {
		t.Errorf("Position() after MustFirst = %d, want 1", tbl.Position())
	}

	tbl.MustAppend(map[string]any{"NAME": "Bob", "AGE": ageValue(2)})
	tbl.MustGoto(1)
	tbl.MustNext()
	if tbl.Position() != 2 {
		t.Errorf("Position() after MustGoto+MustNext = %d, want 2", tbl.Position())
	}

	tbl.MustLast()
	if tbl.Position() != 2 {
		t.Errorf("Position() after MustLast = %d, want 2", tbl.Position())
	}

	tbl.MustPrevious()
	if tbl.Position() != 1 {
		t.Errorf("Position() after MustPrevious = %d, want 1", tbl.Position())
	}

	tbl.MustSkip(1)
	if tbl.Position() != 2 {
		t.Errorf("Position() after MustSkip(1) = %d, want 2", tbl.Position())
	}

	tbl.MustDelete()
	if !tbl.Deleted() {
		t.Error("expected Deleted() = true after MustDelete")
	}
	tbl.MustRecall()
	if tbl.Deleted() {
		t.Error("expected Deleted() = false after MustRecall")
	}

	updated := tbl.MustUpdate(rec.Index, map[string]any{"NAME": "Ada2"})
	if updated.Values["NAME"].Text != "Ada2" {
		t.Errorf("MustUpdate did not apply the change: %+v", updated.Values["NAME"])
	}

	outPath := filepath.Join(t.TempDir(), "packed.dbf")
	packed := tbl.MustPack(outPath)
	defer packed.Close()
	if packed.RecordCount() != 2 {
		t.Errorf("packed RecordCount = %d, want 2", packed.RecordCount())
	}
}

func TestMustGotoPanicsOnOutOfRange(t *testing.T) {
	tbl, _ := createTestTable(t)
	tbl.MustAppend(map[string]any{"NAME": "only", "AGE": ageValue(1)})

	defer func() {
		if recover() == nil {
			t.Error("MustGoto should panic for an out-of-range record number")
		}
	}()
	tbl.MustGoto(9)
}

func TestMustSeekPanicsNeverOnSuccess(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "seek.dbf")
	buildCompanionIndex(t, dataPath)

	idx := newIndexes(dataPath, zap.NewNop())
	if err := idx.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer idx.Close()

	tag := idx.ByIndex(0).Tag(0)
	result := tag.MustSeek([]byte("BBBBBBBBBB"))
	if result != SeekSuccess {
		t.Errorf("MustSeek = %v, want SeekSuccess", result)
	}
}
