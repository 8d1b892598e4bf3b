package xbase

import (
	"github.com/mkfoss/xbase/internal/xbcoord"
	"github.com/mkfoss/xbase/internal/xbformat"
)

// Must* variants panic instead of returning an error, for callers that
// treat a given failure as a programming error rather than a recoverable
// condition.

// MustOpen opens path, panicking on failure.
func MustOpen(path string, opts OpenOptions) *Table {
	t, err := Open(path, opts)
	if err != nil {
		panic(err)
	}
	return t
}

// MustCreate creates path, panicking on failure.
func MustCreate(path string, fields []xbformat.FieldDescriptor, opts CreateOptions) *Table {
	t, err := Create(path, fields, opts)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) MustGoto(recordNumber int) {
	if err := t.Goto(recordNumber); err != nil {
		panic(err)
	}
}

func (t *Table) MustFirst() {
	if err := t.First(); err != nil {
		panic(err)
	}
}

func (t *Table) MustLast() {
	if err := t.Last(); err != nil {
		panic(err)
	}
}

func (t *Table) MustNext() {
	if err := t.Next(); err != nil {
		panic(err)
	}
}

func (t *Table) MustPrevious() {
	if err := t.Previous(); err != nil {
		panic(err)
	}
}

func (t *Table) MustSkip(count int) {
	if err := t.Skip(count); err != nil {
		panic(err)
	}
}

func (t *Table) MustDelete() {
	if err := t.Delete(); err != nil {
		panic(err)
	}
}

func (t *Table) MustRecall() {
	if err := t.Recall(); err != nil {
		panic(err)
	}
}

func (t *Table) MustAppend(input map[string]any) *xbcoord.Record {
	rec, err := t.Append(input)
	if err != nil {
		panic(err)
	}
	return rec
}

func (t *Table) MustUpdate(index uint32, input map[string]any) *xbcoord.Record {
	rec, err := t.Update(index, input)
	if err != nil {
		panic(err)
	}
	return rec
}

func (t *Table) MustPack(outputPath string) *Table {
	out, err := t.Pack(outputPath)
	if err != nil {
		panic(err)
	}
	return out
}

func (t *Tag) MustSeek(key []byte) SeekResult {
	r, err := t.Seek(key)
	if err != nil {
		panic(err)
	}
	return r
}
