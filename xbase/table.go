package xbase

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkfoss/xbase/internal/xbcoord"
	"github.com/mkfoss/xbase/internal/xbdata"
	"github.com/mkfoss/xbase/internal/xbformat"
)

// Table is the public handle on an open record file (plus its companion
// memo file, if any): cursor navigation sugar layered over the coordinator's
// index-addressed read/write contract.
type Table struct {
	coord  *xbcoord.Coordinator
	log    *zap.Logger
	fields *Fields

	recNo int // 1-indexed current position; 0 means "not positioned"
	atBOF bool
	atEOF bool
	cur   *xbcoord.Record

	indexes *Indexes
}

// Open opens an existing table at path.
func Open(path string, opts OpenOptions) (*Table, error) {
	mode := opts.accessMode()
	coord, err := xbcoord.Open(path, mode)
	if err != nil {
		return nil, err
	}
	coord.ResolveOnRead = !opts.RawMemoReferences
	log := resolveLogger(opts.Logger)
	log.Info("table opened", zap.String("path", path), zap.Bool("read_only", opts.ReadOnly))
	t := &Table{coord: coord, log: log, fields: newFields(coord.Data().Fields())}
	return t, nil
}

// Create makes a new table at path with the given schema.
func Create(path string, fields []xbformat.FieldDescriptor, opts CreateOptions) (*Table, error) {
	dataOpts := xbdata.CreateOptions{Version: opts.Version, Overwrite: opts.Overwrite}
	coord, err := xbcoord.Create(path, fields, dataOpts, opts.MemoBlockSize)
	if err != nil {
		return nil, err
	}
	log := resolveLogger(opts.Logger)
	log.Info("table created", zap.String("path", path), zap.Int("field_count", len(fields)))
	return &Table{coord: coord, log: log, fields: newFields(coord.Data().Fields())}, nil
}

// Close releases the table's underlying files, including its index
// collection if it was ever loaded.
func (t *Table) Close() error {
	if t.indexes != nil && t.indexes.Loaded() {
		if err := t.indexes.Close(); err != nil {
			t.log.Warn("error closing index collection", zap.Error(err))
		}
	}
	t.log.Info("table closed", zap.String("path", t.coord.Data().Path()))
	return t.coord.Close()
}

// Path returns the table's file path.
func (t *Table) Path() string { return t.coord.Data().Path() }

// Fields returns the table's field collection.
func (t *Table) Fields() *Fields { return t.fields }

// RecordCount returns the header's record count (including deleted
// records still present on disk).
func (t *Table) RecordCount() uint32 { return t.coord.Data().RecordCount() }

// ActiveCount scans and returns the count of non-deleted records.
func (t *Table) ActiveCount() (uint32, error) { return t.coord.Data().ActiveCount() }

// DeletedCount scans and returns the count of deleted records.
func (t *Table) DeletedCount() (uint32, error) { return t.coord.Data().DeletedCount() }

// LastUpdated returns the header's stored last-modification date.
func (t *Table) LastUpdated() time.Time { return t.coord.Data().Header().LastUpdated() }

// HasMemoField reports whether the schema declares a memo field.
func (t *Table) HasMemoField() bool { return t.coord.Data().HasMemoField() }

// Indexes returns the table's lazily-loaded index collection. The
// companion .cdx file is not opened until the collection's first access.
func (t *Table) Indexes() *Indexes {
	if t.indexes == nil {
		t.indexes = newIndexes(t.Path(), t.log)
	}
	return t.indexes
}

func (t *Table) setPosition(index uint32, rec *xbcoord.Record) {
	t.recNo = int(index) + 1
	t.cur = rec
	t.atBOF = false
	t.atEOF = false
}

func (t *Table) positionOutOfRange(eof bool) {
	t.cur = nil
	if eof {
		t.atEOF = true
		t.atBOF = false
		t.recNo = int(t.RecordCount()) + 1
	} else {
		t.atBOF = true
		t.atEOF = false
		t.recNo = 0
	}
}

// goIndex moves the cursor to the 0-based record index, decoding it.
func (t *Table) goIndex(index uint32) error {
	rec, err := t.coord.Read(index)
	if err != nil {
		return err
	}
	t.setPosition(index, rec)
	return nil
}

// Goto moves to the given 1-indexed record number.
func (t *Table) Goto(recordNumber int) error {
	const op = "xbase.Goto"
	if recordNumber < 1 || uint32(recordNumber) > t.RecordCount() {
		return xbformat.New(xbformat.KindIndexOutOfRange, op, fmt.Sprintf("record number %d out of range", recordNumber))
	}
	return t.goIndex(uint32(recordNumber - 1))
}

// First moves to the table's first record.
func (t *Table) First() error {
	if t.RecordCount() == 0 {
		t.positionOutOfRange(false)
		return nil
	}
	return t.goIndex(0)
}

// Last moves to the table's last record.
func (t *Table) Last() error {
	if t.RecordCount() == 0 {
		t.positionOutOfRange(true)
		return nil
	}
	return t.goIndex(t.RecordCount() - 1)
}

// Next advances the cursor by one record, setting EOF once the end is
// passed.
func (t *Table) Next() error {
	if t.recNo == 0 && !t.atEOF {
		return t.First()
	}
	next := uint32(t.recNo) // recNo is 1-indexed, so this is the next 0-indexed slot
	if next >= t.RecordCount() {
		t.positionOutOfRange(true)
		return nil
	}
	return t.goIndex(next)
}

// Previous moves the cursor back by one record, setting BOF once the
// beginning is passed.
func (t *Table) Previous() error {
	if t.atEOF {
		return t.Last()
	}
	if t.recNo <= 1 {
		t.positionOutOfRange(false)
		return nil
	}
	return t.goIndex(uint32(t.recNo - 2))
}

// Skip moves the cursor by count records (negative moves backward).
func (t *Table) Skip(count int) error {
	if count == 0 {
		return nil
	}
	if count > 0 {
		for i := 0; i < count; i++ {
			if err := t.Next(); err != nil {
				return err
			}
			if t.atEOF {
				return nil
			}
		}
		return nil
	}
	for i := 0; i < -count; i++ {
		if err := t.Previous(); err != nil {
			return err
		}
		if t.atBOF {
			return nil
		}
	}
	return nil
}

// Position returns the current 1-indexed record number.
func (t *Table) Position() int { return t.recNo }

// EOF reports whether the cursor has advanced past the last record.
func (t *Table) EOF() bool { return t.atEOF }

// BOF reports whether the cursor sits before the first record.
func (t *Table) BOF() bool { return t.atBOF }

// Deleted reports whether the current record is marked for deletion.
func (t *Table) Deleted() bool {
	if t.cur == nil {
		return false
	}
	return t.cur.Deleted
}

// Delete marks the current record for deletion.
func (t *Table) Delete() error {
	const op = "xbase.Delete"
	if t.cur == nil {
		return xbformat.New(xbformat.KindIndexOutOfRange, op, "no current record")
	}
	if err := t.coord.Data().MarkDeleted(t.cur.Index); err != nil {
		return err
	}
	return t.goIndex(t.cur.Index)
}

// Recall undeletes the current record.
func (t *Table) Recall() error {
	const op = "xbase.Recall"
	if t.cur == nil {
		return xbformat.New(xbformat.KindIndexOutOfRange, op, "no current record")
	}
	if err := t.coord.Data().Undelete(t.cur.Index); err != nil {
		return err
	}
	return t.goIndex(t.cur.Index)
}

// Field returns the named field of the current record, or the zero Field
// (whose every accessor errors) if there is no current record or no such
// field.
func (t *Table) Field(name string) Field {
	if t.cur == nil {
		return Field{}
	}
	idx, ok := t.fields.indices[name]
	if !ok {
		idx, ok = t.fields.indices[strings.ToUpper(name)]
	}
	if !ok {
		return Field{}
	}
	desc := t.fields.descs[idx]
	f := Field{desc: desc, value: t.cur.Values[desc.Name]}
	if desc.Type == 'M' && t.cur.MemoText != nil {
		f.memoText, f.hasMemo = t.cur.MemoText[desc.Name]
	}
	return f
}

// FieldByIndex returns the field at the given zero-based schema position of
// the current record.
func (t *Table) FieldByIndex(index int) Field {
	desc, ok := t.fields.Descriptor(index)
	if !ok || t.cur == nil {
		return Field{}
	}
	f := Field{desc: desc, value: t.cur.Values[desc.Name]}
	if desc.Type == 'M' && t.cur.MemoText != nil {
		f.memoText, f.hasMemo = t.cur.MemoText[desc.Name]
	}
	return f
}

// Read returns the record at the given 0-indexed position without moving
// the cursor.
func (t *Table) Read(index uint32) (*xbcoord.Record, error) { return t.coord.Read(index) }

// ReadAll returns every record, optionally including deleted ones, without
// moving the cursor.
func (t *Table) ReadAll(includeDeleted bool) ([]*xbcoord.Record, error) {
	return t.coord.ReadAll(includeDeleted)
}

// Stream returns a restartable iterator over the table's records.
func (t *Table) Stream(opts xbdata.StreamOptions) *xbcoord.Stream { return t.coord.Stream(opts) }

// Append writes a new record built from input (field name -> string or
// xbformat.Value), positioning the cursor on it.
func (t *Table) Append(input map[string]any) (*xbcoord.Record, error) {
	rec, err := t.coord.Append(input)
	if err != nil {
		return nil, err
	}
	t.setPosition(rec.Index, rec)
	return rec, nil
}

// Update merges input into the record at index.
func (t *Table) Update(index uint32, input map[string]any) (*xbcoord.Record, error) {
	rec, err := t.coord.Update(index, input)
	if err != nil {
		return nil, err
	}
	if t.cur != nil && t.cur.Index == index {
		t.cur = rec
	}
	return rec, nil
}

// BatchAppend appends several records in one header update.
func (t *Table) BatchAppend(inputs []map[string]any) ([]*xbcoord.Record, error) {
	return t.coord.BatchAppend(inputs)
}

// BatchUpdate applies several updates in list order, in one header update.
func (t *Table) BatchUpdate(indices []uint32, inputs []map[string]any) ([]*xbcoord.Record, error) {
	return t.coord.BatchUpdate(indices, inputs)
}

// BatchDelete marks several indices deleted in list order, in one header
// update.
func (t *Table) BatchDelete(indices []uint32) error {
	return t.coord.BatchDelete(indices)
}

// Zap deletes every record in [startIndex, startIndex+count).
func (t *Table) Zap(startIndex, count uint32) error {
	return t.coord.Zap(startIndex, count)
}

// Pack writes a new table at outputPath containing only live records, with
// memo references (if any) remapped and compacted.
func (t *Table) Pack(outputPath string) (*Table, error) {
	newCoord, err := t.coord.Pack(outputPath)
	if err != nil {
		return nil, err
	}
	t.log.Info("table packed", zap.String("from", t.Path()), zap.String("to", outputPath))
	return &Table{coord: newCoord, log: t.log, fields: newFields(newCoord.Data().Fields())}, nil
}

// WithTransaction snapshots the table's file(s), running closure; on
// failure, the byte-level shadow is restored and the closure's error is
// returned wrapped as TransactionRolledBack.
func (t *Table) WithTransaction(closure func(*Table) (any, error)) (any, error) {
	t.log.Info("transaction begin", zap.String("path", t.Path()))
	result, err := t.coord.WithTransaction(func(*xbcoord.Coordinator) (any, error) {
		return closure(t)
	})
	if err != nil {
		t.log.Warn("transaction rolled back", zap.String("path", t.Path()), zap.Error(err))
		return nil, err
	}
	t.log.Info("transaction commit", zap.String("path", t.Path()))
	return result, nil
}
