// Package xbdata implements the record engine: open/create/close over
// a DBF-layout file, typed record read/write, deletion and pack, and a
// restartable streaming iterator. Field and header byte layouts come from
// internal/xbformat.
package xbdata

import (
	"fmt"
	"os"
	"time"

	"github.com/mkfoss/xbase/internal/xbformat"
)

// AccessMode selects whether an opened engine permits mutation.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

// Overwrite selects Create's behavior when the target path already exists.
type Overwrite int

const (
	ErrorIfExists Overwrite = iota
	Truncate
)

// CreateOptions configures Create. Version is the explicit header version
// byte to write; if zero, the version is auto-selected from whether fields
// contains a memo type, per xbformat.SelectVersion.
type CreateOptions struct {
	Version   byte
	Overwrite Overwrite
}

// Record is a parsed record: the deletion flag, the field-name-to-value
// map, and the raw bytes it was decoded from. Records are not owned by the
// engine; callers take ownership on receipt.
type Record struct {
	Index   uint32
	Deleted bool
	Values  map[string]xbformat.Value
	Raw     []byte
}

// Engine is a single-owner handle on an open DBF-layout record file.
type Engine struct {
	path         string
	file         *os.File
	header       xbformat.Header
	fields       []xbformat.FieldDescriptor
	readOnly     bool
	memoFormatIV bool
}

// Open opens an existing record file for reading, or reading and writing.
func Open(path string, mode AccessMode) (*Engine, error) {
	const op = "xbdata.Open"
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xbformat.Wrap(xbformat.KindNotFound, op, path, err)
		}
		return nil, xbformat.Wrap(xbformat.KindIO, op, path, err)
	}

	e, err := newEngineFromFile(path, f, mode == ReadOnly)
	if err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

func newEngineFromFile(path string, f *os.File, readOnly bool) (*Engine, error) {
	const op = "xbdata.Open"
	hbuf := make([]byte, xbformat.HeaderSize)
	if err := xbformat.PositionedRead(f, 0, hbuf); err != nil {
		return nil, err
	}
	header, err := xbformat.DecodeHeader(hbuf)
	if err != nil {
		return nil, err
	}

	n := (int(header.HeaderLength) - xbformat.HeaderSize - 1) / xbformat.FieldDescriptorSize
	if n <= 0 {
		return nil, xbformat.New(xbformat.KindInvalidFieldDescriptor, op, "header declares zero field descriptors")
	}
	fields := make([]xbformat.FieldDescriptor, 0, n)
	offset := uint32(1)
	for i := 0; i < n; i++ {
		buf := make([]byte, xbformat.FieldDescriptorSize)
		pos := int64(xbformat.HeaderSize + i*xbformat.FieldDescriptorSize)
		if err := xbformat.PositionedRead(f, pos, buf); err != nil {
			return nil, err
		}
		fd, err := xbformat.DecodeFieldDescriptor(buf)
		if err != nil {
			return nil, err
		}
		fd.Offset = offset
		offset += uint32(fd.Length)
		fields = append(fields, fd)
	}

	termBuf := make([]byte, 1)
	termPos := int64(xbformat.HeaderSize + n*xbformat.FieldDescriptorSize)
	if err := xbformat.PositionedRead(f, termPos, termBuf); err != nil {
		return nil, err
	}
	if termBuf[0] != xbformat.Terminator {
		return nil, xbformat.New(xbformat.KindInvalidHeader, op, "missing 0x0D field-array terminator")
	}
	if err := xbformat.ValidateInvariants(header, fields); err != nil {
		return nil, err
	}

	hasMemo := false
	for _, fd := range fields {
		if fd.Type == 'M' {
			hasMemo = true
			break
		}
	}
	if hasMemo != xbformat.HasMemo(header.Version) {
		return nil, xbformat.New(xbformat.KindMemoFormatMismatch, op,
			fmt.Sprintf("version byte 0x%02X memo-ness disagrees with schema", header.Version))
	}

	return &Engine{
		path:         path,
		file:         f,
		header:       header,
		fields:       fields,
		readOnly:     readOnly,
		memoFormatIV: header.Version == xbformat.VersionMemoDBase4,
	}, nil
}

// Create makes a new record file with the given schema.
func Create(path string, fields []xbformat.FieldDescriptor, opts CreateOptions) (*Engine, error) {
	const op = "xbdata.Create"
	if len(fields) == 0 {
		return nil, xbformat.New(xbformat.KindInvalidFieldDescriptor, op, "schema must have at least one field")
	}

	flag := os.O_RDWR | os.O_CREATE
	if opts.Overwrite == ErrorIfExists {
		if _, err := os.Stat(path); err == nil {
			return nil, xbformat.New(xbformat.KindFileExists, op, path)
		}
		flag |= os.O_EXCL
	} else {
		flag |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, xbformat.Wrap(xbformat.KindIO, op, path, err)
	}

	hasMemo := false
	offset := uint32(1)
	for i := range fields {
		if fields[i].Name == "" {
			f.Close()
			return nil, xbformat.New(xbformat.KindInvalidFieldDescriptor, op, "empty field name")
		}
		fields[i].Offset = offset
		offset += uint32(fields[i].Length)
		if fields[i].Type == 'M' {
			hasMemo = true
		}
	}

	version := opts.Version
	if version == 0 {
		version = xbformat.SelectVersion(hasMemo)
	}

	now := time.Now()
	header := xbformat.Header{
		Version:      version,
		RecordCount:  0,
		HeaderLength: xbformat.HeaderLengthFor(len(fields)),
		RecordLength: xbformat.RecordLengthFor(fields),
	}
	header.SetLastUpdated(now)

	if err := xbformat.PositionedWrite(f, 0, xbformat.EncodeHeader(header)); err != nil {
		f.Close()
		return nil, err
	}
	for i, fd := range fields {
		pos := int64(xbformat.HeaderSize + i*xbformat.FieldDescriptorSize)
		if err := xbformat.PositionedWrite(f, pos, xbformat.EncodeFieldDescriptor(fd)); err != nil {
			f.Close()
			return nil, err
		}
	}
	termPos := int64(xbformat.HeaderSize + len(fields)*xbformat.FieldDescriptorSize)
	if err := xbformat.PositionedWrite(f, termPos, []byte{xbformat.Terminator}); err != nil {
		f.Close()
		return nil, err
	}

	return &Engine{
		path:         path,
		file:         f,
		header:       header,
		fields:       fields,
		readOnly:     false,
		memoFormatIV: version == xbformat.VersionMemoDBase4,
	}, nil
}

// Close flushes and releases the file handle.
func (e *Engine) Close() error {
	const op = "xbdata.Close"
	if err := e.file.Sync(); err != nil {
		e.file.Close()
		return xbformat.Wrap(xbformat.KindIO, op, e.path, err)
	}
	if err := e.file.Close(); err != nil {
		return xbformat.Wrap(xbformat.KindIO, op, e.path, err)
	}
	return nil
}

// Path returns the file path this engine was opened/created from.
func (e *Engine) Path() string { return e.path }

// Fields returns the engine's field-descriptor schema.
func (e *Engine) Fields() []xbformat.FieldDescriptor { return e.fields }

// Header returns the engine's parsed header.
func (e *Engine) Header() xbformat.Header { return e.header }

// HasMemoField reports whether the schema contains a memo-type field.
func (e *Engine) HasMemoField() bool {
	for _, fd := range e.fields {
		if fd.Type == 'M' {
			return true
		}
	}
	return false
}

// MemoFormatIV reports whether memo references in this schema encode as a
// 4-byte little-endian integer (format IV) rather than decimal ASCII
// (format III).
func (e *Engine) MemoFormatIV() bool { return e.memoFormatIV }

// ReadOnly reports whether the engine was opened without write access.
func (e *Engine) ReadOnly() bool { return e.readOnly }

// RecordCount returns the header's record count, deleted records included.
func (e *Engine) RecordCount() uint32 { return e.header.RecordCount }

// ActiveCount scans every record's deletion byte and returns the live count.
func (e *Engine) ActiveCount() (uint32, error) {
	count := uint32(0)
	buf := make([]byte, 1)
	for i := uint32(0); i < e.header.RecordCount; i++ {
		if err := xbformat.PositionedRead(e.file, e.recordOffset(i), buf); err != nil {
			return 0, err
		}
		if buf[0] == xbformat.DeletionLive {
			count++
		}
	}
	return count, nil
}

// DeletedCount returns record_count - active_count.
func (e *Engine) DeletedCount() (uint32, error) {
	active, err := e.ActiveCount()
	if err != nil {
		return 0, err
	}
	return e.header.RecordCount - active, nil
}

func (e *Engine) recordOffset(index uint32) int64 {
	return int64(e.header.HeaderLength) + int64(index)*int64(e.header.RecordLength)
}

func (e *Engine) checkWritable(op string) error {
	if e.readOnly {
		return xbformat.New(xbformat.KindNotWritable, op, e.path)
	}
	return nil
}

// readRaw positioned-reads the raw bytes of record index, failing with
// IndexOutOfRange if index >= record_count.
func (e *Engine) readRaw(op string, index uint32) ([]byte, error) {
	if index >= e.header.RecordCount {
		return nil, xbformat.New(xbformat.KindIndexOutOfRange, op,
			fmt.Sprintf("index %d >= record_count %d", index, e.header.RecordCount))
	}
	buf := make([]byte, e.header.RecordLength)
	if err := xbformat.PositionedRead(e.file, e.recordOffset(index), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *Engine) decodeRecord(index uint32, raw []byte) (*Record, error) {
	values := make(map[string]xbformat.Value, len(e.fields))
	for _, fd := range e.fields {
		slot := raw[fd.Offset : fd.Offset+uint32(fd.Length)]
		v, err := xbformat.DecodeField(fd, slot, e.memoFormatIV)
		if err != nil {
			return nil, err
		}
		values[fd.Name] = v
	}
	return &Record{
		Index:   index,
		Deleted: raw[0] == xbformat.DeletionDeleted,
		Values:  values,
		Raw:     raw,
	}, nil
}

// Read returns the record at index.
func (e *Engine) Read(index uint32) (*Record, error) {
	const op = "xbdata.Read"
	raw, err := e.readRaw(op, index)
	if err != nil {
		return nil, err
	}
	return e.decodeRecord(index, raw)
}

// ReadAll reads every record in order, optionally including deleted ones.
func (e *Engine) ReadAll(includeDeleted bool) ([]*Record, error) {
	const op = "xbdata.ReadAll"
	out := make([]*Record, 0, e.header.RecordCount)
	for i := uint32(0); i < e.header.RecordCount; i++ {
		raw, err := e.readRaw(op, i)
		if err != nil {
			return nil, err
		}
		if !includeDeleted && raw[0] == xbformat.DeletionDeleted {
			continue
		}
		rec, err := e.decodeRecord(i, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// encodeRecord builds the raw record_length-byte slice for deleted+values.
func (e *Engine) encodeRecord(deleted bool, values map[string]xbformat.Value) ([]byte, error) {
	buf := make([]byte, e.header.RecordLength)
	if deleted {
		buf[0] = xbformat.DeletionDeleted
	} else {
		buf[0] = xbformat.DeletionLive
	}
	for _, fd := range e.fields {
		v, ok := values[fd.Name]
		if !ok {
			v = xbformat.ZeroValue(fd)
		}
		slot, err := xbformat.EncodeField(fd, v, e.memoFormatIV)
		if err != nil {
			return nil, err
		}
		copy(buf[fd.Offset:fd.Offset+uint32(fd.Length)], slot)
	}
	return buf, nil
}

func (e *Engine) writeHeader() error {
	return xbformat.PositionedWrite(e.file, 0, xbformat.EncodeHeader(e.header))
}

func (e *Engine) touchLastUpdated() {
	e.header.SetLastUpdated(time.Now())
}

// Append writes a new record with the given values; missing fields receive
// their per-type defaults. Returns the written record.
func (e *Engine) Append(values map[string]xbformat.Value) (*Record, error) {
	const op = "xbdata.Append"
	if err := e.checkWritable(op); err != nil {
		return nil, err
	}
	raw, err := e.encodeRecord(false, values)
	if err != nil {
		return nil, err
	}
	index := e.header.RecordCount
	if err := xbformat.PositionedWrite(e.file, e.recordOffset(index), raw); err != nil {
		return nil, err
	}
	e.header.RecordCount++
	e.touchLastUpdated()
	if err := e.writeHeader(); err != nil {
		return nil, err
	}
	return e.decodeRecord(index, raw)
}

// Update merges partial into the existing record at index, preserving its
// deletion marker, and rewrites it in place.
func (e *Engine) Update(index uint32, partial map[string]xbformat.Value) (*Record, error) {
	const op = "xbdata.Update"
	if err := e.checkWritable(op); err != nil {
		return nil, err
	}
	existingRaw, err := e.readRaw(op, index)
	if err != nil {
		return nil, err
	}
	existing, err := e.decodeRecord(index, existingRaw)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]xbformat.Value, len(e.fields))
	for k, v := range existing.Values {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	raw, err := e.encodeRecord(existing.Deleted, merged)
	if err != nil {
		return nil, err
	}
	if err := xbformat.PositionedWrite(e.file, e.recordOffset(index), raw); err != nil {
		return nil, err
	}
	return e.decodeRecord(index, raw)
}

// MarkDeleted flips the leading deletion byte to deleted. Idempotent.
func (e *Engine) MarkDeleted(index uint32) error {
	return e.setDeletionByte(index, xbformat.DeletionDeleted)
}

// Undelete flips the leading deletion byte to live. Idempotent.
func (e *Engine) Undelete(index uint32) error {
	return e.setDeletionByte(index, xbformat.DeletionLive)
}

func (e *Engine) setDeletionByte(index uint32, marker byte) error {
	const op = "xbdata.setDeletionByte"
	if err := e.checkWritable(op); err != nil {
		return err
	}
	if index >= e.header.RecordCount {
		return xbformat.New(xbformat.KindIndexOutOfRange, op,
			fmt.Sprintf("index %d >= record_count %d", index, e.header.RecordCount))
	}
	return xbformat.PositionedWrite(e.file, e.recordOffset(index), []byte{marker})
}

// Pack produces a new file at outputPath containing only live records, in
// original order, with a header otherwise identical to the source.
func (e *Engine) Pack(outputPath string) (*Engine, error) {
	const op = "xbdata.Pack"
	out, err := Create(outputPath, cloneFields(e.fields), CreateOptions{Version: e.header.Version, Overwrite: Truncate})
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < e.header.RecordCount; i++ {
		raw, err := e.readRaw(op, i)
		if err != nil {
			out.Close()
			return nil, err
		}
		if raw[0] == xbformat.DeletionDeleted {
			continue
		}
		rec, err := e.decodeRecord(i, raw)
		if err != nil {
			out.Close()
			return nil, err
		}
		if _, err := out.Append(rec.Values); err != nil {
			out.Close()
			return nil, err
		}
	}
	packedCount := out.header.RecordCount
	out.header = e.header
	out.header.RecordCount = packedCount
	if err := out.writeHeader(); err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}

func cloneFields(fields []xbformat.FieldDescriptor) []xbformat.FieldDescriptor {
	out := make([]xbformat.FieldDescriptor, len(fields))
	copy(out, fields)
	return out
}

// BatchAppend appends N records, writing the header's last-update date
// exactly once for the whole batch.
func (e *Engine) BatchAppend(valuesList []map[string]xbformat.Value) ([]*Record, error) {
	const op = "xbdata.BatchAppend"
	if err := e.checkWritable(op); err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(valuesList))
	for _, values := range valuesList {
		raw, err := e.encodeRecord(false, values)
		if err != nil {
			return nil, err
		}
		index := e.header.RecordCount
		if err := xbformat.PositionedWrite(e.file, e.recordOffset(index), raw); err != nil {
			return nil, err
		}
		e.header.RecordCount++
		rec, err := e.decodeRecord(index, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	e.touchLastUpdated()
	if err := e.writeHeader(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordUpdate pairs a target index with its partial update, for BatchUpdate.
type RecordUpdate struct {
	Index   uint32
	Partial map[string]xbformat.Value
}

// BatchUpdate applies N updates in list order, header date written once.
func (e *Engine) BatchUpdate(updates []RecordUpdate) ([]*Record, error) {
	const op = "xbdata.BatchUpdate"
	if err := e.checkWritable(op); err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(updates))
	for _, u := range updates {
		rec, err := e.Update(u.Index, u.Partial)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	e.touchLastUpdated()
	if err := e.writeHeader(); err != nil {
		return nil, err
	}
	return out, nil
}

// Zap deletes every record in [startIndex, startIndex+count), marking them
// rather than physically removing them — a caller wanting the space back
// still needs Pack. When startIndex is 0 and count covers the whole file,
// the record count is reset to 0 and the file truncated to just past the
// field descriptors.
func (e *Engine) Zap(startIndex, count uint32) error {
	const op = "xbdata.Zap"
	if err := e.checkWritable(op); err != nil {
		return err
	}
	if startIndex >= e.header.RecordCount && e.header.RecordCount > 0 {
		return xbformat.New(xbformat.KindIndexOutOfRange, op,
			fmt.Sprintf("start index %d >= record_count %d", startIndex, e.header.RecordCount))
	}

	end := startIndex + count
	if end > e.header.RecordCount {
		end = e.header.RecordCount
	}

	if startIndex == 0 && end == e.header.RecordCount {
		if err := e.file.Truncate(int64(e.header.HeaderLength)); err != nil {
			return xbformat.Wrap(xbformat.KindIO, op, e.path, err)
		}
		e.header.RecordCount = 0
		e.touchLastUpdated()
		return e.writeHeader()
	}

	for i := startIndex; i < end; i++ {
		if err := e.MarkDeleted(i); err != nil {
			return err
		}
	}
	e.touchLastUpdated()
	return e.writeHeader()
}

// BatchDelete marks N indices deleted in list order, header date written
// once.
func (e *Engine) BatchDelete(indices []uint32) error {
	const op = "xbdata.BatchDelete"
	if err := e.checkWritable(op); err != nil {
		return err
	}
	for _, idx := range indices {
		if err := e.MarkDeleted(idx); err != nil {
			return err
		}
	}
	e.touchLastUpdated()
	return e.writeHeader()
}
