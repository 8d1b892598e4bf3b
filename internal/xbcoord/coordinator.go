// Package xbcoord implements the coordinator: it binds a record engine
// to a memo store and transparently translates between the caller-facing
// text a memo field holds and the memo reference the record engine
// actually stores, extending transactions across both files.
package xbcoord

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mkfoss/xbase/internal/xbdata"
	"github.com/mkfoss/xbase/internal/xbformat"
	"github.com/mkfoss/xbase/internal/xbmemo"
)

// Coordinator binds a record engine and an optional memo store (present
// only when the schema carries a memo field) for its whole lifetime.
type Coordinator struct {
	data *xbdata.Engine
	memo *xbmemo.Store
	// ResolveOnRead controls whether Read/ReadAll eagerly resolve memo
	// references into text. Defaults to true; callers wanting raw memo
	// references can use Data() to talk to the record engine directly.
	ResolveOnRead bool
}

// Record pairs a raw record with its memo fields resolved to text, when
// ResolveOnRead is enabled.
type Record struct {
	*xbdata.Record
	MemoText map[string]string
}

// memoPath derives the conventional .dbt companion path for a .dbf path.
func memoPath(dataPath string) string {
	if i := strings.LastIndexByte(dataPath, '.'); i >= 0 {
		return dataPath[:i] + ".dbt"
	}
	return dataPath + ".dbt"
}

// Bind constructs a Coordinator directly from already-open engines. memo
// may be nil when the schema has no memo field.
func Bind(data *xbdata.Engine, memo *xbmemo.Store) *Coordinator {
	return &Coordinator{data: data, memo: memo, ResolveOnRead: true}
}

// Open opens the record file at path and, if its schema declares a memo
// field, its companion memo file.
func Open(path string, mode xbdata.AccessMode) (*Coordinator, error) {
	const op = "xbcoord.Open"
	data, err := xbdata.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if !data.HasMemoField() {
		return Bind(data, nil), nil
	}
	memo, err := xbmemo.Open(memoPath(path))
	if err != nil {
		data.Close()
		return nil, xbformat.Wrap(xbformat.KindMemoFormatMismatch, op, "schema declares a memo field but its companion memo file could not be opened", err)
	}
	return Bind(data, memo), nil
}

// Create makes a new record file at path and, if fields declares a memo
// field, a companion memo file with the given block size.
func Create(path string, fields []xbformat.FieldDescriptor, dataOpts xbdata.CreateOptions, memoBlockSize uint16) (*Coordinator, error) {
	data, err := xbdata.Create(path, fields, dataOpts)
	if err != nil {
		return nil, err
	}
	if !data.HasMemoField() {
		return Bind(data, nil), nil
	}
	format := xbmemo.FormatIII
	if data.MemoFormatIV() {
		format = xbmemo.FormatIV
	}
	if memoBlockSize == 0 {
		memoBlockSize = 512
	}
	memo, err := xbmemo.Create(memoPath(path), memoBlockSize, format)
	if err != nil {
		data.Close()
		return nil, err
	}
	return Bind(data, memo), nil
}

// Close closes both underlying files.
func (c *Coordinator) Close() error {
	var dataErr, memoErr error
	if c.memo != nil {
		memoErr = c.memo.Close()
	}
	dataErr = c.data.Close()
	if dataErr != nil {
		return dataErr
	}
	return memoErr
}

// Data returns the underlying record engine for callers who want
// unresolved records (memo fields left as raw references).
func (c *Coordinator) Data() *xbdata.Engine { return c.data }

// Memo returns the underlying memo store, or nil if the schema has no
// memo field.
func (c *Coordinator) Memo() *xbmemo.Store { return c.memo }

// resolve builds a Record from a raw record, resolving memo fields to
// text when ResolveOnRead is set.
func (c *Coordinator) resolve(rec *xbdata.Record) (*Record, error) {
	out := &Record{Record: rec}
	if !c.ResolveOnRead || c.memo == nil {
		return out, nil
	}
	out.MemoText = make(map[string]string)
	for _, fd := range c.data.Fields() {
		if fd.Type != 'M' {
			continue
		}
		v := rec.Values[fd.Name]
		if v.MemoRef == 0 {
			out.MemoText[fd.Name] = ""
			continue
		}
		text, err := c.memo.Read(v.MemoRef)
		if err != nil {
			return nil, err
		}
		out.MemoText[fd.Name] = text
	}
	return out, nil
}

// Read returns the record at index, with memo fields resolved to text
// when ResolveOnRead is enabled (the default read policy).
func (c *Coordinator) Read(index uint32) (*Record, error) {
	rec, err := c.data.Read(index)
	if err != nil {
		return nil, err
	}
	return c.resolve(rec)
}

// ReadAll reads every record, optionally including deleted ones.
func (c *Coordinator) ReadAll(includeDeleted bool) ([]*Record, error) {
	recs, err := c.data.ReadAll(includeDeleted)
	if err != nil {
		return nil, err
	}
	return c.resolveAll(recs)
}

// translate converts a caller-facing input map into the xbformat.Value map
// the record engine expects. For a memo field, a string input is written to
// the memo store eagerly (Write, or Update against the record's existing
// reference when one is supplied); an integer input is taken as an existing
// memo reference and passes through unchanged. For every other field type,
// a native Go value (string, integer, float, bool, time.Time) is converted
// to that field's typed Value; an xbformat.Value input always passes
// through unchanged.
func (c *Coordinator) translate(input map[string]any, existing map[string]xbformat.Value) (map[string]xbformat.Value, error) {
	const op = "xbcoord.translate"
	values := make(map[string]xbformat.Value, len(input))
	fieldsByName := make(map[string]xbformat.FieldDescriptor, len(c.data.Fields()))
	for _, fd := range c.data.Fields() {
		fieldsByName[fd.Name] = fd
	}

	for name, raw := range input {
		fd, ok := fieldsByName[strings.ToUpper(name)]
		if !ok {
			fd, ok = fieldsByName[name]
		}
		if !ok {
			return nil, xbformat.New(xbformat.KindInvalidFieldDescriptor, op, "unknown field "+name)
		}

		if v, isValue := raw.(xbformat.Value); isValue {
			values[fd.Name] = v
			continue
		}
		if text, isText := raw.(string); isText && fd.Type == 'M' {
			ref, err := c.writeMemoText(op, fd, text, existing)
			if err != nil {
				return nil, err
			}
			values[fd.Name] = xbformat.Value{Type: 'M', MemoRef: ref}
			continue
		}
		v, err := convertInput(op, fd, raw)
		if err != nil {
			return nil, err
		}
		values[fd.Name] = v
	}
	return values, nil
}

// writeMemoText stores text in the memo store, reusing the record's
// existing run for this field when one is supplied and the text fits.
func (c *Coordinator) writeMemoText(op string, fd xbformat.FieldDescriptor, text string, existing map[string]xbformat.Value) (uint32, error) {
	if c.memo == nil {
		return 0, xbformat.New(xbformat.KindMemoFormatMismatch, op, "field "+fd.Name+" is a memo field but no memo store is bound")
	}
	// Reject before the memo write; the record engine's own check fires
	// only after the block would already be on disk.
	if c.data.ReadOnly() {
		return 0, xbformat.New(xbformat.KindNotWritable, op, c.data.Path())
	}
	existingRef := uint32(0)
	if existing != nil {
		existingRef = existing[fd.Name].MemoRef
	}
	if existingRef != 0 {
		return c.memo.Update(existingRef, text)
	}
	return c.memo.Write(text)
}

// convertInput builds the typed Value for fd from a native Go input.
func convertInput(op string, fd xbformat.FieldDescriptor, raw any) (xbformat.Value, error) {
	switch fd.Type {
	case 'C':
		if s, ok := raw.(string); ok {
			return xbformat.Value{Type: 'C', Text: s}, nil
		}
	case 'N', 'F':
		if n, ok := asInt64(raw); ok {
			if fd.Decimals > 0 {
				return xbformat.Value{Type: fd.Type, Real: float64(n)}, nil
			}
			return xbformat.Value{Type: fd.Type, Integer: n}, nil
		}
		if f, ok := raw.(float64); ok {
			if fd.Decimals == 0 {
				return xbformat.Value{Type: fd.Type, Integer: int64(f)}, nil
			}
			return xbformat.Value{Type: fd.Type, Real: f}, nil
		}
		if s, ok := raw.(string); ok {
			return parseNumericText(op, fd, s)
		}
	case 'I':
		if n, ok := asInt64(raw); ok {
			return xbformat.Value{Type: 'I', Integer: n}, nil
		}
	case 'L':
		if b, ok := raw.(bool); ok {
			logical := xbformat.LogicalFalse
			if b {
				logical = xbformat.LogicalTrue
			}
			return xbformat.Value{Type: 'L', Logical: logical}, nil
		}
	case 'D':
		if t, ok := raw.(time.Time); ok {
			if t.IsZero() {
				return xbformat.Value{Type: 'D'}, nil
			}
			return xbformat.Value{Type: 'D', Date: xbformat.Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}}, nil
		}
	case 'T':
		if t, ok := raw.(time.Time); ok {
			return xbformat.Value{Type: 'T', Instant: t}, nil
		}
	case 'M':
		if n, ok := asInt64(raw); ok {
			return xbformat.Value{Type: 'M', MemoRef: uint32(n)}, nil
		}
	}
	return xbformat.Value{}, xbformat.New(xbformat.KindInvalidFieldDescriptor, op,
		fmt.Sprintf("field %s: cannot convert %T to type %c", fd.Name, raw, fd.Type))
}

func asInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func parseNumericText(op string, fd xbformat.FieldDescriptor, s string) (xbformat.Value, error) {
	if fd.Decimals == 0 {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return xbformat.Value{}, xbformat.Wrap(xbformat.KindValueOutOfRange, op, "field "+fd.Name+": parse integer", err)
		}
		return xbformat.Value{Type: fd.Type, Integer: n}, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return xbformat.Value{}, xbformat.Wrap(xbformat.KindValueOutOfRange, op, "field "+fd.Name+": parse real", err)
	}
	return xbformat.Value{Type: fd.Type, Real: f}, nil
}

// Append writes a new record, translating any text supplied for a memo
// field into a freshly-written memo block.
func (c *Coordinator) Append(input map[string]any) (*Record, error) {
	values, err := c.translate(input, nil)
	if err != nil {
		return nil, err
	}
	rec, err := c.data.Append(values)
	if err != nil {
		return nil, err
	}
	return c.resolve(rec)
}

// Update merges input into the record at index, reusing the existing memo
// run for any memo field whose text fits (see xbmemo.Store.Update).
func (c *Coordinator) Update(index uint32, input map[string]any) (*Record, error) {
	existingRec, err := c.data.Read(index)
	if err != nil {
		return nil, err
	}
	values, err := c.translate(input, existingRec.Values)
	if err != nil {
		return nil, err
	}
	rec, err := c.data.Update(index, values)
	if err != nil {
		return nil, err
	}
	return c.resolve(rec)
}

// BatchAppend appends N records in list order, translating memo text per
// record but committing the record writes through the engine's batch path
// so the header's last-update date is written once for the whole batch.
func (c *Coordinator) BatchAppend(inputs []map[string]any) ([]*Record, error) {
	valuesList := make([]map[string]xbformat.Value, 0, len(inputs))
	for _, input := range inputs {
		values, err := c.translate(input, nil)
		if err != nil {
			return nil, err
		}
		valuesList = append(valuesList, values)
	}
	recs, err := c.data.BatchAppend(valuesList)
	if err != nil {
		return nil, err
	}
	return c.resolveAll(recs)
}

// BatchUpdate merges inputs[i] into the record at indices[i], in list
// order, header date written once.
func (c *Coordinator) BatchUpdate(indices []uint32, inputs []map[string]any) ([]*Record, error) {
	const op = "xbcoord.BatchUpdate"
	if len(indices) != len(inputs) {
		return nil, xbformat.New(xbformat.KindInvalidFieldDescriptor, op, "indices and inputs must be the same length")
	}
	updates := make([]xbdata.RecordUpdate, 0, len(indices))
	for i, idx := range indices {
		existing, err := c.data.Read(idx)
		if err != nil {
			return nil, err
		}
		values, err := c.translate(inputs[i], existing.Values)
		if err != nil {
			return nil, err
		}
		updates = append(updates, xbdata.RecordUpdate{Index: idx, Partial: values})
	}
	recs, err := c.data.BatchUpdate(updates)
	if err != nil {
		return nil, err
	}
	return c.resolveAll(recs)
}

// BatchDelete marks N indices deleted in list order, header date written
// once.
func (c *Coordinator) BatchDelete(indices []uint32) error {
	return c.data.BatchDelete(indices)
}

func (c *Coordinator) resolveAll(recs []*xbdata.Record) ([]*Record, error) {
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		resolved, err := c.resolve(r)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// Stream is a restartable, demand-driven iterator over a coordinator's
// records with memo fields resolved per the bound ResolveOnRead policy.
type Stream struct {
	coord *Coordinator
	inner *xbdata.Stream
}

// Stream returns a new restartable iterator, mirroring the record engine's
// own Stream but resolving memo text along the way.
func (c *Coordinator) Stream(opts xbdata.StreamOptions) *Stream {
	return &Stream{coord: c, inner: c.data.Stream(opts)}
}

// Next advances the iterator, resolving the next record's memo fields.
func (s *Stream) Next() (*Record, bool, error) {
	rec, ok, err := s.inner.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	resolved, err := s.coord.resolve(rec)
	if err != nil {
		return nil, false, err
	}
	return resolved, true, nil
}

// Reset rewinds the iterator to the start.
func (s *Stream) Reset() { s.inner.Reset() }

// Zap deletes every record in [startIndex, startIndex+count) via the
// underlying record engine.
func (c *Coordinator) Zap(startIndex, count uint32) error {
	return c.data.Zap(startIndex, count)
}

// Pack writes live records to a new companion pair at outputPath, reusing
// the record engine's Pack for the record file and, when a memo store is
// bound, compacting it alongside and remapping every surviving record's
// memo reference to its new block index — Pack on a memo-bearing table
// without this step would leave references pointing at whatever compaction
// left behind.
func (c *Coordinator) Pack(outputPath string) (*Coordinator, error) {
	if c.memo == nil {
		newData, err := c.data.Pack(outputPath)
		if err != nil {
			return nil, err
		}
		return Bind(newData, nil), nil
	}

	// Compact the memo store to a temporary path first; it is renamed to
	// memoPath(outputPath) only once the packed record file is complete, and
	// every error path below removes it.
	tmpMemoPath := memoPath(outputPath) + ".packtmp"
	compactedMemo, mapping, err := c.memo.Compact(tmpMemoPath)
	if err != nil {
		return nil, err
	}

	newDataEngine, err := xbdata.Create(outputPath, cloneFieldDescriptors(c.data.Fields()), dataCreateOptionsFor(c.data))
	if err != nil {
		compactedMemo.Close()
		os.Remove(tmpMemoPath)
		return nil, err
	}

	recs, err := c.data.ReadAll(false)
	if err != nil {
		newDataEngine.Close()
		compactedMemo.Close()
		os.Remove(tmpMemoPath)
		return nil, err
	}
	for _, rec := range recs {
		values := make(map[string]xbformat.Value, len(rec.Values))
		for name, v := range rec.Values {
			if v.Type == 'M' && v.MemoRef != 0 {
				v.MemoRef = mapping[v.MemoRef]
			}
			values[name] = v
		}
		if _, err := newDataEngine.Append(values); err != nil {
			newDataEngine.Close()
			compactedMemo.Close()
			os.Remove(tmpMemoPath)
			return nil, err
		}
	}

	// Every surviving record is written; move the compacted memo file into
	// place.
	compactedMemo.Close()
	finalMemoPath := memoPath(outputPath)
	if err := os.Rename(tmpMemoPath, finalMemoPath); err != nil {
		newDataEngine.Close()
		return nil, xbformat.Wrap(xbformat.KindIO, "xbcoord.Pack", "rename compacted memo file into place", err)
	}
	newMemo, err := xbmemo.Open(finalMemoPath)
	if err != nil {
		newDataEngine.Close()
		return nil, err
	}
	return Bind(newDataEngine, newMemo), nil
}

func cloneFieldDescriptors(fields []xbformat.FieldDescriptor) []xbformat.FieldDescriptor {
	out := make([]xbformat.FieldDescriptor, len(fields))
	copy(out, fields)
	return out
}

func dataCreateOptionsFor(data *xbdata.Engine) xbdata.CreateOptions {
	return xbdata.CreateOptions{Version: data.Header().Version, Overwrite: xbdata.Truncate}
}

// WithTransaction snapshots both the record file and (if bound) the memo
// file before running closure, restoring both on failure.
func (c *Coordinator) WithTransaction(closure func(*Coordinator) (any, error)) (any, error) {
	const op = "xbcoord.WithTransaction"
	dataShadow, err := xbformat.BeginShadow(c.data.Path())
	if err != nil {
		return nil, err
	}
	var memoShadow *xbformat.Shadow
	if c.memo != nil {
		memoShadow, err = xbformat.BeginShadow(c.memo.Path())
		if err != nil {
			dataShadow.Discard()
			return nil, err
		}
	}

	result, cerr := closure(c)
	if cerr != nil {
		if rerr := dataShadow.Restore(); rerr != nil {
			return nil, rerr
		}
		if err := c.data.Reload(); err != nil {
			return nil, err
		}
		if memoShadow != nil {
			if rerr := memoShadow.Restore(); rerr != nil {
				return nil, rerr
			}
			if err := c.memo.Reload(); err != nil {
				return nil, err
			}
		}
		return nil, xbformat.RolledBack(op, cerr)
	}

	if err := dataShadow.Discard(); err != nil {
		return nil, err
	}
	if memoShadow != nil {
		if err := memoShadow.Discard(); err != nil {
			return nil, err
		}
	}
	return result, nil
}
