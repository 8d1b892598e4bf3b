package xbase

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mkfoss/xbase/internal/xbindex"
)

// SeekResult indicates how a Tag.Seek landed relative to the requested key.
type SeekResult int

const (
	SeekSuccess SeekResult = iota // exact match found
	SeekAfter                     // positioned at the first key greater than the target
	SeekEOF                       // target is past every key in the index
)

func (sr SeekResult) String() string {
	switch sr {
	case SeekSuccess:
		return "success"
	case SeekAfter:
		return "after"
	case SeekEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// conventionalIndexPath derives the single production index companion path
// this module looks for: the table's path with its extension replaced by
// .cdx. Multi-file/non-production index discovery is out of scope.
func conventionalIndexPath(dataPath string) string {
	if i := strings.LastIndexByte(dataPath, '.'); i >= 0 {
		return dataPath[:i] + ".cdx"
	}
	return dataPath + ".cdx"
}

// Indexes is a lazily-loaded view over a table's companion index file. It
// is not opened until Load is called explicitly, or implicitly by the
// first accessor call.
type Indexes struct {
	tablePath string
	log       *zap.Logger
	loaded    bool
	index     *Index // nil if no companion index file exists
}

func newIndexes(tablePath string, log *zap.Logger) *Indexes {
	return &Indexes{tablePath: tablePath, log: log}
}

// Load opens the companion index file if present. A missing companion file
// is not an error: it logs at Warn and leaves the collection empty.
func (idx *Indexes) Load() error {
	idx.loaded = true
	path := conventionalIndexPath(idx.tablePath)
	engine, err := xbindex.Open(path)
	if err != nil {
		idx.log.Warn("no production index opened", zap.String("path", path), zap.Error(err))
		idx.index = nil
		return nil
	}
	idx.index = &Index{path: path, engine: engine}
	return nil
}

// Loaded reports whether Load has run.
func (idx *Indexes) Loaded() bool { return idx.loaded }

func (idx *Indexes) ensureLoaded() {
	if !idx.loaded {
		idx.Load()
	}
}

// Count returns 1 if a companion index is open, 0 otherwise.
func (idx *Indexes) Count() int {
	idx.ensureLoaded()
	if idx.index == nil {
		return 0
	}
	return 1
}

// ByIndex returns the index at position 0, or nil otherwise.
func (idx *Indexes) ByIndex(position int) *Index {
	idx.ensureLoaded()
	if position != 0 {
		return nil
	}
	return idx.index
}

// ByName returns the open index if its file name (minus extension)
// matches name, case-insensitively.
func (idx *Indexes) ByName(name string) *Index {
	idx.ensureLoaded()
	if idx.index == nil {
		return nil
	}
	if !strings.EqualFold(idx.index.Name(), name) {
		return nil
	}
	return idx.index
}

// List returns every open index (at most one, in this module).
func (idx *Indexes) List() []*Index {
	idx.ensureLoaded()
	if idx.index == nil {
		return nil
	}
	return []*Index{idx.index}
}

// Close releases any open index file, logging its page-cache occupancy at
// close time.
func (idx *Indexes) Close() error {
	if idx.index == nil {
		return nil
	}
	idx.log.Info("index page cache at close",
		zap.String("path", idx.index.path),
		zap.Int("cached_pages", idx.index.engine.CachedPageCount()))
	return idx.index.engine.Close()
}

// MustLoad loads the companion index file, panicking only on an unexpected
// internal failure (a missing file is handled silently by Load itself).
func (idx *Indexes) MustLoad() {
	if err := idx.Load(); err != nil {
		panic(err)
	}
}

// Index is a single open CDX-layout index file with its one tag; the
// header carries a single key expression and root page.
type Index struct {
	path   string
	engine *xbindex.Engine
}

// Name returns the index's base file name without extension.
func (ix *Index) Name() string {
	base := ix.path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

// FileName returns the index's full path.
func (ix *Index) FileName() string { return ix.path }

// TagCount always returns 1: this module supports a single tag per index
// file.
func (ix *Index) TagCount() int { return 1 }

// Tag returns the tag at position 0, or nil otherwise.
func (ix *Index) Tag(position int) *Tag {
	if position != 0 {
		return nil
	}
	return &Tag{index: ix}
}

// TagByName returns the tag if name matches the index's own name
// (single-tag files have no separate tag name on disk here).
func (ix *Index) TagByName(name string) *Tag {
	if !strings.EqualFold(name, ix.Name()) {
		return nil
	}
	return &Tag{index: ix}
}

// Tags returns the index's one tag.
func (ix *Index) Tags() []*Tag { return []*Tag{{index: ix}} }

// IsOpen always reports true: an Index value only exists once its file is
// open.
func (ix *Index) IsOpen() bool { return true }

// Tag is a single searchable key order within an index file.
type Tag struct {
	index *Index
	// cursor state for Seek-then-navigate usage
	entries  []xbindex.IndexEntry
	position int // -1 means not positioned
}

// Name returns the tag's name (the index file's own base name, since this
// module does not carry a separate per-tag name).
func (t *Tag) Name() string { return t.index.Name() }

// Expression returns the tag's key expression as the raw string from the
// header. It is never evaluated here; callers supply pre-computed keys.
func (t *Tag) Expression() string { return t.index.engine.Header().KeyExpr }

// Filter returns the tag's raw FOR expression, likewise never evaluated.
func (t *Tag) Filter() string { return t.index.engine.Header().ForExpr }

// KeyLength returns the tag's fixed key width in bytes.
func (t *Tag) KeyLength() int { return int(t.index.engine.Header().KeyLength) }

// IsDescending reports the tag's sort order byte, non-zero meaning
// descending.
func (t *Tag) IsDescending() bool { return t.index.engine.Header().SortOrder != 0 }

// Seek positions the tag's cursor at key, returning whether it matched
// exactly, landed after it, or ran past the end of the index.
func (t *Tag) Seek(key []byte) (SeekResult, error) {
	if recIdx, err := t.index.engine.SearchExact(key); err == nil {
		t.entries = []xbindex.IndexEntry{{Key: key, RecordIndex: recIdx}}
		t.position = 0
		return SeekSuccess, nil
	}
	hi := make([]byte, t.KeyLength())
	for i := range hi {
		hi[i] = 0xFF
	}
	entries, err := t.index.engine.SearchRange(key, hi)
	if err != nil {
		return SeekEOF, err
	}
	if len(entries) == 0 {
		t.entries = nil
		t.position = -1
		return SeekEOF, nil
	}
	t.entries = entries
	t.position = 0
	return SeekAfter, nil
}

// SeekString seeks using value's bytes directly.
func (t *Tag) SeekString(value string) (SeekResult, error) { return t.Seek([]byte(value)) }

// CurrentRecordIndex returns the record index the cursor currently points
// at, or ok=false if the cursor is not positioned.
func (t *Tag) CurrentRecordIndex() (uint32, bool) {
	if t.position < 0 || t.position >= len(t.entries) {
		return 0, false
	}
	return t.entries[t.position].RecordIndex, true
}

// Next advances the tag's cursor by one entry.
func (t *Tag) Next() bool {
	if t.position < 0 || t.position+1 >= len(t.entries) {
		t.position = len(t.entries)
		return false
	}
	t.position++
	return true
}

// EOF reports whether the cursor has advanced past the last matched entry.
func (t *Tag) EOF() bool { return t.position >= len(t.entries) || t.position < 0 }
