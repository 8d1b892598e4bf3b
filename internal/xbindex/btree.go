package xbindex

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mkfoss/xbase/internal/xbformat"
)

// Comparator orders two keys of equal, header-declared length. Defaults to
// bytes.Compare (the natural order for padded character keys); callers with
// a numeric or custom collation can supply their own.
type Comparator func(a, b []byte) int

// Engine is an open index file: header plus a page cache. Read-only by
// design — mutation happens only via rebuild.go's bulk BuildFromRecords,
// which writes a brand new file rather than mutating pages in place.
type Engine struct {
	path    string
	file    *os.File
	header  Header
	cache   *pageCache
	compare Comparator
}

// Open parses the header of the index file at path and readies its page
// cache. The file is opened read-only; this package never mutates an index
// file in place.
func Open(path string) (*Engine, error) {
	const op = "xbindex.Open"
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xbformat.Wrap(xbformat.KindNotFound, op, "open "+path, err)
		}
		return nil, xbformat.Wrap(xbformat.KindIO, op, "open "+path, err)
	}

	hbuf := make([]byte, PageSize)
	if err := xbformat.PositionedRead(f, 0, hbuf); err != nil {
		f.Close()
		return nil, err
	}
	header, err := DecodeHeader(hbuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Engine{
		path:    path,
		file:    f,
		header:  header,
		cache:   newPageCache(defaultCacheSize),
		compare: bytes.Compare,
	}, nil
}

// Close releases the underlying file handle.
func (e *Engine) Close() error {
	const op = "xbindex.Close"
	if err := e.file.Close(); err != nil {
		return xbformat.Wrap(xbformat.KindIO, op, "close "+e.path, err)
	}
	return nil
}

// Path returns the index file's path.
func (e *Engine) Path() string { return e.path }

// Header returns the parsed index header.
func (e *Engine) Header() Header { return e.header }

// SetComparator overrides the byte-ordering used to compare keys during
// descent. Must be called before any search; the default is bytes.Compare.
func (e *Engine) SetComparator(cmp Comparator) {
	if cmp != nil {
		e.compare = cmp
	}
}

// CachedPageCount reports how many pages currently sit in the engine's LRU
// page cache, for callers (the facade's diagnostics) that want to log
// eviction stats on close.
func (e *Engine) CachedPageCount() int {
	return e.cache.len()
}

// ClearCache drops every cached page, forcing the next read of each to go
// back to disk.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// ReadPage fetches the page at index, consulting the cache first. A page
// index addressing the header block or a byte offset past the end of the
// file is an InvalidPage error.
func (e *Engine) ReadPage(index int32) (*Page, error) {
	const op = "xbindex.ReadPage"
	if index < 1 {
		return nil, xbformat.New(xbformat.KindInvalidPage, op, fmt.Sprintf("page index %d addresses the header block or below", index))
	}
	st, err := e.file.Stat()
	if err != nil {
		return nil, xbformat.Wrap(xbformat.KindIO, op, "stat "+e.path, err)
	}
	if int64(index)*PageSize >= st.Size() {
		return nil, xbformat.New(xbformat.KindInvalidPage, op, fmt.Sprintf("page index %d beyond file length %d", index, st.Size()))
	}
	return e.readPage(index)
}

// readPage fetches a page by index, consulting the cache first.
func (e *Engine) readPage(index int32) (*Page, error) {
	const op = "xbindex.readPage"
	if p, ok := e.cache.get(index); ok {
		return p, nil
	}
	buf := make([]byte, PageSize)
	offset := int64(index) * int64(PageSize)
	if err := xbformat.PositionedRead(e.file, offset, buf); err != nil {
		return nil, err
	}
	p, err := DecodePage(buf, e.header.KeyLength)
	if err != nil {
		return nil, xbformat.Wrap(xbformat.KindInvalidPage, op, "decode page", err)
	}
	e.cache.put(index, p)
	return p, nil
}

// normalizeKey right-pads key with spaces to the header's declared key
// length. A key longer than that is a caller error, never silently
// truncated.
func (e *Engine) normalizeKey(op string, key []byte) ([]byte, error) {
	kl := int(e.header.KeyLength)
	if len(key) > kl {
		return nil, xbformat.New(xbformat.KindKeyTooLong, op, "search key longer than index key length")
	}
	if len(key) == kl {
		return key, nil
	}
	out := make([]byte, kl)
	copy(out, key)
	for i := len(key); i < kl; i++ {
		out[i] = ' '
	}
	return out, nil
}

// descend walks from the root to the leaf whose range would contain key.
func (e *Engine) descend(key []byte) (*Page, error) {
	if e.header.IsEmpty() {
		return nil, xbformat.New(xbformat.KindNotFoundKey, "xbindex.descend", "index has no root page")
	}
	current := e.header.RootPage
	for {
		page, err := e.readPage(current)
		if err != nil {
			return nil, err
		}
		if page.IsLeaf() {
			return page, nil
		}
		// Branch: each entry's key is the maximum key of its subtree.
		// Follow the leftmost entry whose key >= target, or the last
		// entry if the target exceeds every separator.
		next := page.Entries[len(page.Entries)-1].Pointer
		for _, entry := range page.Entries {
			if e.compare(entry.Key, key) >= 0 {
				next = entry.Pointer
				break
			}
		}
		current = next
	}
}

// SearchExact returns the record index bound to key, or a KindNotFoundKey
// error if no entry matches exactly.
func (e *Engine) SearchExact(key []byte) (uint32, error) {
	const op = "xbindex.SearchExact"
	normKey, err := e.normalizeKey(op, key)
	if err != nil {
		return 0, err
	}
	leaf, err := e.descend(normKey)
	if err != nil {
		return 0, err
	}
	for _, entry := range leaf.Entries {
		if e.compare(entry.Key, normKey) == 0 {
			return uint32(entry.Pointer), nil
		}
	}
	return 0, xbformat.New(xbformat.KindNotFoundKey, op, "no entry for key")
}

// IndexEntry is one (key, record index) pair yielded by a range or prefix
// search.
type IndexEntry struct {
	Key         []byte
	RecordIndex uint32
}

// Scan is a demand-driven cursor over an ascending run of leaf entries,
// advancing leaf-to-leaf via the right-sibling pointer. Each Next call
// reads at most one page from disk (cache permitting). Obtained from
// ScanRange or ScanPrefix.
type Scan struct {
	engine *Engine
	leaf   *Page
	pos    int
	done   bool
	accept func(key []byte) (take, stop bool)
}

// Next yields the next matching entry. ok is false once the scan is
// exhausted; a non-nil error means a page read failed mid-walk.
func (s *Scan) Next() (IndexEntry, bool, error) {
	for !s.done {
		if s.pos >= len(s.leaf.Entries) {
			if s.leaf.RightSibling < 0 {
				s.done = true
				break
			}
			next, err := s.engine.readPage(s.leaf.RightSibling)
			if err != nil {
				return IndexEntry{}, false, err
			}
			s.leaf = next
			s.pos = 0
			continue
		}
		entry := s.leaf.Entries[s.pos]
		s.pos++
		take, stop := s.accept(entry.Key)
		if stop {
			s.done = true
			break
		}
		if take {
			return IndexEntry{Key: entry.Key, RecordIndex: uint32(entry.Pointer)}, true, nil
		}
	}
	return IndexEntry{}, false, nil
}

// collect drains the scan into a slice.
func (s *Scan) collect() ([]IndexEntry, error) {
	var out []IndexEntry
	for {
		entry, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, entry)
	}
}

// ScanRange returns a lazy cursor over every entry with key in [lo, hi]
// (inclusive of both endpoints).
func (e *Engine) ScanRange(lo, hi []byte) (*Scan, error) {
	const op = "xbindex.ScanRange"
	loKey, err := e.normalizeKey(op, lo)
	if err != nil {
		return nil, err
	}
	hiKey, err := e.normalizeKey(op, hi)
	if err != nil {
		return nil, err
	}
	if e.header.IsEmpty() {
		return &Scan{done: true}, nil
	}
	leaf, err := e.descend(loKey)
	if err != nil {
		return nil, err
	}
	return &Scan{
		engine: e,
		leaf:   leaf,
		accept: func(key []byte) (bool, bool) {
			if e.compare(key, loKey) < 0 {
				return false, false
			}
			if e.compare(key, hiKey) > 0 {
				return false, true
			}
			return true, false
		},
	}, nil
}

// ScanPrefix returns a lazy cursor over every entry whose key starts with
// prefix, relying on ascending sort order to stop as soon as a key no
// longer shares it.
func (e *Engine) ScanPrefix(prefix []byte) (*Scan, error) {
	const op = "xbindex.ScanPrefix"
	loKey, err := e.normalizeKey(op, prefix)
	if err != nil {
		return nil, err
	}
	if e.header.IsEmpty() {
		return &Scan{done: true}, nil
	}
	leaf, err := e.descend(loKey)
	if err != nil {
		return nil, err
	}
	p := append([]byte(nil), prefix...)
	return &Scan{
		engine: e,
		leaf:   leaf,
		accept: func(key []byte) (bool, bool) {
			if len(key) < len(p) {
				return false, false
			}
			cmp := e.compare(key[:len(p)], p)
			if cmp < 0 {
				return false, false
			}
			if cmp > 0 {
				return false, true
			}
			return true, false
		},
	}, nil
}

// SearchRange returns every entry with key in [lo, hi] (inclusive), in
// ascending order.
func (e *Engine) SearchRange(lo, hi []byte) ([]IndexEntry, error) {
	scan, err := e.ScanRange(lo, hi)
	if err != nil {
		return nil, err
	}
	return scan.collect()
}

// SearchPrefix returns every entry whose key starts with prefix, in
// ascending order.
func (e *Engine) SearchPrefix(prefix []byte) ([]IndexEntry, error) {
	scan, err := e.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	return scan.collect()
}
