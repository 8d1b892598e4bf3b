package xbindex

import (
	"encoding/binary"
	"fmt"

	"github.com/mkfoss/xbase/internal/xbformat"
)

const (
	attrRoot = uint16(1 << 0)
	attrLeaf = uint16(1 << 1)

	pageHeaderSize = 12 // attributes(2) + key count(2) + left(4) + right(4)
)

// Entry is a single (key, pointer) pair within a page. Pointer is a record
// index for a leaf entry, a child page index for a branch/root entry.
type Entry struct {
	Key     []byte
	Pointer int32
}

// Page is a parsed 512-byte B-tree page.
type Page struct {
	Attributes   uint16
	LeftSibling  int32
	RightSibling int32
	Entries      []Entry
}

// IsRoot reports whether the page is the tree's root.
func (p *Page) IsRoot() bool { return p.Attributes&attrRoot != 0 }

// IsLeaf reports whether the page carries (key, record_index) entries.
func (p *Page) IsLeaf() bool { return p.Attributes&attrLeaf != 0 }

// IsBranch reports whether the page carries (key, child_page_index)
// entries: any page without the leaf flag, root pages included.
func (p *Page) IsBranch() bool { return !p.IsLeaf() }

// MaxEntries returns how many (key, pointer) entries fit in one page for
// the given key length.
func MaxEntries(keyLength uint16) int {
	return (PageSize - pageHeaderSize) / (int(keyLength) + 4)
}

// DecodePage parses a 512-byte page buffer using the index's key length.
func DecodePage(buf []byte, keyLength uint16) (*Page, error) {
	const op = "xbindex.DecodePage"
	if len(buf) < PageSize {
		return nil, xbformat.New(xbformat.KindInvalidPage, op, fmt.Sprintf("page buffer too short: %d bytes", len(buf)))
	}
	p := &Page{
		Attributes:   binary.LittleEndian.Uint16(buf[0:2]),
		LeftSibling:  int32(binary.LittleEndian.Uint32(buf[4:8])),
		RightSibling: int32(binary.LittleEndian.Uint32(buf[8:12])),
	}
	keyCount := int(binary.LittleEndian.Uint16(buf[2:4]))
	entrySize := int(keyLength) + 4
	maxEntries := MaxEntries(keyLength)
	if keyCount < 0 || keyCount > maxEntries {
		return nil, xbformat.New(xbformat.KindInvalidPage, op, fmt.Sprintf("key count %d exceeds page capacity %d", keyCount, maxEntries))
	}
	p.Entries = make([]Entry, keyCount)
	pos := pageHeaderSize
	for i := 0; i < keyCount; i++ {
		if pos+entrySize > len(buf) {
			return nil, xbformat.New(xbformat.KindInvalidPage, op, "entry array overruns page bounds")
		}
		key := make([]byte, keyLength)
		copy(key, buf[pos:pos+int(keyLength)])
		ptr := int32(binary.LittleEndian.Uint32(buf[pos+int(keyLength) : pos+entrySize]))
		p.Entries[i] = Entry{Key: key, Pointer: ptr}
		pos += entrySize
	}
	return p, nil
}

// EncodePage packs p into a 512-byte buffer using the index's key length.
// Used only by the bulk rebuild path.
func EncodePage(p *Page, keyLength uint16) []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.Attributes)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(p.Entries)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.LeftSibling))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.RightSibling))
	entrySize := int(keyLength) + 4
	pos := pageHeaderSize
	for _, e := range p.Entries {
		copy(buf[pos:pos+int(keyLength)], xbformat.PadRight(string(e.Key), int(keyLength)))
		binary.LittleEndian.PutUint32(buf[pos+int(keyLength):pos+entrySize], uint32(e.Pointer))
		pos += entrySize
	}
	return buf
}
