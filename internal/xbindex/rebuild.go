package xbindex

import (
	"os"

	"github.com/mkfoss/xbase/internal/xbformat"
)

// BuildOptions configures a bulk index rebuild.
type BuildOptions struct {
	KeyLength uint16
	KeyExpr   string
	ForExpr   string
	SortOrder byte
	Signature byte
}

// BuildFromRecords bulk-constructs a new CDX-layout index file at path from
// entries, which the caller must supply already sorted ascending by Key.
// This is the only write path the engine supports; there is no incremental
// insert/split/merge. The build is bottom-up: the leaf layer first, then a
// layer of branch pages over it, repeated until a single root remains.
func BuildFromRecords(path string, entries []IndexEntry, opts BuildOptions) error {
	const op = "xbindex.BuildFromRecords"
	if opts.KeyLength < 1 || opts.KeyLength > 240 {
		return xbformat.New(xbformat.KindInvalidKeyLength, op, "key length outside 1-240")
	}

	f, err := os.Create(path)
	if err != nil {
		return xbformat.Wrap(xbformat.KindIO, op, "create "+path, err)
	}
	defer f.Close()

	if len(entries) == 0 {
		header := Header{
			RootPage:     -1,
			FreePageHead: -1,
			Version:      1,
			KeyLength:    opts.KeyLength,
			SortOrder:    opts.SortOrder,
			Signature:    opts.Signature,
			KeyExpr:      opts.KeyExpr,
			ForExpr:      opts.ForExpr,
		}
		return xbformat.PositionedWrite(f, 0, EncodeHeader(header))
	}

	maxLeaf := MaxEntries(opts.KeyLength)
	if maxLeaf < 2 {
		return xbformat.New(xbformat.KindInvalidKeyLength, op, "key length leaves no room for entries per page")
	}

	// Page 0 is the header; pages are allocated starting at index 1.
	nextPage := int32(1)
	writePage := func(p *Page) (int32, error) {
		index := nextPage
		nextPage++
		if err := xbformat.PositionedWrite(f, int64(index)*int64(PageSize), EncodePage(p, opts.KeyLength)); err != nil {
			return 0, err
		}
		return index, nil
	}

	// Leaf layer: chunk entries into pages of at most maxLeaf, link
	// siblings left-to-right.
	type builtLevel struct {
		pages []int32
		keys  [][]byte // max key per page, for the parent layer
	}

	var leaves builtLevel
	leafPages := make([]*Page, 0, (len(entries)+maxLeaf-1)/maxLeaf)
	for start := 0; start < len(entries); start += maxLeaf {
		end := start + maxLeaf
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]
		page := &Page{Attributes: attrLeaf, LeftSibling: -1, RightSibling: -1}
		page.Entries = make([]Entry, len(chunk))
		for i, e := range chunk {
			page.Entries[i] = Entry{Key: e.Key, Pointer: int32(e.RecordIndex)}
		}
		leafPages = append(leafPages, page)
	}
	leafIndexes := make([]int32, len(leafPages))
	for i, page := range leafPages {
		idx, err := writePage(page)
		if err != nil {
			return err
		}
		leafIndexes[i] = idx
		leaves.keys = append(leaves.keys, page.Entries[len(page.Entries)-1].Key)
	}
	leaves.pages = leafIndexes

	// Re-link siblings now that real page indexes are known, and persist
	// the corrected pages.
	for i, idx := range leafIndexes {
		page := leafPages[i]
		if i > 0 {
			page.LeftSibling = leafIndexes[i-1]
		} else {
			page.LeftSibling = -1
		}
		if i < len(leafIndexes)-1 {
			page.RightSibling = leafIndexes[i+1]
		} else {
			page.RightSibling = -1
		}
		if err := xbformat.PositionedWrite(f, int64(idx)*int64(PageSize), EncodePage(page, opts.KeyLength)); err != nil {
			return err
		}
	}

	// Build branch layers bottom-up until one page remains: that is root.
	current := leaves
	maxBranch := MaxEntries(opts.KeyLength)
	for len(current.pages) > 1 {
		var next builtLevel
		for start := 0; start < len(current.pages); start += maxBranch {
			end := start + maxBranch
			if end > len(current.pages) {
				end = len(current.pages)
			}
			page := &Page{LeftSibling: -1, RightSibling: -1}
			page.Entries = make([]Entry, end-start)
			for i := start; i < end; i++ {
				page.Entries[i-start] = Entry{Key: current.keys[i], Pointer: current.pages[i]}
			}
			idx, err := writePage(page)
			if err != nil {
				return err
			}
			next.pages = append(next.pages, idx)
			next.keys = append(next.keys, current.keys[end-1])
		}
		current = next
	}

	rootIndex := current.pages[0]
	// Mark the final root page's attribute bit. If the tree is a single
	// leaf, that leaf is also the root.
	rootOffset := int64(rootIndex) * int64(PageSize)
	rootBuf := make([]byte, PageSize)
	if err := xbformat.PositionedRead(f, rootOffset, rootBuf); err != nil {
		return err
	}
	rootPage, err := DecodePage(rootBuf, opts.KeyLength)
	if err != nil {
		return err
	}
	rootPage.Attributes |= attrRoot
	if err := xbformat.PositionedWrite(f, rootOffset, EncodePage(rootPage, opts.KeyLength)); err != nil {
		return err
	}

	header := Header{
		RootPage:     rootIndex,
		FreePageHead: -1,
		Version:      1,
		KeyLength:    opts.KeyLength,
		SortOrder:    opts.SortOrder,
		Signature:    opts.Signature,
		KeyExpr:      opts.KeyExpr,
		ForExpr:      opts.ForExpr,
	}
	return xbformat.PositionedWrite(f, 0, EncodeHeader(header))
}
