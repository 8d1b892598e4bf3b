// Package xbase is the public facade over the internal record, memo, and
// index engines: a cursor-navigable Table, typed Field views, lazily
// loaded Index/Tag views, and Must* panic-on-error convenience variants.
package xbase

import (
	"go.uber.org/zap"

	"github.com/mkfoss/xbase/internal/xbdata"
)

// OpenOptions configures Open.
type OpenOptions struct {
	// ReadOnly opens the record file without write access, and every
	// mutating table call, memo writes included, is rejected. The companion
	// memo file handle itself is still opened read-write.
	ReadOnly bool
	// RawMemoReferences disables eager memo-to-text resolution on
	// Read/ReadAll/Stream, leaving memo fields as raw block references.
	// Memo text is resolved by default (the zero value), since named-bool
	// fields default false and resolving is the common case.
	RawMemoReferences bool
	// Logger receives lifecycle and diagnostic events. A nil Logger falls
	// back to a no-op logger.
	Logger *zap.Logger
}

func (o OpenOptions) accessMode() xbdata.AccessMode {
	if o.ReadOnly {
		return xbdata.ReadOnly
	}
	return xbdata.ReadWrite
}

// CreateOptions configures Create.
type CreateOptions struct {
	// Version selects the record file's version byte. Zero auto-selects
	// the narrowest version consistent with the field schema (plain vs.
	// memo-bearing).
	Version byte
	// Overwrite controls behavior when path already exists.
	Overwrite xbdata.Overwrite
	// MemoBlockSize sets the companion memo file's block size when the
	// schema declares a memo field. Zero defaults to 512.
	MemoBlockSize uint16
	// Logger receives lifecycle and diagnostic events. A nil Logger falls
	// back to a no-op logger.
	Logger *zap.Logger
}

// IndexOptions holds key-comparison settings for an index. No function in
// this package takes an IndexOptions: Indexes.Load always uses the index
// engine's default bytes.Compare ordering.
type IndexOptions struct {
	// Comparator overrides the byte-ordering used for key comparisons.
	// Nil uses the natural (bytes.Compare) order.
	Comparator func(a, b []byte) int
}
