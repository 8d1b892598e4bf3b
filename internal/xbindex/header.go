// Package xbindex implements the B-tree index engine and its page cache:
// parsing the 512-byte CDX-layout header, reading and caching 512-byte
// pages, classifying node type, and descending the tree for exact, range,
// and prefix search. Read path, rebuild-from-records, and page-level
// cache only — no incremental insert/split/merge/rebalance.
package xbindex

import (
	"encoding/binary"
	"fmt"

	"github.com/mkfoss/xbase/internal/xbformat"
)

// PageSize is the fixed size of every block in a CDX-layout index file,
// including the header block at index 0.
const PageSize = 512

const (
	headerKeyExprOffset   = 22
	headerKeyExprCapacity = 220
	headerForExprOffset   = headerKeyExprOffset + headerKeyExprCapacity
	headerForExprCapacity = 220
)

// Header is the parsed 512-byte CDX-layout index header.
type Header struct {
	RootPage     int32 // negative = empty index
	FreePageHead int32 // -1 = none
	Version      uint32
	KeyLength    uint16 // 1-240
	Options      uint16
	Signature    byte
	SortOrder    byte
	KeyExpr      string
	ForExpr      string
}

// DecodeHeader parses and validates a 512-byte index header buffer.
func DecodeHeader(buf []byte) (Header, error) {
	const op = "xbindex.DecodeHeader"
	if len(buf) < PageSize {
		return Header{}, xbformat.New(xbformat.KindInvalidHeader, op, fmt.Sprintf("index header buffer too short: %d bytes", len(buf)))
	}
	h := Header{
		RootPage:     int32(binary.LittleEndian.Uint32(buf[0:4])),
		FreePageHead: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Version:      binary.LittleEndian.Uint32(buf[8:12]),
		KeyLength:    binary.LittleEndian.Uint16(buf[12:14]),
		Options:      binary.LittleEndian.Uint16(buf[14:16]),
		Signature:    buf[16],
		SortOrder:    buf[17],
	}
	keyExprLen := binary.LittleEndian.Uint16(buf[18:20])
	forExprLen := binary.LittleEndian.Uint16(buf[20:22])
	if int(keyExprLen) > headerKeyExprCapacity || int(forExprLen) > headerForExprCapacity {
		return Header{}, xbformat.New(xbformat.KindInvalidHeader, op, "expression length exceeds header capacity")
	}
	h.KeyExpr = string(buf[headerKeyExprOffset : headerKeyExprOffset+int(keyExprLen)])
	h.ForExpr = string(buf[headerForExprOffset : headerForExprOffset+int(forExprLen)])

	if h.KeyLength < 1 || h.KeyLength > 240 {
		return Header{}, xbformat.New(xbformat.KindInvalidKeyLength, op, fmt.Sprintf("key length %d outside 1-240", h.KeyLength))
	}
	return h, nil
}

// EncodeHeader packs h into a 512-byte buffer.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.RootPage))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.FreePageHead))
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint16(buf[12:14], h.KeyLength)
	binary.LittleEndian.PutUint16(buf[14:16], h.Options)
	buf[16] = h.Signature
	buf[17] = h.SortOrder

	keyExpr := h.KeyExpr
	if len(keyExpr) > headerKeyExprCapacity {
		keyExpr = keyExpr[:headerKeyExprCapacity]
	}
	forExpr := h.ForExpr
	if len(forExpr) > headerForExprCapacity {
		forExpr = forExpr[:headerForExprCapacity]
	}
	binary.LittleEndian.PutUint16(buf[18:20], uint16(len(keyExpr)))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(forExpr)))
	copy(buf[headerKeyExprOffset:headerKeyExprOffset+headerKeyExprCapacity], keyExpr)
	copy(buf[headerForExprOffset:headerForExprOffset+headerForExprCapacity], forExpr)
	return buf
}

// IsEmpty reports whether the index has no root page at all.
func (h Header) IsEmpty() bool { return h.RootPage < 0 }
