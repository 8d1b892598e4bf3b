package xbformat

import (
	"fmt"
	"os"
)

// PositionedRead reads len(buf) bytes from f starting at offset, without
// disturbing any other notion of a "current position" — every call is
// explicit about its offset.
func PositionedRead(f *os.File, offset int64, buf []byte) error {
	const op = "xbformat.PositionedRead"
	n, err := f.ReadAt(buf, offset)
	if err != nil {
		return Wrap(KindIO, op, fmt.Sprintf("read %d bytes at offset %d", len(buf), offset), err)
	}
	if n != len(buf) {
		return New(KindIO, op, fmt.Sprintf("short read: wanted %d bytes at offset %d, got %d", len(buf), offset, n))
	}
	return nil
}

// PositionedWrite writes buf to f starting at offset.
func PositionedWrite(f *os.File, offset int64, buf []byte) error {
	const op = "xbformat.PositionedWrite"
	n, err := f.WriteAt(buf, offset)
	if err != nil {
		return Wrap(KindIO, op, fmt.Sprintf("write %d bytes at offset %d", len(buf), offset), err)
	}
	if n != len(buf) {
		return New(KindIO, op, fmt.Sprintf("short write: wanted %d bytes at offset %d, wrote %d", len(buf), offset, n))
	}
	return nil
}

// PadRight right-pads s with ASCII spaces (or truncates it) to exactly
// width bytes: the encode rule for character slots and blank date/memo
// slots (numeric slots are left-padded by PadLeft).
func PadRight(s string, width int) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, s)
	return buf
}

// PadLeft left-pads s with ASCII spaces to exactly width bytes, used for
// right-aligned numeric encoding.
func PadLeft(s string, width int) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = ' '
	}
	if len(s) >= width {
		copy(buf, s[len(s)-width:])
		return buf
	}
	copy(buf[width-len(s):], s)
	return buf
}

// TrimTrailingSpace trims ASCII trailing spaces only, leaving leading
// spaces intact, per the C-type decode rule.
func TrimTrailingSpace(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// TrimSpace trims ASCII spaces on both sides, used for numeric decode.
func TrimSpace(b []byte) string {
	start, end := 0, len(b)
	for start < end && b[start] == ' ' {
		start++
	}
	for end > start && b[end-1] == ' ' {
		end--
	}
	return string(b[start:end])
}

// IsAllBlank reports whether every byte in b is an ASCII space.
func IsAllBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}
