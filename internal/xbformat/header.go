package xbformat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Layout constants mirroring the bit-exact record file layout: 32-byte
// header, 32-byte field descriptors, 0x0D terminator.
const (
	HeaderSize          = 32
	FieldDescriptorSize = 32
	Terminator          = byte(0x0D)

	// DeletionLive and DeletionDeleted are the two values the leading
	// byte of a record slot ever takes.
	DeletionLive    = byte(0x20)
	DeletionDeleted = byte(0x2A)
)

// Version bytes. VersionNoMemo is written for schemas without a memo
// field; VersionMemoDBase3 is written when the schema has at least one
// memo field (format III DBT companion, decimal ASCII block references).
const (
	VersionNoMemo       byte = 0x03
	VersionMemoDBase3   byte = 0x83
	VersionMemoDBase4   byte = 0x8B
	VersionMemoVisualFP byte = 0x30
)

// HasMemo reports whether a version byte indicates a memo companion file.
func HasMemo(version byte) bool {
	switch version {
	case VersionMemoDBase3, VersionMemoDBase4, VersionMemoVisualFP:
		return true
	default:
		return false
	}
}

// SelectVersion auto-selects the version byte for a newly created file
// based on whether the schema carries a memo field.
func SelectVersion(hasMemoField bool) byte {
	if hasMemoField {
		return VersionMemoDBase3
	}
	return VersionNoMemo
}

// Header is the parsed 32-byte file header.
type Header struct {
	Version        byte
	Year           int // stored as year-minus-1900 on disk
	Month          int
	Day            int
	RecordCount    uint32
	HeaderLength   uint16
	RecordLength   uint16
	Transaction    byte
	Encryption     byte
	IndexCompanion byte
	LanguageDriver byte
}

// LastUpdated reconstructs the header's last-update date as a time.Time.
func (h Header) LastUpdated() time.Time {
	return time.Date(1900+h.Year, time.Month(h.Month), h.Day, 0, 0, 0, 0, time.UTC)
}

// SetLastUpdated stores t's date into the header's year/month/day fields.
func (h *Header) SetLastUpdated(t time.Time) {
	h.Year = t.Year() - 1900
	h.Month = int(t.Month())
	h.Day = t.Day()
}

// EncodeHeader packs h into a 32-byte buffer: byte 0 version; bytes 1-3
// year/month/day; bytes 4-7 record count (LE u32); bytes 8-9 header length
// (LE u16); bytes 10-11 record length (LE u16); bytes 12-27 reserved/
// transaction/encryption/index-companion/language-driver; bytes 28-31
// reserved.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	buf[1] = byte(h.Year)
	buf[2] = byte(h.Month)
	buf[3] = byte(h.Day)
	binary.LittleEndian.PutUint32(buf[4:8], h.RecordCount)
	binary.LittleEndian.PutUint16(buf[8:10], h.HeaderLength)
	binary.LittleEndian.PutUint16(buf[10:12], h.RecordLength)
	buf[12] = h.Transaction
	buf[13] = h.Encryption
	buf[14] = h.IndexCompanion
	buf[15] = h.LanguageDriver
	return buf
}

// DecodeHeader parses and validates a 32-byte header buffer. It only
// validates what the header bytes alone can show; the cross-field
// header_length = 32 + 32N + 1 invariant is checked by ValidateInvariants
// once N is known from the descriptor scan.
func DecodeHeader(buf []byte) (Header, error) {
	const op = "xbformat.DecodeHeader"
	if len(buf) < HeaderSize {
		return Header{}, New(KindInvalidHeader, op, fmt.Sprintf("header buffer too short: %d bytes", len(buf)))
	}
	h := Header{
		Version:        buf[0],
		Year:           int(buf[1]),
		Month:          int(buf[2]),
		Day:            int(buf[3]),
		RecordCount:    binary.LittleEndian.Uint32(buf[4:8]),
		HeaderLength:   binary.LittleEndian.Uint16(buf[8:10]),
		RecordLength:   binary.LittleEndian.Uint16(buf[10:12]),
		Transaction:    buf[12],
		Encryption:     buf[13],
		IndexCompanion: buf[14],
		LanguageDriver: buf[15],
	}
	if h.HeaderLength < HeaderSize+1 {
		return Header{}, New(KindInvalidHeader, op, fmt.Sprintf("header length %d too small", h.HeaderLength))
	}
	if h.RecordLength < 1 {
		return Header{}, New(KindInvalidHeader, op, "record length must be at least 1 (deletion marker)")
	}
	return h, nil
}

// FieldDescriptor is the parsed 32-byte field descriptor.
type FieldDescriptor struct {
	Name     string // up to 10 ASCII bytes, upper-cased canonically
	Type     byte
	Length   byte
	Decimals byte
	Offset   uint32 // computed during schema construction, not on disk
}

// SupportedTypes is the exact 8-type table this codec implements.
var SupportedTypes = map[byte]bool{
	'C': true, 'N': true, 'D': true, 'L': true, 'M': true, 'I': true, 'T': true, 'F': true,
}

// EncodeFieldDescriptor packs fd into a 32-byte buffer: bytes 0-10 name,
// byte 11 type, bytes 12-15 reserved, byte 16 length, byte 17 decimals,
// bytes 18-31 reserved.
func EncodeFieldDescriptor(fd FieldDescriptor) []byte {
	buf := make([]byte, FieldDescriptorSize)
	name := fd.Name
	if len(name) > 10 {
		name = name[:10]
	}
	copy(buf[0:11], name)
	buf[11] = fd.Type
	buf[16] = fd.Length
	buf[17] = fd.Decimals
	return buf
}

// DecodeFieldDescriptor parses and validates a single 32-byte field
// descriptor buffer.
func DecodeFieldDescriptor(buf []byte) (FieldDescriptor, error) {
	const op = "xbformat.DecodeFieldDescriptor"
	if len(buf) < FieldDescriptorSize {
		return FieldDescriptor{}, New(KindInvalidFieldDescriptor, op, "descriptor buffer too short")
	}
	nameEnd := bytes.IndexByte(buf[0:11], 0)
	if nameEnd < 0 {
		nameEnd = 11
	}
	name := string(bytes.TrimRight(buf[0:nameEnd], " "))
	if name == "" {
		return FieldDescriptor{}, New(KindInvalidFieldDescriptor, op, "empty field name")
	}
	typ := buf[11]
	if !SupportedTypes[typ] {
		return FieldDescriptor{}, New(KindUnknownFieldType, op, fmt.Sprintf("unsupported field type %q", typ))
	}
	length := buf[16]
	if length == 0 {
		return FieldDescriptor{}, New(KindInvalidFieldDescriptor, op, fmt.Sprintf("field %q has zero length", name))
	}
	if err := validateLength(typ, length); err != nil {
		return FieldDescriptor{}, Wrap(KindInvalidFieldDescriptor, op, fmt.Sprintf("field %q", name), err)
	}
	return FieldDescriptor{
		Name:     name,
		Type:     typ,
		Length:   length,
		Decimals: buf[17],
	}, nil
}

// validateLength enforces the per-type slot width ranges.
func validateLength(typ byte, length byte) error {
	switch typ {
	case 'L':
		if length != 1 {
			return fmt.Errorf("logical field must have length 1, got %d", length)
		}
	case 'D':
		if length != 8 {
			return fmt.Errorf("date field must have length 8, got %d", length)
		}
	case 'I':
		if length != 4 {
			return fmt.Errorf("integer field must have length 4, got %d", length)
		}
	case 'T':
		if length != 8 {
			return fmt.Errorf("datetime field must have length 8, got %d", length)
		}
	case 'M':
		if length != 10 && length != 4 {
			return fmt.Errorf("memo field must have length 10 (format III) or 4 (format IV), got %d", length)
		}
	case 'C', 'N', 'F':
		if length == 0 || length > 254 {
			return fmt.Errorf("field length %d out of range", length)
		}
	}
	return nil
}

// HeaderLengthFor computes header_length = 32 + 32*N + 1 for N field
// descriptors.
func HeaderLengthFor(n int) uint16 {
	return uint16(HeaderSize + FieldDescriptorSize*n + 1)
}

// RecordLengthFor computes record_length = 1 + sum(field.length).
func RecordLengthFor(fields []FieldDescriptor) uint16 {
	total := uint16(1)
	for _, f := range fields {
		total += uint16(f.Length)
	}
	return total
}

// ValidateInvariants checks the header-length/record-length cross-field
// invariants once the field count and schema are known.
func ValidateInvariants(h Header, fields []FieldDescriptor) error {
	const op = "xbformat.ValidateInvariants"
	wantHeaderLen := HeaderLengthFor(len(fields))
	if h.HeaderLength != wantHeaderLen {
		return New(KindInvalidHeader, op, fmt.Sprintf("header length %d does not match 32+32*%d+1=%d", h.HeaderLength, len(fields), wantHeaderLen))
	}
	wantRecordLen := RecordLengthFor(fields)
	if h.RecordLength != wantRecordLen {
		return New(KindInvalidHeader, op, fmt.Sprintf("record length %d does not match sum of field lengths+1=%d", h.RecordLength, wantRecordLen))
	}
	return nil
}
