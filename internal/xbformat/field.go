package xbformat

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Logical is the three-valued logical domain: true, false, or unknown
// (the slot held something other than T/F family characters, typically
// '?' for "not yet set").
type Logical int

const (
	LogicalUnknown Logical = iota
	LogicalTrue
	LogicalFalse
)

// Date is a calendar date with no time component. The zero value is the
// empty date.
type Date struct {
	Year, Month, Day int
}

// IsEmpty reports whether d is the empty date.
func (d Date) IsEmpty() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Value is a decoded field value tagged by the field's type byte. Only the
// member matching Type is meaningful.
type Value struct {
	Type    byte
	Text    string    // C
	Integer int64     // N with decimals=0, I
	Real    float64   // N with decimals>0, F
	Date    Date      // D
	Logical Logical   // L
	MemoRef uint32    // M: block index, 0 = empty
	Instant time.Time // T
}

// ZeroValue returns the per-type default used for a missing field on
// append: empty string, 0, empty date, unknown logical, memo reference 0.
func ZeroValue(fd FieldDescriptor) Value {
	switch fd.Type {
	case 'C':
		return Value{Type: 'C', Text: ""}
	case 'N', 'F':
		return Value{Type: fd.Type}
	case 'D':
		return Value{Type: 'D'}
	case 'L':
		return Value{Type: 'L', Logical: LogicalUnknown}
	case 'M':
		return Value{Type: 'M', MemoRef: 0}
	case 'I':
		return Value{Type: 'I'}
	case 'T':
		return Value{Type: 'T'}
	default:
		return Value{Type: fd.Type}
	}
}

// DecodeField converts the raw slot bytes for fd into a typed Value.
// memoFormatIV selects the memo-reference encoding: decimal ASCII text
// (format III, the default) versus a 4-byte little-endian integer.
func DecodeField(fd FieldDescriptor, slot []byte, memoFormatIV bool) (Value, error) {
	const op = "xbformat.DecodeField"
	if len(slot) != int(fd.Length) {
		return Value{}, New(KindInvalidFieldDescriptor, op, fmt.Sprintf("field %q: slot length %d does not match descriptor length %d", fd.Name, len(slot), fd.Length))
	}
	switch fd.Type {
	case 'C':
		return Value{Type: 'C', Text: TrimTrailingSpace(slot)}, nil

	case 'N', 'F':
		if IsAllBlank(slot) {
			return Value{Type: fd.Type}, nil
		}
		text := TrimSpace(slot)
		if text == "" {
			return Value{Type: fd.Type}, nil
		}
		if fd.Decimals == 0 {
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return Value{}, Wrap(KindValueOutOfRange, op, fmt.Sprintf("field %q: parse integer %q", fd.Name, text), err)
			}
			return Value{Type: fd.Type, Integer: n}, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, Wrap(KindValueOutOfRange, op, fmt.Sprintf("field %q: parse real %q", fd.Name, text), err)
		}
		return Value{Type: fd.Type, Real: f}, nil

	case 'D':
		if IsAllBlank(slot) {
			return Value{Type: 'D'}, nil
		}
		text := string(slot)
		if len(text) != 8 {
			return Value{Type: 'D'}, nil
		}
		y, err1 := strconv.Atoi(text[0:4])
		m, err2 := strconv.Atoi(text[4:6])
		d, err3 := strconv.Atoi(text[6:8])
		if err1 != nil || err2 != nil || err3 != nil || m < 1 || m > 12 || d < 1 || d > 31 {
			return Value{Type: 'D'}, nil
		}
		return Value{Type: 'D', Date: Date{Year: y, Month: m, Day: d}}, nil

	case 'L':
		c := slot[0]
		switch c {
		case 'T', 't', 'Y', 'y':
			return Value{Type: 'L', Logical: LogicalTrue}, nil
		case 'F', 'f', 'N', 'n':
			return Value{Type: 'L', Logical: LogicalFalse}, nil
		default:
			return Value{Type: 'L', Logical: LogicalUnknown}, nil
		}

	case 'M':
		if IsAllBlank(slot) {
			return Value{Type: 'M', MemoRef: 0}, nil
		}
		if memoFormatIV || fd.Length == 4 {
			if len(slot) != 4 {
				return Value{}, New(KindInvalidMemoReference, op, fmt.Sprintf("field %q: format IV memo slot must be 4 bytes", fd.Name))
			}
			return Value{Type: 'M', MemoRef: binary.LittleEndian.Uint32(slot)}, nil
		}
		text := strings.TrimSpace(string(slot))
		if text == "" {
			return Value{Type: 'M', MemoRef: 0}, nil
		}
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return Value{}, Wrap(KindInvalidMemoReference, op, fmt.Sprintf("field %q: parse memo reference %q", fd.Name, text), err)
		}
		return Value{Type: 'M', MemoRef: uint32(n)}, nil

	case 'I':
		if len(slot) != 4 {
			return Value{}, New(KindInvalidFieldDescriptor, op, fmt.Sprintf("field %q: integer slot must be 4 bytes", fd.Name))
		}
		return Value{Type: 'I', Integer: int64(int32(binary.LittleEndian.Uint32(slot)))}, nil

	case 'T':
		if len(slot) != 8 {
			return Value{}, New(KindInvalidFieldDescriptor, op, fmt.Sprintf("field %q: datetime slot must be 8 bytes", fd.Name))
		}
		jdn := int32(binary.LittleEndian.Uint32(slot[0:4]))
		ms := int32(binary.LittleEndian.Uint32(slot[4:8]))
		if jdn == 0 {
			return Value{Type: 'T'}, nil
		}
		return Value{Type: 'T', Instant: fromJulian(jdn, ms)}, nil

	default:
		return Value{}, New(KindUnknownFieldType, op, fmt.Sprintf("field %q: unknown type %q", fd.Name, fd.Type))
	}
}

// EncodeField converts v into fd's fixed-width slot bytes, returning
// ValueOutOfRange if v does not fit.
func EncodeField(fd FieldDescriptor, v Value, memoFormatIV bool) ([]byte, error) {
	const op = "xbformat.EncodeField"
	w := int(fd.Length)
	switch fd.Type {
	case 'C':
		return PadRight(v.Text, w), nil

	case 'N', 'F':
		var text string
		if fd.Decimals == 0 {
			text = strconv.FormatInt(v.Integer, 10)
		} else {
			text = strconv.FormatFloat(v.Real, 'f', int(fd.Decimals), 64)
		}
		if len(text) > w {
			return nil, New(KindValueOutOfRange, op, fmt.Sprintf("field %q: encoded value %q exceeds width %d", fd.Name, text, w))
		}
		return PadLeft(text, w), nil

	case 'D':
		if v.Date.IsEmpty() {
			return PadRight("", w), nil
		}
		text := fmt.Sprintf("%04d%02d%02d", v.Date.Year, v.Date.Month, v.Date.Day)
		if len(text) != 8 || w != 8 {
			return nil, New(KindValueOutOfRange, op, fmt.Sprintf("field %q: date must encode to 8 bytes", fd.Name))
		}
		return []byte(text), nil

	case 'L':
		buf := make([]byte, 1)
		switch v.Logical {
		case LogicalTrue:
			buf[0] = 'T'
		case LogicalFalse:
			buf[0] = 'F'
		default:
			buf[0] = '?'
		}
		return buf, nil

	case 'M':
		if memoFormatIV || fd.Length == 4 {
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint32(buf, v.MemoRef)
			return buf, nil
		}
		if v.MemoRef == 0 {
			return PadRight("", w), nil
		}
		text := strconv.FormatUint(uint64(v.MemoRef), 10)
		if len(text) > w {
			return nil, New(KindValueOutOfRange, op, fmt.Sprintf("field %q: memo reference %q exceeds width %d", fd.Name, text, w))
		}
		return PadLeft(text, w), nil

	case 'I':
		buf := make([]byte, 4)
		if v.Integer > int64(^uint32(0)>>1) || v.Integer < -int64(^uint32(0)>>1)-1 {
			return nil, New(KindValueOutOfRange, op, fmt.Sprintf("field %q: integer %d out of int32 range", fd.Name, v.Integer))
		}
		binary.LittleEndian.PutUint32(buf, uint32(int32(v.Integer)))
		return buf, nil

	case 'T':
		buf := make([]byte, 8)
		if v.Instant.IsZero() {
			return buf, nil
		}
		jdn, ms := toJulian(v.Instant)
		binary.LittleEndian.PutUint32(buf[0:4], uint32(jdn))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(ms))
		return buf, nil

	default:
		return nil, New(KindUnknownFieldType, op, fmt.Sprintf("field %q: unknown type %q", fd.Name, fd.Type))
	}
}

// toJulian converts t (interpreted in UTC) into a Julian Day Number and
// milliseconds-since-midnight pair, the on-disk representation for type T.
// Uses the closed-form proleptic-Gregorian-to-JDN formula (Fliegel & Van
// Flandern).
func toJulian(t time.Time) (int32, int32) {
	u := t.UTC()
	y, m, d := u.Date()
	a := (14 - int(m)) / 12
	yy := int(y) + 4800 - a
	mm := int(m) + 12*a - 3
	jdn := d + (153*mm+2)/5 + 365*yy + yy/4 - yy/100 + yy/400 - 32045
	msSinceMidnight := (u.Hour()*3600+u.Minute()*60+u.Second())*1000 + u.Nanosecond()/1_000_000
	return int32(jdn), int32(msSinceMidnight)
}

// fromJulian is the inverse of toJulian.
func fromJulian(jdn int32, msSinceMidnight int32) time.Time {
	a := int(jdn) + 32044
	b := (4*a + 3) / 146097
	c := a - (146097*b)/4
	dd := (4*c + 3) / 1461
	e := c - (1461*dd)/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + dd - 4800 + m/10

	ms := int(msSinceMidnight)
	hour := ms / 3_600_000
	ms -= hour * 3_600_000
	minute := ms / 60_000
	ms -= minute * 60_000
	second := ms / 1000
	ms -= second * 1000

	return time.Date(year, time.Month(month), day, hour, minute, second, ms*1_000_000, time.UTC)
}
