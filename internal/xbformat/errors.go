// Package xbformat holds the byte-level building blocks shared by the
// record, memo, and index engines: header and field-descriptor layout, the
// field codec, positioned I/O helpers, and the error taxonomy every other
// internal package wraps its failures in.
//
// Mirrors the shape of the CodeBase error-code convention (an Error4 /
// ErrorCode pair per operation) but surfaces idiomatic wrapped Go errors
// instead of bare ints at every package boundary.
package xbformat

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories this library surfaces.
type Kind int

const (
	// KindIO covers an underlying file operation failure.
	KindIO Kind = iota
	// KindNotFound covers a path that does not exist where an existing
	// file was expected.
	KindNotFound
	// KindFileExists covers creation requested without overwrite when the
	// target already exists.
	KindFileExists
	// KindInvalidHeader covers a header whose length, terminator, or
	// cross-field invariants are violated.
	KindInvalidHeader
	// KindInvalidFieldDescriptor covers a bad type byte, zero length, or
	// malformed name in a field descriptor.
	KindInvalidFieldDescriptor
	// KindUnknownFieldType covers a slot type byte outside the supported
	// set.
	KindUnknownFieldType
	// KindValueOutOfRange covers a value that cannot be encoded within a
	// field's width or precision.
	KindValueOutOfRange
	// KindIndexOutOfRange covers a record index >= record_count, or a page
	// index beyond the file.
	KindIndexOutOfRange
	// KindNotWritable covers a mutating call on a read-only engine.
	KindNotWritable
	// KindInvalidMemoReference covers a block index of 0 or beyond the
	// allocated range supplied on read.
	KindInvalidMemoReference
	// KindMemoFormatMismatch covers a record-file version that disagrees
	// with the presence (or absence) of a memo field in the schema.
	KindMemoFormatMismatch
	// KindInvalidKeyLength covers a header key length outside 1-240.
	KindInvalidKeyLength
	// KindKeyTooLong covers a search key longer than the header key
	// length.
	KindKeyTooLong
	// KindInvalidPage covers page bytes that violate attribute or
	// key-count invariants.
	KindInvalidPage
	// KindCacheMiss is internal only; it never surfaces to callers.
	KindCacheMiss
	// KindTransactionRolledBack wraps the reason a transaction's closure
	// failed.
	KindTransactionRolledBack
	// KindNotFoundKey covers a search_exact lookup whose key is absent.
	KindNotFoundKey
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IO"
	case KindNotFound:
		return "NotFound"
	case KindFileExists:
		return "FileExists"
	case KindInvalidHeader:
		return "InvalidHeader"
	case KindInvalidFieldDescriptor:
		return "InvalidFieldDescriptor"
	case KindUnknownFieldType:
		return "UnknownFieldType"
	case KindValueOutOfRange:
		return "ValueOutOfRange"
	case KindIndexOutOfRange:
		return "IndexOutOfRange"
	case KindNotWritable:
		return "NotWritable"
	case KindInvalidMemoReference:
		return "InvalidMemoReference"
	case KindMemoFormatMismatch:
		return "MemoFormatMismatch"
	case KindInvalidKeyLength:
		return "InvalidKeyLength"
	case KindKeyTooLong:
		return "KeyTooLong"
	case KindInvalidPage:
		return "InvalidPage"
	case KindCacheMiss:
		return "CacheMiss"
	case KindTransactionRolledBack:
		return "TransactionRolledBack"
	case KindNotFoundKey:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every public operation in this module
// returns. It carries a Kind for errors.Is/errors.As matching, the
// operation name it originated from, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, xbformat.ErrNotFound) style checks against the
// sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind for operation op.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error of the given kind for operation op, wrapping cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Sentinels usable with errors.Is against a bare Kind comparison, for
// callers that just want to check "is this a not-found error" without needing the
// Op/Message detail.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrFileExists             = &Error{Kind: KindFileExists}
	ErrInvalidHeader          = &Error{Kind: KindInvalidHeader}
	ErrInvalidFieldDescriptor = &Error{Kind: KindInvalidFieldDescriptor}
	ErrUnknownFieldType       = &Error{Kind: KindUnknownFieldType}
	ErrValueOutOfRange        = &Error{Kind: KindValueOutOfRange}
	ErrIndexOutOfRange        = &Error{Kind: KindIndexOutOfRange}
	ErrNotWritable            = &Error{Kind: KindNotWritable}
	ErrInvalidMemoReference   = &Error{Kind: KindInvalidMemoReference}
	ErrMemoFormatMismatch     = &Error{Kind: KindMemoFormatMismatch}
	ErrInvalidKeyLength       = &Error{Kind: KindInvalidKeyLength}
	ErrKeyTooLong             = &Error{Kind: KindKeyTooLong}
	ErrInvalidPage            = &Error{Kind: KindInvalidPage}
	ErrCacheMiss              = &Error{Kind: KindCacheMiss}
	ErrNotFoundKey            = &Error{Kind: KindNotFoundKey}
)

// RolledBack wraps the error returned by a transaction's closure, per the
// TransactionRolledBack(inner) contract.
func RolledBack(op string, cause error) *Error {
	return &Error{Kind: KindTransactionRolledBack, Op: op, Message: "transaction rolled back", Cause: cause}
}

// Is lets xbformat.Is(err, xbformat.KindIO) style checks work directly
// against a Kind value, as an alternative to errors.Is against the sentinel
// *Error values above.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
