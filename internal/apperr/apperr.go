// Package apperr defines the error kinds shared by the storage, index and query layers.
//
// Lower layers return precise kinds. The outer boundary (indexer, query engine,
// index loading) decides which kinds collapse into "not found" or "absent".
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is the kind of any error not produced by this package.
	Unknown Kind = iota
	// NotFound means the requested document or object does not exist.
	NotFound
	// StorageFailure means the backend was unreachable or an I/O error occurred.
	StorageFailure
	// IndexCorrupt means a persisted index or id-list blob could not be decoded.
	IndexCorrupt
	// InvalidInput means the caller supplied a malformed request or payload.
	InvalidInput
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case StorageFailure:
		return "storage_failure"
	case IndexCorrupt:
		return "index_corrupt"
	case InvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is a classified error with the operation and object key it concerns.
type Error struct {
	Kind Kind
	Op   string // e.g. "docstore.get"
	Key  string // object key or document id, may be empty
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrNotFound) works
// through any amount of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Key == "" && t.Err == nil && e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound       = &Error{Kind: NotFound}
	ErrStorageFailure = &Error{Kind: StorageFailure}
	ErrIndexCorrupt   = &Error{Kind: IndexCorrupt}
	ErrInvalidInput   = &Error{Kind: InvalidInput}
)

// E builds a classified error.
func E(kind Kind, op, key string, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

// Invalid builds an InvalidInput error from a formatted message.
func Invalid(op, format string, args ...any) *Error {
	return &Error{Kind: InvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
