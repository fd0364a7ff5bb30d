// Package errs defines the error kinds shared by the indexing and retrieval packages.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an error.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindEmptyInput        Kind = "empty_input"
	KindEmbedding         Kind = "embedding"
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindIncompatibleIndex Kind = "incompatible_index"
	KindNotFound          Kind = "not_found"
	KindStorage           Kind = "storage"
)

// Error carries the kind of failure together with the operation that failed
// and the parameter or path that caused it.
type Error struct {
	Kind    Kind
	Op      string // e.g. "vectorstore.load"
	Param   string // offending parameter, if any
	Path    string // attempted storage location, if any
	Message string
	Err     error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrEmptyInput        = &Error{Kind: KindEmptyInput}
	ErrEmbedding         = &Error{Kind: KindEmbedding}
	ErrDimensionMismatch = &Error{Kind: KindDimensionMismatch}
	ErrIncompatibleIndex = &Error{Kind: KindIncompatibleIndex}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrStorage           = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, string(e.Kind)+" error")
	if e.Param != "" {
		parts = append(parts, "param="+e.Param)
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Configuration reports an invalid parameter supplied by the caller.
func Configuration(op, param, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Param: param, Message: fmt.Sprintf(format, args...)}
}

// EmptyInput reports that there was nothing to index.
func EmptyInput(op, message string) *Error {
	return &Error{Kind: KindEmptyInput, Op: op, Message: message}
}

// Embedding wraps a failed provider call.
func Embedding(op, provider string, err error) *Error {
	return &Error{Kind: KindEmbedding, Op: op, Param: provider, Err: err}
}

// Embeddingf reports a provider failure without an underlying cause.
func Embeddingf(op, provider, format string, args ...any) *Error {
	return &Error{Kind: KindEmbedding, Op: op, Param: provider, Message: fmt.Sprintf(format, args...)}
}

// DimensionMismatch reports a vector whose length differs from the index dimension.
func DimensionMismatch(op string, want, got int) *Error {
	return &Error{
		Kind:    KindDimensionMismatch,
		Op:      op,
		Param:   "dimension",
		Message: fmt.Sprintf("got %d, expected %d", got, want),
	}
}

// Incompatible reports a persisted index that cannot be used with the active configuration.
func Incompatible(op, path, format string, args ...any) *Error {
	return &Error{Kind: KindIncompatibleIndex, Op: op, Path: path, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing snapshot.
func NotFound(op, path string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Message: "no index snapshot at location"}
}

// Storage wraps an I/O failure during persist or load.
func Storage(op, path string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Path: path, Err: err}
}

// Storagef reports a storage failure without an underlying cause, such as a corrupt snapshot.
func Storagef(op, path, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Op: op, Path: path, Message: fmt.Sprintf(format, args...)}
}
