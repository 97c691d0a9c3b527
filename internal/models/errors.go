package models

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so the transport layer can map it once.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindState         Kind = "state"
	KindInternal      Kind = "internal"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrState         = errors.New("invalid state")
	ErrInternal      = errors.New("internal error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindState:
		return ErrState
	default:
		return ErrInternal
	}
}

// Error is a structured engine error: a kind, a short machine-readable code
// and a human message. The underlying cause (if any) is reachable via Unwrap.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// NewError builds an *Error with a formatted message.
func NewError(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation error.
func Validationf(code, format string, args ...interface{}) *Error {
	return NewError(KindValidation, code, format, args...)
}

// Internal wraps an unexpected failure (storage, encoding).
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: msg, Err: err}
}

func DimensionMismatch(field string, expected, actual int) *Error {
	return Validationf("dimension_mismatch",
		"vector %q dimension mismatch: expected %d, got %d", field, expected, actual)
}

func UnknownVectorField(field string) *Error {
	return Validationf("unknown_vector_field", "unknown vector field %q", field)
}

func InvalidWeight(w float64) *Error {
	return Validationf("invalid_weight", "weight must be within [0, 1], got %v", w)
}

func InvalidTopK(k, max int) *Error {
	return Validationf("invalid_top_k", "top_k must be within [1, %d], got %d", max, k)
}

func CollectionNotFound(name string) *Error {
	return NewError(KindNotFound, "collection_not_found", "collection %q does not exist", name)
}

func CollectionExists(name string) *Error {
	return NewError(KindAlreadyExists, "collection_exists", "collection %q already exists", name)
}

func CollectionDeleted(name string) *Error {
	return NewError(KindState, "collection_deleted", "collection %q was deleted while the request was in flight", name)
}

func PointNotFound(id, field string) *Error {
	if field == "" {
		return NewError(KindNotFound, "point_not_found", "point %q not found", id)
	}
	return NewError(KindNotFound, "point_not_found", "point %q has no vector %q", id, field)
}
