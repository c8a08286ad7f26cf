package mass

import (
	"errors"
	"fmt"
)

// Kind classifies domain errors independently of the transport
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified domain error
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports malformed or missing input
func ValidationError(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

// NotFoundError reports a missing task or upload
func NotFoundError(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

// ForbiddenError reports an operation that is illegal in the task's current status
func ForbiddenError(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

// ConflictError reports a uniqueness violation
func ConflictError(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
