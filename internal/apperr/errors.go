// Package apperr defines the error kinds every engine operation reports.
//
// Each kind is a sentinel. Domain packages derive their own coded errors from
// a kind with New, so callers can match either the precise code or the kind:
//
//	errors.Is(err, documentdomain.ErrNoLineItems) // exact
//	errors.Is(err, apperr.ErrPreconditionFailed)  // kind
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, low-cardinality error classification.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindValidation         Kind = "validation_error"
	KindCrossTenant        Kind = "cross_tenant_reference"
	KindNotFound           Kind = "not_found"
	KindInvalidTransition  Kind = "invalid_transition"
	KindPreconditionFailed Kind = "precondition_failed"
	KindConflict           Kind = "conflict"
	KindImmutable          Kind = "immutable"
	KindBusy               Kind = "busy"
)

var (
	ErrValidation           = &kindError{kind: KindValidation}
	ErrCrossTenantReference = &kindError{kind: KindCrossTenant}
	ErrNotFound             = &kindError{kind: KindNotFound}
	ErrInvalidTransition    = &kindError{kind: KindInvalidTransition}
	ErrPreconditionFailed   = &kindError{kind: KindPreconditionFailed}
	ErrConflict             = &kindError{kind: KindConflict}
	ErrImmutable            = &kindError{kind: KindImmutable}
	ErrBusy                 = &kindError{kind: KindBusy}
)

var kinds = []*kindError{
	ErrValidation,
	ErrCrossTenantReference,
	ErrNotFound,
	ErrInvalidTransition,
	ErrPreconditionFailed,
	ErrConflict,
	ErrImmutable,
	ErrBusy,
}

type kindError struct {
	kind Kind
}

func (e *kindError) Error() string { return string(e.kind) }

// Error is a coded error that belongs to one kind.
type Error struct {
	Kind Kind
	Code string

	parent *kindError
}

// New declares a coded error under the given kind sentinel.
func New(kind error, code string) *Error {
	parent, ok := kind.(*kindError)
	if !ok {
		panic(fmt.Sprintf("apperr: %v is not a kind sentinel", kind))
	}
	return &Error{Kind: parent.kind, Code: code, parent: parent}
}

func (e *Error) Error() string { return e.Code }

func (e *Error) Unwrap() error { return e.parent }

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsRetryable reports whether the caller should retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// Wrap annotates err with detail while keeping it matchable.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}
