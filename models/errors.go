package models

import (
	"errors"
	"fmt"
)

// Kind classifies every error the core returns, per spec §7. Callers
// switch on Kind rather than comparing error strings.
type Kind int

const (
	KindNone Kind = iota
	// KindNotFound — database or document missing.
	KindNotFound
	// KindConflict — revision mismatch on Put/Delete.
	KindConflict
	// KindValidation — malformed identifier or body.
	KindValidation
	// KindIO — underlying storage failure; fatal for the operation.
	KindIO
	// KindCorruption — unreadable manifest, snapshot, or WAL line.
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindCorruption:
		return "corruption"
	default:
		return "none"
	}
}

// Error is the concrete error type returned by every core operation that
// can fail. Op and Message describe what happened; Cause, when present,
// wraps the underlying error so errors.Unwrap still works.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is against the package sentinels below by comparing
// Kind alone, so callers can write errors.Is(err, models.ErrConflict)
// without caring about Op/Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for use with errors.Is. Construct a specific *Error with
// NewError when a caller-facing Op/Message is needed.
var (
	ErrNotFound   = &Error{Kind: KindNotFound, Op: "sentinel", Message: "not found"}
	ErrConflict   = &Error{Kind: KindConflict, Op: "sentinel", Message: "conflict"}
	ErrValidation = &Error{Kind: KindValidation, Op: "sentinel", Message: "validation"}
	ErrIO         = &Error{Kind: KindIO, Op: "sentinel", Message: "io"}
	ErrCorruption = &Error{Kind: KindCorruption, Op: "sentinel", Message: "corruption"}
)

// NewError builds an *Error with the given kind, operation name, and
// message, optionally wrapping cause.
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and KindNone otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
