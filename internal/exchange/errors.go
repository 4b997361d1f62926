package exchange

import (
	"errors"
	"fmt"
)

// ErrorKind classifies venue failures into the variants callers act on.
// Adapters translate venue codes into a kind at the boundary so nothing
// upstream matches on error text.
type ErrorKind int

const (
	// KindOther is any failure without special handling upstream.
	KindOther ErrorKind = iota
	// KindAlreadyGone means the order no longer exists on the venue
	// (unknown id, already filled or already canceled). Callers treat
	// this as success-with-no-effect.
	KindAlreadyGone
	// KindRateLimited means the venue throttled the request.
	KindRateLimited
	// KindInsufficientBalance means margin or balance was too low.
	KindInsufficientBalance
)

func (k ErrorKind) String() string {
	switch k {
	case KindAlreadyGone:
		return "ALREADY_GONE"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	default:
		return "OTHER"
	}
}

// Error is the typed venue error every adapter returns.
type Error struct {
	Kind    ErrorKind
	Venue   string
	Code    string // venue-native error code, when one exists
	Message string
	Err     error // underlying transport error, may be nil
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s %s)", e.Venue, e.Message, e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Venue, e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed venue error.
func NewError(kind ErrorKind, venue, code, message string) *Error {
	return &Error{Kind: kind, Venue: venue, Code: code, Message: message}
}

// WrapError attaches a kind to an underlying transport error.
func WrapError(kind ErrorKind, venue string, err error) *Error {
	return &Error{Kind: kind, Venue: venue, Message: err.Error(), Err: err}
}

// KindOf extracts the kind from an error chain; non-venue errors are Other.
func KindOf(err error) ErrorKind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindOther
}

// IsAlreadyGone reports the success-with-no-effect class.
func IsAlreadyGone(err error) bool { return KindOf(err) == KindAlreadyGone }

// IsRateLimited reports venue throttling.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsInsufficientBalance reports a margin/balance rejection.
func IsInsufficientBalance(err error) bool { return KindOf(err) == KindInsufficientBalance }
