package service

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. The HTTP layer maps each kind to a
// status code; the engine itself never looks at transport concerns.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvalidArgument
	KindLimitExceeded
	KindCapacityExceeded
	KindVersionConflict
	KindAlreadyCancelled
)

var kindNames = map[Kind]string{
	KindNotFound:         "NOT_FOUND",
	KindForbidden:        "FORBIDDEN",
	KindInvalidArgument:  "INVALID_ARGUMENT",
	KindLimitExceeded:    "LIMIT_EXCEEDED",
	KindCapacityExceeded: "CAPACITY_EXCEEDED",
	KindVersionConflict:  "VERSION_CONFLICT",
	KindAlreadyCancelled: "ALREADY_CANCELLED",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a domain rule violation reported to the caller. Message is
// meant for humans and is returned verbatim by the API.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden        = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrLimitExceeded    = &Error{Kind: KindLimitExceeded, Message: "limit exceeded"}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded, Message: "capacity exceeded"}
	ErrVersionConflict  = &Error{Kind: KindVersionConflict, Message: "version conflict"}
	ErrAlreadyCancelled = &Error{Kind: KindAlreadyCancelled, Message: "already cancelled"}
)

const (
	msgQuantityTooSmall   = "Quantity must be at least 1"
	msgEventNotFound      = "Event not found"
	msgReservationMissing = "Reservation not found"
	msgNotEnoughTickets   = "Not enough tickets available"
	msgVersionConflict    = "Version conflict. The event may have been modified by another user. Please refresh and try again."
	msgAlreadyCancelled   = "Reservation is already cancelled"
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func perEventLimit(max int) *Error {
	return newError(KindLimitExceeded, "You can only reserve a maximum of %d tickets per event", max)
}

func aggregateLimit(other, max int) *Error {
	return newError(KindLimitExceeded,
		"You already have %d ticket(s) for this event. You can only reserve a maximum of %d tickets per event.", other, max)
}

// KindOf returns the kind of a domain error and false for anything
// else, such as infrastructure failures.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether the caller should refresh state and
// resubmit. Only optimistic-lock losses qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
