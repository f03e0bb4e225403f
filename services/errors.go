package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a domain operation can report.
type ErrorKind string

const (
	KindAuthorization         ErrorKind = "AUTHORIZATION"
	KindTournamentClosed      ErrorKind = "TOURNAMENT_CLOSED"
	KindInvalidCategory       ErrorKind = "INVALID_CATEGORY"
	KindDuplicateRegistration ErrorKind = "DUPLICATE_REGISTRATION"
	KindSelfPartner           ErrorKind = "SELF_PARTNER"
	KindTooManyPreferences    ErrorKind = "TOO_MANY_PREFERENCES"
	KindSlotLimitExceeded     ErrorKind = "SLOT_LIMIT_EXCEEDED"
	KindInvalidTransition     ErrorKind = "INVALID_TRANSITION"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindPersistence           ErrorKind = "PERSISTENCE"
	KindValidation            ErrorKind = "VALIDATION"
)

// Error is a classified domain error. Two errors match under errors.Is when
// their kinds are equal, so callers compare against the sentinels below.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrAuthorization         = &Error{Kind: KindAuthorization, Message: "operation not allowed for the current player"}
	ErrTournamentClosed      = &Error{Kind: KindTournamentClosed, Message: "tournament is not open"}
	ErrInvalidCategory       = &Error{Kind: KindInvalidCategory, Message: "category is not offered for this gender"}
	ErrDuplicateRegistration = &Error{Kind: KindDuplicateRegistration, Message: "player is already registered for this tournament"}
	ErrSelfPartner           = &Error{Kind: KindSelfPartner, Message: "partner cannot be the registrant"}
	ErrTooManyPreferences    = &Error{Kind: KindTooManyPreferences, Message: "too many unavailable time slots"}
	ErrSlotLimitExceeded     = &Error{Kind: KindSlotLimitExceeded, Message: "time slot limit reached"}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition, Message: "invalid tournament status transition"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "requested resource not found"}
	ErrPersistence           = &Error{Kind: KindPersistence, Message: "storage operation failed"}
	ErrValidation            = &Error{Kind: KindValidation, Message: "validation failed"}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func persistenceError(cause error, format string, args ...interface{}) *Error {
	return wrapError(KindPersistence, cause, format, args...)
}

// KindOf returns the kind of a classified error, or PERSISTENCE for anything
// unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}
