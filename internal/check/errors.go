package check

import (
	"errors"
	"fmt"
)

// Code categorizes engine and store failures.
//
// Every constraint violation is reported synchronously to the caller as a
// typed result. The engine never retries on the caller's behalf; retry is a
// caller decision.
type Code string

const (
	// CodeNotFound indicates an unknown user or check id.
	CodeNotFound Code = "NOT_FOUND"

	// CodeNotParticipant indicates the actor is neither sender nor receiver,
	// or attempted a receiver-only action as the sender.
	CodeNotParticipant Code = "NOT_PARTICIPANT"

	// CodeQuotaExceeded indicates the sender hit the daily send limit.
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// CodeExchangeBusy indicates a Pending check already exists between the
	// pair, in either direction.
	CodeExchangeBusy Code = "EXCHANGE_BUSY"

	// CodeAlreadyResolved indicates the check reached a terminal status
	// before this call's transition could commit.
	CodeAlreadyResolved Code = "ALREADY_RESOLVED"

	// CodeStoreUnavailable indicates a persistence failure. Fatal for the
	// current command only; the engine does not buffer across outages.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// Error is the typed failure returned by engine and store operations.
type Error struct {
	Code    Code
	Message string

	// Status carries the terminal status that won the race.
	// Set only for CodeAlreadyResolved.
	Status Status

	// Err is the underlying cause, set for CodeStoreUnavailable.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// NotFoundError reports an unknown user or check.
func NotFoundError(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// NotParticipantError reports an actor outside the check's pair or acting
// in the wrong role.
func NotParticipantError(actor, checkID string) *Error {
	return &Error{Code: CodeNotParticipant, Message: fmt.Sprintf("user %q may not act on check %q", actor, checkID)}
}

// QuotaExceededError reports a sender at the daily limit.
func QuotaExceededError(sender string, limit int) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: fmt.Sprintf("user %q reached the daily limit of %d checks", sender, limit)}
}

// ExchangeBusyError reports an existing Pending check between the pair.
func ExchangeBusyError(a, b string) *Error {
	return &Error{Code: CodeExchangeBusy, Message: fmt.Sprintf("a pending check already exists between %q and %q", a, b)}
}

// AlreadyResolvedError reports a lost transition race. won is the terminal
// status that committed first.
func AlreadyResolvedError(checkID string, won Status) *Error {
	return &Error{
		Code:    CodeAlreadyResolved,
		Message: fmt.Sprintf("check %q already resolved as %s", checkID, won),
		Status:  won,
	}
}

// StoreUnavailableError wraps a persistence failure.
func StoreUnavailableError(op string, err error) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: op, Err: err}
}

// CodeOf returns the Code carried by err, or "" if err is not a check error.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsNotParticipant reports whether err carries CodeNotParticipant.
func IsNotParticipant(err error) bool { return CodeOf(err) == CodeNotParticipant }

// IsQuotaExceeded reports whether err carries CodeQuotaExceeded.
func IsQuotaExceeded(err error) bool { return CodeOf(err) == CodeQuotaExceeded }

// IsExchangeBusy reports whether err carries CodeExchangeBusy.
func IsExchangeBusy(err error) bool { return CodeOf(err) == CodeExchangeBusy }

// IsAlreadyResolved reports whether err carries CodeAlreadyResolved.
func IsAlreadyResolved(err error) bool { return CodeOf(err) == CodeAlreadyResolved }

// IsStoreUnavailable reports whether err carries CodeStoreUnavailable.
func IsStoreUnavailable(err error) bool { return CodeOf(err) == CodeStoreUnavailable }

// ResolvedStatus returns the terminal status carried by an AlreadyResolved
// error, or "" for any other error.
func ResolvedStatus(err error) Status {
	var ce *Error
	if errors.As(err, &ce) && ce.Code == CodeAlreadyResolved {
		return ce.Status
	}
	return ""
}
