package datastore

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code (of type RetCode), a message and an optional cause.
// Two errors match with errors.Is when their codes are equal, so callers can test
// against the sentinel values below.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
	Err  error   // The underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("DataStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("DataStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// CodeOf returns the code of the first *Error in err's chain.
// Errors of other types are reported as RetCInternalError, nil as RetCSuccess.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// Sentinel errors, compare with errors.Is.
var (
	ErrNotFound        = NewError(RetCNotFound, "key not found")
	ErrTransport       = NewError(RetCTransport, "transport failure")
	ErrEndOfSequence   = NewError(RetCEndOfSequence, "no more pages")
	ErrVersionMismatch = NewError(RetCVersionMismatch, "version mismatch")
	ErrAlreadyExists   = NewError(RetCAlreadyExists, "key already exists")
	ErrInvalid         = NewError(RetCInvalidOperation, "invalid operation")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid arguments or malformed request.
	RetCNotFound                        // 3: Key or version does not exist.
	RetCTransport                       // 4: Network or service failure, transient.
	RetCEndOfSequence                   // 5: Advancing past the last page.
	RetCVersionMismatch                 // 6: MatchVersion precondition failed.
	RetCAlreadyExists                   // 7: ExclusiveCreate precondition failed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCTransport:
		return "Transport"
	case RetCEndOfSequence:
		return "EndOfSequence"
	case RetCVersionMismatch:
		return "VersionMismatch"
	case RetCAlreadyExists:
		return "AlreadyExists"
	default:
		return "Unknown"
	}
}
