// Package errs defines the closed error taxonomy of the upload flow.
// Every value implements Code so the router summary log can derive err_code
// without string matching.
package errs

import "fmt"

// Error is a coded domain error. Validation errors are terminal for the
// triggering request only: the session state they were raised against is
// left unchanged.
type Error struct {
	code string
	msg  string
	err  error
}

// Code returns the stable machine-readable code.
func (e *Error) Code() string { return e.code }

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.err }

// Is matches by code so wrapped instances compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

func code(c, msg string) *Error { return &Error{code: c, msg: msg} }

var (
	// ErrUnauthorized - sender is not on the allow-list.
	ErrUnauthorized = code("UNAUTHORIZED", "user is not authorized")
	// ErrCapacityExceeded - batch already holds the maximum number of files.
	ErrCapacityExceeded = code("CAPACITY_EXCEEDED", "batch is full")
	// ErrMissingPlaceholder - stored caption template lacks the key placeholder.
	ErrMissingPlaceholder = code("MISSING_PLACEHOLDER", "caption template does not contain the key placeholder")
	// ErrMissingTemplate - submitted caption text lacks the key placeholder.
	ErrMissingTemplate = code("MISSING_TEMPLATE", "caption text does not contain the key placeholder")
	// ErrProfileIncomplete - destination channel or caption template unset at dispatch time.
	ErrProfileIncomplete = code("PROFILE_INCOMPLETE", "profile is missing destination channel or caption template")
	// ErrSessionExpired - menu action arrived for a session that no longer exists.
	ErrSessionExpired = code("SESSION_EXPIRED", "session expired or invalid")
	// ErrDispatchFailed - a remote send failed; partially posted refs are preserved.
	ErrDispatchFailed = code("DISPATCH_FAILED", "dispatch failed")
	// ErrDeleteFailed - a remote delete failed; local bookkeeping still advances.
	ErrDeleteFailed = code("DELETE_FAILED", "delete failed")
	// ErrInvalidState - operation not permitted in the session's current status.
	ErrInvalidState = code("INVALID_STATE", "operation not valid in current session state")
)

// Wrap attaches a cause to a coded sentinel, preserving the code.
func Wrap(sentinel *Error, cause error) *Error {
	if cause == nil {
		return sentinel
	}
	return &Error{code: sentinel.code, msg: sentinel.msg, err: cause}
}
