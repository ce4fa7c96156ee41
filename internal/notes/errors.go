package notes

import "errors"

// Authorization and lookup failures are sentinels so handlers can map them
// to status codes. Everything else is a wrapped upstream failure.
var (
	ErrUnauthenticated = errors.New("sign in required")
	ErrNotVerified     = errors.New("email not verified")
	ErrNotOwner        = errors.New("only the owner may modify a note")
	ErrNotFound        = errors.New("note not found")
)

// ValidationError describes rejected form input. Recoverable; surfaced to
// the user as-is.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func invalid(msg string) error {
	return &ValidationError{msg: msg}
}
