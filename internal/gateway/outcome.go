package gateway

import (
	"errors"
	"fmt"
)

// ErrAuthenticationRequired is returned when an operation needs a bearer
// token and none is available. No request is issued in that case; the
// caller should send the operator back through login.
var ErrAuthenticationRequired = errors.New("gateway: authentication required")

// ErrEmptyCredentials is returned by Login before any network I/O when
// username or password is blank.
var ErrEmptyCredentials = errors.New("gateway: username and password required")

// RejectedError is a non-2xx response from the service. Message carries
// the server-provided reason and is shown to the operator verbatim.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway: request rejected (%d): %s", e.StatusCode, e.Message)
}

// UnreachableError is a transport-level failure to reach the service,
// as opposed to an HTTP error response.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("gateway: service unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err classifies as a transport failure.
// Callers with degrade-to-empty reads branch on this.
func IsUnreachable(err error) bool {
	var unreachable *UnreachableError
	return errors.As(err, &unreachable)
}
