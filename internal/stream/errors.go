package stream

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when no bearer token is available.
// It is reported before any network activity takes place.
var ErrUnauthenticated = errors.New("no credential available")

// TransportError reports a failed or rejected HTTP exchange: a non-2xx
// response, a connection failure, or a timeout. It is fatal to the session
// and never retried internally.
type TransportError struct {
	Status  int    // non-zero when the server answered with a non-2xx status
	Body    string // response body text for non-2xx answers
	Timeout bool   // true when the failure was a timeout
	Cause   error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("chat stream failed with HTTP status: %d, body: %s", e.Status, e.Body)
	case e.Timeout:
		return fmt.Sprintf("chat stream timed out: %v", e.Cause)
	default:
		return fmt.Sprintf("chat stream request failed: %v", e.Cause)
	}
}

// Unwrap returns the wrapped cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsUnauthenticated reports whether err means no credential was available.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsTimeout reports whether err is a transport failure caused by a timeout,
// which a caller may reasonably retry with a fresh request.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}
