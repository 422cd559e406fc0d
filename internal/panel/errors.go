package panel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned before any network call when no API key is set.
	ErrNotConfigured = errors.New("panel api key not configured")
	// ErrInvalidArgument is returned for operation, status or rule type values
	// the panel does not accept.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RemoteError is a well-formed panel response whose code is not 200.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("panel returned code %d", e.Code)
	}
	return fmt.Sprintf("panel returned code %d: %s", e.Code, e.Message)
}

// TransportError covers network failures, timeouts, TLS failures and
// responses that could not be decoded.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err is a RemoteError and returns it.
func IsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	ok := errors.As(err, &remote)
	return remote, ok
}

// IsTransport reports whether err is a TransportError, including timeouts.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
