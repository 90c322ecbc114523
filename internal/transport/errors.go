package transport

import "errors"

var (
	// ErrPeerClosed reports an orderly disconnect by the client.
	ErrPeerClosed = errors.New("transport: peer closed connection")
	// ErrSessionClosed is returned by operations on a finished session.
	ErrSessionClosed = errors.New("transport: session closed")
)

// faultError wraps a transport level failure that ends a session.
type faultError struct {
	op  string
	err error
}

func (e faultError) Error() string { return "transport " + e.op + ": " + e.err.Error() }

func (e faultError) Unwrap() error { return e.err }

// IsFault reports whether err ended a session because of a transport failure.
func IsFault(err error) bool {
	var f faultError
	return errors.As(err, &f)
}
