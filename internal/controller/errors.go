package controller

import "errors"

var (
	// ErrInvalidHex reports a malformed encoded command.
	ErrInvalidHex = errors.New("controller: invalid encoded command")
	// ErrSchedulerRunning is returned by Start when the loop is already active.
	ErrSchedulerRunning = errors.New("controller: scheduler already running")
	// ErrNotAttached reports a device operation attempted without a device.
	ErrNotAttached = errors.New("controller: device not attached")
)

// unknownNameError reports a button or stick name missing from the tables.
type unknownNameError struct{ kind, name string }

func (e unknownNameError) Error() string { return "unknown " + e.kind + ": " + e.name }

// IsUnknownName reports whether err came from a failed button or stick lookup.
func IsUnknownName(err error) bool {
	_, ok := err.(unknownNameError)
	return ok
}
