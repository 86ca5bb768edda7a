package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server and stream conditions.
var (
	// ErrStreamClosed is returned when sending on a finished stream.
	ErrStreamClosed = errors.New("server: stream closed")

	// ErrDuplicateMethod is returned when a method is registered twice.
	ErrDuplicateMethod = errors.New("server: method already registered")

	// ErrSetupTimeout is returned when the client does not send its setup
	// message in time.
	ErrSetupTimeout = errors.New("server: setup message timeout")

	// ErrUnexpectedMessage is returned for non-binary stream messages.
	ErrUnexpectedMessage = errors.New("server: unexpected message type")
)

// StreamError wraps an error with stream context for debugging.
type StreamError struct {
	Method string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with stream context.
func (e *StreamError) Error() string {
	return fmt.Sprintf("server: stream %s: %s: %v", e.Method, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}
