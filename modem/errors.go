package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if the Dialer returned a nil Transport without an error.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrClosed is returned by exchanges attempted on, or interrupted by, a
	// closed channel. It is a transport fault: the session must be torn
	// down and re-established.
	ErrClosed = errors.New("AT channel closed")

	// ErrTimeout is returned when the modem did not produce a final result
	// code before the command deadline. It is a transport fault.
	ErrTimeout = errors.New("AT command timeout")

	// ErrInvalidResponse is returned when a command that must produce an
	// information line completed successfully without one.
	ErrInvalidResponse = errors.New("missing information response")

	// ErrLoopRunning is returned when Loop is called while another Loop is
	// already serving the same Modem.
	ErrLoopRunning = errors.New("loop already running")

	// ErrLineTooLong is returned when a modem response line exceeds the
	// maximum allowed length.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")
)

// CommandError reports a command that ended with a final result code other
// than OK, such as ERROR or +CME ERROR: 10.
type CommandError struct {
	Command string
	Final   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Final)
}

// IsFault reports whether err is a transport fault (channel closed or timed
// out) rather than a per-command failure.
func IsFault(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrTimeout)
}
