package host

import "errors"

var (
	// ErrNoHandler is returned by Submit before a Handler is installed.
	ErrNoHandler = errors.New("no request handler")

	// ErrClosed is returned by Submit after the Bridge was closed.
	ErrClosed = errors.New("host bridge closed")
)
