package datacall

import "errors"

var (
	// ErrLinkDown is returned by Setup when the packet interface did not come
	// up in time. The call may be retried later.
	ErrLinkDown = errors.New("packet link did not come up")

	// ErrNoPeer is returned when no pppd peer name is configured.
	ErrNoPeer = errors.New("no pppd peer configured")
)
