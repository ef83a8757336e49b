package session

import "errors"

var (
	// ErrIllegalTransition is returned when a radio state change is not one
	// of the defined edges. The state is left unchanged.
	ErrIllegalTransition = errors.New("illegal radio state transition")
)
