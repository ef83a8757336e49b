package ril

import (
	"errors"

	"i4.energy/across/fwril/host"
)

var (
	// ErrRadioNotAvailable is returned for requests made while the radio is
	// off, and for requests this dispatcher does not recognize.
	ErrRadioNotAvailable = errors.New("radio not available")

	// ErrNotSupported is returned for requests that are recognized but not
	// supported by the modem profile.
	ErrNotSupported = errors.New("request not supported")

	// ErrInvalidArgument is returned when the request payload is missing a
	// field or holds a value outside the accepted range. No command is sent.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPasswordIncorrect is returned when the modem rejected a PIN or PUK.
	ErrPasswordIncorrect = errors.New("password incorrect")
)

// StatusOf maps the outcome of a request to the status reported to the host.
// Parse failures, command errors and transport faults all map to
// GenericFailure.
func StatusOf(err error) host.Status {
	switch {
	case err == nil:
		return host.Success
	case errors.Is(err, ErrRadioNotAvailable):
		return host.RadioNotAvailable
	case errors.Is(err, ErrNotSupported):
		return host.RequestNotSupported
	case errors.Is(err, ErrPasswordIncorrect):
		return host.PasswordIncorrect
	default:
		return host.GenericFailure
	}
}
