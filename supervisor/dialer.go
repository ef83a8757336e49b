package supervisor

import (
	"errors"
	"log/slog"

	"go.bug.st/serial"

	"i4.energy/across/fwril/modem"
)

// ErrNoEndpoint is returned when none of the connection strategies is
// configured.
var ErrNoEndpoint = errors.New("no modem endpoint configured: set a port, a socket or a device")

// Device drivers for the device path strategy.
const (
	DriverSerial = "serial"
	DriverTerm   = "term"
)

// Endpoint selects how the AT channel is reached. The first configured
// strategy wins: loopback port, then local socket, then device path.
type Endpoint struct {
	Port   int
	Socket string
	Device string
	// Driver picks the device implementation, DriverSerial by default
	Driver   string
	BaudRate int
	// Trace logs the raw AT traffic at debug level
	Trace bool
}

// Dialer returns the modem.Dialer for the configured strategy.
func (e Endpoint) Dialer(logger *slog.Logger) (modem.Dialer, error) {
	var d modem.Dialer
	switch {
	case e.Port > 0:
		d = modem.TCPDialer{Port: e.Port}
	case e.Socket == modem.QemudSocket:
		d = modem.QemudDialer{Path: e.Socket}
	case e.Socket != "":
		d = modem.UnixDialer{Path: e.Socket}
	case e.Device != "" && e.Driver == DriverTerm:
		d = modem.TermDialer{PortName: e.Device, BaudRate: e.BaudRate}
	case e.Device != "":
		d = modem.SerialDialer{PortName: e.Device, Mode: serialMode(e.BaudRate)}
	default:
		return nil, ErrNoEndpoint
	}
	if e.Trace {
		d = modem.TracingDialer{Dialer: d, Logger: logger.With("component", "at-trace")}
	}
	return d, nil
}

// serialMode returns 8N1 at baud, or nil to keep the dialer default.
func serialMode(baud int) *serial.Mode {
	if baud == 0 {
		return nil
	}
	return &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
}
