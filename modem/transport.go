package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/term"
	"github.com/warthog618/modem/trace"
	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_modem.go -package=modem . Transport,Dialer,Commander

// Transport represents an established, bidirectional byte stream to the modem.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include serial ports, TCP connections to emulators,
// local sockets, or in-memory fakes used for testing.
//
// Close must unblock a pending Read.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to the modem.
//
// Dialer abstracts how the modem connection is created (device file, loopback
// port or local socket) and is used once per connection attempt.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the line speed used by the device dialers when none is given.
const DefaultBaudRate = 115200

// SerialDialer opens the modem AT port as a serial device in raw mode and
// discards any stale input.
type SerialDialer struct {
	PortName string
	// Mode overrides the default 115200 8N1 line settings
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: DefaultBaudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.PortName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", d.PortName, err)
	}
	return port, nil
}

func (d SerialDialer) String() string { return "serial:" + d.PortName }

// TermDialer opens the modem AT port through termios directly. It is an
// alternative to SerialDialer for USB CDC ports and emulator ptys that reject
// the modem-line ioctls go.bug.st/serial issues.
type TermDialer struct {
	PortName string
	BaudRate int
}

func (d TermDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	t, err := term.Open(d.PortName, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.PortName, err)
	}
	if err := t.Flush(); err != nil {
		t.Close()
		return nil, fmt.Errorf("flush %s: %w", d.PortName, err)
	}
	// Closing the descriptor does not wake a blocked read, so reads poll.
	if err := t.SetReadTimeout(200 * time.Millisecond); err != nil {
		t.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", d.PortName, err)
	}
	return &termTransport{Term: t}, nil
}

func (d TermDialer) String() string { return "term:" + d.PortName }

type termTransport struct {
	*term.Term
	closed atomic.Bool
}

func (t *termTransport) Read(p []byte) (int, error) {
	for {
		n, err := t.Term.Read(p)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		if t.closed.Load() {
			return 0, io.EOF
		}
	}
}

func (t *termTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.Term.Close()
}

// TCPDialer connects to a modem exposed on a loopback TCP port.
type TCPDialer struct {
	Port int
}

func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(d.Port)))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d TCPDialer) String() string { return "tcp:" + strconv.Itoa(d.Port) }

// UnixDialer connects to a modem exposed on a local stream socket.
type UnixDialer struct {
	Path string
}

func (d UnixDialer) Dial(ctx context.Context) (Transport, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "unix", d.Path)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d UnixDialer) String() string { return "unix:" + d.Path }

// QemudSocket is the emulator multiplexer socket. Connections to it must
// name the service they want before any AT traffic flows.
const QemudSocket = "/dev/socket/qemud"

// QemudDialer connects to the emulator multiplexer and requests the gsm
// service. The daemon answers "OK" when the service is available.
type QemudDialer struct {
	Path string
}

func (d QemudDialer) Dial(ctx context.Context) (Transport, error) {
	path := d.Path
	if path == "" {
		path = QemudSocket
	}
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	answer := make([]byte, 2)
	if _, err := conn.Write([]byte("gsm")); err != nil {
		conn.Close()
		return nil, fmt.Errorf("qemud handshake: %w", err)
	}
	if _, err := io.ReadFull(conn, answer); err != nil {
		conn.Close()
		return nil, fmt.Errorf("qemud handshake: %w", err)
	}
	if string(answer) != "OK" {
		conn.Close()
		return nil, fmt.Errorf("qemud handshake: unexpected answer %q", answer)
	}
	conn.SetDeadline(time.Time{})
	return conn, nil
}

func (d QemudDialer) String() string { return "qemud:" + d.Path }

// TracingDialer logs every byte written to and read from the transports it
// opens.
type TracingDialer struct {
	Dialer Dialer
	Logger *slog.Logger
}

func (d TracingDialer) Dial(ctx context.Context) (Transport, error) {
	t, err := d.Dialer.Dial(ctx)
	if err != nil || t == nil {
		return t, err
	}
	l := slog.NewLogLogger(d.Logger.Handler(), slog.LevelDebug)
	return &tracedTransport{
		Trace:  trace.New(t, trace.WithLogger(l), trace.WithReadFormat("r: %q"), trace.WithWriteFormat("w: %q")),
		Closer: t,
	}, nil
}

func (d TracingDialer) String() string { return fmt.Sprint(d.Dialer) }

type tracedTransport struct {
	*trace.Trace
	io.Closer
}
