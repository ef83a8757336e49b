package modem

import (
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the reader goroutine continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
//
// Commands registered with Script are answered automatically when written.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	script   map[string]string
	writes   []string
	written  chan string
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
		script:   make(map[string]string),
		written:  make(chan string, 64),
	}
}

// Script makes the transport answer cmd (without the trailing CR) with the
// given lines, each terminated by CRLF.
func (t *TestTransport) Script(cmd string, lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script[cmd] = strings.Join(lines, "\r\n") + "\r\n"
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	cmd := strings.TrimRight(string(p), "\r")
	t.writes = append(t.writes, cmd)
	reply, ok := t.script[cmd]
	t.mu.Unlock()

	select {
	case t.written <- cmd:
	default:
	}
	if ok {
		t.SendData(reply)
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns every command written so far, in order.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// WaitWrite blocks until the next write arrives or ctx is done.
func (t *TestTransport) WaitWrite(ctx context.Context) (string, bool) {
	select {
	case cmd := <-t.written:
		return cmd, true
	case <-ctx.Done():
		return "", false
	}
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
	Err       error
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Transport, nil
}
