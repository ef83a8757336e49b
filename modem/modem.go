package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/fwril/at"
)

// maxLineLength bounds a single response line; NMEA sentences and PDUs fit well within it.
const maxLineLength = 4096

// Modem is the AT command channel to a CDMA modem. It provides serialized
// command execution and unsolicited line delivery through a centralized
// event loop that handles all transport I/O.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	// closed indicates if the modem has been shut down
	closed atomic.Bool
	// loopRunning indicates if the Loop is currently running
	loopRunning atomic.Bool

	// commands queues AT command requests for the Loop to process
	commands chan *commandRequest

	// The reader goroutine is the only code that reads from the transport.
	readerOnce sync.Once
	tokens     chan string
	readErr    error

	// loopCtx is cancelled by Close to stop the Loop
	loopCtx    context.Context
	loopCancel context.CancelFunc
}

// commandRequest represents an AT command request to be executed by the Loop.
type commandRequest struct {
	// cmd is the AT command string to send to the modem
	cmd string
	// prefix selects the information lines that belong to this command
	prefix string
	// pdu is written after the "> " prompt for SMS commands
	pdu  string
	kind responseKind
	// respChan receives the command response from the Loop
	respChan chan commandResponse
	// ctx provides timeout and cancellation control for the command
	ctx context.Context
	// sent is when the command was written to the transport
	sent time.Time
}

type commandResponse struct {
	response *Response
	err      error
}

// New dials the modem using the configured Dialer and, when enabled, runs
// the liveness probe. A probe that never sees OK is logged but does not fail
// construction: some modems only answer once the AT profile is applied.
//
// Returns an error if the transport connection cannot be established.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	initCtx := ctx
	if config.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, config.InitTimeout)
		defer cancel()
	}

	transport, err := config.Dialer.Dial(initCtx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		config:    config,
		logger:    config.Logger,
		// No queue for commands
		commands: make(chan *commandRequest),
	}
	m.loopCtx, m.loopCancel = context.WithCancel(context.Background())

	if config.ProbeAttempts > 0 {
		if err := m.probe(initCtx); err != nil {
			if errors.Is(err, ErrClosed) {
				transport.Close()
				return nil, fmt.Errorf("probe modem: %w", err)
			}
			m.logger.Warn("Modem did not answer liveness probe", "attempts", config.ProbeAttempts, "error", err)
		}
	}

	return m, nil
}

// Loop is the main event loop that handles all transport I/O operations.
// It must be called exactly once after New() and before any commands are
// issued. The Loop coordinates all communication with the modem:
//
// 1. Accepts one command request at a time from Command() and friends
// 2. Writes AT commands (and SMS PDUs after the prompt) to the transport
// 3. Attributes intermediate lines to the pending command by prefix
// 4. Dispatches every other line to the unsolicited handler
// 5. Fires the timeout and closed fault callbacks
//
// A command abandoned by its caller still owns the channel: the Loop
// discards its late answer before accepting the next command. When no
// answer arrives within ATTimeout the abandoned command is given up; if it
// was cancelled rather than timed out, OnTimeout fires then.
//
// The Loop runs until the context is cancelled, Close is called, or the
// transport fails. It returns io.EOF when the modem side hung up.
func (m *Modem) Loop(ctx context.Context) error {
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)
	// The transport is unusable once the Loop stops; release waiting callers.
	defer m.loopCancel()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.loopCtx, cancel)
	defer stop()

	tokens := m.reader()

	var (
		// Current command being processed
		current *commandRequest
		lines   []string
		// pendingPDU holds an unsolicited SMS line until its PDU arrives
		pendingPDU string

		// draining is an abandoned command whose answer is still due
		draining   *commandRequest
		drainFault bool
	)
	drainTimer := time.NewTimer(time.Hour)
	drainTimer.Stop()
	defer drainTimer.Stop()

	finish := func(resp commandResponse) {
		current.respChan <- resp
		current = nil
		lines = nil
	}

	for {
		// Only accept a new command once the previous one completed
		var commands chan *commandRequest
		var deadline <-chan struct{}
		var drainExpired <-chan time.Time
		switch {
		case current != nil:
			deadline = current.ctx.Done()
		case draining != nil:
			drainExpired = drainTimer.C
		default:
			commands = m.commands
		}

		select {
		case <-ctx.Done():
			if current != nil {
				finish(commandResponse{err: ErrClosed})
			}
			return ctx.Err()

		case req := <-commands:
			current = req
			current.sent = time.Now()
			lines = nil

			wire := strings.TrimSpace(req.cmd) + "\r"
			if _, err := m.transport.Write([]byte(wire)); err != nil {
				finish(commandResponse{err: fmt.Errorf("write command %q: %w: %w", req.cmd, ErrClosed, err)})
			}

		case <-deadline:
			abandoned := current
			cause := abandoned.ctx.Err()
			timedOut := errors.Is(cause, context.DeadlineExceeded)
			soft := softTimeout(abandoned.ctx)
			m.logger.Warn("AT command abandoned", "command", abandoned.cmd, "error", cause)
			if timedOut {
				finish(commandResponse{err: fmt.Errorf("%s: %w", abandoned.cmd, ErrTimeout)})
			} else {
				finish(commandResponse{err: fmt.Errorf("%s: %w", abandoned.cmd, cause)})
			}

			draining = abandoned
			drainFault = !timedOut && !soft
			wait := m.config.ATTimeout
			if soft {
				// a soft exchange waits no longer for its answer than it already did
				wait = time.Since(abandoned.sent)
			}
			drainTimer.Reset(wait)

			if timedOut && !soft && m.config.OnTimeout != nil {
				m.config.OnTimeout()
			}

		case <-drainExpired:
			m.logger.Warn("No answer to abandoned AT command", "command", draining.cmd)
			draining = nil
			if drainFault && m.config.OnTimeout != nil {
				m.config.OnTimeout()
			}

		case token, ok := <-tokens:
			if !ok {
				// Reader stopped - the transport is gone
				if current != nil {
					finish(commandResponse{err: ErrClosed})
				}
				if ctx.Err() != nil || m.closed.Load() {
					return ctx.Err()
				}
				if m.config.OnClosed != nil {
					m.config.OnClosed()
				}
				if m.readErr != nil {
					return fmt.Errorf("scanner error: %w", m.readErr)
				}
				return io.EOF
			}
			if token == "" {
				continue
			}

			if pendingPDU != "" {
				m.unsolicited(pendingPDU, token)
				pendingPDU = ""
				continue
			}

			switch at.Classify(token) {
			case at.TypePrompt:
				if current == nil && draining != nil && draining.kind == kindSMS {
					// leave SMS input mode without sending
					if _, err := m.transport.Write([]byte(at.Esc)); err != nil {
						m.logger.Debug("Failed to cancel SMS input", "error", err)
					}
					continue
				}
				if current != nil && current.kind == kindSMS {
					if _, err := m.transport.Write([]byte(current.pdu + at.CtrlZ)); err != nil {
						finish(commandResponse{err: fmt.Errorf("write PDU: %w: %w", ErrClosed, err)})
					}
				}

			case at.TypeFinal:
				if current == nil && draining != nil {
					m.logger.Debug("Discarded late AT answer", "command", draining.cmd, "final", token)
					draining = nil
					drainTimer.Stop()
					continue
				}
				if current == nil {
					// NO CARRIER and friends arrive unprompted too
					m.unsolicited(token, "")
					continue
				}
				finish(commandResponse{response: &Response{Lines: lines, Final: token}})

			case at.TypeURC:
				pendingPDU = token

			case at.TypeData:
				if current != nil && current.kind.accepts(current.prefix, token, len(lines)) {
					lines = append(lines, token)
					continue
				}
				if current == nil && draining != nil && draining.kind.accepts(draining.prefix, token, 0) {
					continue
				}
				m.unsolicited(token, "")
			}
		}
	}
}

func (m *Modem) unsolicited(line, pdu string) {
	if m.config.Unsolicited == nil {
		m.logger.Debug("Dropped unsolicited line", "line", line)
		return
	}
	m.config.Unsolicited(line, pdu)
}

// reader starts, once, the goroutine that scans the transport into tokens.
// The channel is closed when the transport reports EOF or an error.
func (m *Modem) reader() <-chan string {
	m.readerOnce.Do(func() {
		m.tokens = make(chan string, 32)
		scanner := bufio.NewScanner(m.transport)
		scanner.Buffer(make([]byte, 0, 512), maxLineLength)
		scanner.Split(at.Splitter)

		go func() {
			defer close(m.tokens)
			for scanner.Scan() {
				select {
				case m.tokens <- scanner.Text():
				case <-m.loopCtx.Done():
					return
				}
			}
			if err := scanner.Err(); err != nil {
				if errors.Is(err, bufio.ErrTooLong) {
					err = ErrLineTooLong
				}
				m.readErr = err
			}
		}()
	})
	return m.tokens
}

// Closed reports whether Close has been called.
func (m *Modem) Closed() bool {
	return m.closed.Load()
}

// Close shuts down the modem and releases all resources.
// It stops the event loop, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if m.closed.Swap(true) {
		return ErrAlreadyClosed
	}

	m.loopCancel()

	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// exec hands a command to the Loop and waits for the response.
// The Loop must be running before calling this method.
func (m *Modem) exec(ctx context.Context, req *commandRequest) (*Response, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	// Apply per-command timeout if context has none
	if _, ok := ctx.Deadline(); !ok && m.config.ATTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ATTimeout)
		defer cancel()
	}

	req.ctx = ctx
	// Buffered so the Loop never blocks on an abandoned request
	req.respChan = make(chan commandResponse, 1)

	select {
	case m.commands <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	case <-m.loopCtx.Done():
		return nil, ErrClosed
	}

	resp := <-req.respChan
	return resp.response, resp.err
}

// execDirect writes cmd straight to the transport and waits for a final
// result code. It is used before the Loop starts; unsolicited lines are
// discarded.
func (m *Modem) execDirect(ctx context.Context, cmd string) (*Response, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	wire := strings.TrimSpace(cmd) + "\r"
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		return nil, fmt.Errorf("write command %q: %w: %w", cmd, ErrClosed, err)
	}

	tokens := m.reader()
	resp := &Response{}
	for {
		select {
		case <-ctx.Done():
			return resp, fmt.Errorf("%s: %w", cmd, ErrTimeout)
		case token, ok := <-tokens:
			if !ok {
				return resp, ErrClosed
			}
			switch at.Classify(token) {
			case at.TypeFinal:
				resp.Final = token
				return resp, nil
			case at.TypeData:
				if token != "" && token != strings.TrimSpace(cmd) {
					resp.Lines = append(resp.Lines, token)
				}
			}
		}
	}
}

// probe repeats AT until the modem answers OK. Some modems autobaud and
// need a few attempts before they lock onto the line speed.
func (m *Modem) probe(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= m.config.ProbeAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		resp, err := m.execDirect(attemptCtx, "AT")
		cancel()

		switch {
		case err == nil && resp.Success():
			m.logger.Debug("Modem answered liveness probe", "attempt", attempt)
			return nil
		case errors.Is(err, ErrClosed):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no OK")
	}
	return lastErr
}
