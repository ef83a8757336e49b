package modem

import (
	"context"
	"strings"
	"unicode"

	"i4.energy/across/fwril/at"
)

// Commander is the command side of the AT channel. Every method blocks until
// the modem returns a final result code, the context is done, or the channel
// faults.
//
// A non-OK final result code is reported as a *CommandError together with
// the partial Response. Transport faults are reported as ErrClosed or
// ErrTimeout.
type Commander interface {
	// Command sends cmd and expects no information lines.
	Command(ctx context.Context, cmd string) (*Response, error)
	// SingleLine sends cmd and collects the first line starting with prefix.
	SingleLine(ctx context.Context, cmd, prefix string) (*Response, error)
	// Multiline sends cmd and collects every line starting with prefix.
	Multiline(ctx context.Context, cmd, prefix string) (*Response, error)
	// Numeric sends cmd and collects the first line starting with a digit.
	Numeric(ctx context.Context, cmd string) (*Response, error)
	// SMS sends cmd, waits for the "> " prompt, writes pdu terminated with
	// Ctrl-Z and collects the first line starting with prefix.
	SMS(ctx context.Context, cmd, pdu, prefix string) (*Response, error)
}

// Response is the outcome of a single exchange.
type Response struct {
	// Lines holds the information lines attributed to the command
	Lines []string
	// Final is the final result code, e.g. OK or +CME ERROR: 10
	Final string
}

// Line returns the first information line, or "" when there is none.
func (r *Response) Line() string {
	if r == nil || len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

// Success reports whether the final result code denotes success.
func (r *Response) Success() bool {
	return r != nil && at.IsSuccess(r.Final)
}

type responseKind int

const (
	kindNoResult responseKind = iota
	kindSingleLine
	kindMultiline
	kindNumeric
	kindSMS
)

// accepts reports whether line belongs to the pending command given how many
// lines were already collected.
func (k responseKind) accepts(prefix, line string, collected int) bool {
	switch k {
	case kindSingleLine, kindSMS:
		return collected == 0 && strings.HasPrefix(line, prefix)
	case kindMultiline:
		return strings.HasPrefix(line, prefix)
	case kindNumeric:
		return collected == 0 && line != "" && unicode.IsDigit(rune(line[0]))
	default:
		return false
	}
}

type softTimeoutKey struct{}

// WithSoftTimeout marks the exchanges run under the returned context as
// allowed to go unanswered. When such an exchange reaches its deadline it
// fails with ErrTimeout but OnTimeout is not fired.
func WithSoftTimeout(ctx context.Context) context.Context {
	return context.WithValue(ctx, softTimeoutKey{}, true)
}

func softTimeout(ctx context.Context) bool {
	soft, _ := ctx.Value(softTimeoutKey{}).(bool)
	return soft
}

func (m *Modem) Command(ctx context.Context, cmd string) (*Response, error) {
	return m.send(ctx, &commandRequest{cmd: cmd, kind: kindNoResult})
}

func (m *Modem) SingleLine(ctx context.Context, cmd, prefix string) (*Response, error) {
	return m.send(ctx, &commandRequest{cmd: cmd, prefix: prefix, kind: kindSingleLine})
}

func (m *Modem) Multiline(ctx context.Context, cmd, prefix string) (*Response, error) {
	return m.send(ctx, &commandRequest{cmd: cmd, prefix: prefix, kind: kindMultiline})
}

func (m *Modem) Numeric(ctx context.Context, cmd string) (*Response, error) {
	return m.send(ctx, &commandRequest{cmd: cmd, kind: kindNumeric})
}

func (m *Modem) SMS(ctx context.Context, cmd, pdu, prefix string) (*Response, error) {
	return m.send(ctx, &commandRequest{cmd: cmd, pdu: pdu, prefix: prefix, kind: kindSMS})
}

func (m *Modem) send(ctx context.Context, req *commandRequest) (*Response, error) {
	resp, err := m.exec(ctx, req)
	if err != nil {
		return resp, err
	}
	if !resp.Success() {
		return resp, &CommandError{Command: req.cmd, Final: resp.Final}
	}
	switch req.kind {
	case kindSingleLine, kindNumeric, kindSMS:
		if len(resp.Lines) == 0 {
			return resp, ErrInvalidResponse
		}
	}
	return resp, nil
}

var _ Commander = (*Modem)(nil)
