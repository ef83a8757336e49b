package supervisor

import (
	"context"
	"sync"

	"i4.energy/across/fwril/modem"
)

// Channel is a modem.Commander that forwards to the currently attached
// modem. Components hold the Channel for the life of the process while the
// supervisor swaps the modem underneath on every reconnect. With nothing
// attached every exchange fails with modem.ErrClosed.
type Channel struct {
	mu  sync.RWMutex
	cmd modem.Commander
}

func (c *Channel) Attach(cmd modem.Commander) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmd = cmd
}

func (c *Channel) Detach() {
	c.Attach(nil)
}

func (c *Channel) Attached() bool {
	return c.current() != nil
}

func (c *Channel) current() modem.Commander {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cmd
}

func (c *Channel) Command(ctx context.Context, cmd string) (*modem.Response, error) {
	m := c.current()
	if m == nil {
		return nil, modem.ErrClosed
	}
	return m.Command(ctx, cmd)
}

func (c *Channel) SingleLine(ctx context.Context, cmd, prefix string) (*modem.Response, error) {
	m := c.current()
	if m == nil {
		return nil, modem.ErrClosed
	}
	return m.SingleLine(ctx, cmd, prefix)
}

func (c *Channel) Multiline(ctx context.Context, cmd, prefix string) (*modem.Response, error) {
	m := c.current()
	if m == nil {
		return nil, modem.ErrClosed
	}
	return m.Multiline(ctx, cmd, prefix)
}

func (c *Channel) Numeric(ctx context.Context, cmd string) (*modem.Response, error) {
	m := c.current()
	if m == nil {
		return nil, modem.ErrClosed
	}
	return m.Numeric(ctx, cmd)
}

func (c *Channel) SMS(ctx context.Context, cmd, pdu, prefix string) (*modem.Response, error) {
	m := c.current()
	if m == nil {
		return nil, modem.ErrClosed
	}
	return m.SMS(ctx, cmd, pdu, prefix)
}

var _ modem.Commander = (*Channel)(nil)
