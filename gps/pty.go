// Package gps forwards NMEA fixes from the modem to local readers through a
// pseudo-terminal or a named pipe.
package gps

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/creack/pty"
)

// PortProperty is the name under which the pseudo-terminal path is
// published.
const PortProperty = "ril.gps.port"

const ptyWriteTimeout = 100 * time.Millisecond

// PortPublisher records the pseudo-terminal path for readers to discover.
type PortPublisher interface {
	SetGPSPort(name string)
}

// PtySink writes fixes to the master side of a pseudo-terminal. Readers
// open the slave device named by Name. A failed write closes the terminal;
// the next write creates a new one and publishes its name again.
type PtySink struct {
	mu        sync.Mutex
	master    *os.File
	slave     *os.File
	publisher PortPublisher
	logger    *slog.Logger
}

// OpenPty creates the pseudo-terminal and publishes its name.
func OpenPty(publisher PortPublisher, logger *slog.Logger) (*PtySink, error) {
	p := &PtySink{publisher: publisher, logger: logger}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PtySink) open() error {
	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("open pseudo-terminal: %w", err)
	}
	// any local program may read the fixes
	if err := os.Chmod(slave.Name(), 0o666); err != nil {
		p.logger.Warn("Failed to open up GPS port permissions", "port", slave.Name(), "error", err)
	}
	p.master, p.slave = master, slave
	p.publisher.SetGPSPort(slave.Name())
	p.logger.Info("GPS port ready", PortProperty, slave.Name())
	return nil
}

// Name returns the slave device path, or "" once closed.
func (p *PtySink) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slave == nil {
		return ""
	}
	return p.slave.Name()
}

// WriteFix writes one sentence followed by a newline. A sentence that
// cannot be written promptly is dropped.
func (p *PtySink) WriteFix(sentence string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.master == nil {
		if err := p.open(); err != nil {
			return err
		}
	}
	if err := p.master.SetWriteDeadline(time.Now().Add(ptyWriteTimeout)); err != nil {
		p.logger.Debug("GPS port has no write deadline", "error", err)
	}
	if _, err := p.master.WriteString(sentence + "\n"); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrNoReader, p.slave.Name())
		}
		p.closeLocked()
		return fmt.Errorf("write GPS port: %w", err)
	}
	return nil
}

// Close releases the pseudo-terminal.
func (p *PtySink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *PtySink) closeLocked() error {
	if p.master == nil {
		return nil
	}
	err := errors.Join(p.master.Close(), p.slave.Close())
	p.master, p.slave = nil, nil
	return err
}
