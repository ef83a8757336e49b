// Package supervisor keeps an AT channel to the modem open for the life of
// the process, re-attaching after every fault.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/poll"
	"i4.energy/across/fwril/session"
)

// Radio is the part of the request dispatcher driven by the supervisor.
type Radio interface {
	// Initialize applies the AT profile on a freshly attached channel
	Initialize(ctx context.Context)
	// Tick runs the periodic service timer
	Tick(ctx context.Context)
}

// Activator checks, and when needed performs, module activation.
type Activator interface {
	Run(ctx context.Context) error
}

// Observer is told about every attach and detach.
type Observer interface {
	Attached()
	Detached()
}

type Config struct {
	// Modem is the channel configuration. Its fault callbacks are replaced
	// on every attach.
	Modem modem.Config
	// Backoff is the pause after a failed attach
	Backoff time.Duration
	// Period paces the activation check and the service timer
	Period time.Duration
	// InitDelay is the pause between attach and AT profile initialization
	InitDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.Backoff == 0 {
		c.Backoff = 5 * time.Second
	}
	if c.Period == 0 {
		c.Period = 10 * time.Second
	}
}

type Supervisor struct {
	config     Config
	channel    *Channel
	session    *session.Session
	host       host.Host
	radio      Radio
	activation Activator
	observer   Observer
	logger     *slog.Logger
}

type Option func(*Supervisor)

func WithObserver(o Observer) Option { return func(s *Supervisor) { s.observer = o } }

func New(config Config, channel *Channel, s *session.Session, h host.Host, radio Radio, activation Activator, logger *slog.Logger, opts ...Option) *Supervisor {
	config.setDefaults()
	sup := &Supervisor{
		config:     config,
		channel:    channel,
		session:    s,
		host:       h,
		radio:      radio,
		activation: activation,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(sup)
	}
	return sup
}

// Run attaches, serves and re-attaches until ctx is done. Attach failures
// are retried forever after Backoff. It always returns the context error.
func (s *Supervisor) Run(ctx context.Context) error {
	endpoint := fmt.Sprint(s.config.Modem.Dialer)
	for {
		m, err := s.attach(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Failed to open AT channel", "endpoint", endpoint, "retry_in", s.config.Backoff, "error", err)
			if err := poll.Sleep(ctx, s.config.Backoff); err != nil {
				return err
			}
			continue
		}

		s.logger.Info("AT channel open", "endpoint", endpoint)
		err = s.serve(ctx, m)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("Re-opening AT channel after close", "error", err)
	}
}

// attach dials the modem. Both fault callbacks mark the session closed and
// tear the channel down, which ends serve.
func (s *Supervisor) attach(ctx context.Context) (*modem.Modem, error) {
	var m *modem.Modem
	fault := func(reason string) func() {
		return func() {
			s.logger.Warn("AT channel fault", "reason", reason)
			s.session.Close()
			if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
				s.logger.Debug("Failed to close AT channel", "error", err)
			}
		}
	}
	config := s.config.Modem
	config.OnTimeout = fault("timeout")
	config.OnClosed = fault("closed")

	m, err := modem.New(ctx, config)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Supervisor) serve(ctx context.Context, m *modem.Modem) error {
	s.session.Reopen()
	s.channel.Attach(m)
	if s.observer != nil {
		s.observer.Attached()
	}

	loopDone := make(chan error, 1)
	go func() {
		err := m.Loop(ctx)
		s.session.Close()
		loopDone <- err
	}()
	s.host.Schedule(s.config.InitDelay, func() { s.radio.Initialize(ctx) })

	for !s.session.WaitClosed(ctx, s.config.Period) && ctx.Err() == nil {
		if a := s.session.Activation(); a != session.Activated && a != session.ActivationFailed {
			if err := s.activation.Run(ctx); err != nil {
				s.logger.Info("Module not activated", "error", err)
			}
		}
		if s.session.Closed() {
			break
		}
		if s.session.Screen() == session.ScreenOn {
			s.radio.Tick(ctx)
		}
	}

	s.channel.Detach()
	s.session.Close()
	if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
		s.logger.Debug("Failed to close AT channel", "error", err)
	}
	err := <-loopDone
	if s.observer != nil {
		s.observer.Detached()
	}
	return err
}
