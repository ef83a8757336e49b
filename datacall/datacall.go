// Package datacall manages the PPP packet data session: starting and
// stopping pppd, watching the link and reconciling the session state with
// host notifications.
package datacall

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

// FailCauseUnspecified is the only data call fail cause ever reported.
const FailCauseUnspecified = 0xffff

const pppdName = "pppd"

// Persister rewrites the status file.
type Persister interface {
	Persist() error
}

type Config struct {
	// Peer is the pppd peer name, usually the base name of the data device
	Peer      string
	Interface string
	DNS1      string
	DNS2      string
	// LinkPoll bounds the wait for the interface to come up after launch
	LinkPoll poll.Config
	// CheckPoll bounds the link probe of the periodic check
	CheckPoll   poll.Config
	HangupDelay time.Duration
	NotifyDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.Interface == "" {
		c.Interface = DefaultInterface
	}
	if c.DNS1 == "" {
		c.DNS1 = "0"
	}
	if c.DNS2 == "" {
		c.DNS2 = "0"
	}
	if c.LinkPoll.MaxAttempts == 0 {
		c.LinkPoll = poll.Config{Interval: time.Second, MaxAttempts: 30}
	}
	if c.CheckPoll.MaxAttempts == 0 {
		c.CheckPoll = c.LinkPoll
	}
	if c.HangupDelay == 0 {
		c.HangupDelay = 2 * time.Second
	}
	if c.NotifyDelay == 0 {
		c.NotifyDelay = 2 * time.Second
	}
}

// Manager owns the lifecycle of the packet data session.
type Manager struct {
	config   Config
	cmd      modem.Commander
	host     host.Host
	session  *session.Session
	status   Persister
	launcher Launcher
	finder   ProcessFinder
	signal   Signaller
	prober   LinkProber
	logger   *slog.Logger
}

// Option replaces one of the system collaborators of a Manager.
type Option func(*Manager)

func WithLauncher(l Launcher) Option           { return func(m *Manager) { m.launcher = l } }
func WithProcessFinder(f ProcessFinder) Option { return func(m *Manager) { m.finder = f } }
func WithSignaller(s Signaller) Option         { return func(m *Manager) { m.signal = s } }
func WithLinkProber(p LinkProber) Option       { return func(m *Manager) { m.prober = p } }

func NewManager(config Config, cmd modem.Commander, h host.Host, s *session.Session, status Persister, logger *slog.Logger, opts ...Option) *Manager {
	config.setDefaults()
	m := &Manager{
		config:   config,
		cmd:      cmd,
		host:     h,
		session:  s,
		status:   status,
		launcher: PppdLauncher{},
		finder:   ProcFinder{},
		signal:   SignalTerm{},
		prober:   NetProber{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetupResult describes an established data call.
type SetupResult struct {
	CID       string `json:"cid"`
	Interface string `json:"ifname"`
	Address   string `json:"address"`
	// DNS is a space separated list
	DNS     string `json:"dns"`
	Gateway string `json:"gateway"`
}

// Entry is one element of the data call list.
type Entry struct {
	CID     int    `json:"cid"`
	Active  int    `json:"active"`
	Type    string `json:"type,omitempty"`
	APN     string `json:"apn,omitempty"`
	Address string `json:"address,omitempty"`
}

const (
	inactive = 0
	linkUp   = 2
)

// Setup launches pppd and waits for the link. On success the session is
// marked connected.
func (m *Manager) Setup(ctx context.Context) (SetupResult, error) {
	if err := m.launcher.Launch(ctx, m.config.Peer); err != nil {
		return SetupResult{}, fmt.Errorf("launch pppd: %w", err)
	}
	m.logger.Info("pppd started", "peer", m.config.Peer)

	link, err := m.waitLink(ctx, m.config.LinkPoll)
	if err != nil {
		return SetupResult{}, err
	}

	m.session.SetConnected(link.Address, link.Gateway)
	m.persist()
	m.host.Notify(host.DataCallListChanged, []Entry{m.List()})

	result := SetupResult{
		CID:       "1",
		Interface: m.config.Interface,
		Address:   link.Address,
		DNS:       m.config.DNS1 + " " + m.config.DNS2,
		Gateway:   link.Gateway,
	}
	m.logger.Info("Data call up", "address", result.Address, "dns", result.DNS, "gateway", result.Gateway)
	return result, nil
}

// Teardown hangs up, stops pppd and marks the session disconnected. It has
// no failure path; a network state change is announced once the link had
// time to settle.
func (m *Manager) Teardown(ctx context.Context) {
	if _, err := m.cmd.Command(ctx, "ATH"); err != nil {
		m.logger.Debug("Hang up failed", "error", err)
	}
	_ = poll.Sleep(ctx, m.config.HangupDelay)

	pid, found, err := m.finder.FindByName(pppdName)
	switch {
	case err != nil:
		m.logger.Warn("Process lookup failed", "error", err)
	case !found:
		m.logger.Debug("pppd is not running")
	default:
		if err := m.signal.Terminate(pid); err != nil {
			m.logger.Warn("Failed to stop pppd", "pid", pid, "error", err)
		}
	}

	m.session.SetDisconnected(false)
	m.persist()
	m.host.Schedule(m.config.NotifyDelay, func() {
		m.host.Notify(host.NetworkStateChanged, nil)
	})
	m.logger.Info("Data call down")
}

// List returns the single data call entry.
func (m *Manager) List() Entry {
	state, ip, _ := m.session.DataCall()
	if state != session.DataConnected {
		return Entry{CID: 1, Active: inactive}
	}
	return Entry{CID: 1, Active: linkUp, Type: "PPP", APN: "internet", Address: ip}
}

// FailCause returns the cause of the last failed setup.
func (m *Manager) FailCause() int {
	return FailCauseUnspecified
}

// Check reconciles the session with the observed link. Entering or leaving
// the connected state is announced to the host; when no call is up and
// pppd is not running it is started again.
func (m *Manager) Check(ctx context.Context) error {
	state, _, _ := m.session.DataCall()
	link, err := m.waitLink(ctx, m.config.CheckPoll)
	switch {
	case err == nil:
		if state != session.DataConnected {
			m.session.SetConnected(link.Address, link.Gateway)
			m.host.Notify(host.DataCallListChanged, []Entry{{
				CID: 1, Active: linkUp, Type: "IP", APN: m.session.Carrier(), Address: link.Address,
			}})
			m.persist()
			m.logger.Info("Link is up", "interface", m.config.Interface, "address", link.Address)
		}
		return nil
	case errors.Is(err, ErrLinkDown):
	default:
		return err
	}

	if state == session.DataConnected {
		m.session.SetDisconnected(true)
		m.host.Notify(host.DataCallListChanged, []Entry{{CID: 1, Active: inactive}})
		m.persist()
		m.logger.Info("Link is down", "interface", m.config.Interface)
	}

	if _, found, err := m.finder.FindByName(pppdName); err != nil {
		m.logger.Warn("Process lookup failed", "error", err)
	} else if found {
		return nil
	}
	if err := m.launcher.Launch(ctx, m.config.Peer); err != nil {
		return fmt.Errorf("relaunch pppd: %w", err)
	}
	m.logger.Info("pppd restarted", "peer", m.config.Peer)
	return nil
}

func (m *Manager) waitLink(ctx context.Context, cfg poll.Config) (Link, error) {
	var link Link
	err := poll.Until(ctx, cfg, func(context.Context) (bool, error) {
		l, err := m.prober.Probe(m.config.Interface)
		if err != nil {
			m.logger.Debug("Link probe failed", "interface", m.config.Interface, "error", err)
			return false, nil
		}
		link = l
		return l.Up, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return Link{}, fmt.Errorf("%w: %s", ErrLinkDown, m.config.Interface)
	}
	return link, err
}

func (m *Manager) persist() {
	if m.status == nil {
		return
	}
	if err := m.status.Persist(); err != nil {
		m.logger.Warn("Failed to write status", "error", err)
	}
}
