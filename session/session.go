// Package session holds the process-wide state shared by the request
// dispatcher, the unsolicited line router and the connection supervisor.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TransitionFunc observes a radio state change. It runs outside the state
// lock on the goroutine that made the change.
type TransitionFunc func(prev, next RadioState)

// Session is the single shared state of a running daemon. The radio state and
// the closed flag are guarded by a mutex paired with a condition variable;
// the remaining fields have their own lock.
type Session struct {
	mu     sync.Mutex
	cond   *sync.Cond
	radio  RadioState
	closed bool
	hooks  []TransitionFunc

	dmu          sync.RWMutex
	selectMode   SelectionMode
	screen       Screen
	dataCall     DataCallState
	localIP      string
	gateway      string
	carrier      string
	meid         string
	mdn          string
	activation   Activation
	retries      int
	otaMessage   string
	otaCount     int
	autoActivate bool
	autoDataCall bool
	gpsPort      string
}

// New returns a Session with the power-on defaults: radio off, manual
// network selection, screen off, no data call, auto-activation enabled.
func New() *Session {
	s := &Session{
		radio:        RadioOff,
		selectMode:   SelectionManual,
		screen:       ScreenOff,
		dataCall:     DataDisconnected,
		activation:   NotActivated,
		retries:      MaxActivationRetries,
		autoActivate: true,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// OnRadioTransition registers fn to run after every radio state change.
func (s *Session) OnRadioTransition(fn TransitionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// RadioState returns the current radio state.
func (s *Session) RadioState() RadioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radio
}

// SetRadioState moves the radio to next. While the session is closed every
// request is forced to RadioUnavailable. Setting the current value is a
// no-op and fires no hooks; an edge outside the state table returns
// ErrIllegalTransition and leaves the state unchanged.
func (s *Session) SetRadioState(next RadioState) error {
	return s.setRadio(next, false)
}

// Close marks the AT channel closed and forces RadioUnavailable.
func (s *Session) Close() {
	s.setRadio(RadioUnavailable, true)
}

// Reopen clears the closed flag after the supervisor attached a new channel.
// The radio stays Unavailable until the AT profile initialization moves it.
func (s *Session) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	s.cond.Broadcast()
}

// Closed reports whether the AT channel has been marked closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setRadio(next RadioState, markClosed bool) error {
	s.mu.Lock()
	if markClosed {
		s.closed = true
	}
	if s.closed {
		next = RadioUnavailable
	}
	prev := s.radio
	if next == prev {
		if markClosed {
			s.cond.Broadcast()
		}
		s.mu.Unlock()
		return nil
	}
	if !prev.legal(next) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, prev, next)
	}
	s.radio = next
	hooks := s.hooks
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(prev, next)
	}
	return nil
}

// WaitClosed blocks until the session is closed, timeout elapses or ctx is
// done, and reports whether the session is closed.
func (s *Session) WaitClosed(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	return s.closed
}

func (s *Session) SelectionMode() SelectionMode {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.selectMode
}

func (s *Session) SetSelectionMode(m SelectionMode) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.selectMode = m
}

func (s *Session) Screen() Screen {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.screen
}

func (s *Session) SetScreen(v Screen) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.screen = v
}

// DataCall returns the packet session state with its cached addresses.
func (s *Session) DataCall() (state DataCallState, localIP, gateway string) {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.dataCall, s.localIP, s.gateway
}

// SetConnected records an established packet session.
func (s *Session) SetConnected(localIP, gateway string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.dataCall = DataConnected
	s.localIP = localIP
	s.gateway = gateway
}

// SetDisconnected records a torn down packet session. The cached local
// address is cleared only when clearAddress is set.
func (s *Session) SetDisconnected(clearAddress bool) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.dataCall = DataDisconnected
	if clearAddress {
		s.localIP = ""
		s.gateway = ""
	}
}

func (s *Session) Carrier() string {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.carrier
}

func (s *Session) SetCarrier(code string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.carrier = code
}

// Identity returns the hardware identifier and directory number.
func (s *Session) Identity() (meid, mdn string) {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.meid, s.mdn
}

func (s *Session) SetMEID(meid string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.meid = meid
}

func (s *Session) SetMDN(mdn string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.mdn = mdn
}

func (s *Session) Activation() Activation {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.activation
}

// SetActivated marks the module activated. A Failed outcome is terminal and
// is not overwritten.
func (s *Session) SetActivated() {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if s.activation != ActivationFailed {
		s.activation = Activated
	}
}

// ActivationRetries returns how many automatic activation attempts remain.
func (s *Session) ActivationRetries() int {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.retries
}

// ConsumeActivationRetry takes one retry from the budget. When the budget is
// empty afterwards the activation is marked Failed and false is returned:
// no attempt may be made.
func (s *Session) ConsumeActivationRetry() bool {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if s.retries > 0 {
		s.retries--
	}
	if s.retries == 0 {
		s.activation = ActivationFailed
		return false
	}
	return true
}

// ResetOTA forgets the activation messages of a previous attempt.
func (s *Session) ResetOTA() {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.otaCount = 0
	s.otaMessage = ""
}

// RecordOTA counts an activation message and keeps its text.
func (s *Session) RecordOTA(text string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.otaCount++
	s.otaMessage = text
}

// OTA returns the number of activation messages seen and the last one.
func (s *Session) OTA() (count int, last string) {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.otaCount, s.otaMessage
}

func (s *Session) AutoActivate() bool {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.autoActivate
}

func (s *Session) AutoDataCall() bool {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.autoDataCall
}

// ApplyControl installs persisted preferences.
func (s *Session) ApplyControl(c Control) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if c.DataCallIsAutomatic != nil {
		s.autoDataCall = *c.DataCallIsAutomatic
	}
	if c.AutoActivate != nil {
		s.autoActivate = *c.AutoActivate
	}
}

// GPSPort returns the published path of the GPS pseudo-terminal, if any.
func (s *Session) GPSPort() string {
	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return s.gpsPort
}

func (s *Session) SetGPSPort(path string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.gpsPort = path
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Radio             RadioState    `json:"-"`
	RadioName         string        `json:"radio"`
	Closed            bool          `json:"closed"`
	SelectionMode     SelectionMode `json:"selection_mode"`
	ScreenOn          bool          `json:"screen_on"`
	InDataCall        bool          `json:"in_data_call"`
	LocalIP           string        `json:"local_ip,omitempty"`
	Gateway           string        `json:"gateway,omitempty"`
	Carrier           string        `json:"carrier"`
	MEID              string        `json:"meid"`
	MDN               string        `json:"mdn"`
	Activation        Activation    `json:"-"`
	ActivationName    string        `json:"activation"`
	ActivationRetries int           `json:"activation_retries"`
	OTAMessages       int           `json:"ota_messages"`
	AutoActivate      bool          `json:"auto_activate"`
	AutoDataCall      bool          `json:"data_call_automatic"`
	GPSPort           string        `json:"gps_port,omitempty"`
}

// Snapshot copies the session under its locks.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	radio, closed := s.radio, s.closed
	s.mu.Unlock()

	s.dmu.RLock()
	defer s.dmu.RUnlock()
	return Snapshot{
		Radio:             radio,
		RadioName:         radio.String(),
		Closed:            closed,
		SelectionMode:     s.selectMode,
		ScreenOn:          s.screen == ScreenOn,
		InDataCall:        s.dataCall == DataConnected,
		LocalIP:           s.localIP,
		Gateway:           s.gateway,
		Carrier:           s.carrier,
		MEID:              s.meid,
		MDN:               s.mdn,
		Activation:        s.activation,
		ActivationName:    s.activation.String(),
		ActivationRetries: s.retries,
		OTAMessages:       s.otaCount,
		AutoActivate:      s.autoActivate,
		AutoDataCall:      s.autoDataCall,
		GPSPort:           s.gpsPort,
	}
}
