// Package ril answers telephony requests from the host with AT exchanges
// and drives the radio state side effects.
package ril

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/fwril/at"
	"i4.energy/across/fwril/datacall"
	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/netinfo"
	"i4.energy/across/fwril/poll"
	"i4.energy/across/fwril/session"
)

// Version identifies the implementation to the host.
const Version = "Fusion Wireless RIL 1.0"

// Persister rewrites the status file.
type Persister interface {
	Persist() error
}

// DataCalls is the packet session manager used by the data requests and
// the service timer.
type DataCalls interface {
	Setup(ctx context.Context) (datacall.SetupResult, error)
	Teardown(ctx context.Context)
	List() datacall.Entry
	FailCause() int
	Check(ctx context.Context) error
}

// SignalObserver receives every signal reading.
type SignalObserver interface {
	Signal(s SignalStrength)
}

type Config struct {
	// GPS adds the GPS commands to the AT profile
	GPS bool
	// LegacyRegistration answers registration requests in the GSM +CREG
	// layout instead of the EVDO set
	LegacyRegistration bool
	// Handshake bounds the synchronization attempts after attach
	Handshake poll.Config
	// Readiness bounds the identity module polling
	Readiness poll.Config
	// ReadinessDelay is the pause before readiness polling starts
	ReadinessDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.Handshake.MaxAttempts == 0 {
		c.Handshake = poll.Config{Interval: 250 * time.Millisecond, MaxAttempts: 8}
	}
	if c.Readiness.MaxAttempts == 0 {
		c.Readiness = poll.Config{Interval: time.Second, MaxAttempts: 30}
	}
}

// Dispatcher implements host.Handler.
type Dispatcher struct {
	config   Config
	cmd      modem.Commander
	host     host.Host
	session  *session.Session
	resolver *netinfo.Resolver
	data     DataCalls
	status   Persister
	logger   *slog.Logger

	// ctx bounds the commands of scheduled callbacks
	ctx            context.Context
	signalObserver SignalObserver

	signalMu sync.Mutex
	signal   SignalStrength
}

type Option func(*Dispatcher)

// WithContext bounds the commands sent from scheduled callbacks.
func WithContext(ctx context.Context) Option { return func(d *Dispatcher) { d.ctx = ctx } }

func WithSignalObserver(o SignalObserver) Option {
	return func(d *Dispatcher) { d.signalObserver = o }
}

// New returns a Dispatcher and registers its radio transition hook on s.
func New(config Config, cmd modem.Commander, h host.Host, s *session.Session, data DataCalls, status Persister, logger *slog.Logger, opts ...Option) *Dispatcher {
	config.setDefaults()
	d := &Dispatcher{
		config:   config,
		cmd:      cmd,
		host:     h,
		session:  s,
		resolver: netinfo.NewResolver(cmd, logger),
		data:     data,
		status:   status,
		logger:   logger,
		ctx:      context.Background(),
		signal:   initialSignal,
	}
	for _, opt := range opts {
		opt(d)
	}
	s.OnRadioTransition(d.onRadioTransition)
	return d
}

// bypassesRadioGate lists the requests answered while the radio is off.
func bypassesRadioGate(req host.Request) bool {
	switch req {
	case host.RadioPower, host.GetSIMStatus, host.ScreenState:
		return true
	default:
		return false
	}
}

// OnRequest answers req and completes token exactly once before returning.
func (d *Dispatcher) OnRequest(ctx context.Context, req host.Request, data host.Payload, token host.Token) {
	start := time.Now()
	var (
		result any
		err    error
	)
	if d.session.RadioState() == session.RadioOff && !bypassesRadioGate(req) {
		err = ErrRadioNotAvailable
	} else {
		result, err = d.handle(ctx, req, data)
	}

	status := StatusOf(err)
	if err != nil {
		result = nil
		d.logger.Warn("Request failed", "request", req, "status", status, "error", err)
	} else {
		d.logger.Debug("Request completed", "request", req, "elapsed", time.Since(start))
	}
	d.host.Complete(token, status, result)
}

func (d *Dispatcher) handle(ctx context.Context, req host.Request, data host.Payload) (any, error) {
	switch req {
	case host.RadioPower:
		on, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.radioPower(ctx, on)
	case host.GetSIMStatus:
		return cardStatus(), nil
	case host.ScreenState:
		on, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.screenState(ctx, on)

	case host.RegistrationState:
		if d.config.LegacyRegistration {
			return d.legacyRegistration(ctx)
		}
		return d.registration(ctx)
	case host.DataRegistrationState:
		if d.config.LegacyRegistration {
			return d.legacyRegistration(ctx)
		}
		r, err := d.registration(ctx)
		if err != nil {
			return nil, err
		}
		return r.Data(), nil
	case host.Operator:
		return d.operator(ctx), nil
	case host.QueryAvailableNetworks:
		return []AvailableNetwork{{Operator: d.operator(ctx), Status: "available"}}, nil
	case host.QueryNetworkSelectionMode:
		return d.selectionMode(ctx)
	case host.SetNetworkSelectionAutomatic:
		d.setSelectionMode(ctx, session.SelectionAutomatic)
		return nil, nil
	case host.SetNetworkSelectionManual:
		d.setSelectionMode(ctx, session.SelectionManual)
		return nil, nil
	case host.GetPreferredNetworkType:
		return d.preferredNetworkType(ctx)
	case host.SetPreferredNetworkType:
		networkType, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.setPreferredNetworkType(ctx, networkType)
	case host.SignalStrength:
		return d.signalStrength(ctx), nil

	case host.GetIMEI:
		return d.equipmentID(ctx)
	case host.GetIMSI:
		return d.subscriberID(ctx)
	case host.DeviceIdentity:
		return d.deviceIdentity(ctx)
	case host.BasebandVersion:
		return d.basebandVersion(ctx)

	case host.SetupDataCall:
		return d.data.Setup(ctx)
	case host.DeactivateDataCall:
		d.data.Teardown(ctx)
		return nil, nil
	case host.DataCallList:
		return []datacall.Entry{d.data.List()}, nil
	case host.LastDataCallFailCause:
		return d.data.FailCause(), nil

	case host.SendSMS:
		return d.sendSMS(ctx, data.String(0), data.String(1))
	case host.SMSAcknowledge:
		success, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.acknowledgeSMS(ctx, success)
	case host.WriteSMSToSIM:
		status, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		return d.writeSMS(ctx, status, data.String(1))
	case host.DeleteSMSOnSIM:
		index, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.deleteSMS(ctx, index)

	case host.GetCurrentCalls:
		return d.currentCalls(ctx)
	case host.Dial:
		clir, _ := data.Int(1)
		d.passThrough(ctx, dialCommand(data.String(0), clir))
		return nil, nil
	case host.Hangup:
		index, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		d.passThrough(ctx, fmt.Sprintf("AT+CHLD=1%d", index))
		return nil, nil
	case host.HangupWaitingOrBackground:
		d.passThrough(ctx, "AT+CHLD=0")
		return nil, nil
	case host.HangupForegroundResumeBackground:
		d.passThrough(ctx, "AT+CHLD=1")
		return nil, nil
	case host.SwitchWaitingOrHoldingAndActive:
		d.passThrough(ctx, "AT+CHLD=2")
		return nil, nil
	case host.Conference:
		d.passThrough(ctx, "AT+CHLD=3")
		return nil, nil
	case host.Answer:
		d.passThrough(ctx, "ATA")
		return nil, nil
	case host.UDUB:
		d.passThrough(ctx, "ATH")
		return nil, nil
	case host.SeparateConnection:
		party, err := intArg(data, 0)
		if err != nil {
			return nil, err
		}
		if party < 1 || party > 9 {
			return nil, fmt.Errorf("%w: party %d", ErrInvalidArgument, party)
		}
		d.passThrough(ctx, fmt.Sprintf("AT+CHLD=2%d", party))
		return nil, nil
	case host.DTMF:
		tone := data.String(0)
		if tone == "" {
			return nil, fmt.Errorf("%w: no tone", ErrInvalidArgument)
		}
		d.passThrough(ctx, "AT+VTS="+tone[:1])
		return nil, nil

	case host.SIMIO:
		return d.simIO(ctx, data)
	case host.EnterSIMPIN, host.EnterSIMPUK, host.EnterSIMPIN2, host.EnterSIMPUK2, host.ChangeSIMPIN, host.ChangeSIMPIN2:
		return nil, d.enterPIN(ctx, data)

	case host.SendUSSD:
		return nil, ErrNotSupported
	case host.CancelUSSD:
		resp, err := d.cmd.Numeric(ctx, "AT+CUSD=2")
		if err != nil {
			return nil, err
		}
		return resp.Line(), nil

	case host.OEMHookRaw, host.OEMHookStrings:
		return []string(data), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrRadioNotAvailable, req)
	}
}

func (d *Dispatcher) screenState(ctx context.Context, on int) error {
	var flag int
	switch on {
	case 1:
		flag = 1
	case 0:
	default:
		return fmt.Errorf("%w: screen state %d", ErrInvalidArgument, on)
	}
	for _, cmd := range []string{
		fmt.Sprintf("AT+ARSI=%d,4", flag),
		fmt.Sprintf("AT+CREG=%d", flag),
		fmt.Sprintf("AT+VMCCMNC=%d", flag),
		fmt.Sprintf("AT+VSER=%d", flag),
	} {
		if _, err := d.cmd.Command(ctx, cmd); err != nil {
			return err
		}
	}
	if flag == 1 {
		d.host.Notify(host.NetworkStateChanged, nil)
		d.session.SetScreen(session.ScreenOn)
	} else {
		d.session.SetScreen(session.ScreenOff)
	}
	return nil
}

// line runs a single line exchange and positions the answer after its
// prefix.
func (d *Dispatcher) line(ctx context.Context, cmd, prefix string) (*at.Line, error) {
	resp, err := d.cmd.SingleLine(ctx, cmd, prefix)
	if err != nil {
		return nil, err
	}
	line := at.NewLine(resp.Line())
	if err := line.Start(); err != nil {
		return nil, err
	}
	return line, nil
}

func (d *Dispatcher) persist() {
	if d.status == nil {
		return
	}
	if err := d.status.Persist(); err != nil {
		d.logger.Warn("Failed to write status", "error", err)
	}
}

func intArg(data host.Payload, i int) (int, error) {
	n, err := data.Int(i)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return n, nil
}

var _ host.Handler = (*Dispatcher)(nil)
