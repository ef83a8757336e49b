package ril

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/poll"
	"i4.energy/across/fwril/session"
)

// profile is sent after every attach. Results are not checked: faults are
// handled by the channel's callbacks.
var profile = []string{
	"ATE0Q0V1",
	"ATS0=0",
	"AT+CMEE=1",
	"AT+CREG=1",
	"AT+VMCCMNC=0",
	"AT+ARSI=1,4",
	"AT+CMGF=0",
	"AT^MEID",
	"AT+VMDN?",
	"AT^HDRCSQ",
	"AT^SYSINFO",
	"AT+CSNID?",
}

var gpsProfile = []string{
	"AT^GPSLOC=0",
	"AT^GPSMODE=1",
	"AT^GPSQOS=1,255",
	"AT^GPSLOC=1,1",
}

const handshakeCommand = "ATE0Q0V1"

// Initialize brings a freshly attached channel into service: the radio is
// reported off, the modem is synchronized and profiled, and the radio moves
// to AwaitingReadiness if the modem reports it on.
func (d *Dispatcher) Initialize(ctx context.Context) {
	d.setRadio(session.RadioOff)

	if err := d.handshake(ctx); err != nil {
		d.logger.Warn("Modem handshake failed", "error", err)
	}
	commands := profile
	if d.config.GPS {
		commands = slices.Concat(profile, gpsProfile)
	}
	for _, cmd := range commands {
		if _, err := d.cmd.Command(ctx, cmd); err != nil {
			d.logger.Debug("Profile command failed", "command", cmd, "error", err)
		}
	}

	on, err := d.radioOn(ctx)
	if err != nil {
		d.logger.Warn("Radio state query failed, assuming off", "error", err)
		return
	}
	if on {
		d.setRadio(session.RadioAwaitingReadiness)
	}
}

// handshake repeats the echo-off command until the modem answers OK. An
// unanswered attempt is retried and never faults the channel.
func (d *Dispatcher) handshake(ctx context.Context) error {
	return poll.Until(ctx, d.config.Handshake, func(ctx context.Context) (bool, error) {
		attemptCtx, cancel := context.WithTimeout(modem.WithSoftTimeout(ctx), d.config.Handshake.Interval)
		defer cancel()
		_, err := d.cmd.Command(attemptCtx, handshakeCommand)
		if errors.Is(err, modem.ErrClosed) {
			return false, err
		}
		return err == nil, nil
	})
}

// radioOn reads +VPON:<display>,<ps>. The radio is on when the first flag
// is set.
func (d *Dispatcher) radioOn(ctx context.Context) (bool, error) {
	line, err := d.line(ctx, "AT+VPON?", "+VPON:")
	if err != nil {
		return false, err
	}
	on, err := line.NextBool()
	if err != nil {
		return false, err
	}
	if _, err := line.NextBool(); err != nil {
		return false, err
	}
	return on, nil
}

func (d *Dispatcher) radioPower(ctx context.Context, on int) error {
	state := d.session.RadioState()
	switch {
	case on == 0 && state != session.RadioOff:
		if _, err := d.cmd.Command(ctx, "AT+CPOF"); err != nil {
			return err
		}
		d.setRadio(session.RadioOff)
	case on > 0 && state == session.RadioOff:
		if _, err := d.cmd.Command(ctx, "AT+CPON"); err != nil {
			// some firmware reports an error yet turns the radio on
			if ok, qerr := d.radioOn(ctx); qerr != nil || !ok {
				return fmt.Errorf("radio power on: %w", err)
			}
		}
		d.setRadio(session.RadioAwaitingReadiness)
	}
	return nil
}

func (d *Dispatcher) setRadio(next session.RadioState) {
	if err := d.session.SetRadioState(next); err != nil {
		d.logger.Warn("Radio state not changed", "error", err)
	}
}

// onRadioTransition runs after every radio state change. It may run on the
// channel's Loop goroutine, so commands are only sent from scheduled
// callbacks.
func (d *Dispatcher) onRadioTransition(prev, next session.RadioState) {
	d.logger.Info("Radio state changed", "from", prev, "to", next)
	d.host.Notify(host.RadioStateChanged, nil)

	switch next {
	case session.RadioAwaitingReadiness:
		d.host.Notify(host.NetworkStateChanged, nil)
		d.host.Schedule(d.config.ReadinessDelay, func() { d.pollReadiness(d.ctx) })
	case session.RadioReady:
		d.host.Schedule(0, func() { d.enableMessageRouting(d.ctx) })
	}
}

// pollReadiness waits for the identity module while the radio is awaiting
// readiness.
func (d *Dispatcher) pollReadiness(ctx context.Context) {
	aborted := false
	err := poll.Until(ctx, d.config.Readiness, func(context.Context) (bool, error) {
		if d.session.RadioState() != session.RadioAwaitingReadiness {
			aborted = true
			return true, nil
		}
		return simReady(), nil
	})
	switch {
	case aborted:
		return
	case err == nil:
		d.setRadio(session.RadioReady)
	case errors.Is(err, poll.ErrExhausted):
		d.setRadio(session.RadioLockedOrAbsent)
	default:
		d.logger.Debug("Readiness polling stopped", "error", err)
	}
}

// enableMessageRouting routes new messages and status reports straight to
// the host.
func (d *Dispatcher) enableMessageRouting(ctx context.Context) {
	if _, err := d.cmd.Command(ctx, "AT+CNMI=1,2,2,1,1"); err != nil {
		d.logger.Warn("Failed to enable message routing", "error", err)
	}
}

// Tick is the periodic service timer. The host is asked to re-read the
// registration, the signal reading is refreshed and, when data calls are
// automatic, the packet session is checked.
func (d *Dispatcher) Tick(ctx context.Context) {
	d.host.Notify(host.NetworkStateChanged, nil)
	if d.session.RadioState() == session.RadioOff {
		return
	}
	d.signalStrength(ctx)
	if d.session.AutoDataCall() {
		if err := d.data.Check(ctx); err != nil {
			d.logger.Warn("Data call check failed", "error", err)
		}
	}
}
