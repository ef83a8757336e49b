package ril

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/fwril/host"
)

// CardStatus describes the identity module. This modem has no removable
// card; the status is fixed.
type CardStatus struct {
	CardState         string      `json:"card_state"`
	UniversalPINState string      `json:"universal_pin_state"`
	GSMUMTSAppIndex   int         `json:"gsm_umts_subscription_app_index"`
	CDMAAppIndex      int         `json:"cdma_subscription_app_index"`
	Applications      []AppStatus `json:"applications"`
}

type AppStatus struct {
	Type       string `json:"app_type"`
	State      string `json:"app_state"`
	PersoState string `json:"perso_substate"`
	PIN1       string `json:"pin1"`
	PIN2       string `json:"pin2"`
}

// noApplication is the index reported for an absent subscription.
const noApplication = 8

func cardStatus() CardStatus {
	return CardStatus{
		CardState:         "present",
		UniversalPINState: "unknown",
		GSMUMTSAppIndex:   noApplication,
		CDMAAppIndex:      0,
		Applications: []AppStatus{{
			Type:       "ruim",
			State:      "ready",
			PersoState: "ready",
			PIN1:       "unknown",
			PIN2:       "unknown",
		}},
	}
}

// simReady reports whether the identity module is ready. It always is.
func simReady() bool { return true }

// SIMIOResult is the answer to a restricted SIM access.
type SIMIOResult struct {
	SW1      int    `json:"sw1"`
	SW2      int    `json:"sw2"`
	Response string `json:"response,omitempty"`
}

// simIO runs +CRSM. The payload is command, file id, path, p1, p2, p3,
// data and pin2; path and pin2 are not used by the modem.
func (d *Dispatcher) simIO(ctx context.Context, data host.Payload) (SIMIOResult, error) {
	var args [5]int
	for i, field := range []int{0, 1, 3, 4, 5} {
		v, err := data.Int(field)
		if err != nil {
			return SIMIOResult{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		args[i] = v
	}
	cmd := fmt.Sprintf("AT+CRSM=%d,%d,%d,%d,%d", args[0], args[1], args[2], args[3], args[4])
	if extra := data.String(6); extra != "" {
		cmd += "," + extra
	}

	line, err := d.line(ctx, cmd, "+CRSM:")
	if err != nil {
		return SIMIOResult{}, err
	}
	var r SIMIOResult
	if r.SW1, err = line.NextInt(); err != nil {
		return SIMIOResult{}, err
	}
	if r.SW2, err = line.NextInt(); err != nil {
		return SIMIOResult{}, err
	}
	if line.HasMore() {
		if r.Response, err = line.NextString(); err != nil {
			return SIMIOResult{}, err
		}
	}
	return r, nil
}

// enterPIN sends +CPIN with one or two codes. Every failure, including a
// malformed request, is reported as an incorrect password.
func (d *Dispatcher) enterPIN(ctx context.Context, data host.Payload) error {
	if len(data) != 1 && len(data) != 2 {
		return fmt.Errorf("%w: %d codes", ErrPasswordIncorrect, len(data))
	}
	if _, err := d.cmd.Command(ctx, "AT+CPIN="+strings.Join(data, ",")); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordIncorrect, err)
	}
	return nil
}
