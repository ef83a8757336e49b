package ril

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"i4.energy/across/fwril/at"
)

// CallState is the state of a call as listed by +CLCC.
type CallState string

const (
	CallActive   CallState = "active"
	CallHolding  CallState = "holding"
	CallDialing  CallState = "dialing"
	CallAlerting CallState = "alerting"
	CallIncoming CallState = "incoming"
	CallWaiting  CallState = "waiting"
)

var clccStates = []CallState{CallActive, CallHolding, CallDialing, CallAlerting, CallIncoming, CallWaiting}

// Call is a voice call listed by +CLCC.
type Call struct {
	Index      int       `json:"index"`
	State      CallState `json:"state"`
	Incoming   bool      `json:"is_mt"`
	Multiparty bool      `json:"is_mpty"`
	Number     string    `json:"number,omitempty"`
	TOA        int       `json:"toa,omitempty"`
}

var errNotVoice = errors.New("not a voice call")

// placeholderNumbers are kept even though they do not look like a number.
var placeholderNumbers = map[string]bool{"Restricted": true, "NotAvailable": true, "UNKNOWN": true}

// ParseCall reads +CLCC:<idx>,<dir>,<stat>,<mode>,<mpty>[,<number>,<type>].
// Lines for non-voice calls are rejected.
func ParseCall(s string) (Call, error) {
	line := at.NewLine(s)
	if err := line.Start(); err != nil {
		return Call{}, err
	}
	var c Call
	var err error
	if c.Index, err = line.NextInt(); err != nil {
		return Call{}, err
	}
	if c.Incoming, err = line.NextBool(); err != nil {
		return Call{}, err
	}
	state, err := line.NextInt()
	if err != nil {
		return Call{}, err
	}
	if state < 0 || state >= len(clccStates) {
		return Call{}, &at.ParseError{Line: s, Field: 3, Want: "call state"}
	}
	c.State = clccStates[state]
	mode, err := line.NextInt()
	if err != nil {
		return Call{}, err
	}
	if mode != 0 {
		return Call{}, errNotVoice
	}
	if c.Multiparty, err = line.NextBool(); err != nil {
		return Call{}, err
	}
	if !line.HasMore() {
		return c, nil
	}
	number, err := line.NextString()
	if err != nil {
		// a missing number is tolerated
		return c, nil
	}
	if strings.IndexAny(number[:min(1, len(number))], "+*#0123456789") < 0 && !placeholderNumbers[number] {
		number = ""
	}
	c.Number = number
	if c.TOA, err = line.NextInt(); err != nil {
		return Call{}, err
	}
	return c, nil
}

// currentCalls lists voice calls. Lines that cannot be parsed are skipped.
func (d *Dispatcher) currentCalls(ctx context.Context) ([]Call, error) {
	resp, err := d.cmd.Multiline(ctx, "AT+CLCC", "+CLCC:")
	if err != nil {
		return nil, err
	}
	calls := make([]Call, 0, len(resp.Lines))
	for _, l := range resp.Lines {
		c, err := ParseCall(l)
		if err != nil {
			d.logger.Debug("Skipping call line", "line", l, "error", err)
			continue
		}
		calls = append(calls, c)
	}
	return calls, nil
}

// passThrough sends a call control command. The host learns the outcome by
// listing the calls, so the result is only logged.
func (d *Dispatcher) passThrough(ctx context.Context, cmd string) {
	if _, err := d.cmd.Command(ctx, cmd); err != nil {
		d.logger.Debug("Call control command failed", "command", cmd, "error", err)
	}
}

func dialCommand(address string, clir int) string {
	suffix := ""
	switch clir {
	case 1:
		suffix = "I"
	case 2:
		suffix = "i"
	}
	return fmt.Sprintf("ATD%s%s;", address, suffix)
}
