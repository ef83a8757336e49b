// Package host is the boundary to the telephony platform: the request
// entry point, completions, notifications and deferred callbacks.
package host

import (
	"context"
	"strconv"
	"time"
)

//go:generate go tool mockgen -destination=mock_host.go -package=host . Host,Handler

// Event identifies an unsolicited notification sent to the host.
type Event int

const (
	RadioStateChanged Event = iota + 1
	NetworkStateChanged
	NITZTimeReceived
	NewSMS
	NewSMSStatusReport
	DataCallListChanged
	CallStateChanged
)

func (e Event) String() string {
	switch e {
	case RadioStateChanged:
		return "radio_state_changed"
	case NetworkStateChanged:
		return "network_state_changed"
	case NITZTimeReceived:
		return "nitz_time_received"
	case NewSMS:
		return "new_sms"
	case NewSMSStatusReport:
		return "new_sms_status_report"
	case DataCallListChanged:
		return "data_call_list_changed"
	case CallStateChanged:
		return "call_state_changed"
	default:
		return "event_" + strconv.Itoa(int(e))
	}
}

// MarshalText renders the event by name in JSON views.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Host is what the daemon calls back into. Every method may be called from
// any goroutine.
type Host interface {
	// Complete finishes the pending request identified by token. A token is
	// completed at most once; later completions are dropped.
	Complete(token Token, status Status, result any)
	// Notify emits an unsolicited notification. It never blocks on the
	// receiver.
	Notify(event Event, data any)
	// Schedule runs fn once after delay on a goroutine of the host.
	Schedule(delay time.Duration, fn func())
}

// Handler receives requests from the host one at a time. It must complete
// every request exactly once through Host.Complete, either before returning
// or later from another goroutine.
type Handler interface {
	OnRequest(ctx context.Context, req Request, data Payload, token Token)
}

// Completion is the outcome of a request.
type Completion struct {
	Token   Token   `json:"token"`
	Request Request `json:"-"`
	Name    string  `json:"request"`
	Status  Status  `json:"status"`
	Result  any     `json:"result,omitempty"`
}

// Notification is an emitted event.
type Notification struct {
	Event Event     `json:"event"`
	Data  any       `json:"data,omitempty"`
	Time  time.Time `json:"-"`
}
