// Package urc routes unsolicited result codes from the modem to the host and
// to the local session.
package urc

import (
	"log/slog"
	"strings"

	"i4.energy/across/fwril/at"
	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/session"
)

// Kind is the class of an unsolicited line.
type Kind int

const (
	KindUnknown Kind = iota
	KindNITZ
	KindCallAlert
	KindRegistration
	KindNewSMS
	KindStatusReport
	KindCallProgress
	KindOTAMessage
	KindGPS
)

func (k Kind) String() string {
	switch k {
	case KindNITZ:
		return "nitz"
	case KindCallAlert:
		return "call_alert"
	case KindRegistration:
		return "registration"
	case KindNewSMS:
		return "new_sms"
	case KindStatusReport:
		return "status_report"
	case KindCallProgress:
		return "call_progress"
	case KindOTAMessage:
		return "ota_message"
	case KindGPS:
		return "gps"
	default:
		return "unknown"
	}
}

type rule struct {
	prefix string
	kind   Kind
}

// rules is evaluated in order; the first matching prefix wins.
var rules = []rule{
	{"%CTZV:", KindNITZ},
	{"+CRING:", KindCallAlert},
	{"RING", KindCallAlert},
	{"NO CARRIER", KindCallAlert},
	{"+CCWA", KindCallAlert},
	{"+CREG:", KindRegistration},
	{"+CGREG:", KindRegistration},
	{"+CMT:", KindNewSMS},
	{"+CDS:", KindStatusReport},
	{"^ORIG:", KindCallProgress},
	{"^CONN:", KindCallProgress},
	{"^CEND:", KindCallProgress},
	{"^OTACMSG:", KindOTAMessage},
	{"$GP", KindGPS},
}

// Classify returns the kind of an unsolicited line.
func Classify(line string) Kind {
	for _, r := range rules {
		if strings.HasPrefix(line, r.prefix) {
			return r.kind
		}
	}
	return KindUnknown
}

// FixSink receives NMEA sentences reported by the module's GPS receiver.
type FixSink interface {
	WriteFix(sentence string) error
}

// Router dispatches unsolicited lines. Handle runs on the modem loop
// goroutine and never issues AT commands.
type Router struct {
	host    host.Host
	session *session.Session
	sinks   []FixSink
	logger  *slog.Logger
}

func NewRouter(h host.Host, s *session.Session, logger *slog.Logger, sinks ...FixSink) *Router {
	return &Router{host: h, session: s, sinks: sinks, logger: logger}
}

// Handle is a modem.UnsolicitedFunc. Lines are dropped while the radio is
// unavailable.
func (r *Router) Handle(line, pdu string) {
	if r.session.RadioState() == session.RadioUnavailable {
		return
	}

	switch Classify(line) {
	case KindNITZ:
		l := at.NewLine(line)
		if err := l.Start(); err != nil {
			r.logger.Warn("Invalid NITZ line", "line", line)
			return
		}
		nitz, err := l.NextString()
		if err != nil {
			r.logger.Warn("Invalid NITZ line", "line", line)
			return
		}
		r.host.Notify(host.NITZTimeReceived, nitz)
	case KindCallAlert:
		// data-only profile: no call state notifications
		r.logger.Debug("Call alert suppressed", "line", line)
	case KindRegistration:
		r.host.Notify(host.NetworkStateChanged, nil)
	case KindNewSMS:
		r.host.Notify(host.NewSMS, pdu)
	case KindStatusReport:
		r.host.Notify(host.NewSMSStatusReport, pdu)
	case KindCallProgress:
		r.logger.Debug("Activation call progress", "line", line)
	case KindOTAMessage:
		r.session.RecordOTA(line)
		r.logger.Info("Activation message", "line", line)
	case KindGPS:
		for _, sink := range r.sinks {
			if err := sink.WriteFix(line); err != nil {
				r.logger.Debug("GPS fix dropped", "error", err)
			}
		}
	default:
		r.logger.Debug("Unhandled unsolicited line", "line", line)
	}
}
