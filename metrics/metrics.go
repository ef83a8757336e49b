// Package metrics exposes the daemon's request, radio and channel activity
// as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/ril"
	"i4.energy/across/fwril/session"
)

const namespace = "fwril"

var radioStates = []session.RadioState{
	session.RadioOff,
	session.RadioUnavailable,
	session.RadioAwaitingReadiness,
	session.RadioReady,
	session.RadioLockedOrAbsent,
}

// Metrics implements host.Observer, ril.SignalObserver and
// supervisor.Observer.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	radioState      *prometheus.GaugeVec
	attaches        prometheus.Counter
	attached        prometheus.Gauge
	signal          *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Host requests completed, by request and status",
			},
			[]string{"request", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from submission to completion of host requests",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"request"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Unsolicited notifications sent to the host, by event",
			},
			[]string{"event"},
		),
		radioState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "radio_state",
				Help:      "1 for the current radio state, 0 for the others",
			},
			[]string{"state"},
		),
		attaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_attaches_total",
			Help:      "AT channel attaches, including the first",
		}),
		attached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_attached",
			Help:      "1 while an AT channel is attached",
		}),
		signal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signal_strength",
				Help:      "Last signal reading; dBm and Ec/Io values are positive",
			},
			[]string{"field"},
		),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.notifications, m.radioState, m.attaches, m.attached, m.signal)
	m.RadioTransition(session.RadioOff, session.RadioOff)
	return m
}

func (m *Metrics) Completed(req host.Request, status host.Status, elapsed time.Duration) {
	m.requests.WithLabelValues(req.String(), status.String()).Inc()
	m.requestDuration.WithLabelValues(req.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) Notified(event host.Event) {
	m.notifications.WithLabelValues(event.String()).Inc()
}

// RadioTransition matches session.TransitionFunc.
func (m *Metrics) RadioTransition(_, next session.RadioState) {
	for _, state := range radioStates {
		v := 0.0
		if state == next {
			v = 1
		}
		m.radioState.WithLabelValues(state.String()).Set(v)
	}
}

func (m *Metrics) Signal(s ril.SignalStrength) {
	m.signal.WithLabelValues("cdma_dbm").Set(float64(s.CDMADbm))
	m.signal.WithLabelValues("cdma_ecio").Set(float64(s.CDMAEcio))
	m.signal.WithLabelValues("evdo_dbm").Set(float64(s.EVDODbm))
	m.signal.WithLabelValues("evdo_ecio").Set(float64(s.EVDOEcio))
	m.signal.WithLabelValues("evdo_snr").Set(float64(s.EVDOSNR))
}

func (m *Metrics) Attached() {
	m.attaches.Inc()
	m.attached.Set(1)
}

func (m *Metrics) Detached() {
	m.attached.Set(0)
}

var (
	_ host.Observer      = (*Metrics)(nil)
	_ ril.SignalObserver = (*Metrics)(nil)
)
