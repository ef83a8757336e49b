package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"i4.energy/across/fwril/session"
)

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// RegisterSession exposes the session fields that are read at scrape time.
func RegisterSession(reg prometheus.Registerer, s *session.Session) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "data_call_connected",
			Help:      "1 while the packet data session is up",
		}, func() float64 {
			state, _, _ := s.DataCall()
			return boolGauge(state == session.DataConnected)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activated",
			Help:      "1 once the module is activated on the network",
		}, func() float64 {
			return boolGauge(s.Activation() == session.Activated)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activation_retries_remaining",
			Help:      "Over-the-air activation attempts left",
		}, func() float64 {
			return float64(s.ActivationRetries())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "screen_on",
			Help:      "1 while the host reports its screen on",
		}, func() float64 {
			return boolGauge(s.Screen() == session.ScreenOn)
		}),
	)
}
