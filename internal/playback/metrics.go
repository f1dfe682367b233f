package playback

import "github.com/prometheus/client_golang/prometheus"

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "branchcast_playback_transitions_total", Help: "Playback state transitions"},
		[]string{"kind"},
	)
	notifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "branchcast_playback_notify_failures_total", Help: "Failed playback notifications"},
		[]string{"notifier"},
	)
)

func init() {
	prometheus.MustRegister(transitionsTotal, notifyFailures)
}
