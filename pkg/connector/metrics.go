package connector

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the client. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	polls    *prometheus.CounterVec
}

// NewMetrics creates collectors and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankconnect",
			Name:      "requests_total",
			Help:      "Requests sent to the bank connect service by operation and HTTP status (0 for transport errors).",
		}, []string{"operation", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bankconnect",
			Name:      "request_duration_seconds",
			Help:      "Latency of bank connect requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankconnect",
			Name:      "poll_attempts_total",
			Help:      "Category read attempts by endpoint and progress verdict.",
		}, []string{"endpoint", "verdict"}),
	}
}

func (m *Metrics) observeRequest(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePoll counts one poll attempt and its verdict.
func (m *Metrics) ObservePoll(endpoint, verdict string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(endpoint, verdict).Inc()
}

// Requests exposes the request counter, mostly for tests.
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

// Polls exposes the poll counter, mostly for tests.
func (m *Metrics) Polls() *prometheus.CounterVec {
	return m.polls
}
