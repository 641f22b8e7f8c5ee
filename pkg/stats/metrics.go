package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "custody"

var (
	unlockAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unlock_attempts_total",
		Help:      "Authentication attempts by factor and result.",
	}, []string{"factor", "result"})

	lockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockouts_total",
		Help:      "Lockout windows opened, tampered records included.",
	})

	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Chain provider requests by method and status.",
	}, []string{"provider", "method", "status"})

	providerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Chain provider request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "method"})
)

func init() {
	prometheus.MustRegister(
		unlockAttempts, lockouts, providerRequests, providerLatency,
	)
}

// RecordUnlockAttempt counts an authentication attempt with the given factor.
func RecordUnlockAttempt(factor string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	unlockAttempts.WithLabelValues(factor, result).Inc()
}

// RecordLockout ...
func RecordLockout() {
	lockouts.Inc()
}

// RecordProviderRequest counts a provider request and observes its latency.
func RecordProviderRequest(provider, method string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	providerRequests.WithLabelValues(provider, method, status).Inc()
	providerLatency.WithLabelValues(provider, method).Observe(
		time.Since(start).Seconds(),
	)
}
