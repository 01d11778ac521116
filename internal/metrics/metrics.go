package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks requests handled per imposter and method.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imposters",
			Name:      "requests_total",
			Help:      "Total number of requests received by imposters",
		},
		[]string{"imposter", "method"},
	)

	// ResponseDuration tracks response generation duration.
	ResponseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imposters",
			Name:      "response_duration_seconds",
			Help:      "Response generation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"imposter"},
	)

	// ProxyDuration tracks upstream forwarding duration.
	ProxyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imposters",
			Name:      "proxy_duration_seconds",
			Help:      "Proxy request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"imposter"},
	)

	// NoMatchTotal tracks requests with no matching stub.
	NoMatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imposters",
			Name:      "no_match_total",
			Help:      "Total number of requests with no matching stub",
		},
		[]string{"imposter"},
	)

	// ImpostersTotal tracks the current number of imposters.
	ImpostersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imposters",
			Name:      "imposters_total",
			Help:      "Current number of imposters",
		},
	)

	// StubsTotal tracks the number of stubs per imposter.
	StubsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "imposters",
			Name:      "stubs_total",
			Help:      "Number of stubs per imposter",
		},
		[]string{"imposter"},
	)
)

// RecordRequest records a handled request.
func RecordRequest(imposterID, method string) {
	RequestsTotal.WithLabelValues(imposterID, method).Inc()
}

// RecordResponseDuration records the time taken to produce a response.
func RecordResponseDuration(imposterID string, seconds float64) {
	ResponseDuration.WithLabelValues(imposterID).Observe(seconds)
}

// RecordProxyDuration records the time taken by an upstream forward.
func RecordProxyDuration(imposterID string, seconds float64) {
	ProxyDuration.WithLabelValues(imposterID).Observe(seconds)
}

// RecordNoMatch records a request no stub matched.
func RecordNoMatch(imposterID string) {
	NoMatchTotal.WithLabelValues(imposterID).Inc()
}

// SetImpostersCount sets the imposter gauge.
func SetImpostersCount(count int) {
	ImpostersTotal.Set(float64(count))
}

// SetStubsCount sets the stub gauge for an imposter.
func SetStubsCount(imposterID string, count int) {
	StubsTotal.WithLabelValues(imposterID).Set(float64(count))
}

// RemoveImposter drops the labelled series for a deleted imposter.
// RequestsTotal is keyed by (imposter, method), so a partial match is needed
// to drop every method variant.
func RemoveImposter(imposterID string) {
	StubsTotal.DeleteLabelValues(imposterID)
	ResponseDuration.DeleteLabelValues(imposterID)
	ProxyDuration.DeleteLabelValues(imposterID)
	NoMatchTotal.DeleteLabelValues(imposterID)
	RequestsTotal.DeletePartialMatch(prometheus.Labels{"imposter": imposterID})
}
