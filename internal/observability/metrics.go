package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "btcwire"

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	wireMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "messages_total",
			Help:      "Messages sent or received, by command.",
		},
		[]string{"network", "direction", "command"},
	)
	wireBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "bytes_total",
			Help:      "Envelope bytes sent or received.",
		},
		[]string{"network", "direction"},
	)
	wireDecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "decode_errors_total",
			Help:      "Inbound streams dropped on a decode error, by kind.",
		},
		[]string{"network", "kind"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "handshakes_total",
			Help:      "Version handshakes attempted, by result.",
		},
		[]string{"network", "result"},
	)
	handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "handshake_duration_seconds",
			Help:      "Time from sending version to seeing verack.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"network", "result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, wireMessages, wireBytes, wireDecodeErrors, handshakes, handshakeDuration)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordMessage counts one envelope of size bytes moving in direction.
func RecordMessage(network, direction, command string, size int) {
	RegisterMetrics()
	wireMessages.WithLabelValues(network, direction, command).Inc()
	wireBytes.WithLabelValues(network, direction).Add(float64(size))
}

func RecordDecodeError(network, kind string) {
	RegisterMetrics()
	wireDecodeErrors.WithLabelValues(network, kind).Inc()
}

func RecordHandshake(network string, duration time.Duration, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	handshakes.WithLabelValues(network, result).Inc()
	handshakeDuration.WithLabelValues(network, result).Observe(duration.Seconds())
}
