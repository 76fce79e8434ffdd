package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	handshakeAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "skyctl",
			Subsystem: "handshake",
			Name:      "attempts_total",
			Help:      "Connection handshake attempts started.",
		},
	)
	handshakeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyctl",
			Subsystem: "handshake",
			Name:      "outcomes_total",
			Help:      "Handshake notifications by kind.",
		},
		[]string{"outcome"},
	)
	handshakeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyctl",
			Subsystem: "handshake",
			Name:      "transitions_total",
			Help:      "Handshake state transitions.",
		},
		[]string{"from", "to"},
	)
	calibrationRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "skyctl",
			Subsystem: "handshake",
			Name:      "calibration_rejected_total",
			Help:      "Calibration payloads answered with DATA_INVALID.",
		},
	)
	linkFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyctl",
			Subsystem: "link",
			Name:      "frames_total",
			Help:      "Link frames by direction and result.",
		},
		[]string{"direction", "result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skyctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			handshakeAttempts,
			handshakeOutcomes,
			handshakeTransitions,
			calibrationRejected,
			linkFrames,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordHandshakeAttempt() {
	RegisterMetrics()
	handshakeAttempts.Inc()
}

func RecordHandshakeOutcome(outcome string) {
	RegisterMetrics()
	handshakeOutcomes.WithLabelValues(outcome).Inc()
}

func RecordHandshakeTransition(from, to string) {
	RegisterMetrics()
	handshakeTransitions.WithLabelValues(from, to).Inc()
}

func RecordCalibrationRejected() {
	RegisterMetrics()
	calibrationRejected.Inc()
}

// RecordLinkFrame counts one frame; direction is "in" or "out".
func RecordLinkFrame(direction string, ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "error"
	}
	linkFrames.WithLabelValues(direction, result).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
