package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames handled by the relay.",
		},
		[]string{"direction", "type"},
	)
	malformedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "malformed_frames_total",
			Help:      "Inbound frames that failed decoding.",
		},
	)
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "calls_total",
			Help:      "Relayed calls by outcome.",
		},
		[]string{"outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "call_duration_seconds",
			Help:      "Relayed call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	sessionsInstalled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "sessions_installed_total",
			Help:      "Peer sessions installed by origin.",
		},
		[]string{"origin"},
	)
	sessionsDisplaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "sessions_displaced_total",
			Help:      "Sessions force-closed by a newer peer connection.",
		},
	)
	sessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "relay",
			Name:      "sessions_closed_total",
			Help:      "Session terminations by reason.",
		},
		[]string{"reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tetherctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Debug HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tetherctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Debug HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal,
			malformedFrames,
			callsTotal,
			callDuration,
			sessionsInstalled,
			sessionsDisplaced,
			sessionsClosed,
			httpRequests,
			httpRequestDuration,
		)
	})
}

// Handler serves the metrics endpoint for the serve command.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordFrame(direction string, frameType string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, frameType).Inc()
}

func RecordMalformedFrame() {
	RegisterMetrics()
	malformedFrames.Inc()
}

func RecordCall(outcome string, duration time.Duration) {
	RegisterMetrics()
	callsTotal.WithLabelValues(outcome).Inc()
	callDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordSessionInstalled(origin string) {
	RegisterMetrics()
	sessionsInstalled.WithLabelValues(origin).Inc()
}

func RecordSessionDisplaced() {
	RegisterMetrics()
	sessionsDisplaced.Inc()
}

func RecordSessionClosed(reason string) {
	RegisterMetrics()
	sessionsClosed.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(method string, path string, status int, duration time.Duration) {
	RegisterMetrics()
	code := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, code).Inc()
	httpRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}
