package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signaling_active_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	signalsRelayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_relayed_total",
			Help: "Signaling messages relayed to their target",
		},
		[]string{"kind"},
	)

	signalsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_dropped_total",
			Help: "Signaling messages dropped because the target was not connected",
		},
		[]string{"kind"},
	)
)

// RecordHTTPMetrics records counters and latency for a finished HTTP request.
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func SetActiveRooms(count int) {
	activeRooms.Set(float64(count))
}

func SignalRelayed(kind string) {
	signalsRelayedTotal.WithLabelValues(kind).Inc()
}

func SignalDropped(kind string) {
	signalsDroppedTotal.WithLabelValues(kind).Inc()
}
