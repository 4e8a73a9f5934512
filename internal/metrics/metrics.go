package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Realtime metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketsync_connections_active",
			Help: "Number of registered realtime connections",
		},
	)

	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketsync_rooms_active",
			Help: "Number of ticket rooms with at least one member",
		},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_events_published_total",
			Help: "Ticket events published to rooms by kind",
		},
		[]string{"kind"},
	)

	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_deliveries_total",
			Help: "Per-member event deliveries by outcome",
		},
		[]string{"outcome"},
	)

	InboundDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_inbound_dropped_total",
			Help: "Inbound client frames dropped by reason",
		},
		[]string{"reason"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsync_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketsync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(RoomsActive)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(InboundDropped)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds into h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
