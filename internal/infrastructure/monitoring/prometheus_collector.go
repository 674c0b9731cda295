package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayCollector holds the relay's Prometheus series.
type RelayCollector struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	roomsOccupied     prometheus.Gauge

	envelopesRouted   *prometheus.CounterVec
	deliveriesTotal   prometheus.Counter
	deliveriesDropped prometheus.Counter
	malformedFrames   prometheus.Counter
	rateLimited       prometheus.Counter
	fanout            prometheus.Histogram
}

// NewRelayCollector registers the series with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewRelayCollector(reg prometheus.Registerer) *RelayCollector {
	factory := promauto.With(reg)
	return &RelayCollector{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watchsync_relay_connections_active",
			Help: "Number of open relay connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_relay_connections_total",
			Help: "Total number of relay connections accepted",
		}),
		roomsOccupied: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watchsync_relay_rooms_occupied",
			Help: "Number of rooms with at least one tagged connection",
		}),
		envelopesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchsync_relay_envelopes_routed_total",
			Help: "Envelopes routed to a room, by envelope type",
		}, []string{"type"}),
		deliveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_relay_deliveries_total",
			Help: "Envelopes queued to individual connections",
		}),
		deliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_relay_deliveries_dropped_total",
			Help: "Deliveries dropped because a connection's send buffer was full",
		}),
		malformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_relay_malformed_frames_total",
			Help: "Inbound frames rejected as malformed",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_relay_rate_limited_frames_total",
			Help: "Inbound frames dropped by the per-connection rate limit",
		}),
		fanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchsync_relay_fanout_recipients",
			Help:    "Recipients per routed envelope",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

func (c *RelayCollector) ConnectionOpened() {
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

func (c *RelayCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

func (c *RelayCollector) SetRoomsOccupied(n int) {
	c.roomsOccupied.Set(float64(n))
}

// EnvelopeRouted records one fan-out of kind to recipients connections.
func (c *RelayCollector) EnvelopeRouted(kind string, recipients, dropped int) {
	c.envelopesRouted.WithLabelValues(kind).Inc()
	c.deliveriesTotal.Add(float64(recipients - dropped))
	c.deliveriesDropped.Add(float64(dropped))
	c.fanout.Observe(float64(recipients))
}

func (c *RelayCollector) MalformedFrame() {
	c.malformedFrames.Inc()
}

func (c *RelayCollector) RateLimitedFrame() {
	c.rateLimited.Inc()
}
