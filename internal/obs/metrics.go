// Package obs exports connection and dispatch metrics to Prometheus.
package obs

import (
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sentrywatch"

// Metrics implements websocket.Observer and dispatch.Observer. Connections are
// labelled by URL only so API keys carried in protocols never reach a label.
type Metrics struct {
	connects    *prometheus.CounterVec
	disconnects *prometheus.CounterVec
	reconnects  *prometheus.CounterVec
	backoff     *prometheus.HistogramVec
	exhausted   *prometheus.CounterVec
	messages    *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
	connected   *prometheus.GaugeVec
	dispatched  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	retries     prometheus.Gauge

	reg prometheus.Registerer
}

// NewMetrics registers every collector with reg, or with the default registry
// when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		connects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connects_total",
			Help:      "Successful websocket handshakes by endpoint.",
		}, []string{"url"}),
		disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "disconnects_total",
			Help:      "Websocket closes by endpoint and cause.",
		}, []string{"url", "cause"}),
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled by endpoint.",
		}, []string{"url"}),
		backoff: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay before each reconnect attempt.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"url"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "retries_exhausted_total",
			Help:      "Connections that gave up reconnecting.",
		}, []string{"url"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "Inbound frames by endpoint and kind.",
		}, []string{"url", "kind"}),
		subscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "subscribers",
			Help:      "Subscribers attached to each shared connection.",
		}, []string{"url"}),
		connected: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connected",
			Help:      "1 while the endpoint has an open connection.",
		}, []string{"url"}),
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Events routed to a feature handler.",
		}, []string{"feature", "type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Known events rejected for a malformed payload.",
		}, []string{"feature", "type"}),
		retries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "retries_pending",
			Help:      "Rate limited requests waiting to be retried.",
		}),
	}
}

func (m *Metrics) Connected(key websocket.Key) {
	m.connects.WithLabelValues(key.URL).Inc()
	m.connected.WithLabelValues(key.URL).Set(1)
}

func (m *Metrics) Disconnected(key websocket.Key, err error) {
	cause := "normal"
	if err != nil {
		cause = "error"
	}
	m.disconnects.WithLabelValues(key.URL, cause).Inc()
	m.connected.WithLabelValues(key.URL).Set(0)
}

func (m *Metrics) ReconnectScheduled(key websocket.Key, attempt int, delay time.Duration) {
	m.reconnects.WithLabelValues(key.URL).Inc()
	m.backoff.WithLabelValues(key.URL).Observe(delay.Seconds())
}

func (m *Metrics) RetriesExhausted(key websocket.Key) {
	m.exhausted.WithLabelValues(key.URL).Inc()
}

func (m *Metrics) MessageReceived(key websocket.Key, heartbeat bool) {
	kind := "event"
	if heartbeat {
		kind = "heartbeat"
	}
	m.messages.WithLabelValues(key.URL, kind).Inc()
}

func (m *Metrics) SubscribersChanged(key websocket.Key, count int) {
	m.subscribers.WithLabelValues(key.URL).Set(float64(count))
}

func (m *Metrics) Dispatched(feature string, eventType string) {
	m.dispatched.WithLabelValues(feature, eventType).Inc()
}

func (m *Metrics) Dropped(feature string, eventType string) {
	m.dropped.WithLabelValues(feature, eventType).Inc()
}

// SetRetriesPending records the retry queue depth.
func (m *Metrics) SetRetriesPending(n int) {
	m.retries.Set(float64(n))
}

// WatchDropped exports a counter read from dropped on every scrape.
func (m *Metrics) WatchDropped(name string, help string, dropped func() uint64) {
	promauto.With(m.reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(dropped()) })
}
