package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	eventsTotal  *prometheus.CounterVec
	eventBytes   *prometheus.CounterVec
	subscribers  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinstream_ticks_total",
				Help: "Total number of ticks ingested per pair",
			},
			[]string{"pair"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinstream_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinstream_last_price",
				Help: "Last recorded price for a pair",
			},
			[]string{"pair"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinstream_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinstream_events_total",
				Help: "Total number of events broadcast per label",
			},
			[]string{"event"},
		),
		eventBytes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinstream_event_bytes_total",
				Help: "Total encoded event payload bytes per label",
			},
			[]string{"event"},
		),
		subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "coinstream_subscribers",
				Help: "Number of connected websocket subscribers",
			},
		),
	}
}

// RecordTick records a tick ingested for a pair.
func (r *Recorder) RecordTick(pair string) {
	r.ticksTotal.WithLabelValues(pair).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a pair.
func (r *Recorder) RecordLastPrice(pair string, price float64) {
	r.lastPrice.WithLabelValues(pair).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordEvent records a broadcast event and its payload size.
func (r *Recorder) RecordEvent(event string, bytes int) {
	r.eventsTotal.WithLabelValues(event).Inc()
	r.eventBytes.WithLabelValues(event).Add(float64(bytes))
}

// SetSubscriberCount records the current websocket subscriber count.
func (r *Recorder) SetSubscriberCount(n int) {
	r.subscribers.Set(float64(n))
}
