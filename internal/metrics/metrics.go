package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rates"

type Metrics struct {
	TicksTotal        *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	SamplesStored     prometheus.Counter
	LastTickTimestamp prometheus.Gauge
	Subscribers       prometheus.Gauge
	EventsDropped     prometheus.Counter
	RequestsTotal     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_ticks_total",
			Help:      "Collection ticks by outcome",
		}, []string{"result"}),

		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of upstream rate fetches",
			Buckets:   prometheus.DefBuckets,
		}),

		SamplesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_stored_total",
			Help:      "Samples written to the retention store",
		}),

		LastTickTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collector_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful tick",
		}),

		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscribers",
			Help:      "Currently registered stream subscribers",
		}),

		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_events_dropped_total",
			Help:      "Events discarded because a subscriber buffer was full",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by route and status",
		}, []string{"method", "route", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TicksTotal,
			m.FetchDuration,
			m.SamplesStored,
			m.LastTickTimestamp,
			m.Subscribers,
			m.EventsDropped,
			m.RequestsTotal,
		)
	}
	return m
}

func (m *Metrics) ObserveTick(result string) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveStored(n int, at time.Time) {
	if m == nil {
		return
	}
	m.SamplesStored.Add(float64(n))
	m.LastTickTimestamp.Set(float64(at.Unix()))
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
