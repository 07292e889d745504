package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTick("success")
	m.ObserveTick("success")
	m.ObserveTick("fetch_error")
	m.ObserveStored(3, time.Unix(1700000000, 0))
	m.SetSubscribers(4)
	m.ObserveDropped()
	m.ObserveRequest("GET", "/api/current", 500)
	m.ObserveRequest("GET", "/api/current", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("fetch_error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SamplesStored))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastTickTimestamp))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Subscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/current", "5xx")))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick("success")
		m.ObserveFetch(time.Second)
		m.ObserveStored(1, time.Now())
		m.SetSubscribers(1)
		m.ObserveDropped()
		m.ObserveRequest("GET", "/", 200)
	})
}
