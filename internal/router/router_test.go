package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rates-app/internal/domain"
	"rates-app/internal/hub"
	"rates-app/internal/metrics"
	"rates-app/internal/query"
	"rates-app/internal/util"
)

type stubService struct{}

func (stubService) Current(ctx context.Context) (*domain.Snapshot, error) {
	return &domain.Snapshot{Date: "2025-03-01T11:30:00+03:00", Valute: []domain.Valute{{CharCode: "USD", Nominal: 1, Value: 90}}}, nil
}

func (stubService) RecentHistory(ctx context.Context, charCode string, limit int) ([]query.Point, error) {
	if charCode == "USD" {
		return []query.Point{{Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), Value: 90}}, nil
	}
	return []query.Point{}, nil
}

func (stubService) Codes(ctx context.Context) ([]string, error) {
	return []string{"USD"}, nil
}

type stubTicks struct{}

func (stubTicks) LastBroadcast() time.Time { return time.Time{} }

type stubSource struct{}

func (stubSource) State() string { return "closed" }

func newTestRouter(t *testing.T) (http.Handler, *hub.Hub, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := hub.New(4, nil, m)
	t.Cleanup(h.Close)

	r := NewRouter(Deps{
		Service:  stubService{},
		Ticks:    stubTicks{},
		Source:   stubSource{},
		Hub:      h,
		Logger:   &util.RatesLogger{},
		Metrics:  m,
		Gatherer: reg,
	})
	return r, h, m
}

func TestRoutes(t *testing.T) {
	r, _, m := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		target string
		status int
		body   string
	}{
		{"current", http.MethodGet, "/api/current", http.StatusOK, `"CharCode":"USD"`},
		{"history", http.MethodGet, "/api/history/USD", http.StatusOK, `"value":90`},
		{"history unknown", http.MethodGet, "/api/history/EUR", http.StatusOK, `[]`},
		{"history odd code", http.MethodGet, "/api/history/US-D", http.StatusOK, `[]`},
		{"history bad limit", http.MethodGet, "/api/history/USD?limit=-1", http.StatusBadRequest, `"error_code":103`},
		{"codes", http.MethodGet, "/api/codes", http.StatusOK, `["USD"]`},
		{"health", http.MethodGet, "/api/health", http.StatusOK, `"source_state":"closed"`},
		{"post current", http.MethodPost, "/api/current", http.StatusMethodNotAllowed, `Only GET requests are supported`},
		{"post ws", http.MethodPost, "/ws", http.StatusMethodNotAllowed, `"error_code":303001`},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound, ``},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, `rates_hub_subscribers`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.target, nil))
			assert.Equal(t, tc.status, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.body)
		})
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/history/{code}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/history/{code}", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/current", "4xx")))
}

func TestWebsocketThroughMiddleware(t *testing.T) {
	r, h, _ := newTestRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Len() != 1 {
		require.True(t, time.Now().Before(deadline), "subscriber never registered")
		time.Sleep(5 * time.Millisecond)
	}

	now := time.Now().UTC()
	h.Publish(now, []domain.Sample{{CharCode: "USD", Timestamp: now, Value: 90}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"rates_snapshot"`)
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _, _ := newTestRouter(t)
	server := NewServer("127.0.0.1:0", r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, server, time.Second, &util.RatesLogger{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
