package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinStream/internal/domain/models"
	"CoinStream/internal/stream"
	"CoinStream/internal/ticker"
	"CoinStream/internal/usecase"
	"CoinStream/pkg/cache"
	applogger "CoinStream/pkg/logger"
)

type nullEvents struct{}

func (nullEvents) EmitTicker(string, string) error           { return nil }
func (nullEvents) EmitUserCount(int) error                   { return nil }
func (nullEvents) Emit(string, map[string]interface{}) error { return nil }

type nullMetrics struct{}

func (nullMetrics) RecordTick(string)               {}
func (nullMetrics) RecordError(string)              {}
func (nullMetrics) RecordLastPrice(string, float64) {}
func (nullMetrics) RecordLatency(string, float64)   {}
func (nullMetrics) RecordEvent(string, int)         {}
func (nullMetrics) SetSubscriberCount(int)          {}

type idleStream struct {
	mu        sync.Mutex
	connected bool
}

func (s *idleStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *idleStream) Subscribe(context.Context) error { return nil }

func (s *idleStream) Read(context.Context) (<-chan *models.Tick, <-chan error) {
	return make(chan *models.Tick), make(chan error)
}

func (s *idleStream) Reconnect(ctx context.Context) error { return s.Connect(ctx) }

func (s *idleStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *idleStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

type stubHistory struct{}

func (stubHistory) FetchTickers(context.Context) (map[string]models.TickerSnapshot, error) {
	return nil, nil
}

func (stubHistory) FetchChartData(context.Context, string, int, time.Time, time.Time) ([]models.Candle, error) {
	return []models.Candle{{High: 2, Low: 1, Open: 1, Close: 2, Volume: 10}}, nil
}

type apiFixture struct {
	e      *echo.Echo
	engine *ticker.Tracker
}

func newAPIFixture(t *testing.T) *apiFixture {
	return newCachedAPIFixture(t, nil, 0)
}

func newCachedAPIFixture(t *testing.T, cacheSvc cache.Service, ttl time.Duration) *apiFixture {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	engine := ticker.NewTracker(time.Minute, nil, nullEvents{}, nullMetrics{}, log)
	collector := usecase.NewTickerCollector(&idleStream{}, stubHistory{}, engine, nil, nullMetrics{}, log,
		usecase.BackfillConfig{Period: 5 * time.Minute, Depth: time.Hour})
	hub := stream.NewHub(4, nullMetrics{}, log)

	h := NewTickersEchoHandler(log, collector, hub, cacheSvc, ttl, "/ws")
	e := echo.New()
	h.RegisterRoutes(e)

	return &apiFixture{e: e, engine: engine}
}

func (f *apiFixture) request(t *testing.T, method, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestTickersEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.engine.Ingest("BTC_ETH", 0.041, 1))
	require.NoError(t, f.engine.Ingest("BTC_XMR", 0.002, 1))

	code, body := f.request(t, http.MethodGet, "/api/tickers")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 200.0, body["status"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, 2.0, data["count"])
	assert.Equal(t, []interface{}{"BTC_ETH", "BTC_XMR"}, data["pairs"])
}

func TestTickersEndpointLimit(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.engine.Ingest("BTC_ETH", 0.041, 1))
	require.NoError(t, f.engine.Ingest("BTC_XMR", 0.002, 1))

	_, body := f.request(t, http.MethodGet, "/api/tickers?limit=1")
	data := body["data"].(map[string]interface{})
	assert.Equal(t, 2.0, data["count"], "count reports all tracked pairs")
	assert.Equal(t, []interface{}{"BTC_ETH"}, data["pairs"])
}

func TestTickerEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.engine.Ingest("BTC_ETH", 0.041, 1))

	code, body := f.request(t, http.MethodGet, "/api/ticker/BTC_ETH")
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "BTC_ETH", data["pair"])
	assert.Equal(t, 0.041, data["last"])
	assert.Contains(t, data["summary"], "BTC_ETH: 0.04100000")
	assert.Len(t, data["horizons"], len(ticker.DefaultHorizons))
}

func TestTickerEndpointUnknownPair(t *testing.T) {
	f := newAPIFixture(t)

	_, body := f.request(t, http.MethodGet, "/api/ticker/NOPE")
	assert.Equal(t, 404.0, body["status"])
}

func TestCandlesEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.engine.IngestBackfill("BTC_ETH",
		[]models.Candle{{High: 2, Low: 1, Open: 1, Close: 2, Volume: 10}}, 300))

	code, body := f.request(t, http.MethodGet, "/api/ticker/BTC_ETH/candles?limit=3")
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "BTC_ETH", data["pair"])
	assert.Len(t, data["candles"], 3)
}

func TestCandlesEndpointRejectsBadLimit(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.engine.Ingest("BTC_ETH", 1, 1))

	_, body := f.request(t, http.MethodGet, "/api/ticker/BTC_ETH/candles?limit=9999")
	assert.Equal(t, 400.0, body["status"])
}

func TestBackfillEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.request(t, http.MethodPost, "/api/ticker/BTC_ETH/backfill")
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "BTC_ETH", data["pair"])
	assert.Equal(t, 1.0, data["imported"])

	s, ok := f.engine.Lookup("BTC_ETH")
	require.True(t, ok)
	assert.Equal(t, 5, s.HistoryLen(), "one 5m source candle expands to five 1m candles")
}

func TestBackfillEndpointRejectsEmptyWindow(t *testing.T) {
	f := newAPIFixture(t)

	_, body := f.request(t, http.MethodPost, "/api/ticker/BTC_ETH/backfill?from=1700000000&to=1600000000")
	assert.Equal(t, 400.0, body["status"])
}

func TestTickerEndpointServedFromCache(t *testing.T) {
	f := newCachedAPIFixture(t, cache.NewMemoryCache(), time.Minute)
	require.NoError(t, f.engine.Ingest("BTC_ETH", 0.041, 1))

	_, body := f.request(t, http.MethodGet, "/api/ticker/BTC_ETH")
	data := body["data"].(map[string]interface{})
	require.Equal(t, 0.041, data["last"])

	require.NoError(t, f.engine.Ingest("BTC_ETH", 0.05, 1))

	_, body = f.request(t, http.MethodGet, "/api/ticker/BTC_ETH")
	data = body["data"].(map[string]interface{})
	assert.Equal(t, 0.041, data["last"], "second hit comes from the response cache")
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.request(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, false, data["connected"])
	assert.Equal(t, 0.0, data["subscribers"])
}
