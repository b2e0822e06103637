package ticker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinStream/internal/domain/models"
	applogger "CoinStream/pkg/logger"
)

type stubEvents struct {
	mu      sync.Mutex
	tickers []string // pair labels from EmitTicker
	summary string   // last summary seen
	emitted []string // labels from Emit
	users   []int
}

func (e *stubEvents) EmitTicker(pair, summary string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickers = append(e.tickers, pair)
	e.summary = summary
	return nil
}

func (e *stubEvents) EmitUserCount(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users = append(e.users, n)
	return nil
}

func (e *stubEvents) Emit(event string, fields map[string]interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitted = append(e.emitted, event)
	return nil
}

func (e *stubEvents) labels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.emitted...)
}

type stubMetrics struct {
	mu     sync.Mutex
	ticks  map[string]int
	errs   map[string]int
	lastOp string
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{ticks: make(map[string]int), errs: make(map[string]int)}
}

func (m *stubMetrics) RecordTick(pair string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[pair]++
}

func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *stubMetrics) RecordLastPrice(string, float64) {}

func (m *stubMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOp = op
}

func (m *stubMetrics) RecordEvent(string, int) {}
func (m *stubMetrics) SetSubscriberCount(int)  {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	return log
}

func newTestTracker(t *testing.T) (*Tracker, *stubEvents, *stubMetrics) {
	t.Helper()
	events := &stubEvents{}
	metrics := newStubMetrics()
	tr := NewTracker(time.Minute, nil, events, metrics, testLogger(t))
	return tr, events, metrics
}

func TestTrackerIngestCreatesSeriesAndEmits(t *testing.T) {
	tr, events, metrics := newTestTracker(t)

	require.NoError(t, tr.Ingest("btc_eth", 100, 2))
	require.NoError(t, tr.Ingest(" BTC_ETH ", 110, 1))
	require.NoError(t, tr.Ingest("BTC_XMR", 0.01, 5))

	assert.Equal(t, 2, tr.Count())
	assert.Equal(t, []string{"BTC_ETH", "BTC_XMR"}, tr.Labels())
	assert.Equal(t, 2, metrics.ticks["BTC_ETH"])
	assert.Len(t, events.tickers, 3)

	s, ok := tr.Lookup("btc_eth")
	require.True(t, ok)
	assert.Equal(t, 110.0, s.Last())
}

func TestTrackerIngestRejectsBadInput(t *testing.T) {
	tr, _, metrics := newTestTracker(t)

	err := tr.Ingest("  ", 1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidValue))

	err = tr.Ingest("BTC_ETH", -5, 1)
	require.Error(t, err)
	assert.Equal(t, 2, metrics.errs["ingest"])
}

func TestTrackerLookupDoesNotCreate(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	_, ok := tr.Lookup("BTC_ETH")
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Count())
}

func TestTrackerFlushAllMaterializesEverySeries(t *testing.T) {
	tr, events, metrics := newTestTracker(t)

	require.NoError(t, tr.Ingest("BTC_ETH", 100, 1))
	require.NoError(t, tr.Ingest("BTC_XMR", 50, 1))

	tr.FlushAll()

	for _, pair := range []string{"BTC_ETH", "BTC_XMR"} {
		s, ok := tr.Lookup(pair)
		require.True(t, ok)
		assert.Equal(t, 1, s.HistoryLen())
	}
	assert.Equal(t, "flush_all", metrics.lastOp)
	assert.Equal(t, []string{"ticker.processing_buffers", "message"}, events.labels())
}

func TestTrackerIngestBackfill(t *testing.T) {
	tr, events, _ := newTestTracker(t)

	src := []models.Candle{{High: 2, Low: 1, Open: 1, Close: 2, Volume: 10}}
	require.NoError(t, tr.IngestBackfill("btc_eth", src, 300))

	s, ok := tr.Lookup("BTC_ETH")
	require.True(t, ok)
	assert.Equal(t, 5, s.HistoryLen())
	assert.Len(t, events.tickers, 1)
}

func TestTrackerStartStopIdempotent(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	tr.Start()
	tr.Start()
	tr.Stop()
	tr.Stop()
}

func TestTrackerConcurrentPairsStayIsolated(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = tr.Ingest("BTC_ETH", 100+float64(i%5), 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = tr.Ingest("BTC_XMR", 0.01, 1)
		}
	}()
	wg.Wait()
	tr.FlushAll()

	eth, ok := tr.Lookup("BTC_ETH")
	require.True(t, ok)
	ethCandle := eth.History(1)[0]
	assert.GreaterOrEqual(t, ethCandle.Low, 100.0)
	assert.LessOrEqual(t, ethCandle.High, 104.0)

	xmr, ok := tr.Lookup("BTC_XMR")
	require.True(t, ok)
	xmrCandle := xmr.History(1)[0]
	assert.Equal(t, 0.01, xmrCandle.High)
	assert.Equal(t, 0.01, xmrCandle.Low)
	assert.Equal(t, 500.0, xmrCandle.Volume)
}

func TestTrackerDefaultHorizons(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	assert.Equal(t, DefaultHorizons, tr.Horizons())
}
