package ticker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"CoinStream/internal/domain/models"
	drepo "CoinStream/internal/domain/repository"
	applogger "CoinStream/pkg/logger"
)

// Tracker owns the pair→Series table and the periodic flush that turns tick
// buffers into candles. It is the single mutation entry point for series
// state: live ticks and backfill imports come in through Ingest and
// IngestBackfill, and every state change goes out as an event.
type Tracker struct {
	mu     sync.RWMutex
	series map[string]*Series

	flushInterval time.Duration
	horizons      []int

	events  drepo.Events
	metrics drepo.Metrics
	log     *applogger.Logger

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewTracker creates a Tracker flushing at the given interval. A nil or empty
// horizons slice falls back to DefaultHorizons.
func NewTracker(flushInterval time.Duration, horizons []int, events drepo.Events, metrics drepo.Metrics, log *applogger.Logger) *Tracker {
	if flushInterval <= 0 {
		flushInterval = 60 * time.Second
	}
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	return &Tracker{
		series:        make(map[string]*Series),
		flushInterval: flushInterval,
		horizons:      horizons,
		events:        events,
		metrics:       metrics,
		log:           log,
	}
}

// Ingest records one live tick for a pair, lazily creating its series, and
// emits a ticker.update carrying the refreshed summary.
func (t *Tracker) Ingest(pair string, price, volume float64) error {
	key, err := normalizePair(pair)
	if err != nil {
		t.metrics.RecordError("ingest")
		return err
	}

	s := t.get(key)
	if err := s.RecordTick(price, volume); err != nil {
		t.metrics.RecordError("ingest")
		return err
	}

	t.metrics.RecordTick(key)
	t.metrics.RecordLastPrice(key, price)
	t.emitUpdate(s)
	return nil
}

// IngestBackfill replaces a pair's history with expanded coarse candles and
// emits a ticker.update.
func (t *Tracker) IngestBackfill(pair string, candles []models.Candle, intervalSeconds int) error {
	key, err := normalizePair(pair)
	if err != nil {
		t.metrics.RecordError("backfill")
		return err
	}

	s := t.get(key)
	if err := s.ImportBackfill(candles, intervalSeconds); err != nil {
		t.metrics.RecordError("backfill")
		return err
	}

	t.log.Info("backfill imported",
		applogger.String("pair", key),
		applogger.Int("candles", s.HistoryLen()),
		applogger.Int("interval_seconds", intervalSeconds),
	)
	t.emitUpdate(s)
	return nil
}

// Start arms the periodic flush. Calling it while already running is a no-op;
// the first flush fires one full interval after start, never immediately.
func (t *Tracker) Start() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})
	go t.loop(t.stopCh)

	t.log.Info("ticker buffer processing started",
		applogger.Duration("interval_ms", t.flushInterval),
	)
}

// Stop cancels future flushes. An in-flight flush is allowed to complete.
// Calling Stop while stopped is a no-op.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)

	t.log.Info("ticker buffer processing stopped")
}

func (t *Tracker) loop(stop <-chan struct{}) {
	tick := time.NewTicker(t.flushInterval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			t.FlushAll()
		}
	}
}

// FlushAll materializes every registered series' buffer into one candle. A
// single bad series never aborts the sweep: its failure is logged and the
// remaining series still flush.
func (t *Tracker) FlushAll() {
	start := time.Now()

	if err := t.events.Emit("ticker.processing_buffers", map[string]interface{}{
		"message": "processing ticker buffers",
		"tickers": t.Count(),
	}); err != nil {
		t.log.Warn("processing notice emit failed", applogger.Error(err))
	}

	t.mu.RLock()
	snapshot := make([]*Series, 0, len(t.series))
	for _, s := range t.series {
		snapshot = append(snapshot, s)
	}
	t.mu.RUnlock()

	for _, s := range snapshot {
		t.materializeOne(s)
	}

	elapsed := time.Since(start)
	t.metrics.RecordLatency("flush_all", elapsed.Seconds())
	if err := t.events.Emit("message", map[string]interface{}{
		"message": fmt.Sprintf("processed %d ticker buffers in %s", len(snapshot), elapsed),
	}); err != nil {
		t.log.Warn("flush notice emit failed", applogger.Error(err))
	}
}

func (t *Tracker) materializeOne(s *Series) {
	defer func() {
		if r := recover(); r != nil {
			t.metrics.RecordError("flush")
			t.log.Error("series flush failed",
				applogger.String("pair", s.Pair()),
				applogger.Any("panic", r),
			)
		}
	}()
	s.Materialize()
}

// Count returns the number of registered pairs.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.series)
}

// Labels returns the sorted list of registered pair labels.
func (t *Tracker) Labels() []string {
	t.mu.RLock()
	labels := make([]string, 0, len(t.series))
	for k := range t.series {
		labels = append(labels, k)
	}
	t.mu.RUnlock()

	sort.Strings(labels)
	return labels
}

// Lookup returns the series for a pair without creating it.
func (t *Tracker) Lookup(pair string) (*Series, bool) {
	key, err := normalizePair(pair)
	if err != nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.series[key]
	return s, ok
}

// Horizons returns the configured change horizons.
func (t *Tracker) Horizons() []int { return t.horizons }

// get returns the series for an already-normalized key, creating it on first
// use. Lookups of existing keys stay on the read lock.
func (t *Tracker) get(key string) *Series {
	t.mu.RLock()
	s, ok := t.series[key]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.series[key]; ok {
		return s
	}
	s = NewSeries(key, t.flushInterval)
	t.series[key] = s
	t.log.Debug("series registered", applogger.String("pair", key))
	return s
}

func (t *Tracker) emitUpdate(s *Series) {
	if err := t.events.EmitTicker(s.Pair(), s.Summary(t.horizons)); err != nil {
		t.log.Warn("ticker update emit failed",
			applogger.String("pair", s.Pair()),
			applogger.Error(err),
		)
	}
}

func normalizePair(pair string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(pair))
	if key == "" {
		return "", fmt.Errorf("empty pair label: %w", models.ErrInvalidValue)
	}
	return key, nil
}
