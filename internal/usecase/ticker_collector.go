package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinStream/internal/domain/models"
	drepo "CoinStream/internal/domain/repository"
	mid "CoinStream/internal/middleware"
	"CoinStream/internal/ticker"
	applogger "CoinStream/pkg/logger"
)

// BackfillConfig names the pairs to seed with coarse REST candles at startup.
type BackfillConfig struct {
	Pairs  []string
	Period time.Duration // REST candle period, a multiple of the flush interval
	Depth  time.Duration // how far back to fetch
}

// TickerCollector wires the exchange client to the aggregation engine: it
// seeds the tracker from the REST ticker table, backfills configured pairs,
// then consumes the live push stream.
type TickerCollector struct {
	stream   drepo.MarketStream
	history  drepo.HistorySource
	engine   *ticker.Tracker
	pipe     *mid.TickPipeline
	metrics  drepo.Metrics
	log      *applogger.Logger
	backfill BackfillConfig
}

// NewTickerCollector creates a new collector.
func NewTickerCollector(
	stream drepo.MarketStream,
	history drepo.HistorySource,
	engine *ticker.Tracker,
	pipe *mid.TickPipeline,
	metrics drepo.Metrics,
	log *applogger.Logger,
	backfill BackfillConfig,
) *TickerCollector {
	return &TickerCollector{
		stream:   stream,
		history:  history,
		engine:   engine,
		pipe:     pipe,
		metrics:  metrics,
		log:      log,
		backfill: backfill,
	}
}

// IsConnected returns true if the market stream is connected.
func (c *TickerCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start seeds and backfills the engine, starts the flush loop, and begins
// consuming the push stream.
func (c *TickerCollector) Start(ctx context.Context) error {
	if err := c.seed(ctx); err != nil {
		return err
	}
	c.runBackfill(ctx)
	c.engine.Start()

	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}

	go c.consume(ctx)
	return nil
}

// seed initializes one series per non-frozen pair from the REST ticker table.
func (c *TickerCollector) seed(ctx context.Context) error {
	snapshots, err := c.history.FetchTickers(ctx)
	if err != nil {
		return err
	}
	seeded := 0
	for _, snap := range snapshots {
		if snap.Frozen {
			continue
		}
		if err := c.engine.Ingest(snap.Pair, snap.Last, 0); err != nil {
			c.log.Warn("collector: seed pair",
				applogger.String("pair", snap.Pair),
				applogger.Error(err),
			)
			continue
		}
		seeded++
	}
	c.log.Info("collector: seeded ticker table", applogger.Int("pairs", seeded))
	return nil
}

// runBackfill imports coarse REST candles for the configured pairs. Failures
// are logged and skipped; live aggregation does not depend on history.
func (c *TickerCollector) runBackfill(ctx context.Context) {
	if len(c.backfill.Pairs) == 0 || c.backfill.Period <= 0 || c.backfill.Depth <= 0 {
		return
	}
	now := time.Now()
	from := now.Add(-c.backfill.Depth)

	for _, pair := range c.backfill.Pairs {
		if _, err := c.BackfillPair(ctx, pair, from, now); err != nil {
			c.log.Warn("collector: backfill",
				applogger.String("pair", pair),
				applogger.Error(err),
			)
		}
	}
}

// BackfillPair fetches coarse REST candles for one pair over [from, to) and
// replaces the pair's history with their expansion. Returns the number of
// source candles imported.
func (c *TickerCollector) BackfillPair(ctx context.Context, pair string, from, to time.Time) (int, error) {
	if c.backfill.Period <= 0 {
		return 0, fmt.Errorf("backfill period not configured")
	}
	if !to.After(from) {
		return 0, fmt.Errorf("empty backfill window [%s, %s)", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	period := int(c.backfill.Period / time.Second)

	candles, err := c.history.FetchChartData(ctx, pair, period, from, to)
	if err != nil {
		c.metrics.RecordError("backfill")
		return 0, fmt.Errorf("backfill fetch %s: %w", pair, err)
	}
	if err := c.engine.IngestBackfill(pair, candles, period); err != nil {
		c.metrics.RecordError("backfill")
		return 0, fmt.Errorf("backfill import %s: %w", pair, err)
	}

	c.log.Info("collector: backfilled pair",
		applogger.String("pair", pair),
		applogger.Int("candles", len(candles)),
	)
	return len(candles), nil
}

func (c *TickerCollector) consume(ctx context.Context) {
	tickCh, errCh := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("collector: stream error, reconnecting", applogger.Error(err))
				if err := c.stream.Reconnect(ctx); err != nil {
					c.log.Error("collector: reconnect failed", applogger.Error(err))
					return
				}
				// fresh channels after reconnect
				tickCh, errCh = c.stream.Read(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.engine.Ingest(t.Pair, t.Price, t.Volume)
			}
		}
	}
}

// Engine returns the aggregation engine for read access by handlers.
func (c *TickerCollector) Engine() *ticker.Tracker { return c.engine }

// Shutdown stops the pipeline, flush loop, and stream.
func (c *TickerCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	c.engine.Stop()
	return c.stream.Close()
}

// EngineProc adapts the tracker to the pipeline's downstream interface.
type EngineProc struct {
	Engine *ticker.Tracker
}

// Process ingests one tick into the engine.
func (p *EngineProc) Process(_ context.Context, t *models.Tick) error {
	return p.Engine.Ingest(t.Pair, t.Price, t.Volume)
}
