package repository

import (
	"context"
	"time"

	"CoinStream/internal/domain/models"
)

// MarketStream is the push side of the exchange wire client: a persistent
// connection delivering live ticker updates.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// HistorySource is the pull side of the exchange wire client: bulk REST
// endpoints for the current ticker table and coarse historical candles.
type HistorySource interface {
	FetchTickers(ctx context.Context) (map[string]models.TickerSnapshot, error)
	FetchChartData(ctx context.Context, pair string, periodSeconds int, from, to time.Time) ([]models.Candle, error)
}

// Events is the emission surface every component publishes through. EmitTicker
// produces the ticker.update envelope; Emit wraps arbitrary fields under the
// given label, defaulting to unknown.
type Events interface {
	EmitTicker(pair, summary string) error
	EmitUserCount(n int) error
	Emit(event string, fields map[string]interface{}) error
}

type Metrics interface {
	RecordTick(pair string)
	RecordError(kind string)
	RecordLastPrice(pair string, price float64)
	RecordLatency(op string, seconds float64)
	RecordEvent(event string, bytes int)
	SetSubscriberCount(n int)
}
