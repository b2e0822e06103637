package di

import (
	"fmt"
	"time"

	"CoinStream/internal/domain/repository"
	"CoinStream/internal/event"
	"CoinStream/internal/handler/api"
	mid "CoinStream/internal/middleware"
	internalrepo "CoinStream/internal/repository"
	"CoinStream/internal/service/poloniex"
	"CoinStream/internal/service/ratelimit"
	"CoinStream/internal/stream"
	"CoinStream/internal/ticker"
	"CoinStream/internal/usecase"
	"CoinStream/pkg/cache"
	"CoinStream/pkg/config"
	xhttp "CoinStream/pkg/http"
	pkgkafka "CoinStream/pkg/kafka"
	applogger "CoinStream/pkg/logger"
	"CoinStream/pkg/metrics"
	"CoinStream/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHub creates the WebSocket fan-out hub.
func ProvideHub(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *stream.Hub {
	return stream.NewHub(cfg.Stream.SendBuffer, m, l)
}

// ProvideKafkaProducer creates a Kafka producer when mirroring is enabled.
// Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventBus creates the event bus, attaches it to the hub, and hooks
// the error-log collector so aggregated errors surface as error envelopes.
func ProvideEventBus(
	cfg *config.Config,
	hub *stream.Hub,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	l *applogger.Logger,
) repository.Events {
	opts := []event.BusOption{}
	if producer != nil {
		opts = append(opts, event.WithMirror(internalrepo.NewKafkaMirror(producer, cfg.Kafka.Topic)))
	}

	bus := event.NewBus(hub, m, l, opts...)
	hub.SetEvents(bus)

	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Publisher:      internalrepo.NewEventLogPublisher(bus),
	})
	return bus
}

// ProvideTracker creates the aggregation engine.
func ProvideTracker(cfg *config.Config, events repository.Events, m repository.Metrics, l *applogger.Logger) *ticker.Tracker {
	return ticker.NewTracker(cfg.Ticker.FlushInterval, cfg.Ticker.Horizons, events, m, l)
}

// ProvidePoloniexClient creates the exchange client with a bounded REST gate.
func ProvidePoloniexClient(cfg *config.Config, events repository.Events, l *applogger.Logger) *poloniex.Client {
	gate := ratelimit.NewGate(cfg.Poloniex.Pull.MaxConcurrent, cfg.Poloniex.Pull.RequestsPerSec)
	return poloniex.New(
		cfg.Poloniex.RestURL,
		cfg.Poloniex.WebSocketURL,
		events,
		l,
		poloniex.WithReconnectDelay(cfg.Poloniex.ReconnectDelay),
		poloniex.WithPingInterval(cfg.Poloniex.PingInterval),
		poloniex.WithGate(gate),
	)
}

// ProvideMarketStream exposes the client's push side.
func ProvideMarketStream(c *poloniex.Client) repository.MarketStream { return c }

// ProvideHistorySource exposes the client's REST side.
func ProvideHistorySource(c *poloniex.Client) repository.HistorySource { return c }

// ProvideTickerCollector creates the collector with a validation pipeline
// between the stream and the engine.
func ProvideTickerCollector(
	ms repository.MarketStream,
	hs repository.HistorySource,
	engine *ticker.Tracker,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.TickerCollector {
	pipe := mid.NewTickPipeline(&usecase.EngineProc{Engine: engine}, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	backfill := usecase.BackfillConfig{
		Pairs:  cfg.Poloniex.Backfill.Pairs,
		Period: cfg.Poloniex.Backfill.Period,
		Depth:  cfg.Poloniex.Backfill.Depth,
	}
	return usecase.NewTickerCollector(ms, hs, engine, pipe, m, l, backfill)
}

// ProvideCache creates the response cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
	default:
		return cache.NewMemoryCache(), nil
	}
}

// ProvideHandler creates the HTTP handler surface.
func ProvideHandler(
	l *applogger.Logger,
	collector *usecase.TickerCollector,
	hub *stream.Hub,
	cacheSvc cache.Service,
	cfg *config.Config,
) xhttp.Handler {
	return api.NewTickersEchoHandler(l, collector, hub, cacheSvc, cfg.Cache.TTL, cfg.Stream.Path)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickerCollector,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, l, collector, handler, producer, cacheSvc)
}
