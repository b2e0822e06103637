package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CoinStream/internal/usecase"
	"CoinStream/pkg/cache"
	"CoinStream/pkg/config"
	xhttp "CoinStream/pkg/http"
	pkgkafka "CoinStream/pkg/kafka"
	applogger "CoinStream/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	collector   *usecase.TickerCollector
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	producer    *pkgkafka.Producer
	cacheSvc    cache.Service
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.TickerCollector,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		collector:   collector,
		httpHandler: handler,
		producer:    producer,
		cacheSvc:    cacheSvc,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("collector error", applogger.Error(err))
		}
	}()
	a.log.Info("collector started",
		applogger.Strings("backfill_pairs", a.cfg.Poloniex.Backfill.Pairs),
		applogger.Duration("flush_interval", a.cfg.Ticker.FlushInterval),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	// flushes any pending aggregated error logs
	a.log.RemoveCollector()

	a.log.Info("shutdown complete")
	return nil
}
