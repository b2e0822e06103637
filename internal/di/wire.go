//go:build wireinject
// +build wireinject

package di

import (
	"CoinStream/pkg/config"
	"CoinStream/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,

		// Event fan-out
		ProvideHub,
		ProvideKafkaProducer,
		ProvideEventBus,

		// Engine and exchange client
		ProvideTracker,
		ProvidePoloniexClient,
		ProvideMarketStream,
		ProvideHistorySource,

		// Use cases
		ProvideTickerCollector,

		// HTTP surface
		ProvideCache,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
