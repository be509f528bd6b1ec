//go:build wireinject
// +build wireinject

package di

import (
	"KalshiFlow/pkg/config"
	"KalshiFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,
		ProvideRateLimitStore,
		ProvideMemoryLimiter,

		// Kalshi access
		ProvideSigner,
		ProvideMarketSource,

		// Domain services and repositories
		ProvideFlowAnalyzer,
		ProvideSnapshotPublisher,
		ProvideRateLimiter,

		// Use cases
		ProvideMarketRanker,

		// HTTP
		ProvideMarketsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
