//go:build wireinject
// +build wireinject

package di

import (
	"CourtArb/pkg/config"
	"CourtArb/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideHTTPClient,

		// Sources
		ProvideESPNClient,
		ProvideScheduleSource,
		ProvideProbabilitySource,
		ProvideMarketSource,

		// Domain services
		ProvideTeamResolver,
		ProvideSignalEngine,
		ProvideReconciler,
		ProvideEventStore,

		// Sinks
		ProvideSignalStore,
		ProvideSnapshotPublisher,
		ProvideHub,
		ProvideSnapshotHooks,

		// Use cases
		ProvideAggregator,

		// Application server
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
