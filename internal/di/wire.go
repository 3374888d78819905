//go:build wireinject
// +build wireinject

package di

import (
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCollectionStore,
		ProvideCollectionStoreIface,
		ProvideSaleRecorder,
		ProvidePerformanceStore,

		// Model services
		ProvideRegistry,
		ProvideTracker,

		// Use cases
		ProvideEnsemble,
		ProvideIntelligence,
		ProvideValuationService,
		ProvideMonitor,
		ProvideTriggerPublisher,
		ProvideRetrainingManager,
		ProvideOutcomesHandler,
		ProvideEvaluator,
		ProvideBacktestRunner,

		// Live ingest
		ProvideSaleStream,
		ProvideSalePipeline,

		// Scheduling and HTTP surface
		ProvideScheduler,
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
