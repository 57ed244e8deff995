//go:build wireinject
// +build wireinject

package di

import (
	"PriceCast/pkg/config"
	"PriceCast/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure
	ProvideRedisCache,
	ProvideBlobStore,
	ProvideEventPublisher,
	ProvideMarketstack,
	ProvideBarStore,
	ProvideCacheService,
	ProvideForecastCache,

	// Use cases
	ProvideModelRegistry,
	ProvideForestTrainer,
	ProvideBarsUseCase,
	ProvideTrainer,
	ProvideForecaster,
	ProvideSearchUseCase,
	ProvideTrainingUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideQueue,
		ProvideKafkaConsumer,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the use cases for one-shot CLI commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(coreSet, ProvideServices)
	return nil, nil, nil
}
