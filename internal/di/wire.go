//go:build wireinject
// +build wireinject

package di

import (
	"FinVault/pkg/config"
	"FinVault/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideSQLiteClient,
		ProvideCache,

		// Repositories and external services
		ProvideStore,
		ProvideProvider,

		// Use cases
		ProvideCoordinator,
		ProvideAnalytics,

		// HTTP surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
