//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/whitecard/whitecard-backend/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	panic(wire.Build(
		ConfigSet,
		provideOpenDB,
		NewMigrationRunner,
	))
}

func InitializeCardIssuer() (*CardIssuer, error) {
	panic(wire.Build(
		ConfigSet,
		provideToolLogger,
		provideRuntimeDB,
		provideRedisClient,
		provideQRStorage,
		RepositorySet,
		SecuritySet,
		provideListCache,
		provideCardAdminService,
		NewCardIssuer,
	))
}
