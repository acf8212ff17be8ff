package di

import (
	"context"
	"fmt"
	"time"

	"FinVault/internal/domain/repository"
	"FinVault/internal/handler/api"
	internalrepo "FinVault/internal/repository"
	"FinVault/internal/service/alphavantage"
	"FinVault/internal/usecase"
	pkgcache "FinVault/pkg/cache"
	"FinVault/pkg/config"
	xhttp "FinVault/pkg/http"
	applogger "FinVault/pkg/logger"
	"FinVault/pkg/metrics"
	"FinVault/pkg/server"
	pkgsqlite "FinVault/pkg/sqlite"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	return applogger.New(&applogger.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideSQLiteClient opens the database file and replays the schema.
func ProvideSQLiteClient(cfg *config.Config) (*pkgsqlite.Client, error) {
	opts := []pkgsqlite.ClientOption{pkgsqlite.WithPath(cfg.Store.Path)}
	if cfg.Store.BusyTimeout > 0 {
		opts = append(opts, pkgsqlite.WithBusyTimeout(cfg.Store.BusyTimeout))
	}
	client, err := pkgsqlite.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("sqlite client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return client, nil
}

// ProvideStore creates the durable store tier.
func ProvideStore(client *pkgsqlite.Client, l *applogger.Logger) repository.Store {
	store := internalrepo.NewSQLiteStore(client)
	store.SetLogger(l)
	return store
}

// ProvideCache selects the cache backend from config. The default is
// the in-process memory cache.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	memOpts := []pkgcache.MemoryOption{}
	if cfg.Cache.MaxSize > 0 {
		memOpts = append(memOpts, pkgcache.WithMemoryMaxSize(cfg.Cache.MaxSize))
	}
	switch cfg.Cache.Backend {
	case "", "memory":
		return pkgcache.NewMemoryCache(memOpts...), nil
	case "redis":
		return newRedisCache(cfg)
	case "layered":
		rc, err := newRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		return pkgcache.NewLayeredCache(rc, memOpts...), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func newRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
		pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideProvider creates the Alpha Vantage data provider.
func ProvideProvider(cfg *config.Config, l *applogger.Logger) repository.Provider {
	opts := []alphavantage.Option{alphavantage.WithLogger(l)}
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, alphavantage.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.Timeout > 0 {
		opts = append(opts, alphavantage.WithTimeout(cfg.Provider.Timeout))
	}
	if cfg.Provider.RequestsPerMin > 0 {
		opts = append(opts, alphavantage.WithRequestsPerMin(cfg.Provider.RequestsPerMin))
	}
	return alphavantage.New(cfg.Provider.APIKey, opts...)
}

// ProvideCoordinator creates the cache coordinator.
func ProvideCoordinator(
	store repository.Store,
	provider repository.Provider,
	cache pkgcache.Service,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Coordinator {
	opts := []usecase.CoordinatorOption{
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	}
	if cfg.Store.MaxRetries > 0 {
		opts = append(opts, usecase.WithStorageRetry(cfg.Store.MaxRetries, cfg.Store.RetryDelay))
	}
	return usecase.NewCoordinator(store, provider, cache, opts...)
}

// ProvideAnalytics creates the analytics engine. It reads the store
// only; fills happen through the coordinator's own endpoints.
func ProvideAnalytics(store repository.Store, l *applogger.Logger) *usecase.Analytics {
	return usecase.NewAnalytics(store, l)
}

// ProvideHandler creates the HTTP handler surface.
func ProvideHandler(l *applogger.Logger, coord *usecase.Coordinator, analytics *usecase.Analytics, store repository.Store) xhttp.Handler {
	return api.NewDataHandler(l, coord, analytics, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	client *pkgsqlite.Client,
	cache pkgcache.Service,
) *server.App {
	return server.New(cfg, l, handler, client, cache)
}
