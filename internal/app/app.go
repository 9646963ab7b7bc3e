// Package app assembles the content engine from configuration. The server, the maintenance CLI
// and the seeder share it so they operate on the same stores.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"folio/internal/assets"
	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/metrics"
	"folio/internal/repository/memory"
	"folio/internal/repository/postgres"
	postgresContent "folio/internal/repository/postgres/content"
	serviceContent "folio/internal/service/content"
)

// App holds the wired services and the connections they depend on
type App struct {
	*serviceContent.Services

	Pool    *pgxpool.Pool // nil on the in-memory store
	Tables  *postgres.TableNames
	Metrics *metrics.Metrics

	redis  *redis.Client
	logger *slog.Logger
}

// Open connects to the configured stores and builds the services.
// Without DATABASE_URL the engine runs on the in-memory store, which is only allowed outside prod.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	a := &App{
		Tables:  postgres.NewTableNames(cfg.TablePrefix),
		Metrics: m,
		logger:  logger,
	}

	repos, err := a.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	snapshotCache, err := a.openCache(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := openAssets(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Services = serviceContent.SetupServices(repos, serviceContent.Options{
		Cache:             snapshotCache,
		Assets:            store,
		Metrics:           m,
		SchedulerInterval: cfg.SchedulerInterval,
		Logger:            logger,
	})
	logger.Info("services initialized")
	return a, nil
}

func (a *App) openRepositories(ctx context.Context, cfg *config.Config) (serviceContent.Repositories, error) {
	if cfg.DatabaseURL == "" {
		if cfg.Environment == "prod" {
			return serviceContent.Repositories{}, fmt.Errorf("DATABASE_URL is required in prod")
		}
		a.logger.Warn("DATABASE_URL not set - using in-memory store, content is lost on exit")
		store := memory.NewStore()
		return serviceContent.Repositories{
			Nodes:     memory.NewNodeRepository(store),
			Versions:  memory.NewVersionRepository(store),
			Snapshots: memory.NewSnapshotRepository(store),
			Audit:     memory.NewAuditRepository(store),
			Tx:        memory.NewTransactionManager(store),
		}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return serviceContent.Repositories{}, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.logger.Info("database connected",
		"max_conns", cfg.DBMaxConns,
		"table_prefix", cfg.TablePrefix,
	)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: a.Tables,
		Logger: a.logger,
	}
	return serviceContent.Repositories{
		Nodes:     postgresContent.NewNodeRepository(repoConfig),
		Versions:  postgresContent.NewVersionRepository(repoConfig),
		Snapshots: postgresContent.NewSnapshotRepository(repoConfig),
		Audit:     postgresContent.NewAuditRepository(repoConfig),
		Tx:        postgres.NewTransactionManager(pool, a.logger),
	}, nil
}

func (a *App) openCache(ctx context.Context, cfg *config.Config) (cache.SnapshotCache, error) {
	if cfg.RedisURL == "" {
		a.logger.Info("REDIS_URL not set - snapshot cache disabled")
		return cache.NewSnapshotCache(nil, "", 0), nil
	}
	client, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.logger.Info("redis connected", "ttl", cfg.SnapshotCacheTTL)
	return cache.NewSnapshotCache(client, cfg.TablePrefix, cfg.SnapshotCacheTTL), nil
}

func openAssets(cfg *config.Config, logger *slog.Logger) (assets.Store, error) {
	if cfg.S3.Bucket != "" {
		return assets.NewS3Store(assets.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			BasePath:        cfg.S3.BasePath,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
		}, logger), nil
	}
	store, err := assets.NewLocalStore(cfg.AssetDir)
	if err != nil {
		return nil, fmt.Errorf("open asset dir: %w", err)
	}
	logger.Info("local asset store initialized", "dir", cfg.AssetDir)
	return store, nil
}

// Logger returns the logger the engine was opened with
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Close stops the scheduler and releases connections
func (a *App) Close() {
	if a.Services != nil && a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
