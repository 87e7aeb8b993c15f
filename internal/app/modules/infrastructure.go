package modules

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/config"
	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/infrastructure"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/pkg/telemetry"
	"lawwarden.io/warden/internal/pkg/worker"
	"lawwarden.io/warden/internal/repository"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	DB     *infrastructure.DatabaseClients
	// Redis is nil when no Redis address is configured.
	Redis  *redis.Client
	Pools  *worker.Pools
	Store  *repository.Store
	Events *domain.EventDispatcher

	shutdownTracing func(context.Context) error
}

// NewInfrastructure initializes tracing, the database, Redis, and worker pools.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	infra := &Infrastructure{
		Config:          cfg,
		Events:          domain.NewEventDispatcher(),
		shutdownTracing: shutdownTracing,
	}

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	infra.DB = db

	// Dev-mode: create warden tables + River queue tables.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}
	if err := db.VerifySchema(ctx); err != nil {
		infra.Close()
		return nil, err
	}
	infra.Store = repository.NewStore(db.Pool)

	rdb, err := infrastructure.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	infra.Redis = rdb

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		PatrolPoolSize:  cfg.Worker.PatrolPoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools

	return infra, nil
}

// InitRiver initializes the River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic []*river.PeriodicJob) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
	if i.shutdownTracing != nil {
		if err := i.shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
}
