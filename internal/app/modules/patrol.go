package modules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/crime"
	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/jobs"
	"lawwarden.io/warden/internal/jurisdiction"
	"lawwarden.io/warden/internal/patrol"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/roster"
	"lawwarden.io/warden/internal/route"
	"lawwarden.io/warden/internal/script"
	"lawwarden.io/warden/internal/territory"
	"lawwarden.io/warden/internal/world"
)

// PatrolModule owns the territory map, the registry and catalog built on it,
// the crime ledger, and the patrol engine with its tick scheduler.
type PatrolModule struct {
	Graph     *territory.Map
	Hooks     *script.Evaluator
	Registry  *jurisdiction.Registry
	Catalog   *route.Catalog
	Ledger    crime.Ledger
	Engine    *patrol.Engine
	Scheduler *patrol.Scheduler
}

// NewPatrolModule loads the world, restores persisted state, and wires the engine.
func NewPatrolModule(ctx context.Context, infra *Infrastructure) (*PatrolModule, error) {
	cfg := infra.Config
	m := &PatrolModule{
		Graph: territory.NewMap(),
		Hooks: script.NewEvaluator(
			script.WithTimeout(cfg.Engine.HookTimeout),
			script.WithInstructionBudget(cfg.Engine.HookInstructionBudget),
		),
	}

	var file *world.File
	if cfg.World.File != "" {
		f, err := world.Load(cfg.World.File)
		if err != nil {
			return nil, err
		}
		if err := f.ApplyMap(m.Graph); err != nil {
			return nil, fmt.Errorf("build territory map: %w", err)
		}
		if err := f.RegisterHooks(m.Hooks); err != nil {
			return nil, err
		}
		file = f
	}
	if cfg.World.HooksDir != "" {
		if _, err := m.Hooks.LoadDir(cfg.World.HooksDir); err != nil {
			return nil, err
		}
	}
	logger.Info("Territory map loaded", zap.Int("nodes", m.Graph.Len()))

	m.Registry = jurisdiction.NewRegistry(m.Graph, infra.Store, infra.Events)
	if err := m.Registry.Load(ctx); err != nil {
		return nil, err
	}
	m.Catalog = route.NewCatalog(m.Graph, m.Registry, m.Hooks, infra.Store, infra.Events)
	if err := m.Catalog.Load(ctx); err != nil {
		return nil, err
	}
	if file != nil {
		if _, err := file.Apply(ctx, m.Registry, m.Catalog); err != nil {
			return nil, fmt.Errorf("apply world file: %w", err)
		}
	}

	if infra.Redis != nil {
		m.Ledger = crime.NewRedisLedger(infra.Redis, cfg.Redis.KeyPrefix)
	} else {
		logger.Warn("Redis not configured, crime ledger is held in process memory")
		m.Ledger = crime.NewMemoryLedger()
	}

	policy, err := cfg.Engine.Policy()
	if err != nil {
		return nil, err
	}
	m.Engine = patrol.New(patrol.Config{
		FormingTimeoutTicks: cfg.Engine.FormingTimeoutTicks,
		TicksPerHop:         cfg.Engine.TicksPerHop,
		StuckTickLimit:      cfg.Engine.StuckTickLimit,
		Policy:              policy,
	}, patrol.Deps{
		Graph:    m.Graph,
		Registry: m.Registry,
		Catalog:  m.Catalog,
		Roster:   roster.New(infra.Store),
		Ledger:   m.Ledger,
		Store:    infra.Store,
		Events:   infra.Events,
		Pool:     infra.Pools.Patrol,
	})
	m.Engine.Register(infra.Events)
	infra.Events.Register(domain.EventAuthorityDeleted, m.Catalog.HandleAuthorityDeleted)

	if _, err := m.Engine.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore patrols: %w", err)
	}

	// The periodic job takes over the sweep when it is scheduled.
	sweepEvery := cfg.Engine.SweepEveryTicks
	if cfg.River.SweepInterval > 0 {
		sweepEvery = 0
	}
	m.Scheduler = patrol.NewScheduler(m.Engine, infra.Pools, cfg.Engine.TickInterval, sweepEvery)
	return m, nil
}

func (m *PatrolModule) Name() string { return "patrol" }

func (m *PatrolModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Graph = m.Graph
	deps.Registry = m.Registry
	deps.Catalog = m.Catalog
	deps.Engine = m.Engine
	deps.Ledger = m.Ledger
	if p, ok := m.Ledger.(handlers.Pinger); ok {
		deps.Checks["redis"] = p
	}
}

func (m *PatrolModule) ContributeJobs(deps *jobs.Deps) {
	deps.Sweeper = m.Engine
	deps.Pruner = m.Ledger
}

func (m *PatrolModule) Start(context.Context) error {
	return m.Scheduler.Start()
}

func (m *PatrolModule) Shutdown(context.Context) error {
	m.Scheduler.Stop()
	return nil
}
