// Package app is the composition root: it builds the modules, the River
// client, and the HTTP router. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/app/modules"
	"lawwarden.io/warden/internal/config"
	"lawwarden.io/warden/internal/jobs"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Infra   *modules.Infrastructure
	Patrols *modules.PatrolModule
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	patrols, err := modules.NewPatrolModule(ctx, infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init patrol module: %w", err)
	}
	allModules := []modules.Module{
		patrols,
		modules.NewGovernanceModule(infra, patrols),
	}

	var jobDeps jobs.Deps
	for _, mod := range allModules {
		mod.ContributeJobs(&jobDeps)
	}
	workers := river.NewWorkers()
	if err := jobs.Register(workers, jobDeps); err != nil {
		infra.Close()
		return nil, fmt.Errorf("register river workers: %w", err)
	}
	schedule := jobs.DefaultSchedule()
	schedule.Sweep = cfg.River.SweepInterval
	if err := infra.InitRiver(workers, jobs.PeriodicJobs(jobDeps, schedule)); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	server := handlers.NewServer(modules.NewServerDeps(infra, allModules))

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, modules.JWTConfig(cfg)),
		Infra:   infra,
		Patrols: patrols,
		Modules: allModules,
	}, nil
}
