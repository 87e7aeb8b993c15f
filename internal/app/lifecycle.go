package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/pkg/logger"
)

// Start starts all background services: River workers and the patrol tick loop.
func (a *Application) Start(ctx context.Context) error {
	if a.Infra != nil && a.Infra.DB != nil && a.Infra.DB.RiverClient != nil {
		if err := a.Infra.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}
	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Start(ctx); err != nil {
			return fmt.Errorf("start module %s: %w", mod.Name(), err)
		}
	}
	return nil
}

// Shutdown gracefully shuts down all application components. Modules stop
// first so the last tick finishes before its stores close.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(shutdownCtx); err != nil {
			logger.Warn("module shutdown returned error",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	if a.Infra != nil && a.Infra.DB != nil && a.Infra.DB.RiverClient != nil {
		if err := a.Infra.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("River client stopped")
	}

	a.Infra.Close()
}
