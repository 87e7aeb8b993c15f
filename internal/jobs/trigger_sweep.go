package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/pkg/logger"
)

// Sweeper evaluates route start triggers. Implemented by *patrol.Engine.
type Sweeper interface {
	SweepStartTriggers(ctx context.Context) (int, error)
}

// StartTriggerSweepArgs asks the engine to evaluate every route's start
// trigger once. Used when sweeps run on a wall-clock schedule instead of
// every N ticks.
type StartTriggerSweepArgs struct{}

// Kind returns the job kind identifier.
func (StartTriggerSweepArgs) Kind() string { return "start_trigger_sweep" }

// InsertOpts drops a sweep that is still queued when the next one is due.
func (StartTriggerSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByQueue: true,
			ByArgs:  true,
		},
	}
}

// StartTriggerSweepWorker runs a sweep.
type StartTriggerSweepWorker struct {
	river.WorkerDefaults[StartTriggerSweepArgs]
	sweeper Sweeper
}

// NewStartTriggerSweepWorker creates a sweep worker.
func NewStartTriggerSweepWorker(sweeper Sweeper) *StartTriggerSweepWorker {
	return &StartTriggerSweepWorker{sweeper: sweeper}
}

// Work runs one sweep. Spawn failures are logged by the engine; only a
// cancelled context fails the job.
func (w *StartTriggerSweepWorker) Work(ctx context.Context, _ *river.Job[StartTriggerSweepArgs]) error {
	if w == nil || w.sweeper == nil {
		return fmt.Errorf("start trigger sweep worker is not initialized")
	}
	spawned, err := w.sweeper.SweepStartTriggers(ctx)
	if err != nil {
		return fmt.Errorf("sweep start triggers: %w", err)
	}
	if spawned > 0 {
		logger.Info("start trigger sweep spawned patrols", zap.Int("spawned", spawned))
	}
	return nil
}
