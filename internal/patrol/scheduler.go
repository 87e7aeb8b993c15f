package patrol

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/pkg/worker"
)

const stopTimeout = 30 * time.Second

// Scheduler drives the engine's discrete ticks from a single coordinating
// loop running on the general worker pool.
type Scheduler struct {
	engine   *Engine
	pools    *worker.Pools
	interval time.Duration
	// sweepEvery runs the start-trigger sweep every n ticks; 0 disables it.
	sweepEvery int64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a scheduler. sweepEvery of 0 leaves start triggers to
// the periodic job.
func NewScheduler(engine *Engine, pools *worker.Pools, interval time.Duration, sweepEvery int64) *Scheduler {
	return &Scheduler{
		engine:     engine,
		pools:      pools,
		interval:   interval,
		sweepEvery: sweepEvery,
	}
}

// Start launches the tick loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.interval <= 0 {
		return errors.New("tick interval must be positive")
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	if err := s.pools.SubmitDetached("general", func(ctx context.Context) {
		defer close(done)
		s.loop(ctx, stop)
	}); err != nil {
		return err
	}
	s.stop, s.done, s.running = stop, done, true
	logger.Info("Patrol scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop ends the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.running = false
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
		logger.Info("Patrol scheduler stopped")
	case <-time.After(stopTimeout):
		logger.Warn("Patrol scheduler did not stop in time", zap.Duration("timeout", stopTimeout))
	}
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := s.engine.Tick(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Patrol tick failed", zap.Error(err))
			}
			if s.sweepEvery > 0 && s.engine.CurrentTick()%s.sweepEvery == 0 {
				if _, err := s.engine.SweepStartTriggers(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("Start trigger sweep failed", zap.Error(err))
				}
			}
		}
	}
}
