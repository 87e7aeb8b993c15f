// Package jobs defines River Queue job types for periodic maintenance:
// start-trigger sweeps, crime ledger pruning, and notice cleanup.
//
// Jobs carry no payload; workers read current state when they run, so a
// late or repeated run is harmless.
//
// Import Path: lawwarden.io/warden/internal/jobs
package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// Deps are the collaborators the workers act on. Nil fields leave the
// matching worker unregistered.
type Deps struct {
	Sweeper       Sweeper
	Pruner        CrimePruner
	Notifications NotificationPruner

	CrimeRetention        time.Duration
	NotificationRetention time.Duration
}

// Schedule sets how often each periodic job is enqueued. Zero disables a job.
type Schedule struct {
	Sweep         time.Duration
	CrimePrune    time.Duration
	Notifications time.Duration
}

// DefaultSchedule prunes daily and leaves sweeps to the tick scheduler.
func DefaultSchedule() Schedule {
	return Schedule{
		CrimePrune:    time.Hour,
		Notifications: 24 * time.Hour,
	}
}

// Register adds a worker for every collaborator present in deps.
func Register(workers *river.Workers, deps Deps) error {
	if deps.Sweeper != nil {
		if err := river.AddWorkerSafely(workers, NewStartTriggerSweepWorker(deps.Sweeper)); err != nil {
			return err
		}
	}
	if deps.Pruner != nil {
		if err := river.AddWorkerSafely(workers, NewCrimePruneWorker(deps.Pruner, deps.CrimeRetention)); err != nil {
			return err
		}
	}
	if deps.Notifications != nil {
		if err := river.AddWorkerSafely(workers, NewNotificationCleanupWorker(deps.Notifications, deps.NotificationRetention)); err != nil {
			return err
		}
	}
	return nil
}

// PeriodicJobs returns the periodic jobs for the jobs registered from deps.
func PeriodicJobs(deps Deps, s Schedule) []*river.PeriodicJob {
	var out []*river.PeriodicJob
	if deps.Sweeper != nil && s.Sweep > 0 {
		out = append(out, periodic(s.Sweep, StartTriggerSweepArgs{}, false))
	}
	if deps.Pruner != nil && s.CrimePrune > 0 {
		out = append(out, periodic(s.CrimePrune, CrimePruneArgs{}, true))
	}
	if deps.Notifications != nil && s.Notifications > 0 {
		out = append(out, periodic(s.Notifications, NotificationCleanupArgs{}, true))
	}
	return out
}

func periodic(every time.Duration, args river.JobArgs, runOnStart bool) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(every),
		func() (river.JobArgs, *river.InsertOpts) { return args, nil },
		&river.PeriodicJobOpts{RunOnStart: runOnStart},
	)
}
