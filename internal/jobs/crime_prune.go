package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/pkg/logger"
)

// DefaultCrimeRetention is how long resolved crimes stay in the ledger.
const DefaultCrimeRetention = 7 * 24 * time.Hour

// CrimePruner drops resolved crimes. Implemented by every crime ledger.
type CrimePruner interface {
	PruneResolved(ctx context.Context, olderThan time.Time) (int, error)
}

// CrimePruneArgs is a periodic job that drops crimes resolved before the
// retention window. Outstanding crimes are never pruned.
type CrimePruneArgs struct{}

// Kind returns the job kind identifier.
func (CrimePruneArgs) Kind() string { return "crime_prune" }

// InsertOpts keeps a single prune job per hour.
func (CrimePruneArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// CrimePruneWorker prunes the crime ledger.
type CrimePruneWorker struct {
	river.WorkerDefaults[CrimePruneArgs]
	ledger    CrimePruner
	retention time.Duration
	now       func() time.Time
}

// NewCrimePruneWorker creates a prune worker. Non-positive retention falls
// back to the default.
func NewCrimePruneWorker(ledger CrimePruner, retention time.Duration) *CrimePruneWorker {
	if retention <= 0 {
		retention = DefaultCrimeRetention
	}
	return &CrimePruneWorker{ledger: ledger, retention: retention, now: time.Now}
}

// Work drops resolved crimes older than the retention window.
func (w *CrimePruneWorker) Work(ctx context.Context, _ *river.Job[CrimePruneArgs]) error {
	if w == nil || w.ledger == nil {
		return fmt.Errorf("crime prune worker is not initialized")
	}

	cutoff := w.now().UTC().Add(-w.retention)
	pruned, err := w.ledger.PruneResolved(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune crimes resolved before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("crime prune completed",
		zap.Int("pruned", pruned),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
	)
	return nil
}
