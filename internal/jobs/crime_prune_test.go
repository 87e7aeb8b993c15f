package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"lawwarden.io/warden/internal/crime"
	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestCrimePruneArgs(t *testing.T) {
	t.Parallel()

	if got := (CrimePruneArgs{}).Kind(); got != "crime_prune" {
		t.Fatalf("Kind() = %q, want crime_prune", got)
	}
	if got := (CrimePruneArgs{}).InsertOpts().UniqueOpts.ByPeriod; got != time.Hour {
		t.Fatalf("UniqueOpts.ByPeriod = %s, want 1h", got)
	}
}

func TestCrimePruneWorkerWork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := crime.NewMemoryLedger()
	report := func(offender string) domain.CrimeID {
		id, err := ledger.Report(ctx, domain.CrimeRecord{
			AuthorityID: "watch",
			LawID:       "theft",
			Node:        "market",
			Offender:    domain.CharacterID(offender),
		})
		if err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		return id
	}
	old := report("pickpocket")
	recent := report("burglar")
	open := report("smuggler")

	now := time.Now().UTC()
	if err := ledger.MarkResolved(ctx, old, domain.Resolution{Kind: domain.ResolutionFined, ResolvedAt: now.Add(-10 * 24 * time.Hour)}); err != nil {
		t.Fatalf("MarkResolved(old) error = %v", err)
	}
	if err := ledger.MarkResolved(ctx, recent, domain.Resolution{Kind: domain.ResolutionWarned, ResolvedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("MarkResolved(recent) error = %v", err)
	}

	w := NewCrimePruneWorker(ledger, 0)
	if w.retention != DefaultCrimeRetention {
		t.Fatalf("retention = %s, want default", w.retention)
	}
	if err := w.Work(ctx, &river.Job[CrimePruneArgs]{}); err != nil {
		t.Fatalf("Work() error = %v", err)
	}

	if _, err := ledger.Get(ctx, old); err == nil {
		t.Fatal("crime resolved ten days ago should be pruned")
	}
	if _, err := ledger.Get(ctx, recent); err != nil {
		t.Fatalf("recently resolved crime should be kept: %v", err)
	}
	if _, err := ledger.Get(ctx, open); err != nil {
		t.Fatalf("outstanding crime should be kept: %v", err)
	}
}

func TestCrimePruneWorkerWork_Uninitialized(t *testing.T) {
	t.Parallel()

	var w *CrimePruneWorker
	err := w.Work(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("Work() error = %v, want contains %q", err, "not initialized")
	}
}
