package crime

import (
	"context"
	"sync"
	"time"

	"lawwarden.io/warden/internal/domain"
)

// MemoryLedger is an in-process ledger used in development and tests.
type MemoryLedger struct {
	mu     sync.Mutex
	crimes map[domain.CrimeID]*domain.CrimeRecord
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{crimes: make(map[domain.CrimeID]*domain.CrimeRecord)}
}

func (l *MemoryLedger) Report(_ context.Context, rec domain.CrimeRecord) (domain.CrimeID, error) {
	rec, err := prepare(rec)
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.crimes[rec.ID] = &rec
	return rec.ID, nil
}

func (l *MemoryLedger) Get(_ context.Context, id domain.CrimeID) (domain.CrimeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.crimes[id]
	if !ok {
		return domain.CrimeRecord{}, errCrimeNotFound(id)
	}
	return rec.Clone(), nil
}

func (l *MemoryLedger) OutstandingCrimesAt(_ context.Context, node domain.NodeID, authority domain.AuthorityID) ([]domain.CrimeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.CrimeRecord
	for _, rec := range l.crimes {
		if rec.Node == node && rec.AuthorityID == authority && !rec.Resolved() {
			out = append(out, rec.Clone())
		}
	}
	sortByObserved(out)
	return out, nil
}

func (l *MemoryLedger) MarkResolved(_ context.Context, id domain.CrimeID, res domain.Resolution) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.crimes[id]
	if !ok {
		return errCrimeNotFound(id)
	}
	if rec.Resolved() {
		return errAlreadyResolved(id)
	}
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = time.Now().UTC()
	}
	rec.Resolution = &res
	return nil
}

func (l *MemoryLedger) PruneResolved(_ context.Context, olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for id, rec := range l.crimes {
		if rec.Resolved() && rec.Resolution.ResolvedAt.Before(olderThan) {
			delete(l.crimes, id)
			pruned++
		}
	}
	return pruned, nil
}
