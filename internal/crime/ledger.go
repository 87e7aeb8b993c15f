// Package crime provides the crime ledger: law violations observed within a
// jurisdiction, waiting for a patrol to deal with them.
package crime

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
)

// Ledger is the crime ledger consumed by the patrol engine.
//
// OutstandingCrimesAt returns a consistent snapshot. MarkResolved is an
// atomic claim: of two patrols resolving the same crime exactly one wins and
// the other receives an error wrapping apperrors.ErrAlreadyResolved.
type Ledger interface {
	Report(ctx context.Context, rec domain.CrimeRecord) (domain.CrimeID, error)
	Get(ctx context.Context, id domain.CrimeID) (domain.CrimeRecord, error)
	OutstandingCrimesAt(ctx context.Context, node domain.NodeID, authority domain.AuthorityID) ([]domain.CrimeRecord, error)
	MarkResolved(ctx context.Context, id domain.CrimeID, res domain.Resolution) error
	PruneResolved(ctx context.Context, olderThan time.Time) (int, error)
}

// prepare validates a report and fills its generated fields.
func prepare(rec domain.CrimeRecord) (domain.CrimeRecord, error) {
	switch {
	case rec.AuthorityID == "":
		return rec, apperrors.BadRequest(apperrors.CodeValidationFailed, "crime authority is required")
	case rec.Node == "":
		return rec, apperrors.BadRequest(apperrors.CodeValidationFailed, "crime node is required")
	case strings.TrimSpace(string(rec.Offender)) == "":
		return rec, apperrors.BadRequest(apperrors.CodeValidationFailed, "crime offender is required")
	}
	if rec.ID == "" {
		rec.ID = domain.CrimeID(domain.NewID(domain.PrefixCrime))
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}
	rec.Resolution = nil
	return rec, nil
}

func sortByObserved(recs []domain.CrimeRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].ObservedAt.Equal(recs[j].ObservedAt) {
			return recs[i].ObservedAt.Before(recs[j].ObservedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func errCrimeNotFound(id domain.CrimeID) error {
	return apperrors.NotFound(apperrors.CodeCrimeNotFound, "crime not found").
		WithParams(map[string]interface{}{"crime_id": string(id)})
}

func errAlreadyResolved(id domain.CrimeID) error {
	return apperrors.Wrap(apperrors.ErrAlreadyResolved, apperrors.CodeAlreadyResolved, "crime already resolved", http.StatusConflict).
		WithParams(map[string]interface{}{"crime_id": string(id)})
}
