package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository/sqlc"
	"lawwarden.io/warden/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

type recordingWriter struct {
	rows []sqlc.InsertAuditLogParams
	err  error
}

func (w *recordingWriter) InsertAuditLog(_ context.Context, arg sqlc.InsertAuditLogParams) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, arg)
	return nil
}

func TestLogger_RecordsDomainEvents(t *testing.T) {
	w := &recordingWriter{}
	l := NewLogger(w)
	d := domain.NewEventDispatcher()
	l.Register(d)

	ctx := context.Background()
	deleted, err := domain.NewEvent(domain.EventRouteDeleted, domain.AggregateRoute, "night-round", "builder-1",
		domain.RouteDeletedPayload{RouteID: "night-round", AuthorityID: "watch"})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(ctx, deleted))

	resolved, err := domain.NewEvent(domain.EventCrimeResolved, domain.AggregateCrime, "crime-1", "", domain.CrimeResolvedPayload{})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(ctx, resolved))

	require.Len(t, w.rows, 1, "only structural and lifecycle events are audited")
	row := w.rows[0]
	assert.Equal(t, ActionRouteDelete, row.Action)
	assert.Equal(t, domain.AggregateRoute, row.ResourceType)
	assert.Equal(t, "night-round", row.ResourceID)
	assert.Equal(t, "builder-1", row.Actor)
	assert.True(t, strings.HasPrefix(row.ID, "audit-"))
	assert.True(t, row.CreatedAt.Valid)
	assert.False(t, row.TraceID.Valid)

	var details domain.RouteDeletedPayload
	require.NoError(t, json.Unmarshal(row.Details, &details))
	assert.Equal(t, domain.AuthorityID("watch"), details.AuthorityID)
}

func TestLogger_LogActionCarriesTraceID(t *testing.T) {
	w := &recordingWriter{}
	l := NewLogger(w)

	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	require.NoError(t, l.LogAction(ctx, ActionPatrolSpawn, domain.AggregatePatrol, "patrol-1", "", map[string]interface{}{"trigger": "manual"}))
	require.Len(t, w.rows, 1)
	assert.Equal(t, "system", w.rows[0].Actor)
	assert.Equal(t, pgtype.Text{String: traceID.String(), Valid: true}, w.rows[0].TraceID)
	assert.JSONEq(t, `{"trigger":"manual"}`, string(w.rows[0].Details))
}

func TestLogger_WriteErrorIsReturned(t *testing.T) {
	l := NewLogger(&recordingWriter{err: errors.New("disk full")})
	err := l.LogAction(context.Background(), ActionAuthorityDelete, domain.AggregateAuthority, "watch", "builder-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLogger_Postgres(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "audit_logger", sqlc.Schema)
	q := sqlc.New(pool)
	l := NewLogger(q)

	ctx := context.Background()
	event, err := domain.NewEvent(domain.EventAuthorityDeleted, domain.AggregateAuthority, "watch", "builder-1",
		domain.AuthorityDeletedPayload{AuthorityID: "watch", Name: "City Watch"})
	require.NoError(t, err)
	require.NoError(t, l.HandleEvent(ctx, event))

	rows, err := q.ListAuditLogsByResource(ctx, sqlc.ListAuditLogsByResourceParams{
		ResourceType: domain.AggregateAuthority,
		ResourceID:   "watch",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ActionAuthorityDelete, rows[0].Action)
	assert.JSONEq(t, `{"authority_id":"watch","name":"City Watch"}`, string(rows[0].Details))
}
