package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository/sqlc"
	"lawwarden.io/warden/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

type fakeInbox struct {
	rows []sqlc.InsertNotificationParams
	err  error
}

func (f *fakeInbox) InsertNotification(_ context.Context, arg sqlc.InsertNotificationParams) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, arg)
	return nil
}

type recordingSender struct {
	sent []Params
	err  error
}

func (r *recordingSender) Send(_ context.Context, p Params) error {
	r.sent = append(r.sent, p)
	return r.err
}

func validParams() Params {
	return Params{
		RecipientID: "npc-thief",
		Type:        TypeCrimeFined,
		Title:       "Fined by the City Watch",
		Message:     "You were fined for a crime at Market Square.",
		ResourceID:  "crime-1",
	}
}

func TestInboxSender_Send(t *testing.T) {
	inbox := &fakeInbox{}
	s := NewInboxSender(inbox)

	require.NoError(t, s.Send(context.Background(), validParams()))
	require.Len(t, inbox.rows, 1)
	row := inbox.rows[0]
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "npc-thief", row.RecipientID)
	assert.Equal(t, TypeCrimeFined, row.Type)
	assert.True(t, row.ResourceID.Valid)
	assert.Equal(t, "crime-1", row.ResourceID.String)
	assert.True(t, row.CreatedAt.Valid)
}

func TestInboxSender_ValidatesParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{name: "missing recipient", mutate: func(p *Params) { p.RecipientID = "" }},
		{name: "unknown type", mutate: func(p *Params) { p.Type = "CRIME_PARDONED" }},
		{name: "missing title", mutate: func(p *Params) { p.Title = "" }},
		{name: "missing message", mutate: func(p *Params) { p.Message = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbox := &fakeInbox{}
			p := validParams()
			tt.mutate(&p)
			require.Error(t, NewInboxSender(inbox).Send(context.Background(), p))
			assert.Empty(t, inbox.rows)
		})
	}
}

func TestInboxSender_StoreError(t *testing.T) {
	s := NewInboxSender(&fakeInbox{err: errors.New("relation does not exist")})
	err := s.Send(context.Background(), validParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "npc-thief")
}

func TestMultiSender_DeliversToAll(t *testing.T) {
	failing := &recordingSender{err: errors.New("channel closed")}
	ok := &recordingSender{}

	err := MultiSender{failing, ok}.Send(context.Background(), validParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	assert.Len(t, ok.sent, 1, "a failing sender must not block the others")
}

func TestInboxSender_Postgres(t *testing.T) {
	pool := testutil.OpenPGXPool(t, "notification_inbox", sqlc.Schema)
	q := sqlc.New(pool)

	require.NoError(t, NewInboxSender(q).Send(context.Background(), validParams()))

	rows, err := q.ListUnreadNotifications(context.Background(), "npc-thief")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, TypeCrimeFined, rows[0].Type)
	assert.False(t, rows[0].Read)
}
