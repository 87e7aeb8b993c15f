// Package notification delivers crime notices to offenders.
//
// Notices are written to the inbox table synchronously and, when Redis is
// configured, also published on a channel the game server relays to
// connected players.
//
// Import Path: lawwarden.io/warden/internal/notification
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository/sqlc"
)

// Type constants, one per enforcement outcome.
const (
	TypeCrimeArrested = "CRIME_ARRESTED"
	TypeCrimeFined    = "CRIME_FINED"
	TypeCrimeWarned   = "CRIME_WARNED"
	TypeCrimeIgnored  = "CRIME_IGNORED"
)

var knownTypes = map[string]struct{}{
	TypeCrimeArrested: {},
	TypeCrimeFined:    {},
	TypeCrimeWarned:   {},
	TypeCrimeIgnored:  {},
}

// Params holds the required fields for creating a notification.
type Params struct {
	RecipientID string // Character ID of the offender
	Type        string // One of Type* constants above
	Title       string // Human-readable title
	Message     string // Body text
	ResourceID  string // ID of the related crime
}

// Sender defines the interface for sending notifications.
type Sender interface {
	// Send delivers a notification to a single recipient.
	Send(ctx context.Context, params Params) error
}

// Inbox persists notification rows. Implemented by *sqlc.Queries.
type Inbox interface {
	InsertNotification(ctx context.Context, arg sqlc.InsertNotificationParams) error
}

// InboxSender writes notifications to the database synchronously within
// the caller's context.
type InboxSender struct {
	inbox Inbox
	now   func() time.Time
}

// NewInboxSender creates a new inbox sender.
func NewInboxSender(inbox Inbox) *InboxSender {
	return &InboxSender{inbox: inbox, now: time.Now}
}

// Send stores a single notification to the database.
func (s *InboxSender) Send(ctx context.Context, params Params) error {
	if err := validateParams(params); err != nil {
		return fmt.Errorf("notification params invalid: %w", err)
	}

	row := sqlc.InsertNotificationParams{
		ID:          uuid.NewString(),
		RecipientID: params.RecipientID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		CreatedAt:   pgtype.Timestamptz{Time: s.now().UTC(), Valid: true},
	}
	if params.ResourceID != "" {
		row.ResourceID = pgtype.Text{String: params.ResourceID, Valid: true}
	}
	if err := s.inbox.InsertNotification(ctx, row); err != nil {
		return fmt.Errorf("create notification for %s: %w", params.RecipientID, err)
	}

	logger.Debug("notification sent",
		zap.String("recipient", params.RecipientID),
		zap.String("type", params.Type),
		zap.String("title", params.Title),
	)
	return nil
}

// MultiSender delivers through every sender. A failing sender does not stop
// the others; the failures are joined.
type MultiSender []Sender

// Send delivers params through every sender.
func (m MultiSender) Send(ctx context.Context, params Params) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, params); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// compile-time checks
var (
	_ Sender = (*InboxSender)(nil)
	_ Sender = MultiSender(nil)
)

// --- Helpers ---

func validateParams(p Params) error {
	if p.RecipientID == "" {
		return fmt.Errorf("recipient_id is required")
	}
	if _, ok := knownTypes[p.Type]; !ok {
		return fmt.Errorf("unknown notification type: %s", p.Type)
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
