// Package audit implements the audit log of structural changes.
//
// Audit logs are append-only records of who deleted an authority or route
// and which patrols were spawned and disbanded. Hard-delete is NOT allowed.
//
// Import Path: lawwarden.io/warden/internal/governance/audit
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository/sqlc"
)

// Actions recorded for domain events.
const (
	ActionAuthorityDelete = "authority.delete"
	ActionRouteDelete     = "route.delete"
	ActionPatrolSpawn     = "patrol.spawn"
	ActionPatrolDisband   = "patrol.disband"
)

var eventActions = map[domain.EventType]string{
	domain.EventAuthorityDeleted: ActionAuthorityDelete,
	domain.EventRouteDeleted:     ActionRouteDelete,
	domain.EventPatrolSpawned:    ActionPatrolSpawn,
	domain.EventPatrolDisbanded:  ActionPatrolDisband,
}

// Writer persists audit rows. Implemented by *sqlc.Queries.
type Writer interface {
	InsertAuditLog(ctx context.Context, arg sqlc.InsertAuditLogParams) error
}

// Logger writes audit records to the database.
type Logger struct {
	store Writer
	now   func() time.Time
}

// NewLogger creates a new audit Logger.
func NewLogger(store Writer) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Register subscribes the logger to the audited domain events.
func (l *Logger) Register(d *domain.EventDispatcher) {
	for eventType := range eventActions {
		d.Register(eventType, l.HandleEvent)
	}
}

// HandleEvent records one domain event. The event payload becomes the
// audit details verbatim.
func (l *Logger) HandleEvent(ctx context.Context, event *domain.DomainEvent) error {
	action, ok := eventActions[event.EventType]
	if !ok {
		return nil
	}
	return l.write(ctx, action, event.AggregateType, event.AggregateID, event.CreatedBy, event.Payload)
}

// LogAction records an auditable action.
func (l *Logger) LogAction(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]interface{}) error {
	var raw []byte
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		raw = b
	}
	return l.write(ctx, action, resourceType, resourceID, actor, raw)
}

func (l *Logger) write(ctx context.Context, action, resourceType, resourceID, actor string, details []byte) error {
	if actor == "" {
		actor = "system"
	}
	err := l.store.InsertAuditLog(ctx, sqlc.InsertAuditLogParams{
		ID:           generateAuditID(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Actor:        actor,
		Details:      details,
		TraceID:      traceID(ctx),
		CreatedAt:    pgtype.Timestamptz{Time: l.now().UTC(), Valid: true},
	})
	if err != nil {
		logger.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// traceID links the record to the request or tick span that caused it.
func traceID(ctx context.Context) pgtype.Text {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return pgtype.Text{}
	}
	return pgtype.Text{String: sc.TraceID().String(), Valid: true}
}

func generateAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("audit-%s", id.String())
}
