package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType defines the type of domain event.
type EventType string

const (
	// Structural deletions. Handlers cancel dependent in-flight patrols.
	// AUTHORITY_DELETING runs before the store cascade, AUTHORITY_DELETED only
	// once the rows are gone.
	EventAuthorityDeleting EventType = "AUTHORITY_DELETING"
	EventAuthorityDeleted  EventType = "AUTHORITY_DELETED"
	EventRouteDeleted      EventType = "ROUTE_DELETED"
	EventCharacterRemoved  EventType = "CHARACTER_REMOVED"

	// Patrol lifecycle
	EventPatrolSpawned   EventType = "PATROL_SPAWNED"
	EventPatrolDisbanded EventType = "PATROL_DISBANDED"

	// Enforcement
	EventCrimeResolved EventType = "CRIME_RESOLVED"
)

// Aggregate types.
const (
	AggregateAuthority = "legal_authority"
	AggregateRoute     = "patrol_route"
	AggregatePatrol    = "patrol"
	AggregateCharacter = "character"
	AggregateCrime     = "crime"
)

// DomainEvent represents an immutable domain event.
type DomainEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Payload       []byte    `json:"payload"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEvent builds an event with a JSON-encoded payload.
func NewEvent(eventType EventType, aggregateType, aggregateID, actor string, payload any) (*DomainEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &DomainEvent{
		EventID:       NewID(PrefixEvent),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		CreatedBy:     actor,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// DecodePayload unmarshals the event payload into v.
func (e *DomainEvent) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// AuthorityDeletedPayload is the payload for AUTHORITY_DELETING and AUTHORITY_DELETED.
type AuthorityDeletedPayload struct {
	AuthorityID AuthorityID `json:"authority_id"`
	Name        string      `json:"name"`
}

// RouteDeletedPayload is the payload for ROUTE_DELETED.
type RouteDeletedPayload struct {
	RouteID     RouteID     `json:"route_id"`
	AuthorityID AuthorityID `json:"authority_id"`
}

// CharacterRemovedPayload is the payload for CHARACTER_REMOVED, published
// when a character dies or is deleted from the world.
type CharacterRemovedPayload struct {
	CharacterID CharacterID `json:"character_id"`
	Reason      string      `json:"reason,omitempty"`
}

// PatrolSpawnedPayload is the payload for PATROL_SPAWNED.
type PatrolSpawnedPayload struct {
	PatrolID    PatrolID     `json:"patrol_id"`
	RouteID     RouteID      `json:"route_id"`
	AuthorityID AuthorityID  `json:"authority_id"`
	LeaderID    *CharacterID `json:"leader_id,omitempty"`
	Trigger     string       `json:"trigger"` // manual, start_trigger
}

// DisbandReason explains why a patrol was disbanded.
type DisbandReason string

const (
	DisbandCompleted        DisbandReason = "completed"
	DisbandFormingTimeout   DisbandReason = "forming_timeout"
	DisbandEmptyRoster      DisbandReason = "empty_roster"
	DisbandStuck            DisbandReason = "stuck"
	DisbandAuthorityDeleted DisbandReason = "authority_deleted"
	DisbandRouteDeleted     DisbandReason = "route_deleted"
	DisbandRouteMissing     DisbandReason = "route_missing"
)

// PatrolDisbandedPayload is the payload for PATROL_DISBANDED.
type PatrolDisbandedPayload struct {
	PatrolID      PatrolID      `json:"patrol_id"`
	RouteID       RouteID       `json:"route_id"`
	AuthorityID   AuthorityID   `json:"authority_id"`
	Reason        DisbandReason `json:"reason"`
	LastPhase     PatrolPhase   `json:"last_phase"`
	ReleasedCount int           `json:"released_count"`
}

// CrimeResolvedPayload is the payload for CRIME_RESOLVED.
type CrimeResolvedPayload struct {
	CrimeID     CrimeID        `json:"crime_id"`
	AuthorityID AuthorityID    `json:"authority_id"`
	PatrolID    PatrolID       `json:"patrol_id"`
	Offender    CharacterID    `json:"offender"`
	Node        NodeID         `json:"node"`
	Kind        ResolutionKind `json:"kind"`
	HoldingNode *NodeID        `json:"holding_node,omitempty"`
	Fallback    bool           `json:"fallback,omitempty"`
}
