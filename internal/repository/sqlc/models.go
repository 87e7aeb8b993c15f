package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type AuditLog struct {
	ID           string             `json:"id"`
	Action       string             `json:"action"`
	ResourceType string             `json:"resource_type"`
	ResourceID   string             `json:"resource_id"`
	Actor        string             `json:"actor"`
	Details      []byte             `json:"details"`
	TraceID      pgtype.Text        `json:"trace_id"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type Law struct {
	ID                  string `json:"id"`
	AuthorityID         string `json:"authority_id"`
	Name                string `json:"name"`
	EnforcementStrategy string `json:"enforcement_strategy"`
}

type LegalAuthority struct {
	ID                     string             `json:"id"`
	Name                   string             `json:"name"`
	PlayersKnowTheirCrimes bool               `json:"players_know_their_crimes"`
	MarshallingNode        pgtype.Text        `json:"marshalling_node"`
	PreparingNode          pgtype.Text        `json:"preparing_node"`
	PrisonNode             pgtype.Text        `json:"prison_node"`
	StowingNode            pgtype.Text        `json:"stowing_node"`
	CreatedAt              pgtype.Timestamptz `json:"created_at"`
	UpdatedAt              pgtype.Timestamptz `json:"updated_at"`
}

type LegalAuthorityCell struct {
	AuthorityID string `json:"authority_id"`
	NodeID      string `json:"node_id"`
}

type Notification struct {
	ID          string             `json:"id"`
	RecipientID string             `json:"recipient_id"`
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	ResourceID  pgtype.Text        `json:"resource_id"`
	Read        bool               `json:"read"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type Patrol struct {
	ID            string             `json:"id"`
	RouteID       string             `json:"route_id"`
	AuthorityID   string             `json:"authority_id"`
	Phase         int16              `json:"phase"`
	LastMajorNode pgtype.Text        `json:"last_major_node"`
	NextMajorNode pgtype.Text        `json:"next_major_node"`
	LeaderID      pgtype.Text        `json:"leader_id"`
	CharacterID   pgtype.Text        `json:"character_id"`
	WaypointIndex int32              `json:"waypoint_index"`
	PhaseTicks    int32              `json:"phase_ticks"`
	StalledTicks  int32              `json:"stalled_ticks"`
	Enforcement   []byte             `json:"enforcement"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

type PatrolMember struct {
	PatrolID    string             `json:"patrol_id"`
	CharacterID string             `json:"character_id"`
	JoinedSeq   int64              `json:"joined_seq"`
	JoinedAt    pgtype.Timestamptz `json:"joined_at"`
}

type PatrolRoute struct {
	ID           string             `json:"id"`
	AuthorityID  string             `json:"authority_id"`
	Name         string             `json:"name"`
	StartTrigger pgtype.Text        `json:"start_trigger"`
	MinMembers   int32              `json:"min_members"`
	MaxActive    int32              `json:"max_active"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type PatrolRouteWaypoint struct {
	RouteID string `json:"route_id"`
	Ordinal int32  `json:"ordinal"`
	NodeID  string `json:"node_id"`
}
