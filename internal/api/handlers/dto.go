package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
)

type createAuthorityRequest struct {
	ID                     domain.AuthorityID  `json:"id"`
	Name                   string              `json:"name" binding:"required"`
	PlayersKnowTheirCrimes bool                `json:"players_know_their_crimes"`
	Holding                domain.HoldingNodes `json:"holding"`
	Territory              []domain.NodeID     `json:"territory"`
}

type territoryRequest struct {
	Node domain.NodeID `json:"node" binding:"required"`
}

type createLawRequest struct {
	ID       domain.LawID `json:"id"`
	Name     string       `json:"name" binding:"required"`
	Strategy string       `json:"enforcement_strategy" binding:"required"`
}

type createRouteRequest struct {
	ID           domain.RouteID     `json:"id"`
	AuthorityID  domain.AuthorityID `json:"authority_id" binding:"required"`
	Name         string             `json:"name" binding:"required"`
	Waypoints    []domain.NodeID    `json:"waypoints" binding:"required"`
	StartTrigger *domain.HookID     `json:"start_trigger"`
	MinMembers   int                `json:"min_members"`
	MaxActive    int                `json:"max_active"`
}

type spawnPatrolRequest struct {
	Leader    *domain.CharacterID `json:"leader_id"`
	Character *domain.CharacterID `json:"character_id"`
}

type memberRequest struct {
	CharacterID domain.CharacterID `json:"character_id" binding:"required"`
}

type reportCrimeRequest struct {
	AuthorityID domain.AuthorityID `json:"authority_id" binding:"required"`
	LawID       domain.LawID       `json:"law_id"`
	Node        domain.NodeID      `json:"node" binding:"required"`
	Offender    domain.CharacterID `json:"offender" binding:"required"`
	ObservedAt  *time.Time         `json:"observed_at"`
}

type authorityResponse struct {
	*domain.LegalAuthority
	Laws []domain.Law `json:"laws"`
}

// patrolResponse renders the phase by name; the stored counter is an int.
type patrolResponse struct {
	ID            domain.PatrolID      `json:"id"`
	RouteID       domain.RouteID       `json:"route_id"`
	AuthorityID   domain.AuthorityID   `json:"authority_id"`
	Phase         string               `json:"phase"`
	LastMajorNode *domain.NodeID       `json:"last_major_node,omitempty"`
	NextMajorNode *domain.NodeID       `json:"next_major_node,omitempty"`
	LeaderID      *domain.CharacterID  `json:"leader_id,omitempty"`
	CharacterID   *domain.CharacterID  `json:"character_id,omitempty"`
	WaypointIndex int                  `json:"waypoint_index"`
	Pending       int                  `json:"pending_crimes"`
	Members       []domain.CharacterID `json:"members,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func patrolToAPI(p *domain.Patrol, members []domain.CharacterID) patrolResponse {
	out := patrolResponse{
		ID:            p.ID,
		RouteID:       p.RouteID,
		AuthorityID:   p.AuthorityID,
		Phase:         p.Phase.String(),
		LastMajorNode: p.LastMajorNode,
		NextMajorNode: p.NextMajorNode,
		LeaderID:      p.LeaderID,
		CharacterID:   p.CharacterID,
		WaypointIndex: p.WaypointIndex,
		Members:       members,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Enforcement != nil {
		out.Pending = len(p.Enforcement.Pending)
	}
	return out
}

type notificationResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	ResourceID string    `json:"resource_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// bindJSON decodes the request body and records a validation error on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeValidationFailed, "invalid request body", http.StatusBadRequest))
		return false
	}
	return true
}
