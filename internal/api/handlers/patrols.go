package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/patrol"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
)

// SpawnPatrol handles POST /routes/:route_id/patrols. The body is optional.
func (s *Server) SpawnPatrol(c *gin.Context) {
	var req spawnPatrolRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeValidationFailed, "invalid request body", http.StatusBadRequest))
		return
	}
	p, err := s.engine.Spawn(c.Request.Context(), domain.RouteID(c.Param("route_id")), patrol.SpawnOptions{
		Leader:    req.Leader,
		Character: req.Character,
		Trigger:   "api",
		Actor:     actorFromCtx(c),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	members, _ := s.engine.Members(p.ID)
	c.JSON(http.StatusCreated, patrolToAPI(p, members))
}

// ListPatrols handles GET /patrols, optionally filtered by ?route_id= or
// ?authority_id=.
func (s *Server) ListPatrols(c *gin.Context) {
	routeID := domain.RouteID(c.Query("route_id"))
	authorityID := domain.AuthorityID(c.Query("authority_id"))

	items := make([]patrolResponse, 0)
	for _, p := range s.engine.Patrols() {
		if routeID != "" && p.RouteID != routeID {
			continue
		}
		if authorityID != "" && p.AuthorityID != authorityID {
			continue
		}
		items = append(items, patrolToAPI(p, nil))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "tick": s.engine.CurrentTick()})
}

// GetPatrol handles GET /patrols/:patrol_id.
func (s *Server) GetPatrol(c *gin.Context) {
	id := domain.PatrolID(c.Param("patrol_id"))
	p, err := s.engine.Patrol(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	members, err := s.engine.Members(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, patrolToAPI(p, members))
}

// JoinPatrol handles POST /patrols/:patrol_id/members.
func (s *Server) JoinPatrol(c *gin.Context) {
	id := domain.PatrolID(c.Param("patrol_id"))
	var req memberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.engine.Join(c.Request.Context(), id, req.CharacterID); err != nil {
		_ = c.Error(err)
		return
	}
	members, err := s.engine.Members(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// LeavePatrol handles DELETE /patrols/:patrol_id/members/:character_id.
// Leaving is idempotent, including for patrols already disbanded.
func (s *Server) LeavePatrol(c *gin.Context) {
	id := domain.PatrolID(c.Param("patrol_id"))
	character := domain.CharacterID(c.Param("character_id"))
	if err := s.engine.Leave(c.Request.Context(), id, character); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveCharacter handles DELETE /characters/:character_id, called by the
// game server when a character dies or is deleted.
func (s *Server) RemoveCharacter(c *gin.Context) {
	character := domain.CharacterID(c.Param("character_id"))
	if err := s.engine.RemoveCharacter(c.Request.Context(), character); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SweepStartTriggers handles POST /patrols/sweep, running one start-trigger
// sweep outside the periodic schedule.
func (s *Server) SweepStartTriggers(c *gin.Context) {
	spawned, err := s.engine.SweepStartTriggers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spawned": spawned})
}
