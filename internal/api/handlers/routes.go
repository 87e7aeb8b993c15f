package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/route"
)

// CreateRoute handles POST /routes.
func (s *Server) CreateRoute(c *gin.Context) {
	var req createRouteRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.catalog.CreateRoute(c.Request.Context(), route.Input{
		ID:           req.ID,
		AuthorityID:  req.AuthorityID,
		Name:         req.Name,
		Waypoints:    req.Waypoints,
		StartTrigger: req.StartTrigger,
		MinMembers:   req.MinMembers,
		MaxActive:    req.MaxActive,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	r, err := s.catalog.GetRoute(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListRoutes handles GET /routes, optionally filtered by ?authority_id=.
func (s *Server) ListRoutes(c *gin.Context) {
	var routes []*domain.PatrolRoute
	if authority := c.Query("authority_id"); authority != "" {
		routes = s.catalog.RoutesFor(domain.AuthorityID(authority))
	} else {
		routes = s.catalog.Routes()
	}
	if routes == nil {
		routes = []*domain.PatrolRoute{}
	}
	c.JSON(http.StatusOK, gin.H{"items": routes})
}

// GetRoute handles GET /routes/:route_id.
func (s *Server) GetRoute(c *gin.Context) {
	r, err := s.catalog.GetRoute(domain.RouteID(c.Param("route_id")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"route":          r,
		"active_patrols": s.engine.ActiveCount(r.ID),
	})
}

// DeleteRoute handles DELETE /routes/:route_id. Patrols running the route
// are disbanded.
func (s *Server) DeleteRoute(c *gin.Context) {
	id := domain.RouteID(c.Param("route_id"))
	if err := s.catalog.DeleteRoute(c.Request.Context(), id, actorFromCtx(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
