package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/jurisdiction"
)

// CreateAuthority handles POST /authorities.
func (s *Server) CreateAuthority(c *gin.Context) {
	var req createAuthorityRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.registry.RegisterAuthority(c.Request.Context(), jurisdiction.AuthorityInput{
		ID:                     req.ID,
		Name:                   req.Name,
		Holding:                req.Holding,
		PlayersKnowTheirCrimes: req.PlayersKnowTheirCrimes,
		Territory:              req.Territory,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.writeAuthority(c, http.StatusCreated, id)
}

// ListAuthorities handles GET /authorities.
func (s *Server) ListAuthorities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.registry.Authorities()})
}

// GetAuthority handles GET /authorities/:authority_id.
func (s *Server) GetAuthority(c *gin.Context) {
	s.writeAuthority(c, http.StatusOK, domain.AuthorityID(c.Param("authority_id")))
}

// DeleteAuthority handles DELETE /authorities/:authority_id.
// Its routes and running patrols go with it.
func (s *Server) DeleteAuthority(c *gin.Context) {
	id := domain.AuthorityID(c.Param("authority_id"))
	if err := s.registry.DeleteAuthority(c.Request.Context(), id, actorFromCtx(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateHoldingNodes handles PUT /authorities/:authority_id/holding.
func (s *Server) UpdateHoldingNodes(c *gin.Context) {
	id := domain.AuthorityID(c.Param("authority_id"))
	var holding domain.HoldingNodes
	if !bindJSON(c, &holding) {
		return
	}
	if err := s.registry.UpdateHoldingNodes(c.Request.Context(), id, holding); err != nil {
		_ = c.Error(err)
		return
	}
	s.writeAuthority(c, http.StatusOK, id)
}

// AddTerritory handles POST /authorities/:authority_id/territory.
func (s *Server) AddTerritory(c *gin.Context) {
	id := domain.AuthorityID(c.Param("authority_id"))
	var req territoryRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.registry.AddTerritory(c.Request.Context(), id, req.Node); err != nil {
		_ = c.Error(err)
		return
	}
	s.writeAuthority(c, http.StatusOK, id)
}

// RemoveTerritory handles DELETE /authorities/:authority_id/territory/:node_id.
func (s *Server) RemoveTerritory(c *gin.Context) {
	id := domain.AuthorityID(c.Param("authority_id"))
	node := domain.NodeID(c.Param("node_id"))
	if err := s.registry.RemoveTerritory(c.Request.Context(), id, node); err != nil {
		_ = c.Error(err)
		return
	}
	s.writeAuthority(c, http.StatusOK, id)
}

// CreateLaw handles POST /authorities/:authority_id/laws.
func (s *Server) CreateLaw(c *gin.Context) {
	id := domain.AuthorityID(c.Param("authority_id"))
	var req createLawRequest
	if !bindJSON(c, &req) {
		return
	}
	lawID, err := s.registry.AddLaw(c.Request.Context(), id, domain.Law{
		ID:                  req.ID,
		Name:                req.Name,
		EnforcementStrategy: req.Strategy,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	law, err := s.registry.Law(lawID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, law)
}

// ListLaws handles GET /authorities/:authority_id/laws.
func (s *Server) ListLaws(c *gin.Context) {
	id := domain.AuthorityID(c.Param("authority_id"))
	if _, err := s.registry.Authority(id); err != nil {
		_ = c.Error(err)
		return
	}
	laws := s.registry.LawsFor(id)
	if laws == nil {
		laws = []domain.Law{}
	}
	c.JSON(http.StatusOK, gin.H{"items": laws})
}

func (s *Server) writeAuthority(c *gin.Context, status int, id domain.AuthorityID) {
	a, err := s.registry.Authority(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	laws := s.registry.LawsFor(id)
	if laws == nil {
		laws = []domain.Law{}
	}
	c.JSON(status, authorityResponse{LegalAuthority: a, Laws: laws})
}
