package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
)

// ReportCrime handles POST /crimes. The game server reports what it
// observed; patrols pick the crime up when they reach the node.
func (s *Server) ReportCrime(c *gin.Context) {
	var req reportCrimeRequest
	if !bindJSON(c, &req) {
		return
	}
	if !s.registry.Exists(req.AuthorityID) {
		_ = c.Error(apperrors.ErrAuthorityNotFoundf(string(req.AuthorityID)))
		return
	}
	if !s.graph.IsValidNode(req.Node) {
		_ = c.Error(apperrors.ErrInvalidNodeReferencef(string(req.Node), "crime node does not exist"))
		return
	}
	if req.LawID != "" {
		law, err := s.registry.Law(req.LawID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if law.AuthorityID != req.AuthorityID {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "law belongs to another authority").
				WithParams(map[string]interface{}{
					"law_id":       string(req.LawID),
					"authority_id": string(law.AuthorityID),
				}))
			return
		}
	}

	rec := domain.CrimeRecord{
		AuthorityID: req.AuthorityID,
		LawID:       req.LawID,
		Node:        req.Node,
		Offender:    req.Offender,
	}
	if req.ObservedAt != nil {
		rec.ObservedAt = req.ObservedAt.UTC()
	}
	id, err := s.ledger.Report(c.Request.Context(), rec)
	if err != nil {
		_ = c.Error(err)
		return
	}
	stored, err := s.ledger.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// ListOutstandingCrimes handles GET /crimes?node=&authority_id=.
func (s *Server) ListOutstandingCrimes(c *gin.Context) {
	node := domain.NodeID(c.Query("node"))
	authority := domain.AuthorityID(c.Query("authority_id"))
	if node == "" || authority == "" {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "node and authority_id are required"))
		return
	}
	crimes, err := s.ledger.OutstandingCrimesAt(c.Request.Context(), node, authority)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if crimes == nil {
		crimes = []domain.CrimeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"items": crimes})
}

// GetCrime handles GET /crimes/:crime_id.
func (s *Server) GetCrime(c *gin.Context) {
	rec, err := s.ledger.Get(c.Request.Context(), domain.CrimeID(c.Param("crime_id")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
