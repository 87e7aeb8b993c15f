package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
)

// ListCharacterNotifications handles GET /characters/:character_id/notifications.
// Game servers relay the unread crime notices to the player.
func (s *Server) ListCharacterNotifications(c *gin.Context) {
	if s.inbox == nil {
		_ = c.Error(apperrors.Wrap(apperrors.ErrServiceUnavail, "NOTIFICATIONS_UNAVAILABLE",
			"notification inbox requires a database", http.StatusServiceUnavailable))
		return
	}
	character := c.Param("character_id")
	rows, err := s.inbox.ListUnreadNotifications(c.Request.Context(), character)
	if err != nil {
		logger.Error("failed to list notifications", zap.Error(err), zap.String("character_id", character))
		_ = c.Error(err)
		return
	}

	items := make([]notificationResponse, 0, len(rows))
	for _, n := range rows {
		items = append(items, notificationResponse{
			ID:         n.ID,
			Type:       n.Type,
			Title:      n.Title,
			Message:    n.Message,
			ResourceID: n.ResourceID.String,
			CreatedAt:  n.CreatedAt.Time,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
