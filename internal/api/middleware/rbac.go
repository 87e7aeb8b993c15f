package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Roles carried in API tokens.
const (
	// RoleAdmin may do everything.
	RoleAdmin = "admin"
	// RoleWorldbuilder edits authorities, laws, and routes.
	RoleWorldbuilder = "worldbuilder"
	// RoleGameServer drives runtime state: spawning patrols, membership,
	// crime reports, and character removal.
	RoleGameServer = "game_server"
)

// RequireRole returns middleware that lets the request through when the
// authenticated client holds any of the roles. RoleAdmin always passes.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("roles")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": "FORBIDDEN", "message": "no roles in context",
			})
			return
		}
		held, ok := v.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": "FORBIDDEN", "message": "invalid roles type",
			})
			return
		}

		if slices.Contains(held, RoleAdmin) {
			c.Next()
			return
		}
		for _, r := range roles {
			if slices.Contains(held, r) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code": "FORBIDDEN", "message": "insufficient role",
		})
	}
}
