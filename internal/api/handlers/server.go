// Package handlers implements the Warden admin API consumed by world-building
// tools and game servers.
//
// Handlers report failures with c.Error and leave the response to the
// ErrorHandler middleware. Route registration lives in internal/app.
//
// Import Path: lawwarden.io/warden/internal/api/handlers
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/api/middleware"
	"lawwarden.io/warden/internal/crime"
	"lawwarden.io/warden/internal/jurisdiction"
	"lawwarden.io/warden/internal/patrol"
	"lawwarden.io/warden/internal/repository/sqlc"
	"lawwarden.io/warden/internal/route"
	"lawwarden.io/warden/internal/territory"
)

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NotificationReader lists a recipient's unread crime notices.
// Implemented by *sqlc.Queries.
type NotificationReader interface {
	ListUnreadNotifications(ctx context.Context, recipientID string) ([]sqlc.Notification, error)
}

// Server implements all API handlers.
type Server struct {
	graph    territory.Graph
	registry *jurisdiction.Registry
	catalog  *route.Catalog
	engine   *patrol.Engine
	ledger   crime.Ledger
	inbox    NotificationReader
	checks   map[string]Pinger
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no Wire/Dig.
type ServerDeps struct {
	Graph    territory.Graph
	Registry *jurisdiction.Registry
	Catalog  *route.Catalog
	Engine   *patrol.Engine
	Ledger   crime.Ledger
	// Inbox is optional; without a database the notification endpoint
	// reports the feature as unavailable.
	Inbox NotificationReader
	// Checks are run by /health/ready, keyed by component name.
	Checks map[string]Pinger
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	checks := make(map[string]Pinger, len(deps.Checks))
	for name, p := range deps.Checks {
		if p != nil {
			checks[name] = p
		}
	}
	return &Server{
		graph:    deps.Graph,
		registry: deps.Registry,
		catalog:  deps.Catalog,
		engine:   deps.Engine,
		ledger:   deps.Ledger,
		inbox:    deps.Inbox,
		checks:   checks,
	}
}

// actorFromCtx extracts the authenticated client ID from the request context.
func actorFromCtx(c *gin.Context) string {
	if caller, ok := middleware.CallerFrom(c.Request.Context()); ok && caller.ClientID != "" {
		return caller.ClientID
	}
	return "anonymous"
}
