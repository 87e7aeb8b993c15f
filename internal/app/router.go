package app

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/api/middleware"
	"lawwarden.io/warden/internal/config"
)

// defaultOrigins are the local world-building tool origins allowed when
// none are configured.
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Tracing(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))

	v1 := router.Group("/api/v1")

	// Health checks stay public.
	v1.GET("/health/live", server.GetLiveness)
	v1.GET("/health/ready", server.GetReadiness)

	api := v1.Group("", middleware.JWTAuth(jwtCfg))
	registerRoutes(api, server, middleware.MustOpenAPIValidator("/api/v1"))
	return router
}

// registerRoutes mounts the authenticated API. Reads are open to every
// authenticated client; world structure is written by world-builders and
// runtime state by game servers. Role checks run before contract validation.
func registerRoutes(api *gin.RouterGroup, s *handlers.Server, validate gin.HandlerFunc) {
	read := api.Group("", validate)
	build := api.Group("", middleware.RequireRole(middleware.RoleWorldbuilder), validate)
	play := api.Group("", middleware.RequireRole(middleware.RoleGameServer), validate)

	read.GET("/authorities", s.ListAuthorities)
	build.POST("/authorities", s.CreateAuthority)
	read.GET("/authorities/:authority_id", s.GetAuthority)
	build.DELETE("/authorities/:authority_id", s.DeleteAuthority)
	build.PUT("/authorities/:authority_id/holding", s.UpdateHoldingNodes)
	build.POST("/authorities/:authority_id/territory", s.AddTerritory)
	build.DELETE("/authorities/:authority_id/territory/:node_id", s.RemoveTerritory)
	read.GET("/authorities/:authority_id/laws", s.ListLaws)
	build.POST("/authorities/:authority_id/laws", s.CreateLaw)

	read.GET("/routes", s.ListRoutes)
	build.POST("/routes", s.CreateRoute)
	read.GET("/routes/:route_id", s.GetRoute)
	build.DELETE("/routes/:route_id", s.DeleteRoute)
	play.POST("/routes/:route_id/patrols", s.SpawnPatrol)

	read.GET("/patrols", s.ListPatrols)
	play.POST("/patrols/sweep", s.SweepStartTriggers)
	read.GET("/patrols/:patrol_id", s.GetPatrol)
	play.POST("/patrols/:patrol_id/members", s.JoinPatrol)
	play.DELETE("/patrols/:patrol_id/members/:character_id", s.LeavePatrol)

	play.DELETE("/characters/:character_id", s.RemoveCharacter)
	play.GET("/characters/:character_id/notifications", s.ListCharacterNotifications)

	read.GET("/crimes", s.ListOutstandingCrimes)
	play.POST("/crimes", s.ReportCrime)
	read.GET("/crimes/:crime_id", s.GetCrime)
}

// buildCORSConfig allows the configured origins. A "*" origin is honoured
// only with UnsafeAllowAllOrigins, and then without credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins && slices.Contains(cfg.Server.AllowedOrigins, "*") {
		out.AllowAllOrigins = true
		out.AllowCredentials = false
		return out
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultOrigins...)
	}
	out.AllowOrigins = origins
	return out
}
