package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/api/middleware"
	"lawwarden.io/warden/internal/config"
	"lawwarden.io/warden/internal/territory"
)

func newTestRouter(t *testing.T, server config.ServerConfig) (http.Handler, func(roles ...string) string) {
	t.Helper()
	cfg := &config.Config{Server: server}
	jwtCfg := middleware.JWTConfig{SigningKey: []byte("router-test-key"), Issuer: "warden"}
	router := newRouter(cfg, handlers.NewServer(handlers.ServerDeps{Graph: territory.NewMap()}), jwtCfg)

	token := func(roles ...string) string {
		tok, _, err := middleware.GenerateToken(jwtCfg, "client-1", "tester", roles)
		require.NoError(t, err)
		return tok
	}
	return router, token
}

func TestRouter_AuthAndRoles(t *testing.T) {
	router, token := newTestRouter(t, config.ServerConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "readiness is public", method: http.MethodGet, path: "/api/v1/health/ready", want: http.StatusOK},
		{name: "api requires token", method: http.MethodGet, path: "/api/v1/routes", want: http.StatusUnauthorized},
		{name: "tokens without roles cannot build", method: http.MethodPost, path: "/api/v1/authorities", token: token(), want: http.StatusForbidden},
		{name: "game server cannot write routes", method: http.MethodPost, path: "/api/v1/routes", token: token(middleware.RoleGameServer), want: http.StatusForbidden},
		{name: "game server cannot edit territory", method: http.MethodDelete, path: "/api/v1/authorities/a-1/territory/gate", token: token(middleware.RoleGameServer), want: http.StatusForbidden},
		{name: "worldbuilder cannot spawn patrols", method: http.MethodPost, path: "/api/v1/routes/r-1/patrols", token: token(middleware.RoleWorldbuilder), want: http.StatusForbidden},
		{name: "worldbuilder cannot report crimes", method: http.MethodPost, path: "/api/v1/crimes", token: token(middleware.RoleWorldbuilder), want: http.StatusForbidden},
		{name: "worldbuilder cannot remove characters", method: http.MethodDelete, path: "/api/v1/characters/c-1", token: token(middleware.RoleWorldbuilder), want: http.StatusForbidden},
		{name: "crime report body is validated", method: http.MethodPost, path: "/api/v1/crimes", token: token(middleware.RoleGameServer), want: http.StatusBadRequest},
		{name: "admin passes the role gate", method: http.MethodPost, path: "/api/v1/crimes", token: token(middleware.RoleAdmin), want: http.StatusBadRequest},
		{name: "outstanding crimes need query", method: http.MethodGet, path: "/api/v1/crimes", token: token(middleware.RoleWorldbuilder), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestBuildCORSConfig(t *testing.T) {
	tests := []struct {
		name        string
		server      config.ServerConfig
		allowAll    bool
		credentials bool
		origins     []string
	}{
		{
			name:        "local tools when nothing is configured",
			server:      config.ServerConfig{AllowCredentials: true},
			credentials: true,
			origins:     defaultOrigins,
		},
		{
			name: "configured world-builder origins",
			server: config.ServerConfig{
				AllowedOrigins:   []string{"https://atlas.lawwarden.io", "", "https://ops.lawwarden.io"},
				AllowCredentials: true,
			},
			credentials: true,
			origins:     []string{"https://atlas.lawwarden.io", "https://ops.lawwarden.io"},
		},
		{
			name: "wildcard dropped without the unsafe flag",
			server: config.ServerConfig{
				AllowedOrigins:   []string{"*", "https://atlas.lawwarden.io"},
				AllowCredentials: true,
			},
			credentials: true,
			origins:     []string{"https://atlas.lawwarden.io"},
		},
		{
			name:    "lone wildcard falls back to local tools",
			server:  config.ServerConfig{AllowedOrigins: []string{"*"}},
			origins: defaultOrigins,
		},
		{
			name: "unsafe wildcard drops credentials",
			server: config.ServerConfig{
				AllowedOrigins:        []string{"*"},
				AllowCredentials:      true,
				UnsafeAllowAllOrigins: true,
			},
			allowAll: true,
		},
		{
			name: "unsafe flag alone keeps the allowlist",
			server: config.ServerConfig{
				AllowedOrigins:        []string{"https://atlas.lawwarden.io"},
				UnsafeAllowAllOrigins: true,
			},
			origins: []string{"https://atlas.lawwarden.io"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildCORSConfig(&config.Config{Server: tt.server})
			assert.Equal(t, tt.allowAll, got.AllowAllOrigins)
			assert.Equal(t, tt.credentials, got.AllowCredentials)
			assert.Equal(t, tt.origins, got.AllowOrigins)
			assert.Contains(t, got.AllowHeaders, middleware.RequestIDHeader)
			assert.Contains(t, got.ExposeHeaders, middleware.RequestIDHeader)
		})
	}
}

func TestRouter_CORSFollowsConfiguredOrigins(t *testing.T) {
	router, _ := newTestRouter(t, config.ServerConfig{
		AllowedOrigins: []string{"https://atlas.lawwarden.io"},
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/routes", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	allowed := preflight("https://atlas.lawwarden.io")
	assert.Equal(t, "https://atlas.lawwarden.io", allowed.Header().Get("Access-Control-Allow-Origin"))

	foreign := preflight("https://elsewhere.example")
	assert.Empty(t, foreign.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusForbidden, foreign.Code)
}
