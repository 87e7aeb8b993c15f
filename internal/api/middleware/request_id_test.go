package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(RequestID())
	router.POST("/crimes", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusAccepted)
	})

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "game server correlation id", header: "shard-3:tick-9912", keep: true},
		{name: "uuid", header: "0190f2c4-7b1e-7c3a-9d2f-5e6a7b8c9d0e", keep: true},
		{name: "absent", header: "", keep: false},
		{name: "header injection", header: "abc\r\nSet-Cookie: x=1", keep: false},
		{name: "spaces", header: "night watch", keep: false},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLen+1), keep: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/crimes", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusAccepted, w.Code)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "minted id %q", seen)
		})
	}
}

func TestCaller_Holds(t *testing.T) {
	server := Caller{ClientID: "shard-3", Roles: []string{RoleGameServer}}
	assert.True(t, server.Holds(RoleGameServer))
	assert.False(t, server.Holds(RoleWorldbuilder))

	admin := Caller{ClientID: "ops", Roles: []string{RoleAdmin}}
	assert.True(t, admin.Holds(RoleWorldbuilder))
	assert.True(t, admin.Holds(RoleGameServer))

	assert.False(t, Caller{}.Holds(RoleGameServer))
}

func TestCallerFrom(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	assert.False(t, ok)

	ctx := WithCaller(context.Background(), Caller{ClientID: "builder-1", Name: "atlas", Roles: []string{RoleWorldbuilder}})
	caller, ok := CallerFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "builder-1", caller.ClientID)
	assert.Equal(t, "atlas", caller.Name)
}
