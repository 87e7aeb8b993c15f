package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequireRole(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)

	run := func(roles interface{}, required ...string) (int, bool) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if roles != nil {
			c.Set("roles", roles)
		}

		RequireRole(required...)(c)
		return w.Code, !c.IsAborted()
	}

	tests := []struct {
		name     string
		roles    interface{}
		required []string
		allowed  bool
	}{
		{"no roles in context", nil, []string{RoleWorldbuilder}, false},
		{"wrong roles type", "admin", []string{RoleWorldbuilder}, false},
		{"matching role", []string{RoleWorldbuilder}, []string{RoleWorldbuilder}, true},
		{"any of several", []string{RoleGameServer}, []string{RoleWorldbuilder, RoleGameServer}, true},
		{"admin passes everything", []string{RoleAdmin}, []string{RoleGameServer}, true},
		{"missing role", []string{RoleGameServer}, []string{RoleWorldbuilder}, false},
		{"empty roles", []string{}, []string{RoleWorldbuilder}, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, allowed := run(tc.roles, tc.required...)
			if allowed != tc.allowed {
				t.Fatalf("allowed = %v, want %v", allowed, tc.allowed)
			}
			if !tc.allowed && code != http.StatusForbidden {
				t.Fatalf("status = %d, want %d", code, http.StatusForbidden)
			}
		})
	}
}
