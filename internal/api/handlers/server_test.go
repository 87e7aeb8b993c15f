package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawwarden.io/warden/internal/api/middleware"
	"lawwarden.io/warden/internal/crime"
	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/jurisdiction"
	"lawwarden.io/warden/internal/patrol"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository"
	"lawwarden.io/warden/internal/repository/sqlc"
	"lawwarden.io/warden/internal/roster"
	"lawwarden.io/warden/internal/route"
	"lawwarden.io/warden/internal/script"
	"lawwarden.io/warden/internal/territory"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeInbox struct {
	rows []sqlc.Notification
}

func (f *fakeInbox) ListUnreadNotifications(_ context.Context, recipient string) ([]sqlc.Notification, error) {
	var out []sqlc.Notification
	for _, r := range f.rows {
		if r.RecipientID == recipient {
			out = append(out, r)
		}
	}
	return out, nil
}

type apiHarness struct {
	router   *gin.Engine
	registry *jurisdiction.Registry
	catalog  *route.Catalog
	engine   *patrol.Engine
	ledger   *crime.MemoryLedger
}

// newAPI builds a server over in-memory components. The map is a short
// street: gate - market - docks, with the jail off the market.
func newAPI(t *testing.T, deps ServerDeps) *apiHarness {
	t.Helper()
	graph := territory.NewMap()
	for _, n := range []domain.NodeID{"gate", "market", "docks", "jail"} {
		require.NoError(t, graph.AddNode(n, string(n)))
	}
	require.NoError(t, graph.Connect("gate", "market", true))
	require.NoError(t, graph.Connect("market", "docks", true))
	require.NoError(t, graph.Connect("market", "jail", true))

	store := repository.NewMemoryStore()
	events := domain.NewEventDispatcher()
	hooks := script.NewEvaluator()
	require.NoError(t, hooks.Register("always", "return true"))

	h := &apiHarness{ledger: crime.NewMemoryLedger()}
	h.registry = jurisdiction.NewRegistry(graph, store, events)
	h.catalog = route.NewCatalog(graph, h.registry, hooks, store, events)
	h.engine = patrol.New(patrol.DefaultConfig(), patrol.Deps{
		Graph:    graph,
		Registry: h.registry,
		Catalog:  h.catalog,
		Roster:   roster.New(store),
		Ledger:   h.ledger,
		Store:    store,
		Events:   events,
	})
	h.engine.Register(events)
	events.Register(domain.EventAuthorityDeleted, h.catalog.HandleAuthorityDeleted)

	deps.Graph = graph
	deps.Registry = h.registry
	deps.Catalog = h.catalog
	deps.Engine = h.engine
	deps.Ledger = h.ledger
	s := NewServer(deps)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler())
	r.GET("/health/live", s.GetLiveness)
	r.GET("/health/ready", s.GetReadiness)
	r.POST("/authorities", s.CreateAuthority)
	r.GET("/authorities", s.ListAuthorities)
	r.GET("/authorities/:authority_id", s.GetAuthority)
	r.DELETE("/authorities/:authority_id", s.DeleteAuthority)
	r.PUT("/authorities/:authority_id/holding", s.UpdateHoldingNodes)
	r.POST("/authorities/:authority_id/territory", s.AddTerritory)
	r.DELETE("/authorities/:authority_id/territory/:node_id", s.RemoveTerritory)
	r.POST("/authorities/:authority_id/laws", s.CreateLaw)
	r.GET("/authorities/:authority_id/laws", s.ListLaws)
	r.POST("/routes", s.CreateRoute)
	r.GET("/routes", s.ListRoutes)
	r.GET("/routes/:route_id", s.GetRoute)
	r.DELETE("/routes/:route_id", s.DeleteRoute)
	r.POST("/routes/:route_id/patrols", s.SpawnPatrol)
	r.GET("/patrols", s.ListPatrols)
	r.POST("/patrols/sweep", s.SweepStartTriggers)
	r.GET("/patrols/:patrol_id", s.GetPatrol)
	r.POST("/patrols/:patrol_id/members", s.JoinPatrol)
	r.DELETE("/patrols/:patrol_id/members/:character_id", s.LeavePatrol)
	r.DELETE("/characters/:character_id", s.RemoveCharacter)
	r.GET("/characters/:character_id/notifications", s.ListCharacterNotifications)
	r.POST("/crimes", s.ReportCrime)
	r.GET("/crimes", s.ListOutstandingCrimes)
	r.GET("/crimes/:crime_id", s.GetCrime)
	h.router = r
	return h
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Code string `json:"code"`
	}](t, w).Code
}

// seedWatch registers the city watch with a prison and a market round.
func (h *apiHarness) seedWatch(t *testing.T) {
	t.Helper()
	w := h.do(t, http.MethodPost, "/authorities", map[string]any{
		"id":        "watch",
		"name":      "City Watch",
		"territory": []string{"gate", "market", "docks"},
		"holding":   map[string]string{"marshalling": "gate", "prison": "jail"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do(t, http.MethodPost, "/routes", map[string]any{
		"id":           "round",
		"authority_id": "watch",
		"name":         "Market Round",
		"waypoints":    []string{"gate", "market", "docks"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	t.Run("ready when every check answers", func(t *testing.T) {
		h := newAPI(t, ServerDeps{Checks: map[string]Pinger{"database": fakePinger{}, "redis": fakePinger{}}})
		w := h.do(t, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok","redis":"ok"}}`, w.Body.String())
	})

	t.Run("degraded when a check fails", func(t *testing.T) {
		h := newAPI(t, ServerDeps{Checks: map[string]Pinger{"database": fakePinger{err: errors.New("down")}}})
		w := h.do(t, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"error"`)
	})

	t.Run("liveness", func(t *testing.T) {
		h := newAPI(t, ServerDeps{})
		w := h.do(t, http.MethodGet, "/health/live", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthorityEndpoints(t *testing.T) {
	h := newAPI(t, ServerDeps{})

	w := h.do(t, http.MethodPost, "/authorities", map[string]any{
		"id":        "watch",
		"name":      "City Watch",
		"territory": []string{"gate", "market"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[authorityResponse](t, w)
	assert.Equal(t, domain.AuthorityID("watch"), created.ID)
	assert.Empty(t, created.Laws)

	t.Run("duplicate id conflicts", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/authorities", map[string]any{"id": "watch", "name": "Again"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperrors.CodeAuthorityExists, errorCode(t, w))
	})

	t.Run("missing name is a validation error", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/authorities", map[string]any{"id": "nameless"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, w))
	})

	t.Run("unknown territory node", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/authorities", map[string]any{"name": "Ghosts", "territory": []string{"crypt"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeInvalidNodeReference, errorCode(t, w))
	})

	t.Run("territory add and remove", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/authorities/watch/territory", map[string]any{"node": "docks"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, h.registry.IsWithinJurisdiction("watch", "docks"))

		w = h.do(t, http.MethodDelete, "/authorities/watch/territory/docks", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.False(t, h.registry.IsWithinJurisdiction("watch", "docks"))
	})

	t.Run("holding nodes", func(t *testing.T) {
		w := h.do(t, http.MethodPut, "/authorities/watch/holding", map[string]any{"prison": "jail"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		prison, err := h.registry.ResolveHoldingNode("watch", domain.HoldingPrison)
		require.NoError(t, err)
		assert.Equal(t, domain.NodeID("jail"), prison)
	})

	t.Run("laws", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/authorities/watch/laws", map[string]any{
			"id": "theft", "name": "Theft", "enforcement_strategy": "Arrest",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		law := decode[domain.Law](t, w)
		assert.Equal(t, "arrest", law.EnforcementStrategy)

		w = h.do(t, http.MethodGet, "/authorities/watch/laws", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Items []domain.Law `json:"items"`
		}](t, w)
		require.Len(t, list.Items, 1)

		w = h.do(t, http.MethodGet, "/authorities/nobody/laws", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list and get", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/authorities", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"watch"`)

		w = h.do(t, http.MethodGet, "/authorities/watch", nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[authorityResponse](t, w)
		assert.Len(t, got.Laws, 1)

		w = h.do(t, http.MethodGet, "/authorities/nobody", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.CodeAuthorityNotFound, errorCode(t, w))
	})
}

func TestDeleteAuthority_CascadesToRoutesAndPatrols(t *testing.T) {
	h := newAPI(t, ServerDeps{})
	h.seedWatch(t)

	w := h.do(t, http.MethodPost, "/routes/round/patrols", map[string]any{"leader_id": "sergeant"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(t, http.MethodDelete, "/authorities/watch", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assert.False(t, h.registry.Exists("watch"))
	_, err := h.catalog.GetRoute("round")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRouteNotFound))
	assert.Empty(t, h.engine.Patrols())

	w = h.do(t, http.MethodDelete, "/authorities/watch", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteEndpoints(t *testing.T) {
	h := newAPI(t, ServerDeps{})
	h.seedWatch(t)

	t.Run("unknown authority", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/routes", map[string]any{
			"authority_id": "nobody", "name": "Lost", "waypoints": []string{"gate"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.CodeAuthorityNotFound, errorCode(t, w))
	})

	t.Run("unknown waypoint", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/routes", map[string]any{
			"authority_id": "watch", "name": "Lost", "waypoints": []string{"gate", "crypt"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeInvalidNodeReference, errorCode(t, w))
	})

	t.Run("list filtered by authority", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/routes?authority_id=watch", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Items []domain.PatrolRoute `json:"items"`
		}](t, w)
		require.Len(t, list.Items, 1)
		assert.Equal(t, domain.RouteID("round"), list.Items[0].ID)

		w = h.do(t, http.MethodGet, "/routes?authority_id=nobody", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[]}`, w.Body.String())
	})

	t.Run("get reports active patrols", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/routes/round/patrols", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = h.do(t, http.MethodGet, "/routes/round", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"active_patrols":1`)
	})

	t.Run("delete disbands patrols", func(t *testing.T) {
		w := h.do(t, http.MethodDelete, "/routes/round", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		assert.Zero(t, h.engine.ActiveCount("round"))

		w = h.do(t, http.MethodGet, "/routes/round", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPatrolEndpoints(t *testing.T) {
	h := newAPI(t, ServerDeps{})
	h.seedWatch(t)

	w := h.do(t, http.MethodPost, "/routes/round/patrols", map[string]any{"leader_id": "sergeant"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	spawned := decode[patrolResponse](t, w)
	assert.Equal(t, "FORMING", spawned.Phase)
	assert.Equal(t, []domain.CharacterID{"sergeant"}, spawned.Members)
	require.NotNil(t, spawned.LeaderID)
	path := "/patrols/" + string(spawned.ID)

	t.Run("leader already enrolled elsewhere", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/routes/round/patrols", map[string]any{"leader_id": "sergeant"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperrors.CodeAlreadyInPatrol, errorCode(t, w))
	})

	t.Run("join", func(t *testing.T) {
		w := h.do(t, http.MethodPost, path+"/members", map[string]any{"character_id": "constable"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"members":["sergeant","constable"]}`, w.Body.String())

		w = h.do(t, http.MethodPost, path+"/members", map[string]any{"character_id": "constable"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"members":["sergeant","constable"]}`, w.Body.String())
	})

	t.Run("leader leaves and the longest serving member leads", func(t *testing.T) {
		w := h.do(t, http.MethodDelete, path+"/members/sergeant", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = h.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[patrolResponse](t, w)
		require.NotNil(t, got.LeaderID)
		assert.Equal(t, domain.CharacterID("constable"), *got.LeaderID)
	})

	t.Run("list", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/patrols?route_id=round", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Items []patrolResponse `json:"items"`
		}](t, w)
		require.Len(t, list.Items, 1)

		w = h.do(t, http.MethodGet, "/patrols?authority_id=nobody", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"items":[]`)
	})

	t.Run("removing the last character disbands the patrol", func(t *testing.T) {
		w := h.do(t, http.MethodDelete, "/characters/constable", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = h.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.CodePatrolNotFound, errorCode(t, w))

		w = h.do(t, http.MethodDelete, path+"/members/constable", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/routes/nowhere/patrols", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.CodeRouteNotFound, errorCode(t, w))
	})
}

func TestSweepStartTriggers(t *testing.T) {
	h := newAPI(t, ServerDeps{})
	h.seedWatch(t)
	w := h.do(t, http.MethodPost, "/routes", map[string]any{
		"id": "night", "authority_id": "watch", "name": "Night Round",
		"waypoints": []string{"gate", "market"}, "start_trigger": "always",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/patrols/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"spawned":1}`, w.Body.String())
	assert.Equal(t, 1, h.engine.ActiveCount("night"))
}

func TestCrimeEndpoints(t *testing.T) {
	h := newAPI(t, ServerDeps{})
	h.seedWatch(t)
	w := h.do(t, http.MethodPost, "/authorities/watch/laws", map[string]any{
		"id": "theft", "name": "Theft", "enforcement_strategy": "arrest",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(t, http.MethodPost, "/crimes", map[string]any{
		"authority_id": "watch", "law_id": "theft", "node": "market", "offender": "pickpocket",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[domain.CrimeRecord](t, w)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.ObservedAt.IsZero())
	assert.Nil(t, rec.Resolution)

	t.Run("get", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/crimes/"+string(rec.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = h.do(t, http.MethodGet, "/crimes/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.CodeCrimeNotFound, errorCode(t, w))
	})

	t.Run("outstanding at node", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/crimes?node=market&authority_id=watch", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Items []domain.CrimeRecord `json:"items"`
		}](t, w)
		require.Len(t, list.Items, 1)
		assert.Equal(t, rec.ID, list.Items[0].ID)

		w = h.do(t, http.MethodGet, "/crimes?node=docks&authority_id=watch", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[]}`, w.Body.String())

		w = h.do(t, http.MethodGet, "/crimes?node=market", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	tests := []struct {
		name string
		body map[string]any
		code int
		want string
	}{
		{"unknown authority", map[string]any{"authority_id": "nobody", "node": "market", "offender": "x"}, http.StatusNotFound, apperrors.CodeAuthorityNotFound},
		{"unknown node", map[string]any{"authority_id": "watch", "node": "crypt", "offender": "x"}, http.StatusBadRequest, apperrors.CodeInvalidNodeReference},
		{"unknown law", map[string]any{"authority_id": "watch", "law_id": "treason", "node": "market", "offender": "x"}, http.StatusNotFound, apperrors.CodeLawNotFound},
		{"missing offender", map[string]any{"authority_id": "watch", "node": "market"}, http.StatusBadRequest, apperrors.CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/crimes", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Equal(t, tt.want, errorCode(t, w))
		})
	}

	t.Run("law of another authority", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/authorities", map[string]any{"id": "guild", "name": "Merchant Guild", "territory": []string{"market"}})
		require.Equal(t, http.StatusCreated, w.Code)
		w = h.do(t, http.MethodPost, "/crimes", map[string]any{
			"authority_id": "guild", "law_id": "theft", "node": "market", "offender": "x",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, w))
	})
}

func TestListCharacterNotifications(t *testing.T) {
	t.Run("without inbox", func(t *testing.T) {
		h := newAPI(t, ServerDeps{})
		w := h.do(t, http.MethodGet, "/characters/pickpocket/notifications", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("lists unread notices", func(t *testing.T) {
		inbox := &fakeInbox{rows: []sqlc.Notification{
			{ID: "n1", RecipientID: "pickpocket", Type: "CRIME_FINED", Title: "Fined", Message: "You were fined.",
				ResourceID: pgtype.Text{String: "crime-1", Valid: true}},
			{ID: "n2", RecipientID: "someone-else", Type: "CRIME_WARNED", Title: "Warned"},
		}}
		h := newAPI(t, ServerDeps{Inbox: inbox})
		w := h.do(t, http.MethodGet, "/characters/pickpocket/notifications", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Items []notificationResponse `json:"items"`
		}](t, w)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "crime-1", list.Items[0].ResourceID)
	})
}
