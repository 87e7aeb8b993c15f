package route

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/script"
	"lawwarden.io/warden/internal/territory"
)

func init() {
	_ = logger.Init("error", "json")
}

type authoritySet map[domain.AuthorityID]bool

func (s authoritySet) Exists(id domain.AuthorityID) bool { return s[id] }

type stubHooks struct {
	result bool
	err    error
	seen   script.TriggerContext
}

func (h *stubHooks) Evaluate(_ context.Context, _ domain.HookID, tc script.TriggerContext) (bool, error) {
	h.seen = tc
	return h.result, h.err
}

type memStore struct {
	routes     map[domain.RouteID]*domain.PatrolRoute
	deleted    []domain.RouteID
	failDelete error
}

func (s *memStore) SaveRoute(_ context.Context, r *domain.PatrolRoute) error {
	s.routes[r.ID] = r.Clone()
	return nil
}

func (s *memStore) DeleteRoute(_ context.Context, id domain.RouteID) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	s.deleted = append(s.deleted, id)
	delete(s.routes, id)
	return nil
}

func (s *memStore) LoadRoutes(context.Context) ([]*domain.PatrolRoute, error) {
	out := make([]*domain.PatrolRoute, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r.Clone())
	}
	return out, nil
}

// graph: a - b - c, island d.
func graph(t *testing.T) *territory.Map {
	t.Helper()
	m := territory.NewMap()
	for _, id := range []domain.NodeID{"a", "b", "c", "d"} {
		require.NoError(t, m.AddNode(id, string(id)))
	}
	require.NoError(t, m.Connect("a", "b", true))
	require.NoError(t, m.Connect("b", "c", true))
	return m
}

func hook(id string) *domain.HookID {
	h := domain.HookID(id)
	return &h
}

func TestCatalog_CreateRoute(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		wantCode string
	}{
		{name: "valid", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "b", "c"}}},
		{name: "non-adjacent but reachable waypoints", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "c"}}},
		{name: "single waypoint", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"b"}}},
		{name: "unknown authority", in: Input{AuthorityID: "auth-x", Waypoints: []domain.NodeID{"a"}}, wantCode: apperrors.CodeAuthorityNotFound},
		{name: "no waypoints", in: Input{AuthorityID: "auth-1"}, wantCode: apperrors.CodeInvalidRoute},
		{name: "unknown waypoint", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "zz"}}, wantCode: apperrors.CodeInvalidNodeReference},
		{name: "repeated waypoint", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "a"}}, wantCode: apperrors.CodeInvalidNodeReference},
		{name: "unreachable waypoint", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "d"}}, wantCode: apperrors.CodeInvalidNodeReference},
		{name: "negative limits", in: Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}, MaxActive: -1}, wantCode: apperrors.CodeInvalidRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(graph(t), authoritySet{"auth-1": true}, nil, nil, nil)
			id, err := c.CreateRoute(context.Background(), tt.in)
			if tt.wantCode != "" {
				require.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			r, err := c.GetRoute(id)
			require.NoError(t, err)
			require.Equal(t, tt.in.Waypoints, r.Waypoints)
		})
	}
}

func TestCatalog_CreateRoute_UnregisteredHook(t *testing.T) {
	hooks := script.NewEvaluator()
	require.NoError(t, hooks.Register("known", "return true"))
	c := NewCatalog(graph(t), authoritySet{"auth-1": true}, hooks, nil, nil)

	_, err := c.CreateRoute(context.Background(), Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}, StartTrigger: hook("unknown")})
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRoute))

	_, err = c.CreateRoute(context.Background(), Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}, StartTrigger: hook("known")})
	require.NoError(t, err)
}

func TestCatalog_GetRoute_ReturnsCopy(t *testing.T) {
	c := NewCatalog(graph(t), authoritySet{"auth-1": true}, nil, nil, nil)
	id, err := c.CreateRoute(context.Background(), Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "b"}})
	require.NoError(t, err)

	r, err := c.GetRoute(id)
	require.NoError(t, err)
	r.Waypoints[0] = "c"

	again, err := c.GetRoute(id)
	require.NoError(t, err)
	require.Equal(t, domain.NodeID("a"), again.Waypoints[0])

	_, err = c.GetRoute("route-missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.True(t, apperrors.HasCode(err, apperrors.CodeRouteNotFound))
}

func TestCatalog_EvaluateStartTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("no trigger means manual only", func(t *testing.T) {
		hooks := &stubHooks{result: true}
		c := NewCatalog(graph(t), authoritySet{"auth-1": true}, hooks, nil, nil)
		id, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}})
		require.NoError(t, err)

		fire, err := c.EvaluateStartTrigger(ctx, id, script.TriggerContext{})
		require.NoError(t, err)
		require.False(t, fire)
	})

	t.Run("trigger fires with route context", func(t *testing.T) {
		hooks := &stubHooks{result: true}
		c := NewCatalog(graph(t), authoritySet{"auth-1": true}, hooks, nil, nil)
		id, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}, StartTrigger: hook("h")})
		require.NoError(t, err)

		fire, err := c.EvaluateStartTrigger(ctx, id, script.TriggerContext{ActivePatrols: 2, Tick: 9})
		require.NoError(t, err)
		require.True(t, fire)
		require.Equal(t, id, hooks.seen.RouteID)
		require.Equal(t, domain.AuthorityID("auth-1"), hooks.seen.AuthorityID)
		require.Equal(t, 2, hooks.seen.ActivePatrols)
	})

	t.Run("hook failure is logged and means do not start", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		hooks := &stubHooks{result: true, err: errors.New("script exploded")}
		c := NewCatalog(graph(t), authoritySet{"auth-1": true}, hooks, nil, nil)
		id, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}, StartTrigger: hook("h")})
		require.NoError(t, err)

		fire, err := c.EvaluateStartTrigger(ctx, id, script.TriggerContext{})
		require.NoError(t, err)
		require.False(t, fire)
		require.Equal(t, 1, logs.FilterMessage("Start trigger failed, not starting patrol").Len())
	})

	t.Run("unknown route", func(t *testing.T) {
		c := NewCatalog(graph(t), authoritySet{}, &stubHooks{}, nil, nil)
		_, err := c.EvaluateStartTrigger(ctx, "route-missing", script.TriggerContext{})
		require.True(t, apperrors.HasCode(err, apperrors.CodeRouteNotFound))
	})
}

func TestCatalog_DeleteRoute(t *testing.T) {
	ctx := context.Background()
	store := &memStore{routes: make(map[domain.RouteID]*domain.PatrolRoute)}
	dispatcher := domain.NewEventDispatcher()
	c := NewCatalog(graph(t), authoritySet{"auth-1": true}, nil, store, dispatcher)

	id, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "b"}})
	require.NoError(t, err)

	var seen domain.RouteDeletedPayload
	dispatcher.Register(domain.EventRouteDeleted, func(ctx context.Context, e *domain.DomainEvent) error {
		require.Empty(t, store.deleted, "handlers run before the row is deleted")
		// the route is already out of reach for spawns and sweeps
		_, err := c.GetRoute(id)
		require.True(t, apperrors.HasCode(err, apperrors.CodeRouteNotFound))
		require.Empty(t, c.Routes())
		err = c.DeleteRoute(ctx, id, "tester")
		require.True(t, apperrors.HasCode(err, apperrors.CodeRouteNotFound), "a second delete does not run twice")
		return e.DecodePayload(&seen)
	})

	require.NoError(t, c.DeleteRoute(ctx, id, "tester"))
	require.Equal(t, id, seen.RouteID)
	require.Equal(t, []domain.RouteID{id}, store.deleted)
	_, err = c.GetRoute(id)
	require.Error(t, err)
}

func TestCatalog_DeleteRoute_StoreFailureRestores(t *testing.T) {
	ctx := context.Background()
	store := &memStore{routes: make(map[domain.RouteID]*domain.PatrolRoute)}
	c := NewCatalog(graph(t), authoritySet{"auth-1": true}, nil, store, nil)
	id, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "b"}})
	require.NoError(t, err)

	store.failDelete = errors.New("db down")
	require.Error(t, c.DeleteRoute(ctx, id, "tester"))

	_, err = c.GetRoute(id)
	require.NoError(t, err)
	require.Len(t, c.Routes(), 1)
}

func TestCatalog_HandleAuthorityDeleted(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(graph(t), authoritySet{"auth-1": true, "auth-2": true}, nil, nil, nil)
	_, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a"}})
	require.NoError(t, err)
	keep, err := c.CreateRoute(ctx, Input{AuthorityID: "auth-2", Waypoints: []domain.NodeID{"b"}})
	require.NoError(t, err)

	event, err := domain.NewEvent(domain.EventAuthorityDeleted, domain.AggregateAuthority, "auth-1", "tester",
		domain.AuthorityDeletedPayload{AuthorityID: "auth-1"})
	require.NoError(t, err)
	require.NoError(t, c.HandleAuthorityDeleted(ctx, event))

	routes := c.Routes()
	require.Len(t, routes, 1)
	require.Equal(t, keep, routes[0].ID)
	require.Empty(t, c.RoutesFor("auth-1"))
}

func TestCatalog_Load(t *testing.T) {
	store := &memStore{routes: map[domain.RouteID]*domain.PatrolRoute{
		"route-1": {ID: "route-1", AuthorityID: "auth-1", Waypoints: []domain.NodeID{"a", "b"}},
	}}
	c := NewCatalog(graph(t), authoritySet{"auth-1": true}, nil, store, nil)
	require.NoError(t, c.Load(context.Background()))

	r, err := c.GetRoute("route-1")
	require.NoError(t, err)
	require.Equal(t, []domain.NodeID{"a", "b"}, r.Waypoints)
}
