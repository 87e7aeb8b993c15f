// Package route holds the patrol route catalog: immutable route templates
// bound to one legal authority.
package route

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/script"
	"lawwarden.io/warden/internal/territory"
)

// Store persists route templates. Deleting a route cascades to its patrols.
type Store interface {
	SaveRoute(ctx context.Context, r *domain.PatrolRoute) error
	DeleteRoute(ctx context.Context, id domain.RouteID) error
	LoadRoutes(ctx context.Context) ([]*domain.PatrolRoute, error)
}

// Authorities is the part of the jurisdiction registry the catalog needs.
type Authorities interface {
	Exists(id domain.AuthorityID) bool
}

// Hooks evaluates start-trigger programs.
type Hooks interface {
	Evaluate(ctx context.Context, id domain.HookID, tc script.TriggerContext) (bool, error)
}

// hookChecker is implemented by hook runners that can tell whether a program exists.
type hookChecker interface {
	Has(id domain.HookID) bool
}

// Input describes a route template to create.
type Input struct {
	ID           domain.RouteID
	AuthorityID  domain.AuthorityID
	Name         string
	Waypoints    []domain.NodeID
	StartTrigger *domain.HookID
	MinMembers   int
	MaxActive    int
}

// Catalog stores route templates. Templates never change after creation;
// every read hands out a copy.
type Catalog struct {
	mu          sync.RWMutex
	graph       territory.Graph
	authorities Authorities
	hooks       Hooks
	store       Store
	events      domain.Publisher
	routes      map[domain.RouteID]*domain.PatrolRoute
	// deleting hides routes while their patrols are being cancelled.
	deleting map[domain.RouteID]struct{}
}

// NewCatalog creates a catalog. hooks, store, and events may be nil.
func NewCatalog(graph territory.Graph, authorities Authorities, hooks Hooks, store Store, events domain.Publisher) *Catalog {
	return &Catalog{
		graph:       graph,
		authorities: authorities,
		hooks:       hooks,
		store:       store,
		events:      events,
		routes:      make(map[domain.RouteID]*domain.PatrolRoute),
		deleting:    make(map[domain.RouteID]struct{}),
	}
}

// Load replaces in-memory templates with the persisted ones.
func (c *Catalog) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	routes, err := c.store.LoadRoutes(ctx)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = make(map[domain.RouteID]*domain.PatrolRoute, len(routes))
	for _, r := range routes {
		c.routes[r.ID] = r.Clone()
	}
	logger.Info("Route catalog loaded", zap.Int("routes", len(c.routes)))
	return nil
}

// CreateRoute validates and stores a new template.
func (c *Catalog) CreateRoute(ctx context.Context, in Input) (domain.RouteID, error) {
	if !c.authorities.Exists(in.AuthorityID) {
		return "", apperrors.ErrAuthorityNotFoundf(string(in.AuthorityID))
	}
	if len(in.Waypoints) == 0 {
		return "", apperrors.ErrInvalidRoutef("at least one waypoint is required")
	}
	if in.MinMembers < 0 || in.MaxActive < 0 {
		return "", apperrors.ErrInvalidRoutef("member and patrol limits must not be negative")
	}
	for i, wp := range in.Waypoints {
		if !c.graph.IsValidNode(wp) {
			return "", apperrors.ErrInvalidNodeReferencef(string(wp), "waypoint does not exist")
		}
		if i == 0 {
			continue
		}
		prev := in.Waypoints[i-1]
		if prev == wp {
			return "", apperrors.ErrInvalidNodeReferencef(string(wp), "consecutive waypoints must be distinct")
		}
		if _, ok := c.graph.Hops(prev, wp); !ok {
			return "", apperrors.ErrInvalidNodeReferencef(string(wp),
				fmt.Sprintf("waypoint is not reachable from %s", prev))
		}
	}
	if in.StartTrigger != nil {
		if checker, ok := c.hooks.(hookChecker); ok && !checker.Has(*in.StartTrigger) {
			return "", apperrors.ErrInvalidRoutef(fmt.Sprintf("start trigger %s is not registered", *in.StartTrigger))
		}
	}

	id := in.ID
	if id == "" {
		id = domain.RouteID(domain.NewID(domain.PrefixRoute))
	}
	r := &domain.PatrolRoute{
		ID:          id,
		AuthorityID: in.AuthorityID,
		Name:        strings.TrimSpace(in.Name),
		Waypoints:   append([]domain.NodeID(nil), in.Waypoints...),
		MinMembers:  in.MinMembers,
		MaxActive:   in.MaxActive,
		CreatedAt:   time.Now().UTC(),
	}
	if in.StartTrigger != nil {
		hook := *in.StartTrigger
		r.StartTrigger = &hook
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.routes[id]; exists {
		return "", apperrors.Conflict(apperrors.CodeRouteExists, "patrol route already exists").
			WithParams(map[string]interface{}{"route_id": string(id)})
	}
	if c.store != nil {
		if err := c.store.SaveRoute(ctx, r); err != nil {
			return "", fmt.Errorf("save route %s: %w", id, err)
		}
	}
	c.routes[id] = r

	logger.Info("Patrol route created",
		zap.String("route_id", string(id)),
		zap.String("authority_id", string(in.AuthorityID)),
		zap.Int("waypoints", len(r.Waypoints)),
	)
	return id, nil
}

// GetRoute returns a copy of the template.
func (c *Catalog) GetRoute(id domain.RouteID) (*domain.PatrolRoute, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[id]
	if _, hidden := c.deleting[id]; !ok || hidden {
		return nil, apperrors.ErrRouteNotFoundf(string(id))
	}
	return r.Clone(), nil
}

// Routes returns every template ordered by id.
func (c *Catalog) Routes() []*domain.PatrolRoute {
	return c.filter(func(*domain.PatrolRoute) bool { return true })
}

// RoutesFor returns the authority's templates ordered by id.
func (c *Catalog) RoutesFor(authorityID domain.AuthorityID) []*domain.PatrolRoute {
	return c.filter(func(r *domain.PatrolRoute) bool { return r.AuthorityID == authorityID })
}

func (c *Catalog) filter(keep func(*domain.PatrolRoute) bool) []*domain.PatrolRoute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.PatrolRoute, 0, len(c.routes))
	for id, r := range c.routes {
		if _, hidden := c.deleting[id]; hidden {
			continue
		}
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EvaluateStartTrigger reports whether the route's start trigger fires.
// Routes without a trigger only start manually. Hook failures are logged and
// read as "do not start"; only an unknown route is returned as an error.
func (c *Catalog) EvaluateStartTrigger(ctx context.Context, id domain.RouteID, tc script.TriggerContext) (bool, error) {
	r, err := c.GetRoute(id)
	if err != nil {
		return false, err
	}
	if r.StartTrigger == nil || c.hooks == nil {
		return false, nil
	}
	tc.RouteID = r.ID
	tc.AuthorityID = r.AuthorityID

	fire, err := c.hooks.Evaluate(ctx, *r.StartTrigger, tc)
	if err != nil {
		logger.Warn("Start trigger failed, not starting patrol",
			zap.String("route_id", string(id)),
			zap.String("hook_id", string(*r.StartTrigger)),
			zap.Error(err),
		)
		return false, nil
	}
	return fire, nil
}

// DeleteRoute removes a template. ROUTE_DELETED is published first so the
// engine cancels the route's patrols before their rows cascade away; the
// route is hidden from then on so nothing new can spawn on it.
func (c *Catalog) DeleteRoute(ctx context.Context, id domain.RouteID, actor string) error {
	c.mu.Lock()
	r, ok := c.routes[id]
	if _, hidden := c.deleting[id]; !ok || hidden {
		c.mu.Unlock()
		return apperrors.ErrRouteNotFoundf(string(id))
	}
	c.deleting[id] = struct{}{}
	c.mu.Unlock()

	if err := domain.Publish(ctx, c.events, domain.EventRouteDeleted, domain.AggregateRoute, string(id), actor,
		domain.RouteDeletedPayload{RouteID: id, AuthorityID: r.AuthorityID}); err != nil {
		logger.Warn("Route deletion handlers reported errors",
			zap.String("route_id", string(id)),
			zap.Error(err),
		)
	}

	if c.store != nil {
		if err := c.store.DeleteRoute(ctx, id); err != nil {
			c.mu.Lock()
			delete(c.deleting, id)
			c.mu.Unlock()
			return fmt.Errorf("delete route %s: %w", id, err)
		}
	}
	c.mu.Lock()
	delete(c.routes, id)
	delete(c.deleting, id)
	c.mu.Unlock()

	logger.Info("Patrol route deleted", zap.String("route_id", string(id)), zap.String("actor", actor))
	return nil
}

// HandleAuthorityDeleted drops the deleted authority's templates once the
// store cascade has removed their rows.
func (c *Catalog) HandleAuthorityDeleted(_ context.Context, event *domain.DomainEvent) error {
	var payload domain.AuthorityDeletedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.routes {
		if r.AuthorityID == payload.AuthorityID {
			delete(c.routes, id)
			delete(c.deleting, id)
		}
	}
	return nil
}
