// Package patrol implements the patrol engine: the state machine that spawns
// patrols from route templates, walks them through their waypoints, enforces
// the law at each stop, and retires them.
//
// Phases advance on discrete ticks. Each patrol has its own lock and is
// advanced by at most one worker at a time; the lock is never held across
// ticks, so every step re-validates the world before acting.
package patrol

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/crime"
	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/enforcement"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/pkg/worker"
	"lawwarden.io/warden/internal/roster"
	"lawwarden.io/warden/internal/script"
	"lawwarden.io/warden/internal/territory"
)

const tracerName = "lawwarden.io/warden/internal/patrol"

// Registry is the read side of the jurisdiction registry.
type Registry interface {
	Exists(id domain.AuthorityID) bool
	IsWithinJurisdiction(id domain.AuthorityID, node domain.NodeID) bool
	ResolveHoldingNode(id domain.AuthorityID, purpose domain.HoldingPurpose) (domain.NodeID, error)
	Law(id domain.LawID) (domain.Law, error)
}

// Catalog is the read side of the route catalog.
type Catalog interface {
	GetRoute(id domain.RouteID) (*domain.PatrolRoute, error)
	Routes() []*domain.PatrolRoute
	EvaluateStartTrigger(ctx context.Context, id domain.RouteID, tc script.TriggerContext) (bool, error)
}

// Store persists patrol rows. Deleting a patrol cascades to its members.
type Store interface {
	SavePatrol(ctx context.Context, p *domain.Patrol) error
	DeletePatrol(ctx context.Context, id domain.PatrolID) error
	LoadPatrols(ctx context.Context) ([]*domain.Patrol, error)
}

// Config tunes the state machine.
type Config struct {
	// FormingTimeoutTicks disbands a patrol still short of members; 0 disables.
	FormingTimeoutTicks int
	// TicksPerHop is the travel time of one exit.
	TicksPerHop int
	// StuckTickLimit disbands a patrol after this many consecutive stalled
	// ticks; 0 disables.
	StuckTickLimit int
	Policy         enforcement.Policy
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		FormingTimeoutTicks: 30,
		TicksPerHop:         1,
		StuckTickLimit:      20,
		Policy:              enforcement.DefaultPolicy(),
	}
}

// Deps are the engine's collaborators. Store, Events, Pool, and Tracer are optional.
type Deps struct {
	Graph    territory.Graph
	Registry Registry
	Catalog  Catalog
	Roster   *roster.Roster
	Ledger   crime.Ledger
	Store    Store
	Events   domain.Publisher
	Pool     *worker.Pool
	Tracer   trace.Tracer
}

// runtime is the in-memory owner of one patrol.
type runtime struct {
	mu     sync.Mutex
	patrol *domain.Patrol
	// gone is set once the patrol is disbanded; later steps are no-ops.
	gone bool

	// immutable after creation, readable without mu
	id          domain.PatrolID
	routeID     domain.RouteID
	authorityID domain.AuthorityID
}

// SpawnOptions configures a manual start.
type SpawnOptions struct {
	// Leader joins on creation and leads the patrol.
	Leader *domain.CharacterID
	// Character fills the patrol's opaque character slot.
	Character *domain.CharacterID
	// Trigger is recorded on the spawn event ("manual" when empty).
	Trigger string
	Actor   string
}

// Engine advances patrols. Lock order: runtime.mu before Engine.mu.
type Engine struct {
	cfg      Config
	graph    territory.Graph
	registry Registry
	catalog  Catalog
	roster   *roster.Roster
	ledger   crime.Ledger
	store    Store
	events   domain.Publisher
	pool     *worker.Pool
	tracer   trace.Tracer

	mu      sync.RWMutex
	patrols map[domain.PatrolID]*runtime
	tick    atomic.Int64
	now     func() time.Time
}

// New creates an engine.
func New(cfg Config, deps Deps) *Engine {
	if cfg.TicksPerHop < 1 {
		cfg.TicksPerHop = 1
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Engine{
		cfg:      cfg,
		graph:    deps.Graph,
		registry: deps.Registry,
		catalog:  deps.Catalog,
		roster:   deps.Roster,
		ledger:   deps.Ledger,
		store:    deps.Store,
		events:   deps.Events,
		pool:     deps.Pool,
		tracer:   tracer,
		patrols:  make(map[domain.PatrolID]*runtime),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the engine's cancellation handlers.
func (e *Engine) Register(d *domain.EventDispatcher) {
	d.Register(domain.EventAuthorityDeleting, e.HandleAuthorityDeleting)
	d.Register(domain.EventRouteDeleted, e.HandleRouteDeleted)
	d.Register(domain.EventCharacterRemoved, e.HandleCharacterRemoved)
}

// CurrentTick returns the number of ticks run so far.
func (e *Engine) CurrentTick() int64 {
	return e.tick.Load()
}

// Spawn starts a patrol from a route template in the Forming phase.
func (e *Engine) Spawn(ctx context.Context, routeID domain.RouteID, opts SpawnOptions) (*domain.Patrol, error) {
	route, err := e.catalog.GetRoute(routeID)
	if err != nil {
		return nil, err
	}
	if !e.registry.Exists(route.AuthorityID) {
		return nil, apperrors.ErrAuthorityNotFoundf(string(route.AuthorityID))
	}
	if opts.Leader != nil {
		if current, ok := e.roster.PatrolOf(*opts.Leader); ok {
			return nil, apperrors.ErrAlreadyInPatrolf(string(*opts.Leader), string(current))
		}
	}

	now := e.now()
	p := &domain.Patrol{
		ID:            domain.PatrolID(domain.NewID(domain.PrefixPatrol)),
		RouteID:       route.ID,
		AuthorityID:   route.AuthorityID,
		Phase:         domain.PhaseForming,
		NextMajorNode: domain.NodePtr(route.Waypoints[0]),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.Character != nil {
		p.CharacterID = domain.CharacterPtr(*opts.Character)
	}
	if e.store != nil {
		if err := e.store.SavePatrol(ctx, p); err != nil {
			return nil, fmt.Errorf("save patrol: %w", err)
		}
	}

	e.roster.Open(p.ID)
	if opts.Leader != nil {
		if err := e.roster.JoinAsLeader(ctx, p.ID, *opts.Leader); err != nil {
			e.discardSpawn(ctx, p.ID)
			return nil, err
		}
		p.LeaderID = domain.CharacterPtr(*opts.Leader)
		e.persist(ctx, p)
	}

	rt := &runtime{patrol: p, id: p.ID, routeID: p.RouteID, authorityID: p.AuthorityID}
	e.mu.Lock()
	e.patrols[p.ID] = rt
	e.mu.Unlock()

	// A deletion may have cancelled matching patrols between the lookup above
	// and registration; such a patrol would never be cancelled.
	if err := e.spawnStillValid(route); err != nil {
		rt.mu.Lock()
		gone := rt.gone
		rt.gone = true
		rt.mu.Unlock()
		if !gone {
			e.mu.Lock()
			delete(e.patrols, p.ID)
			e.mu.Unlock()
			e.discardSpawn(ctx, p.ID)
		}
		return nil, err
	}

	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}
	e.publish(ctx, domain.EventPatrolSpawned, p.ID, opts.Actor, domain.PatrolSpawnedPayload{
		PatrolID:    p.ID,
		RouteID:     p.RouteID,
		AuthorityID: p.AuthorityID,
		LeaderID:    p.LeaderID,
		Trigger:     trigger,
	})
	logger.ForPatrol(string(p.ID), string(p.RouteID), string(p.AuthorityID)).Info("Patrol spawned",
		zap.String("trigger", trigger))
	return p.Clone(), nil
}

func (e *Engine) spawnStillValid(route *domain.PatrolRoute) error {
	if _, err := e.catalog.GetRoute(route.ID); err != nil {
		return err
	}
	if !e.registry.Exists(route.AuthorityID) {
		return apperrors.ErrAuthorityNotFoundf(string(route.AuthorityID))
	}
	return nil
}

// discardSpawn undoes a spawn that never became visible: its roster and row.
func (e *Engine) discardSpawn(ctx context.Context, id domain.PatrolID) {
	e.roster.Release(ctx, id)
	if e.store != nil {
		if err := e.store.DeletePatrol(ctx, id); err != nil {
			logger.Warn("Failed to remove discarded patrol", zap.String("patrol_id", string(id)), zap.Error(err))
		}
	}
}

// Join adds a character to a patrol's roster.
func (e *Engine) Join(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	rt, err := e.lookup(patrolID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.gone {
		return apperrors.ErrPatrolNotFoundf(string(patrolID))
	}
	return e.roster.Join(ctx, patrolID, characterID)
}

// Leave removes a character from a patrol. A departing leader is replaced by
// the longest-serving member; an emptied roster disbands the patrol at once,
// whatever its phase. Leaving twice is the same as leaving once.
func (e *Engine) Leave(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	rt, err := e.lookup(patrolID)
	if err != nil {
		// already disbanded; nothing left to leave
		return nil
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.gone {
		return nil
	}

	out, err := e.roster.Leave(ctx, patrolID, characterID)
	if err != nil {
		return err
	}
	if !out.Left {
		return nil
	}
	if out.Empty {
		e.disbandLocked(ctx, rt, domain.DisbandEmptyRoster)
		return nil
	}
	if out.WasLeader {
		rt.patrol.LeaderID = out.NewLeader
		e.persist(ctx, rt.patrol)
		logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Info("Patrol leader promoted",
			zap.String("former_leader", string(characterID)),
			zap.Stringp("leader", (*string)(out.NewLeader)),
		)
	}
	return nil
}

// RemoveCharacter takes a dead or deleted character out of whatever patrol
// it serves in.
func (e *Engine) RemoveCharacter(ctx context.Context, characterID domain.CharacterID) error {
	patrolID, ok := e.roster.PatrolOf(characterID)
	if !ok {
		return nil
	}
	return e.Leave(ctx, patrolID, characterID)
}

// Patrol returns a snapshot of one active patrol.
func (e *Engine) Patrol(id domain.PatrolID) (*domain.Patrol, error) {
	rt, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.gone {
		return nil, apperrors.ErrPatrolNotFoundf(string(id))
	}
	return rt.patrol.Clone(), nil
}

// Patrols returns snapshots of every active patrol ordered by id.
func (e *Engine) Patrols() []*domain.Patrol {
	out := make([]*domain.Patrol, 0)
	for _, rt := range e.runtimes() {
		rt.mu.Lock()
		if !rt.gone {
			out = append(out, rt.patrol.Clone())
		}
		rt.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Members returns a patrol's roster ordered by tenure.
func (e *Engine) Members(id domain.PatrolID) ([]domain.CharacterID, error) {
	if _, err := e.lookup(id); err != nil {
		return nil, err
	}
	return e.roster.Members(id), nil
}

// ActiveCount returns the number of active patrols spawned from a route.
func (e *Engine) ActiveCount(routeID domain.RouteID) int {
	n := 0
	for _, rt := range e.runtimes() {
		if rt.routeID == routeID {
			n++
		}
	}
	return n
}

// Tick advances every active patrol once. Patrols are stepped concurrently on
// the worker pool when one is configured.
func (e *Engine) Tick(ctx context.Context) error {
	n := e.tick.Add(1)
	runtimes := e.runtimes()

	ctx, span := e.tracer.Start(ctx, "patrol.Tick", trace.WithAttributes(
		attribute.Int64("patrol.tick", n),
		attribute.Int("patrol.active", len(runtimes)),
	))
	defer span.End()

	tasks := make([]worker.Task, 0, len(runtimes))
	for _, rt := range runtimes {
		rt := rt
		tasks = append(tasks, func(ctx context.Context) {
			e.step(ctx, rt)
		})
	}

	if e.pool == nil {
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			task(ctx)
		}
		return nil
	}
	if err := e.pool.RunAll(ctx, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tick interrupted")
		return fmt.Errorf("tick %d: %w", n, err)
	}
	return nil
}

// Step advances one patrol by one tick.
func (e *Engine) Step(ctx context.Context, id domain.PatrolID) error {
	rt, err := e.lookup(id)
	if err != nil {
		return err
	}
	e.step(ctx, rt)
	return nil
}

func (e *Engine) step(ctx context.Context, rt *runtime) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.gone {
		return
	}

	ctx, span := e.tracer.Start(ctx, "patrol.Step", trace.WithAttributes(
		attribute.String("patrol.id", string(rt.id)),
		attribute.String("patrol.route_id", string(rt.routeID)),
		attribute.String("patrol.phase_before", rt.patrol.Phase.String()),
	))
	defer span.End()

	e.advance(ctx, rt)

	if rt.gone {
		span.SetAttributes(attribute.String("patrol.phase_after", domain.PhaseDisbanded.String()))
		return
	}
	span.SetAttributes(attribute.String("patrol.phase_after", rt.patrol.Phase.String()))
	if !ValidPosition(e.graph, rt.patrol) {
		logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Error("Patrol position invariant violated",
			zap.Stringp("last", (*string)(rt.patrol.LastMajorNode)),
			zap.Stringp("next", (*string)(rt.patrol.NextMajorNode)),
		)
		span.SetStatus(codes.Error, "position invariant violated")
	}
	e.persist(ctx, rt.patrol)
}

// HandleAuthorityDeleting disbands every patrol of an authority being deleted
// before its rows cascade away.
func (e *Engine) HandleAuthorityDeleting(ctx context.Context, event *domain.DomainEvent) error {
	var payload domain.AuthorityDeletedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	e.cancelWhere(ctx, func(rt *runtime) bool { return rt.authorityID == payload.AuthorityID }, domain.DisbandAuthorityDeleted)
	return nil
}

// HandleRouteDeleted disbands every patrol running the deleted route.
func (e *Engine) HandleRouteDeleted(ctx context.Context, event *domain.DomainEvent) error {
	var payload domain.RouteDeletedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	e.cancelWhere(ctx, func(rt *runtime) bool { return rt.routeID == payload.RouteID }, domain.DisbandRouteDeleted)
	return nil
}

// HandleCharacterRemoved drops a removed character from its patrol.
func (e *Engine) HandleCharacterRemoved(ctx context.Context, event *domain.DomainEvent) error {
	var payload domain.CharacterRemovedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	return e.RemoveCharacter(ctx, payload.CharacterID)
}

func (e *Engine) cancelWhere(ctx context.Context, match func(*runtime) bool, reason domain.DisbandReason) {
	for _, rt := range e.runtimes() {
		if !match(rt) {
			continue
		}
		rt.mu.Lock()
		if !rt.gone {
			e.disbandLocked(ctx, rt, reason)
		}
		rt.mu.Unlock()
	}
}

// Restore reloads persisted patrols and their rosters. Patrols resume in
// their persisted phase.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.store == nil {
		return 0, nil
	}
	patrols, err := e.store.LoadPatrols(ctx)
	if err != nil {
		return 0, fmt.Errorf("load patrols: %w", err)
	}
	members, err := e.roster.LoadMembers(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, p := range patrols {
		if !p.Phase.Valid() || p.Phase.Terminal() {
			logger.Warn("Dropping persisted patrol in unusable phase",
				zap.String("patrol_id", string(p.ID)), zap.Int("phase", int(p.Phase)))
			if err := e.store.DeletePatrol(ctx, p.ID); err != nil {
				logger.Warn("Failed to delete unusable patrol", zap.String("patrol_id", string(p.ID)), zap.Error(err))
			}
			continue
		}
		p = p.Clone()
		p.LeaderID = e.roster.Restore(p.ID, p.LeaderID, members[p.ID])

		rt := &runtime{patrol: p, id: p.ID, routeID: p.RouteID, authorityID: p.AuthorityID}
		e.mu.Lock()
		e.patrols[p.ID] = rt
		e.mu.Unlock()
		restored++
	}
	logger.Info("Patrols restored", zap.Int("count", restored))
	return restored, nil
}

// SweepStartTriggers evaluates every route's start trigger and spawns a
// patrol for each that fires while the route is below its active limit.
func (e *Engine) SweepStartTriggers(ctx context.Context) (int, error) {
	spawned := 0
	for _, r := range e.catalog.Routes() {
		if err := ctx.Err(); err != nil {
			return spawned, err
		}
		if r.StartTrigger == nil {
			continue
		}
		active := e.ActiveCount(r.ID)
		if active >= r.ActiveLimit() {
			continue
		}
		fire, err := e.catalog.EvaluateStartTrigger(ctx, r.ID, script.TriggerContext{
			ActivePatrols: active,
			Tick:          e.tick.Load(),
		})
		if err != nil || !fire {
			continue
		}
		if _, err := e.Spawn(ctx, r.ID, SpawnOptions{Trigger: "start_trigger", Actor: "scheduler"}); err != nil {
			logger.Warn("Start trigger fired but spawn failed",
				zap.String("route_id", string(r.ID)), zap.Error(err))
			continue
		}
		spawned++
	}
	return spawned, nil
}

func (e *Engine) lookup(id domain.PatrolID) (*runtime, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.patrols[id]
	if !ok {
		return nil, apperrors.ErrPatrolNotFoundf(string(id))
	}
	return rt, nil
}

func (e *Engine) runtimes() []*runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*runtime, 0, len(e.patrols))
	for _, rt := range e.patrols {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (e *Engine) persist(ctx context.Context, p *domain.Patrol) {
	if e.store == nil {
		return
	}
	p.UpdatedAt = e.now()
	if err := e.store.SavePatrol(ctx, p); err != nil {
		// in-memory state stays authoritative; the next step saves again
		logger.Warn("Failed to persist patrol", zap.String("patrol_id", string(p.ID)), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, t domain.EventType, id domain.PatrolID, actor string, payload any) {
	if actor == "" {
		actor = "engine"
	}
	if err := domain.Publish(ctx, e.events, t, domain.AggregatePatrol, string(id), actor, payload); err != nil {
		logger.Warn("Patrol event handlers reported errors",
			zap.String("event_type", string(t)), zap.String("patrol_id", string(id)), zap.Error(err))
	}
}
