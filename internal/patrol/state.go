package patrol

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/enforcement"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/territory"
)

// advance runs one transition attempt. Callers hold rt.mu.
func (e *Engine) advance(ctx context.Context, rt *runtime) {
	p := rt.patrol

	if !e.registry.Exists(p.AuthorityID) {
		e.disbandLocked(ctx, rt, domain.DisbandAuthorityDeleted)
		return
	}
	route, err := e.catalog.GetRoute(p.RouteID)
	if err != nil {
		e.disbandLocked(ctx, rt, domain.DisbandRouteMissing)
		return
	}
	if p.Phase != domain.PhaseForming && e.roster.Size(p.ID) == 0 {
		e.disbandLocked(ctx, rt, domain.DisbandEmptyRoster)
		return
	}

	switch p.Phase {
	case domain.PhaseForming:
		e.stepForming(ctx, rt, route)
	case domain.PhaseMarching:
		e.stepMarching(ctx, rt, route)
	case domain.PhaseAtWaypoint:
		e.stepAtWaypoint(ctx, rt)
	case domain.PhaseEnforcing:
		e.stepEnforcing(ctx, rt)
	case domain.PhaseReturning:
		e.stepReturning(ctx, rt)
	default:
		e.disbandLocked(ctx, rt, domain.DisbandCompleted)
	}
}

func (e *Engine) stepForming(ctx context.Context, rt *runtime, route *domain.PatrolRoute) {
	p := rt.patrol
	p.PhaseTicks++
	if e.roster.Size(p.ID) >= route.RequiredMembers() {
		p.LeaderID = e.roster.EnsureLeader(p.ID)
		e.transition(rt, domain.PhaseMarching)
		return
	}
	if e.cfg.FormingTimeoutTicks > 0 && p.PhaseTicks >= e.cfg.FormingTimeoutTicks {
		e.disbandLocked(ctx, rt, domain.DisbandFormingTimeout)
	}
}

func (e *Engine) stepMarching(ctx context.Context, rt *runtime, route *domain.PatrolRoute) {
	p := rt.patrol
	if p.NextMajorNode == nil {
		e.beginReturn(rt)
		return
	}
	legTicks, ok := e.legTicks(p.LastMajorNode, *p.NextMajorNode)
	if !ok {
		e.stall(ctx, rt, "next waypoint unreachable")
		return
	}

	p.PhaseTicks++
	p.StalledTicks = 0
	if p.PhaseTicks < legTicks {
		return
	}

	// arrival
	p.LastMajorNode = domain.NodePtr(*p.NextMajorNode)
	p.WaypointIndex++
	if p.WaypointIndex < len(route.Waypoints) {
		p.NextMajorNode = domain.NodePtr(route.Waypoints[p.WaypointIndex])
	} else {
		p.WaypointIndex = len(route.Waypoints)
		p.NextMajorNode = nil
	}
	e.transition(rt, domain.PhaseAtWaypoint)
}

func (e *Engine) stepAtWaypoint(ctx context.Context, rt *runtime) {
	p := rt.patrol
	if p.LastMajorNode == nil {
		e.stall(ctx, rt, "at waypoint without a position")
		return
	}
	node := *p.LastMajorNode

	if e.registry.IsWithinJurisdiction(p.AuthorityID, node) {
		crimes, err := e.ledger.OutstandingCrimesAt(ctx, node, p.AuthorityID)
		if err != nil {
			e.stall(ctx, rt, "crime ledger unavailable", zap.Error(err))
			return
		}
		if len(crimes) > 0 {
			p.Enforcement = &domain.EnforcementTask{Node: node, Pending: crimes}
			e.transition(rt, domain.PhaseEnforcing)
			return
		}
	}

	if p.NextMajorNode != nil {
		e.transition(rt, domain.PhaseMarching)
		return
	}
	e.beginReturn(rt)
}

// stepEnforcing handles at most one crime per tick. An arrest keeps the
// patrol busy for the escort to the prison before the next crime.
func (e *Engine) stepEnforcing(ctx context.Context, rt *runtime) {
	p := rt.patrol
	task := p.Enforcement
	if task == nil {
		e.transition(rt, domain.PhaseAtWaypoint)
		return
	}
	if !e.registry.IsWithinJurisdiction(p.AuthorityID, task.Node) {
		logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Info("Enforcement abandoned, node left the jurisdiction",
			zap.String("node", string(task.Node)),
			zap.Int("pending", len(task.Pending)),
		)
		p.Enforcement = nil
		e.transition(rt, domain.PhaseAtWaypoint)
		return
	}

	if task.EscortTicks > 0 {
		task.EscortTicks--
		p.PhaseTicks++
		p.StalledTicks = 0
		return
	}
	if len(task.Pending) == 0 {
		p.Enforcement = nil
		e.transition(rt, domain.PhaseAtWaypoint)
		return
	}

	rec := task.Pending[0]
	action, escortHops := e.decide(p.AuthorityID, rec, task.Node)
	res := domain.Resolution{
		Kind:        action.Kind,
		PatrolID:    p.ID,
		HoldingNode: action.HoldingNode,
		Fallback:    action.Fallback,
		ResolvedAt:  e.now(),
	}

	err := e.ledger.MarkResolved(ctx, rec.ID, res)
	if err != nil && !errors.Is(err, apperrors.ErrAlreadyResolved) && !apperrors.HasCode(err, apperrors.CodeCrimeNotFound) {
		e.stall(ctx, rt, "crime ledger unavailable", zap.Error(err))
		return
	}
	p.PhaseTicks++
	p.StalledTicks = 0
	task.Pending = task.Pending[1:]
	if err != nil {
		// another patrol got there first
		return
	}

	task.Handled++
	if action.Strategy == enforcement.StrategyArrest {
		task.EscortTicks = escortHops * e.cfg.TicksPerHop
	}

	if err := domain.Publish(ctx, e.events, domain.EventCrimeResolved, domain.AggregateCrime, string(rec.ID), string(p.ID),
		domain.CrimeResolvedPayload{
			CrimeID:     rec.ID,
			AuthorityID: p.AuthorityID,
			PatrolID:    p.ID,
			Offender:    rec.Offender,
			Node:        task.Node,
			Kind:        res.Kind,
			HoldingNode: res.HoldingNode,
			Fallback:    res.Fallback,
		}); err != nil {
		logger.Warn("Crime resolution handlers reported errors", zap.String("crime_id", string(rec.ID)), zap.Error(err))
	}
	logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Info("Crime resolved",
		zap.String("crime_id", string(rec.ID)),
		zap.String("offender", string(rec.Offender)),
		zap.String("resolution", string(res.Kind)),
		zap.Bool("fallback", res.Fallback),
	)
}

// decide picks the action for a crime and, for arrests, the escort length.
// A prison that is unset or unreachable from the node means no detention.
func (e *Engine) decide(authorityID domain.AuthorityID, rec domain.CrimeRecord, node domain.NodeID) (enforcement.Action, int) {
	strategy := ""
	if law, err := e.registry.Law(rec.LawID); err == nil {
		strategy = law.EnforcementStrategy
	}

	var prison *domain.NodeID
	hops := 0
	if n, err := e.registry.ResolveHoldingNode(authorityID, domain.HoldingPrison); err == nil {
		if h, ok := e.graph.Hops(node, n); ok {
			prison = domain.NodePtr(n)
			hops = h
		}
	}
	return e.cfg.Policy.Decide(strategy, prison), hops
}

func (e *Engine) stepReturning(ctx context.Context, rt *runtime) {
	p := rt.patrol
	if p.NextMajorNode == nil {
		e.disbandLocked(ctx, rt, domain.DisbandCompleted)
		return
	}
	legTicks, ok := e.legTicks(p.LastMajorNode, *p.NextMajorNode)
	if !ok {
		e.stall(ctx, rt, "marshalling node unreachable")
		return
	}
	p.PhaseTicks++
	p.StalledTicks = 0
	if p.PhaseTicks >= legTicks {
		e.disbandLocked(ctx, rt, domain.DisbandCompleted)
	}
}

// beginReturn heads for the marshalling node when one is configured,
// distinct from the current position, and reachable. Otherwise the patrol
// disbands on the next tick where it stands.
func (e *Engine) beginReturn(rt *runtime) {
	p := rt.patrol
	p.NextMajorNode = nil
	if marshal, err := e.registry.ResolveHoldingNode(p.AuthorityID, domain.HoldingMarshalling); err == nil {
		switch {
		case p.LastMajorNode == nil:
			p.NextMajorNode = domain.NodePtr(marshal)
		case *p.LastMajorNode != marshal:
			if _, ok := e.graph.Hops(*p.LastMajorNode, marshal); ok {
				p.NextMajorNode = domain.NodePtr(marshal)
			}
		}
	}
	e.transition(rt, domain.PhaseReturning)
}

// legTicks is the travel time between two major nodes. The first leg, from
// the muster point to the first waypoint, takes one tick.
func (e *Engine) legTicks(from *domain.NodeID, to domain.NodeID) (int, bool) {
	if !e.graph.IsValidNode(to) {
		return 0, false
	}
	if from == nil {
		return 1, true
	}
	hops, ok := e.graph.Hops(*from, to)
	if !ok {
		return 0, false
	}
	if hops < 1 {
		hops = 1
	}
	return hops * e.cfg.TicksPerHop, true
}

func (e *Engine) transition(rt *runtime, to domain.PatrolPhase) {
	p := rt.patrol
	logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Debug("Patrol phase transition",
		zap.String("from", p.Phase.String()),
		zap.String("to", to.String()),
		zap.Stringp("last", (*string)(p.LastMajorNode)),
		zap.Stringp("next", (*string)(p.NextMajorNode)),
	)
	p.Phase = to
	p.PhaseTicks = 0
	p.StalledTicks = 0
}

// stall records a tick without progress; enough of them in a row disband the patrol.
func (e *Engine) stall(ctx context.Context, rt *runtime, reason string, fields ...zap.Field) {
	p := rt.patrol
	p.StalledTicks++
	fields = append(fields,
		zap.String("reason", reason),
		zap.String("phase", p.Phase.String()),
		zap.Int("stalled_ticks", p.StalledTicks),
	)
	logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Warn("Patrol stalled", fields...)
	if e.cfg.StuckTickLimit > 0 && p.StalledTicks >= e.cfg.StuckTickLimit {
		e.disbandLocked(ctx, rt, domain.DisbandStuck)
	}
}

// disbandLocked releases the roster, vacates every reference, deletes the
// row, and forgets the patrol. Callers hold rt.mu.
func (e *Engine) disbandLocked(ctx context.Context, rt *runtime, reason domain.DisbandReason) {
	p := rt.patrol
	lastPhase := p.Phase

	released := e.roster.Release(ctx, p.ID)
	p.LeaderID = nil
	p.CharacterID = nil
	p.LastMajorNode = nil
	p.NextMajorNode = nil
	p.Enforcement = nil
	p.Phase = domain.PhaseDisbanded
	rt.gone = true

	if e.store != nil {
		if err := e.store.DeletePatrol(ctx, p.ID); err != nil {
			logger.Error("Failed to delete disbanded patrol", zap.String("patrol_id", string(p.ID)), zap.Error(err))
		}
	}
	e.mu.Lock()
	delete(e.patrols, p.ID)
	e.mu.Unlock()

	e.publish(ctx, domain.EventPatrolDisbanded, p.ID, "", domain.PatrolDisbandedPayload{
		PatrolID:      p.ID,
		RouteID:       p.RouteID,
		AuthorityID:   p.AuthorityID,
		Reason:        reason,
		LastPhase:     lastPhase,
		ReleasedCount: len(released),
	})
	logger.ForPatrol(string(rt.id), string(rt.routeID), string(rt.authorityID)).Info("Patrol disbanded",
		zap.String("reason", string(reason)),
		zap.String("last_phase", lastPhase.String()),
		zap.Int("released", len(released)),
	)
}

// ValidPosition reports whether the patrol's node pointers, when both set,
// name distinct nodes connected on the map.
func ValidPosition(g territory.Graph, p *domain.Patrol) bool {
	if p.LastMajorNode == nil || p.NextMajorNode == nil {
		return true
	}
	if *p.LastMajorNode == *p.NextMajorNode {
		return false
	}
	_, ok := g.Hops(*p.LastMajorNode, *p.NextMajorNode)
	return ok
}
