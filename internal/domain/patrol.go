package domain

import (
	"fmt"
	"time"
)

// PatrolRoute is a reusable template describing a patrol path.
// Templates are immutable once created.
type PatrolRoute struct {
	ID          RouteID     `json:"id"`
	AuthorityID AuthorityID `json:"authority_id"`
	Name        string      `json:"name"`
	// Waypoints is the ordered list of major nodes.
	Waypoints []NodeID `json:"waypoints"`
	// StartTrigger references an external start-condition program.
	// Routes without one can only be started manually.
	StartTrigger *HookID `json:"start_trigger,omitempty"`
	// MinMembers is the roster size required before the patrol marches (min 1).
	MinMembers int `json:"min_members"`
	// MaxActive caps concurrently running patrols spawned by the trigger sweep (min 1).
	MaxActive int       `json:"max_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (r *PatrolRoute) Clone() *PatrolRoute {
	if r == nil {
		return nil
	}
	out := *r
	out.Waypoints = append([]NodeID(nil), r.Waypoints...)
	if r.StartTrigger != nil {
		hook := *r.StartTrigger
		out.StartTrigger = &hook
	}
	return &out
}

// RequiredMembers returns the effective minimum roster size.
func (r *PatrolRoute) RequiredMembers() int {
	if r.MinMembers < 1 {
		return 1
	}
	return r.MinMembers
}

// ActiveLimit returns the effective cap on concurrently active patrols.
func (r *PatrolRoute) ActiveLimit() int {
	if r.MaxActive < 1 {
		return 1
	}
	return r.MaxActive
}

// PatrolPhase is the persisted phase counter of a patrol.
type PatrolPhase int

const (
	PhaseForming PatrolPhase = iota
	PhaseMarching
	PhaseAtWaypoint
	PhaseEnforcing
	PhaseReturning
	PhaseDisbanded
)

func (p PatrolPhase) String() string {
	switch p {
	case PhaseForming:
		return "FORMING"
	case PhaseMarching:
		return "MARCHING"
	case PhaseAtWaypoint:
		return "AT_WAYPOINT"
	case PhaseEnforcing:
		return "ENFORCING"
	case PhaseReturning:
		return "RETURNING"
	case PhaseDisbanded:
		return "DISBANDED"
	default:
		return fmt.Sprintf("PatrolPhase(%d)", int(p))
	}
}

// Valid reports whether p is a known phase.
func (p PatrolPhase) Valid() bool {
	return p >= PhaseForming && p <= PhaseDisbanded
}

// Terminal reports whether p is the terminal phase.
func (p PatrolPhase) Terminal() bool {
	return p == PhaseDisbanded
}

// Patrol is one running instance of a route.
type Patrol struct {
	ID          PatrolID    `json:"id"`
	RouteID     RouteID     `json:"route_id"`
	AuthorityID AuthorityID `json:"authority_id"`
	Phase       PatrolPhase `json:"phase"`
	// LastMajorNode is the waypoint the patrol departed (or stands at).
	LastMajorNode *NodeID `json:"last_major_node,omitempty"`
	// NextMajorNode is the waypoint the patrol is heading toward.
	NextMajorNode *NodeID      `json:"next_major_node,omitempty"`
	LeaderID      *CharacterID `json:"leader_id,omitempty"`
	// CharacterID is an opaque optional slot persisted alongside the leader.
	// It is carried and vacated but never interpreted.
	CharacterID *CharacterID `json:"character_id,omitempty"`
	// WaypointIndex is the route index of NextMajorNode; len(route) once exhausted.
	WaypointIndex int `json:"waypoint_index"`
	// PhaseTicks counts ticks spent in the current phase.
	PhaseTicks int `json:"phase_ticks"`
	// StalledTicks counts consecutive ticks without progress.
	StalledTicks int              `json:"stalled_ticks"`
	Enforcement  *EnforcementTask `json:"enforcement,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Clone returns a deep copy.
func (p *Patrol) Clone() *Patrol {
	if p == nil {
		return nil
	}
	out := *p
	if p.LastMajorNode != nil {
		out.LastMajorNode = NodePtr(*p.LastMajorNode)
	}
	if p.NextMajorNode != nil {
		out.NextMajorNode = NodePtr(*p.NextMajorNode)
	}
	if p.LeaderID != nil {
		out.LeaderID = CharacterPtr(*p.LeaderID)
	}
	if p.CharacterID != nil {
		out.CharacterID = CharacterPtr(*p.CharacterID)
	}
	out.Enforcement = p.Enforcement.Clone()
	return &out
}

// EnforcementTask is the multi-tick sub-task of the Enforcing phase.
// It is persisted with the patrol so a restart resumes mid-enforcement.
type EnforcementTask struct {
	Node NodeID `json:"node"`
	// Pending is the crime snapshot taken on entering Enforcing, minus the
	// crimes already handled.
	Pending []CrimeRecord `json:"pending"`
	// EscortTicks is the remaining escort time of the current arrest.
	EscortTicks int `json:"escort_ticks"`
	Handled     int `json:"handled"`
}

// Clone returns a deep copy.
func (t *EnforcementTask) Clone() *EnforcementTask {
	if t == nil {
		return nil
	}
	out := *t
	out.Pending = make([]CrimeRecord, len(t.Pending))
	for i := range t.Pending {
		out.Pending[i] = t.Pending[i].Clone()
	}
	return &out
}

// PatrolMember is one row of a patrol roster.
type PatrolMember struct {
	PatrolID    PatrolID    `json:"patrol_id"`
	CharacterID CharacterID `json:"character_id"`
	// JoinedSeq orders members by tenure; lower joined earlier.
	JoinedSeq int64     `json:"joined_seq"`
	JoinedAt  time.Time `json:"joined_at"`
}
