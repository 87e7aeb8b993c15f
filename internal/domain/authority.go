package domain

import (
	"fmt"
	"strings"
	"time"
)

// HoldingPurpose selects one of the four special-purpose nodes an authority
// may configure.
type HoldingPurpose int

const (
	HoldingMarshalling HoldingPurpose = iota // where patrols muster and return
	HoldingPreparing                         // where apprehended offenders are processed
	HoldingPrison                            // where offenders are held
	HoldingStowing                           // where off-duty enforcers are stowed
)

// HoldingPurposes lists every purpose in declaration order.
var HoldingPurposes = []HoldingPurpose{HoldingMarshalling, HoldingPreparing, HoldingPrison, HoldingStowing}

func (p HoldingPurpose) String() string {
	switch p {
	case HoldingMarshalling:
		return "marshalling"
	case HoldingPreparing:
		return "preparing"
	case HoldingPrison:
		return "prison"
	case HoldingStowing:
		return "stowing"
	default:
		return fmt.Sprintf("HoldingPurpose(%d)", int(p))
	}
}

// ParseHoldingPurpose parses the lower-case purpose name.
func ParseHoldingPurpose(s string) (HoldingPurpose, error) {
	for _, p := range HoldingPurposes {
		if strings.EqualFold(strings.TrimSpace(s), p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown holding purpose %q", s)
}

// HoldingNodes carries the optional special-purpose node references.
type HoldingNodes struct {
	Marshalling *NodeID `json:"marshalling,omitempty" yaml:"marshalling,omitempty"`
	Preparing   *NodeID `json:"preparing,omitempty" yaml:"preparing,omitempty"`
	Prison      *NodeID `json:"prison,omitempty" yaml:"prison,omitempty"`
	Stowing     *NodeID `json:"stowing,omitempty" yaml:"stowing,omitempty"`
}

// Get returns the node configured for purpose, or nil.
func (h HoldingNodes) Get(p HoldingPurpose) *NodeID {
	switch p {
	case HoldingMarshalling:
		return h.Marshalling
	case HoldingPreparing:
		return h.Preparing
	case HoldingPrison:
		return h.Prison
	case HoldingStowing:
		return h.Stowing
	default:
		return nil
	}
}

// Configured returns the set slots keyed by purpose.
func (h HoldingNodes) Configured() map[HoldingPurpose]NodeID {
	out := make(map[HoldingPurpose]NodeID, 4)
	for _, p := range HoldingPurposes {
		if n := h.Get(p); n != nil {
			out[p] = *n
		}
	}
	return out
}

// Clone returns a deep copy.
func (h HoldingNodes) Clone() HoldingNodes {
	clone := func(n *NodeID) *NodeID {
		if n == nil {
			return nil
		}
		return NodePtr(*n)
	}
	return HoldingNodes{
		Marshalling: clone(h.Marshalling),
		Preparing:   clone(h.Preparing),
		Prison:      clone(h.Prison),
		Stowing:     clone(h.Stowing),
	}
}

// LegalAuthority is a governing entity over a territory.
type LegalAuthority struct {
	ID                     AuthorityID  `json:"id"`
	Name                   string       `json:"name"`
	PlayersKnowTheirCrimes bool         `json:"players_know_their_crimes"`
	Holding                HoldingNodes `json:"holding"`
	// Territory is a sorted snapshot of the jurisdiction cells.
	Territory []NodeID  `json:"territory"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (a *LegalAuthority) Clone() *LegalAuthority {
	if a == nil {
		return nil
	}
	out := *a
	out.Holding = a.Holding.Clone()
	out.Territory = append([]NodeID(nil), a.Territory...)
	return &out
}

// Law is a rule owned by an authority. EnforcementStrategy is an opaque key
// ("arrest", "fine", "warn", ...) resolved by the enforcement policy.
type Law struct {
	ID                  LawID       `json:"id"`
	AuthorityID         AuthorityID `json:"authority_id"`
	Name                string      `json:"name"`
	EnforcementStrategy string      `json:"enforcement_strategy"`
}
