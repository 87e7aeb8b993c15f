// Package enforcement maps a law's enforcement strategy string onto a closed
// set of actions the patrol engine knows how to carry out.
package enforcement

import (
	"fmt"
	"strings"

	"lawwarden.io/warden/internal/domain"
)

// Strategy is the closed set of enforcement strategies.
type Strategy int

const (
	StrategyUnknown Strategy = iota
	StrategyArrest
	StrategyFine
	StrategyWarn
	StrategyIgnore
)

var names = map[Strategy]string{
	StrategyUnknown: "unknown",
	StrategyArrest:  "arrest",
	StrategyFine:    "fine",
	StrategyWarn:    "warn",
	StrategyIgnore:  "ignore",
}

func (s Strategy) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy maps a law's strategy key onto the enum. Unrecognised keys
// yield StrategyUnknown, never an error.
func ParseStrategy(s string) Strategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arrest", "apprehend", "detain":
		return StrategyArrest
	case "fine":
		return StrategyFine
	case "warn", "warning":
		return StrategyWarn
	case "ignore", "none":
		return StrategyIgnore
	default:
		return StrategyUnknown
	}
}

// ParseFallback parses a configured fallback. Only the lesser remedies are
// allowed since the fallback applies when detention is impossible.
func ParseFallback(s string) (Strategy, error) {
	st := ParseStrategy(s)
	switch st {
	case StrategyFine, StrategyWarn, StrategyIgnore:
		return st, nil
	default:
		return StrategyUnknown, fmt.Errorf("invalid fallback strategy %q: want fine, warn, or ignore", s)
	}
}

// Action is the decided outcome for one crime.
type Action struct {
	Strategy Strategy
	Kind     domain.ResolutionKind
	// HoldingNode is the prison for arrests, nil otherwise.
	HoldingNode *domain.NodeID
	// Fallback is set when the law's strategy could not be applied as written.
	Fallback bool
}

// Policy decides actions. Default replaces unknown strategies;
// NoPrisonFallback replaces arrests when the authority has no prison.
type Policy struct {
	Default          Strategy
	NoPrisonFallback Strategy
}

// DefaultPolicy warns on unknown strategies and fines when there is no prison.
func DefaultPolicy() Policy {
	return Policy{Default: StrategyWarn, NoPrisonFallback: StrategyFine}
}

// Decide picks the action for a law's strategy. prison is nil when the
// authority has no prison configured.
func (p Policy) Decide(lawStrategy string, prison *domain.NodeID) Action {
	st := ParseStrategy(lawStrategy)
	fallback := false
	if st == StrategyUnknown {
		st = p.lesser(p.Default)
		fallback = true
	}
	if st == StrategyArrest {
		if prison == nil {
			return p.action(p.lesser(p.NoPrisonFallback), true)
		}
		return Action{Strategy: StrategyArrest, Kind: domain.ResolutionArrested, HoldingNode: domain.NodePtr(*prison), Fallback: fallback}
	}
	return p.action(st, fallback)
}

// lesser guards against a misconfigured policy escalating to arrest or
// looping back to unknown.
func (p Policy) lesser(st Strategy) Strategy {
	switch st {
	case StrategyFine, StrategyWarn, StrategyIgnore:
		return st
	case StrategyArrest:
		return StrategyArrest
	default:
		return StrategyWarn
	}
}

func (p Policy) action(st Strategy, fallback bool) Action {
	switch st {
	case StrategyFine:
		return Action{Strategy: st, Kind: domain.ResolutionFined, Fallback: fallback}
	case StrategyIgnore:
		return Action{Strategy: st, Kind: domain.ResolutionIgnored, Fallback: fallback}
	default:
		return Action{Strategy: StrategyWarn, Kind: domain.ResolutionWarned, Fallback: fallback}
	}
}
