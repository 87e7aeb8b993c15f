// Package domain provides the domain model of the patrol subsystem: legal
// authorities, patrol routes, patrols, memberships, and crimes.
//
// Entities reference each other by stable string identifiers, never by
// pointer, so the territory graph and the patrols walking it do not form
// ownership cycles.
//
// Import Path: lawwarden.io/warden/internal/domain
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeID identifies a territory map node (a "cell").
type NodeID string

// AuthorityID identifies a legal authority.
type AuthorityID string

// RouteID identifies a patrol route template.
type RouteID string

// PatrolID identifies a running patrol.
type PatrolID string

// CharacterID identifies an NPC or player character.
type CharacterID string

// HookID identifies an external start-trigger program.
type HookID string

// LawID identifies a law owned by an authority.
type LawID string

// CrimeID identifies a crime ledger record.
type CrimeID string

// Identifier prefixes.
const (
	PrefixAuthority = "auth"
	PrefixRoute     = "route"
	PrefixPatrol    = "patrol"
	PrefixLaw       = "law"
	PrefixCrime     = "crime"
	PrefixEvent     = "evt"
)

// NewID returns a time-ordered identifier with the given prefix.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// NodePtr returns a pointer to a copy of id.
func NodePtr(id NodeID) *NodeID {
	return &id
}

// CharacterPtr returns a pointer to a copy of id.
func CharacterPtr(id CharacterID) *CharacterID {
	return &id
}

// SameNode reports whether two optional node references point at the same node.
func SameNode(a, b *NodeID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
