package domain

import "time"

// CrimeRecord is a law violation observed within a jurisdiction.
type CrimeRecord struct {
	ID          CrimeID     `json:"id"`
	AuthorityID AuthorityID `json:"authority_id"`
	LawID       LawID       `json:"law_id"`
	Node        NodeID      `json:"node"`
	Offender    CharacterID `json:"offender"`
	ObservedAt  time.Time   `json:"observed_at"`
	Resolution  *Resolution `json:"resolution,omitempty"`
}

// Resolved reports whether the crime has been dealt with.
func (c CrimeRecord) Resolved() bool {
	return c.Resolution != nil
}

// Clone returns a deep copy.
func (c CrimeRecord) Clone() CrimeRecord {
	if c.Resolution != nil {
		r := *c.Resolution
		if r.HoldingNode != nil {
			r.HoldingNode = NodePtr(*r.HoldingNode)
		}
		c.Resolution = &r
	}
	return c
}

// ResolutionKind is the outcome applied to a crime.
type ResolutionKind string

const (
	ResolutionArrested ResolutionKind = "ARRESTED"
	ResolutionFined    ResolutionKind = "FINED"
	ResolutionWarned   ResolutionKind = "WARNED"
	ResolutionIgnored  ResolutionKind = "IGNORED"
)

// Resolution records how and by whom a crime was resolved.
type Resolution struct {
	Kind     ResolutionKind `json:"kind"`
	PatrolID PatrolID       `json:"patrol_id,omitempty"`
	// HoldingNode is the prison the offender is escorted to, for arrests.
	HoldingNode *NodeID `json:"holding_node,omitempty"`
	// Fallback is set when the law's strategy could not be applied as written.
	Fallback   bool      `json:"fallback,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}
