// Package roster tracks patrol membership and leadership. It is the single
// authority for the one-active-patrol-per-character rule; every join, leave,
// and promotion goes through one mutex.
package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
)

// Store persists membership rows.
type Store interface {
	AddMember(ctx context.Context, m domain.PatrolMember) error
	RemoveMember(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error
	LoadMembers(ctx context.Context) ([]domain.PatrolMember, error)
}

// LeaveOutcome reports what a departure changed.
type LeaveOutcome struct {
	// Left is false when the character was not a member (no-op).
	Left      bool
	WasLeader bool
	// NewLeader is the promoted member, nil when nobody is left.
	NewLeader *domain.CharacterID
	// Empty is set when the roster has no members left.
	Empty bool
}

type patrolRoster struct {
	members []domain.PatrolMember // ordered by JoinedSeq
	leader  *domain.CharacterID
}

func (p *patrolRoster) indexOf(c domain.CharacterID) int {
	for i, m := range p.members {
		if m.CharacterID == c {
			return i
		}
	}
	return -1
}

// Roster is safe for concurrent use.
type Roster struct {
	mu          sync.Mutex
	store       Store
	patrols     map[domain.PatrolID]*patrolRoster
	byCharacter map[domain.CharacterID]domain.PatrolID
	seq         int64
	now         func() time.Time
}

// New creates a roster. store may be nil.
func New(store Store) *Roster {
	return &Roster{
		store:       store,
		patrols:     make(map[domain.PatrolID]*patrolRoster),
		byCharacter: make(map[domain.CharacterID]domain.PatrolID),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Open starts tracking an active patrol. Opening twice is a no-op.
func (r *Roster) Open(patrolID domain.PatrolID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patrols[patrolID]; !ok {
		r.patrols[patrolID] = &patrolRoster{}
	}
}

// Join adds a character to a patrol. Joining the same patrol again is a
// no-op; joining while serving in another patrol fails with ALREADY_IN_PATROL.
func (r *Roster) Join(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	if characterID == "" {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "character id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patrols[patrolID]
	if !ok {
		return apperrors.ErrPatrolNotFoundf(string(patrolID))
	}
	return r.joinLocked(ctx, p, patrolID, characterID)
}

// JoinAsLeader adds a character and makes it the leader in one step, so no
// other caller can observe the member without its leadership.
func (r *Roster) JoinAsLeader(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	if characterID == "" {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "character id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patrols[patrolID]
	if !ok {
		return apperrors.ErrPatrolNotFoundf(string(patrolID))
	}
	if err := r.joinLocked(ctx, p, patrolID, characterID); err != nil {
		return err
	}
	p.leader = domain.CharacterPtr(characterID)
	return nil
}

func (r *Roster) joinLocked(ctx context.Context, p *patrolRoster, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	if current, ok := r.byCharacter[characterID]; ok {
		if current == patrolID {
			return nil
		}
		return apperrors.ErrAlreadyInPatrolf(string(characterID), string(current))
	}

	m := domain.PatrolMember{
		PatrolID:    patrolID,
		CharacterID: characterID,
		JoinedSeq:   r.seq + 1,
		JoinedAt:    r.now(),
	}
	if r.store != nil {
		if err := r.store.AddMember(ctx, m); err != nil {
			return fmt.Errorf("add member %s to %s: %w", characterID, patrolID, err)
		}
	}
	r.seq = m.JoinedSeq
	p.members = append(p.members, m)
	r.byCharacter[characterID] = patrolID
	return nil
}

// Leave removes a character. Leaving twice is the same as leaving once. When
// the leader leaves, the longest-serving remaining member is promoted.
func (r *Roster) Leave(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) (LeaveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patrols[patrolID]
	if !ok {
		return LeaveOutcome{Empty: true}, nil
	}
	i := p.indexOf(characterID)
	if i < 0 {
		return LeaveOutcome{Empty: len(p.members) == 0, NewLeader: cloneID(p.leader)}, nil
	}
	if r.store != nil {
		if err := r.store.RemoveMember(ctx, patrolID, characterID); err != nil {
			return LeaveOutcome{}, fmt.Errorf("remove member %s from %s: %w", characterID, patrolID, err)
		}
	}

	p.members = append(p.members[:i], p.members[i+1:]...)
	delete(r.byCharacter, characterID)

	out := LeaveOutcome{Left: true, Empty: len(p.members) == 0}
	if p.leader != nil && *p.leader == characterID {
		out.WasLeader = true
		p.leader = nil
		if len(p.members) > 0 {
			p.leader = domain.CharacterPtr(p.members[0].CharacterID)
		}
	}
	out.NewLeader = cloneID(p.leader)
	return out, nil
}

// Members returns the patrol's members ordered by tenure.
func (r *Roster) Members(patrolID domain.PatrolID) []domain.CharacterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patrols[patrolID]
	if !ok {
		return nil
	}
	out := make([]domain.CharacterID, len(p.members))
	for i, m := range p.members {
		out[i] = m.CharacterID
	}
	return out
}

// Size returns the number of members.
func (r *Roster) Size(patrolID domain.PatrolID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.patrols[patrolID]; ok {
		return len(p.members)
	}
	return 0
}

// Leader returns the patrol's leader, or nil.
func (r *Roster) Leader(patrolID domain.PatrolID) *domain.CharacterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.patrols[patrolID]; ok {
		return cloneID(p.leader)
	}
	return nil
}

// SetLeader makes a member the leader.
func (r *Roster) SetLeader(patrolID domain.PatrolID, characterID domain.CharacterID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patrols[patrolID]
	if !ok {
		return apperrors.ErrPatrolNotFoundf(string(patrolID))
	}
	if p.indexOf(characterID) < 0 {
		return apperrors.Conflict(apperrors.CodeNotAMember, "leader must be a member of the patrol").
			WithParams(map[string]interface{}{"patrol_id": string(patrolID), "character_id": string(characterID)})
	}
	p.leader = domain.CharacterPtr(characterID)
	return nil
}

// EnsureLeader promotes the longest-serving member when the patrol has no
// leader, and returns the current leader.
func (r *Roster) EnsureLeader(patrolID domain.PatrolID) *domain.CharacterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patrols[patrolID]
	if !ok {
		return nil
	}
	if p.leader == nil && len(p.members) > 0 {
		p.leader = domain.CharacterPtr(p.members[0].CharacterID)
	}
	return cloneID(p.leader)
}

// PatrolOf returns the active patrol a character serves in.
func (r *Roster) PatrolOf(characterID domain.CharacterID) (domain.PatrolID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCharacter[characterID]
	return id, ok
}

// Release removes every member and stops tracking the patrol. It returns the
// released characters. Row removal is best effort since deleting the patrol
// row cascades to its members anyway.
func (r *Roster) Release(ctx context.Context, patrolID domain.PatrolID) []domain.CharacterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patrols[patrolID]
	if !ok {
		return nil
	}
	released := make([]domain.CharacterID, 0, len(p.members))
	for _, m := range p.members {
		if r.store != nil {
			if err := r.store.RemoveMember(ctx, patrolID, m.CharacterID); err != nil {
				logger.Warn("Failed to remove member row on release",
					zap.String("patrol_id", string(patrolID)),
					zap.String("character_id", string(m.CharacterID)),
					zap.Error(err),
				)
			}
		}
		delete(r.byCharacter, m.CharacterID)
		released = append(released, m.CharacterID)
	}
	delete(r.patrols, patrolID)
	return released
}

// LoadMembers reads persisted membership rows grouped by patrol.
func (r *Roster) LoadMembers(ctx context.Context) (map[domain.PatrolID][]domain.PatrolMember, error) {
	out := make(map[domain.PatrolID][]domain.PatrolMember)
	if r.store == nil {
		return out, nil
	}
	rows, err := r.store.LoadMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	for _, m := range rows {
		out[m.PatrolID] = append(out[m.PatrolID], m)
	}
	return out, nil
}

// Restore rebuilds one patrol's roster from persisted rows. A character
// already serving elsewhere is skipped. A leader that is not a member is
// dropped. It returns the restored leader.
func (r *Roster) Restore(patrolID domain.PatrolID, leader *domain.CharacterID, members []domain.PatrolMember) *domain.CharacterID {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := append([]domain.PatrolMember(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].JoinedSeq < sorted[j].JoinedSeq })

	p := &patrolRoster{}
	for _, m := range sorted {
		if other, ok := r.byCharacter[m.CharacterID]; ok && other != patrolID {
			logger.Warn("Character restored into two patrols, keeping the first",
				zap.String("character_id", string(m.CharacterID)),
				zap.String("kept_patrol_id", string(other)),
				zap.String("skipped_patrol_id", string(patrolID)),
			)
			continue
		}
		p.members = append(p.members, m)
		r.byCharacter[m.CharacterID] = patrolID
		if m.JoinedSeq > r.seq {
			r.seq = m.JoinedSeq
		}
	}
	if leader != nil && p.indexOf(*leader) >= 0 {
		p.leader = cloneID(leader)
	}
	r.patrols[patrolID] = p
	return cloneID(p.leader)
}

func cloneID(c *domain.CharacterID) *domain.CharacterID {
	if c == nil {
		return nil
	}
	return domain.CharacterPtr(*c)
}
