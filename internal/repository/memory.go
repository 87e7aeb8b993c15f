// Package repository provides persistence for authorities, laws, routes,
// patrols and patrol memberships.
//
// Two implementations share the same method set: MemoryStore for tests and
// dry runs, and Store for PostgreSQL via the generated sqlc queries.
// Deleting a parent removes its dependents the way the foreign keys of the
// SQL schema do (authority -> cells, laws, routes; route -> patrols;
// patrol -> members).
//
// Import Path: lawwarden.io/warden/internal/repository
package repository

import (
	"context"
	"sort"
	"sync"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
)

// MemoryStore is an in-process store with cascading deletes.
type MemoryStore struct {
	mu          sync.RWMutex
	authorities map[domain.AuthorityID]*domain.LegalAuthority
	cells       map[domain.AuthorityID]map[domain.NodeID]struct{}
	laws        map[domain.LawID]*domain.Law
	routes      map[domain.RouteID]*domain.PatrolRoute
	patrols     map[domain.PatrolID]*domain.Patrol
	members     map[domain.PatrolID]map[domain.CharacterID]domain.PatrolMember
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		authorities: make(map[domain.AuthorityID]*domain.LegalAuthority),
		cells:       make(map[domain.AuthorityID]map[domain.NodeID]struct{}),
		laws:        make(map[domain.LawID]*domain.Law),
		routes:      make(map[domain.RouteID]*domain.PatrolRoute),
		patrols:     make(map[domain.PatrolID]*domain.Patrol),
		members:     make(map[domain.PatrolID]map[domain.CharacterID]domain.PatrolMember),
	}
}

// SaveAuthority upserts the authority row. Territory cells are kept in their
// own table and written through AddCell and RemoveCell, except on first
// insert where the initial territory is stored too.
func (s *MemoryStore) SaveAuthority(_ context.Context, a *domain.LegalAuthority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := a.Clone()
	row.Territory = nil
	s.authorities[a.ID] = row
	if _, ok := s.cells[a.ID]; !ok {
		cells := make(map[domain.NodeID]struct{}, len(a.Territory))
		for _, n := range a.Territory {
			cells[n] = struct{}{}
		}
		s.cells[a.ID] = cells
	}
	return nil
}

// DeleteAuthority removes the authority and everything that references it.
func (s *MemoryStore) DeleteAuthority(_ context.Context, id domain.AuthorityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.authorities, id)
	delete(s.cells, id)
	for lid, l := range s.laws {
		if l.AuthorityID == id {
			delete(s.laws, lid)
		}
	}
	for rid, r := range s.routes {
		if r.AuthorityID == id {
			s.deleteRouteLocked(rid)
		}
	}
	for pid, p := range s.patrols {
		if p.AuthorityID == id {
			s.deletePatrolLocked(pid)
		}
	}
	return nil
}

// AddCell adds a jurisdiction cell. Adding an existing cell is a no-op.
func (s *MemoryStore) AddCell(_ context.Context, id domain.AuthorityID, node domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authorities[id]; !ok {
		return apperrors.ErrAuthorityNotFoundf(string(id))
	}
	cells, ok := s.cells[id]
	if !ok {
		cells = make(map[domain.NodeID]struct{})
		s.cells[id] = cells
	}
	cells[node] = struct{}{}
	return nil
}

// RemoveCell removes a jurisdiction cell. Removing a missing cell is a no-op.
func (s *MemoryStore) RemoveCell(_ context.Context, id domain.AuthorityID, node domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cells[id], node)
	return nil
}

// SaveLaw upserts a law.
func (s *MemoryStore) SaveLaw(_ context.Context, law *domain.Law) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authorities[law.AuthorityID]; !ok {
		return apperrors.ErrAuthorityNotFoundf(string(law.AuthorityID))
	}
	l := *law
	s.laws[law.ID] = &l
	return nil
}

// LoadAuthorities returns every authority with its territory, sorted by ID.
func (s *MemoryStore) LoadAuthorities(_ context.Context) ([]*domain.LegalAuthority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.LegalAuthority, 0, len(s.authorities))
	for id, a := range s.authorities {
		row := a.Clone()
		for n := range s.cells[id] {
			row.Territory = append(row.Territory, n)
		}
		sort.Slice(row.Territory, func(i, j int) bool { return row.Territory[i] < row.Territory[j] })
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadLaws returns every law, sorted by ID.
func (s *MemoryStore) LoadLaws(_ context.Context) ([]*domain.Law, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Law, 0, len(s.laws))
	for _, l := range s.laws {
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveRoute inserts a route. Routes are immutable, so saving an existing ID
// replaces the row wholesale.
func (s *MemoryStore) SaveRoute(_ context.Context, r *domain.PatrolRoute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authorities[r.AuthorityID]; !ok {
		return apperrors.ErrAuthorityNotFoundf(string(r.AuthorityID))
	}
	s.routes[r.ID] = r.Clone()
	return nil
}

// DeleteRoute removes a route and its patrols.
func (s *MemoryStore) DeleteRoute(_ context.Context, id domain.RouteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteRouteLocked(id)
	return nil
}

func (s *MemoryStore) deleteRouteLocked(id domain.RouteID) {
	delete(s.routes, id)
	for pid, p := range s.patrols {
		if p.RouteID == id {
			s.deletePatrolLocked(pid)
		}
	}
}

// LoadRoutes returns every route, sorted by ID.
func (s *MemoryStore) LoadRoutes(_ context.Context) ([]*domain.PatrolRoute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.PatrolRoute, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SavePatrol upserts a patrol row.
func (s *MemoryStore) SavePatrol(_ context.Context, p *domain.Patrol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[p.RouteID]; !ok {
		return apperrors.ErrRouteNotFoundf(string(p.RouteID))
	}
	s.patrols[p.ID] = p.Clone()
	return nil
}

// DeletePatrol removes a patrol row and its memberships.
func (s *MemoryStore) DeletePatrol(_ context.Context, id domain.PatrolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletePatrolLocked(id)
	return nil
}

func (s *MemoryStore) deletePatrolLocked(id domain.PatrolID) {
	delete(s.patrols, id)
	delete(s.members, id)
}

// LoadPatrols returns every patrol row, sorted by ID.
func (s *MemoryStore) LoadPatrols(_ context.Context) ([]*domain.Patrol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Patrol, 0, len(s.patrols))
	for _, p := range s.patrols {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddMember inserts a membership row. A character holds at most one row.
func (s *MemoryStore) AddMember(_ context.Context, m domain.PatrolMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patrols[m.PatrolID]; !ok {
		return apperrors.ErrPatrolNotFoundf(string(m.PatrolID))
	}
	for pid, rows := range s.members {
		if _, ok := rows[m.CharacterID]; ok && pid != m.PatrolID {
			return apperrors.ErrAlreadyInPatrolf(string(m.CharacterID), string(pid))
		}
	}
	rows, ok := s.members[m.PatrolID]
	if !ok {
		rows = make(map[domain.CharacterID]domain.PatrolMember)
		s.members[m.PatrolID] = rows
	}
	rows[m.CharacterID] = m
	return nil
}

// RemoveMember deletes a membership row. Removing a missing row is a no-op.
func (s *MemoryStore) RemoveMember(_ context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members[patrolID], characterID)
	return nil
}

// LoadMembers returns every membership row ordered by patrol then tenure.
func (s *MemoryStore) LoadMembers(_ context.Context) ([]domain.PatrolMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PatrolMember
	for _, rows := range s.members {
		for _, m := range rows {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PatrolID != out[j].PatrolID {
			return out[i].PatrolID < out[j].PatrolID
		}
		return out[i].JoinedSeq < out[j].JoinedSeq
	})
	return out, nil
}
