// Package jurisdiction owns legal authorities: their territory coverage,
// their four holding nodes, and the laws they enforce.
package jurisdiction

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
	"lawwarden.io/warden/internal/territory"
)

// Store persists registry state. Implementations must cascade authority
// deletion to cells, laws, routes, and patrols.
type Store interface {
	SaveAuthority(ctx context.Context, a *domain.LegalAuthority) error
	DeleteAuthority(ctx context.Context, id domain.AuthorityID) error
	AddCell(ctx context.Context, id domain.AuthorityID, node domain.NodeID) error
	RemoveCell(ctx context.Context, id domain.AuthorityID, node domain.NodeID) error
	SaveLaw(ctx context.Context, law *domain.Law) error
	LoadAuthorities(ctx context.Context) ([]*domain.LegalAuthority, error)
	LoadLaws(ctx context.Context) ([]*domain.Law, error)
}

// AuthorityInput describes an authority to register.
type AuthorityInput struct {
	// ID is optional; a new one is generated when empty.
	ID                     domain.AuthorityID
	Name                   string
	Holding                domain.HoldingNodes
	PlayersKnowTheirCrimes bool
	Territory              []domain.NodeID
}

type entry struct {
	authority *domain.LegalAuthority // Territory left nil; cells is authoritative
	cells     map[domain.NodeID]struct{}
	// deleting hides the authority from lookups while dependents are cancelled.
	deleting bool
}

func (e *entry) snapshot() *domain.LegalAuthority {
	out := e.authority.Clone()
	out.Territory = make([]domain.NodeID, 0, len(e.cells))
	for n := range e.cells {
		out.Territory = append(out.Territory, n)
	}
	sort.Slice(out.Territory, func(i, j int) bool { return out.Territory[i] < out.Territory[j] })
	return out
}

// Registry is the jurisdiction registry. It is safe for concurrent use; the
// patrol engine only reads from it.
type Registry struct {
	mu          sync.RWMutex
	graph       territory.Graph
	store       Store
	events      domain.Publisher
	authorities map[domain.AuthorityID]*entry
	laws        map[domain.LawID]*domain.Law
	now         func() time.Time
}

// NewRegistry creates a registry. store and events may be nil.
func NewRegistry(graph territory.Graph, store Store, events domain.Publisher) *Registry {
	return &Registry{
		graph:       graph,
		store:       store,
		events:      events,
		authorities: make(map[domain.AuthorityID]*entry),
		laws:        make(map[domain.LawID]*domain.Law),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Load replaces in-memory state with the persisted authorities and laws.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	auths, err := r.store.LoadAuthorities(ctx)
	if err != nil {
		return fmt.Errorf("load authorities: %w", err)
	}
	laws, err := r.store.LoadLaws(ctx)
	if err != nil {
		return fmt.Errorf("load laws: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.authorities = make(map[domain.AuthorityID]*entry, len(auths))
	for _, a := range auths {
		e := &entry{authority: a.Clone(), cells: make(map[domain.NodeID]struct{}, len(a.Territory))}
		for _, n := range a.Territory {
			e.cells[n] = struct{}{}
		}
		e.authority.Territory = nil
		r.authorities[a.ID] = e
	}
	r.laws = make(map[domain.LawID]*domain.Law, len(laws))
	for _, l := range laws {
		law := *l
		r.laws[l.ID] = &law
	}
	logger.Info("Jurisdiction registry loaded",
		zap.Int("authorities", len(r.authorities)),
		zap.Int("laws", len(r.laws)),
	)
	return nil
}

// RegisterAuthority validates and stores a new authority.
func (r *Registry) RegisterAuthority(ctx context.Context, in AuthorityInput) (domain.AuthorityID, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperrors.BadRequest(apperrors.CodeValidationFailed, "authority name is required")
	}
	id := in.ID
	if id == "" {
		id = domain.AuthorityID(domain.NewID(domain.PrefixAuthority))
	}

	cells := make(map[domain.NodeID]struct{}, len(in.Territory))
	for _, n := range in.Territory {
		if !r.graph.IsValidNode(n) {
			return "", apperrors.ErrInvalidNodeReferencef(string(n), "territory node does not exist")
		}
		cells[n] = struct{}{}
	}
	if err := r.validateHolding(in.Holding, cells); err != nil {
		return "", err
	}

	now := r.now()
	e := &entry{
		authority: &domain.LegalAuthority{
			ID:                     id,
			Name:                   name,
			PlayersKnowTheirCrimes: in.PlayersKnowTheirCrimes,
			Holding:                in.Holding.Clone(),
			CreatedAt:              now,
			UpdatedAt:              now,
		},
		cells: cells,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.authorities[id]; exists {
		return "", apperrors.Conflict(apperrors.CodeAuthorityExists, "legal authority already exists").
			WithParams(map[string]interface{}{"authority_id": string(id)})
	}
	if r.store != nil {
		if err := r.store.SaveAuthority(ctx, e.snapshot()); err != nil {
			return "", fmt.Errorf("save authority %s: %w", id, err)
		}
	}
	r.authorities[id] = e

	logger.Info("Legal authority registered",
		zap.String("authority_id", string(id)),
		zap.String("name", name),
		zap.Int("cells", len(cells)),
	)
	return id, nil
}

// UpdateHoldingNodes replaces the authority's holding nodes.
func (r *Registry) UpdateHoldingNodes(ctx context.Context, id domain.AuthorityID, holding domain.HoldingNodes) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	if err := r.validateHolding(holding, e.cells); err != nil {
		return err
	}

	next := e.snapshot()
	next.Holding = holding.Clone()
	next.UpdatedAt = r.now()
	if r.store != nil {
		if err := r.store.SaveAuthority(ctx, next); err != nil {
			return fmt.Errorf("save authority %s: %w", id, err)
		}
	}
	e.authority.Holding = next.Holding
	e.authority.UpdatedAt = next.UpdatedAt
	return nil
}

// AddTerritory adds node to the authority's coverage. Adding a covered node is a no-op.
func (r *Registry) AddTerritory(ctx context.Context, id domain.AuthorityID, node domain.NodeID) error {
	if !r.graph.IsValidNode(node) {
		return apperrors.ErrInvalidNodeReferencef(string(node), "territory node does not exist")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	if _, ok := e.cells[node]; ok {
		return nil
	}
	if r.store != nil {
		if err := r.store.AddCell(ctx, id, node); err != nil {
			return fmt.Errorf("add cell %s to %s: %w", node, id, err)
		}
	}
	e.cells[node] = struct{}{}
	return nil
}

// RemoveTerritory drops node from the authority's coverage. Removing an
// uncovered node is a no-op. The removal is rejected when a configured
// holding node would end up neither inside nor adjacent to the remaining
// territory, including when node is the last cell.
func (r *Registry) RemoveTerritory(ctx context.Context, id domain.AuthorityID, node domain.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	if _, ok := e.cells[node]; !ok {
		return nil
	}

	remaining := make(map[domain.NodeID]struct{}, len(e.cells))
	for n := range e.cells {
		if n != node {
			remaining[n] = struct{}{}
		}
	}
	if err := r.validateHolding(e.authority.Holding, remaining); err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.RemoveCell(ctx, id, node); err != nil {
			return fmt.Errorf("remove cell %s from %s: %w", node, id, err)
		}
	}
	delete(e.cells, node)
	return nil
}

// IsWithinJurisdiction reports whether the authority covers node.
func (r *Registry) IsWithinJurisdiction(id domain.AuthorityID, node domain.NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.authorities[id]
	if !ok || e.deleting {
		return false
	}
	_, ok = e.cells[node]
	return ok
}

// ResolveHoldingNode returns the node configured for purpose. An unset slot
// yields an error wrapping apperrors.ErrNotConfigured.
func (r *Registry) ResolveHoldingNode(id domain.AuthorityID, purpose domain.HoldingPurpose) (domain.NodeID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookupLocked(id)
	if err != nil {
		return "", err
	}
	n := e.authority.Holding.Get(purpose)
	if n == nil {
		return "", apperrors.ErrNotConfiguredf(string(id), purpose.String())
	}
	return *n, nil
}

// Exists reports whether the authority is registered and not being deleted.
func (r *Registry) Exists(id domain.AuthorityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.authorities[id]
	return ok && !e.deleting
}

// Authority returns a snapshot of one authority.
func (r *Registry) Authority(id domain.AuthorityID) (*domain.LegalAuthority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// Authorities returns snapshots of every authority ordered by id.
func (r *Registry) Authorities() []*domain.LegalAuthority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.LegalAuthority, 0, len(r.authorities))
	for _, e := range r.authorities {
		if !e.deleting {
			out = append(out, e.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteAuthority removes an authority. AUTHORITY_DELETING is published before
// the persisted rows go away so in-flight patrols are cancelled first;
// AUTHORITY_DELETED follows once the store delete succeeded. When the store
// fails the authority becomes visible again and AUTHORITY_DELETED is not sent.
func (r *Registry) DeleteAuthority(ctx context.Context, id domain.AuthorityID, actor string) error {
	r.mu.Lock()
	e, err := r.lookupLocked(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	e.deleting = true
	name := e.authority.Name
	r.mu.Unlock()

	payload := domain.AuthorityDeletedPayload{AuthorityID: id, Name: name}
	if err := domain.Publish(ctx, r.events, domain.EventAuthorityDeleting, domain.AggregateAuthority, string(id), actor, payload); err != nil {
		logger.Warn("Authority cancellation handlers reported errors",
			zap.String("authority_id", string(id)),
			zap.Error(err),
		)
	}

	if r.store != nil {
		if err := r.store.DeleteAuthority(ctx, id); err != nil {
			r.mu.Lock()
			e.deleting = false
			r.mu.Unlock()
			return fmt.Errorf("delete authority %s: %w", id, err)
		}
	}

	r.mu.Lock()
	delete(r.authorities, id)
	for lawID, law := range r.laws {
		if law.AuthorityID == id {
			delete(r.laws, lawID)
		}
	}
	r.mu.Unlock()

	if err := domain.Publish(ctx, r.events, domain.EventAuthorityDeleted, domain.AggregateAuthority, string(id), actor, payload); err != nil {
		logger.Warn("Authority deletion handlers reported errors",
			zap.String("authority_id", string(id)),
			zap.Error(err),
		)
	}

	logger.Info("Legal authority deleted",
		zap.String("authority_id", string(id)),
		zap.String("actor", actor),
	)
	return nil
}

// AddLaw registers a law owned by the authority. The strategy string is kept
// as written; the enforcement policy decides what it means.
func (r *Registry) AddLaw(ctx context.Context, authorityID domain.AuthorityID, law domain.Law) (domain.LawID, error) {
	name := strings.TrimSpace(law.Name)
	if name == "" {
		return "", apperrors.BadRequest(apperrors.CodeValidationFailed, "law name is required")
	}
	if law.ID == "" {
		law.ID = domain.LawID(domain.NewID(domain.PrefixLaw))
	}
	law.Name = name
	law.AuthorityID = authorityID
	law.EnforcementStrategy = strings.ToLower(strings.TrimSpace(law.EnforcementStrategy))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.lookupLocked(authorityID); err != nil {
		return "", err
	}
	if r.store != nil {
		if err := r.store.SaveLaw(ctx, &law); err != nil {
			return "", fmt.Errorf("save law %s: %w", law.ID, err)
		}
	}
	r.laws[law.ID] = &law
	return law.ID, nil
}

// Law returns a copy of one law.
func (r *Registry) Law(id domain.LawID) (domain.Law, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	law, ok := r.laws[id]
	if !ok {
		return domain.Law{}, apperrors.ErrLawNotFoundf(string(id))
	}
	return *law, nil
}

// LawsFor returns the authority's laws ordered by id.
func (r *Registry) LawsFor(authorityID domain.AuthorityID) []domain.Law {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Law
	for _, law := range r.laws {
		if law.AuthorityID == authorityID {
			out = append(out, *law)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) lookupLocked(id domain.AuthorityID) (*entry, error) {
	e, ok := r.authorities[id]
	if !ok || e.deleting {
		return nil, apperrors.ErrAuthorityNotFoundf(string(id))
	}
	return e, nil
}

// validateHolding checks every configured holding node exists and lies inside
// or next to cells. An authority without territory can hold no holding nodes.
func (r *Registry) validateHolding(h domain.HoldingNodes, cells map[domain.NodeID]struct{}) error {
	for _, purpose := range domain.HoldingPurposes {
		n := h.Get(purpose)
		if n == nil {
			continue
		}
		if !r.graph.IsValidNode(*n) {
			return apperrors.ErrInvalidNodeReferencef(string(*n), purpose.String()+" node does not exist")
		}
		if !r.withinOrAdjacent(*n, cells) {
			return apperrors.ErrInvalidNodeReferencef(string(*n),
				purpose.String()+" node is neither within nor adjacent to the jurisdiction")
		}
	}
	return nil
}

func (r *Registry) withinOrAdjacent(node domain.NodeID, cells map[domain.NodeID]struct{}) bool {
	if _, ok := cells[node]; ok {
		return true
	}
	for _, n := range r.graph.Neighbors(node) {
		if _, ok := cells[n]; ok {
			return true
		}
	}
	// exits may be one-way; a cell leading into node also counts
	for c := range cells {
		for _, n := range r.graph.Neighbors(c) {
			if n == node {
				return true
			}
		}
	}
	return false
}
