package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lawwarden.io/warden/internal/domain"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/repository/sqlc"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Store persists patrol state in PostgreSQL through the generated queries.
type Store struct {
	pool *pgxpool.Pool
	q    *sqlc.Queries
}

// NewStore creates a Store on the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: sqlc.New(pool)}
}

// Queries exposes the generated queries for packages that share the pool.
func (s *Store) Queries() *sqlc.Queries {
	return s.q
}

func (s *Store) inTx(ctx context.Context, fn func(q *sqlc.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.q.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SaveAuthority upserts the authority row and inserts its territory cells.
func (s *Store) SaveAuthority(ctx context.Context, a *domain.LegalAuthority) error {
	return s.inTx(ctx, func(q *sqlc.Queries) error {
		if err := q.UpsertAuthority(ctx, sqlc.UpsertAuthorityParams{
			ID:                     string(a.ID),
			Name:                   a.Name,
			PlayersKnowTheirCrimes: a.PlayersKnowTheirCrimes,
			MarshallingNode:        nodeText(a.Holding.Marshalling),
			PreparingNode:          nodeText(a.Holding.Preparing),
			PrisonNode:             nodeText(a.Holding.Prison),
			StowingNode:            nodeText(a.Holding.Stowing),
			CreatedAt:              timestamptz(a.CreatedAt),
			UpdatedAt:              timestamptz(a.UpdatedAt),
		}); err != nil {
			return fmt.Errorf("upsert authority %s: %w", a.ID, err)
		}
		for _, n := range a.Territory {
			if err := q.InsertCell(ctx, sqlc.InsertCellParams{AuthorityID: string(a.ID), NodeID: string(n)}); err != nil {
				return fmt.Errorf("insert cell %s/%s: %w", a.ID, n, err)
			}
		}
		return nil
	})
}

// DeleteAuthority removes the authority. Cells, laws, routes, patrols and
// members go with it through ON DELETE CASCADE.
func (s *Store) DeleteAuthority(ctx context.Context, id domain.AuthorityID) error {
	if _, err := s.q.DeleteAuthority(ctx, string(id)); err != nil {
		return fmt.Errorf("delete authority %s: %w", id, err)
	}
	return nil
}

// AddCell inserts a jurisdiction cell.
func (s *Store) AddCell(ctx context.Context, id domain.AuthorityID, node domain.NodeID) error {
	err := s.q.InsertCell(ctx, sqlc.InsertCellParams{AuthorityID: string(id), NodeID: string(node)})
	if isPgCode(err, pgForeignKeyViolation) {
		return apperrors.ErrAuthorityNotFoundf(string(id))
	}
	if err != nil {
		return fmt.Errorf("insert cell %s/%s: %w", id, node, err)
	}
	return nil
}

// RemoveCell deletes a jurisdiction cell.
func (s *Store) RemoveCell(ctx context.Context, id domain.AuthorityID, node domain.NodeID) error {
	if err := s.q.DeleteCell(ctx, sqlc.DeleteCellParams{AuthorityID: string(id), NodeID: string(node)}); err != nil {
		return fmt.Errorf("delete cell %s/%s: %w", id, node, err)
	}
	return nil
}

// SaveLaw upserts a law.
func (s *Store) SaveLaw(ctx context.Context, law *domain.Law) error {
	err := s.q.UpsertLaw(ctx, sqlc.UpsertLawParams{
		ID:                  string(law.ID),
		AuthorityID:         string(law.AuthorityID),
		Name:                law.Name,
		EnforcementStrategy: law.EnforcementStrategy,
	})
	if isPgCode(err, pgForeignKeyViolation) {
		return apperrors.ErrAuthorityNotFoundf(string(law.AuthorityID))
	}
	if err != nil {
		return fmt.Errorf("upsert law %s: %w", law.ID, err)
	}
	return nil
}

// LoadAuthorities returns every authority with its territory.
func (s *Store) LoadAuthorities(ctx context.Context) ([]*domain.LegalAuthority, error) {
	rows, err := s.q.ListAuthorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authorities: %w", err)
	}
	cells, err := s.q.ListCells(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}

	byID := make(map[string]*domain.LegalAuthority, len(rows))
	out := make([]*domain.LegalAuthority, 0, len(rows))
	for _, r := range rows {
		a := &domain.LegalAuthority{
			ID:                     domain.AuthorityID(r.ID),
			Name:                   r.Name,
			PlayersKnowTheirCrimes: r.PlayersKnowTheirCrimes,
			Holding: domain.HoldingNodes{
				Marshalling: textNode(r.MarshallingNode),
				Preparing:   textNode(r.PreparingNode),
				Prison:      textNode(r.PrisonNode),
				Stowing:     textNode(r.StowingNode),
			},
			CreatedAt: r.CreatedAt.Time,
			UpdatedAt: r.UpdatedAt.Time,
		}
		byID[r.ID] = a
		out = append(out, a)
	}
	for _, c := range cells {
		if a, ok := byID[c.AuthorityID]; ok {
			a.Territory = append(a.Territory, domain.NodeID(c.NodeID))
		}
	}
	return out, nil
}

// LoadLaws returns every law.
func (s *Store) LoadLaws(ctx context.Context) ([]*domain.Law, error) {
	rows, err := s.q.ListLaws(ctx)
	if err != nil {
		return nil, fmt.Errorf("list laws: %w", err)
	}
	out := make([]*domain.Law, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Law{
			ID:                  domain.LawID(r.ID),
			AuthorityID:         domain.AuthorityID(r.AuthorityID),
			Name:                r.Name,
			EnforcementStrategy: r.EnforcementStrategy,
		})
	}
	return out, nil
}

// SaveRoute inserts a route with its ordered waypoints.
func (s *Store) SaveRoute(ctx context.Context, r *domain.PatrolRoute) error {
	return s.inTx(ctx, func(q *sqlc.Queries) error {
		var trigger pgtype.Text
		if r.StartTrigger != nil {
			trigger = pgtype.Text{String: string(*r.StartTrigger), Valid: true}
		}
		err := q.InsertRoute(ctx, sqlc.InsertRouteParams{
			ID:           string(r.ID),
			AuthorityID:  string(r.AuthorityID),
			Name:         r.Name,
			StartTrigger: trigger,
			MinMembers:   int32(r.MinMembers),
			MaxActive:    int32(r.MaxActive),
			CreatedAt:    timestamptz(r.CreatedAt),
		})
		switch {
		case isPgCode(err, pgForeignKeyViolation):
			return apperrors.ErrAuthorityNotFoundf(string(r.AuthorityID))
		case isPgCode(err, pgUniqueViolation):
			return apperrors.Conflict(apperrors.CodeRouteExists, fmt.Sprintf("route %s already exists", r.ID))
		case err != nil:
			return fmt.Errorf("insert route %s: %w", r.ID, err)
		}
		for i, n := range r.Waypoints {
			if err := q.InsertWaypoint(ctx, sqlc.InsertWaypointParams{
				RouteID: string(r.ID),
				Ordinal: int32(i),
				NodeID:  string(n),
			}); err != nil {
				return fmt.Errorf("insert waypoint %d of route %s: %w", i, r.ID, err)
			}
		}
		return nil
	})
}

// DeleteRoute removes a route. Patrols and members cascade.
func (s *Store) DeleteRoute(ctx context.Context, id domain.RouteID) error {
	if _, err := s.q.DeleteRoute(ctx, string(id)); err != nil {
		return fmt.Errorf("delete route %s: %w", id, err)
	}
	return nil
}

// LoadRoutes returns every route with its waypoints in order.
func (s *Store) LoadRoutes(ctx context.Context) ([]*domain.PatrolRoute, error) {
	rows, err := s.q.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	waypoints, err := s.q.ListWaypoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list waypoints: %w", err)
	}

	byID := make(map[string]*domain.PatrolRoute, len(rows))
	out := make([]*domain.PatrolRoute, 0, len(rows))
	for _, r := range rows {
		route := &domain.PatrolRoute{
			ID:          domain.RouteID(r.ID),
			AuthorityID: domain.AuthorityID(r.AuthorityID),
			Name:        r.Name,
			MinMembers:  int(r.MinMembers),
			MaxActive:   int(r.MaxActive),
			CreatedAt:   r.CreatedAt.Time,
		}
		if r.StartTrigger.Valid {
			hook := domain.HookID(r.StartTrigger.String)
			route.StartTrigger = &hook
		}
		byID[r.ID] = route
		out = append(out, route)
	}
	for _, w := range waypoints {
		if route, ok := byID[w.RouteID]; ok {
			route.Waypoints = append(route.Waypoints, domain.NodeID(w.NodeID))
		}
	}
	return out, nil
}

// SavePatrol upserts a patrol row, including its enforcement sub-task.
func (s *Store) SavePatrol(ctx context.Context, p *domain.Patrol) error {
	var enforcement []byte
	if p.Enforcement != nil {
		raw, err := json.Marshal(p.Enforcement)
		if err != nil {
			return fmt.Errorf("marshal enforcement of patrol %s: %w", p.ID, err)
		}
		enforcement = raw
	}
	err := s.q.UpsertPatrol(ctx, sqlc.UpsertPatrolParams{
		ID:            string(p.ID),
		RouteID:       string(p.RouteID),
		AuthorityID:   string(p.AuthorityID),
		Phase:         int16(p.Phase),
		LastMajorNode: nodeText(p.LastMajorNode),
		NextMajorNode: nodeText(p.NextMajorNode),
		LeaderID:      characterText(p.LeaderID),
		CharacterID:   characterText(p.CharacterID),
		WaypointIndex: int32(p.WaypointIndex),
		PhaseTicks:    int32(p.PhaseTicks),
		StalledTicks:  int32(p.StalledTicks),
		Enforcement:   enforcement,
		CreatedAt:     timestamptz(p.CreatedAt),
		UpdatedAt:     timestamptz(p.UpdatedAt),
	})
	if isPgCode(err, pgForeignKeyViolation) {
		return apperrors.ErrRouteNotFoundf(string(p.RouteID))
	}
	if err != nil {
		return fmt.Errorf("upsert patrol %s: %w", p.ID, err)
	}
	return nil
}

// DeletePatrol removes a patrol row. Members cascade.
func (s *Store) DeletePatrol(ctx context.Context, id domain.PatrolID) error {
	if err := s.q.DeletePatrol(ctx, string(id)); err != nil {
		return fmt.Errorf("delete patrol %s: %w", id, err)
	}
	return nil
}

// LoadPatrols returns every persisted patrol.
func (s *Store) LoadPatrols(ctx context.Context) ([]*domain.Patrol, error) {
	rows, err := s.q.ListPatrols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patrols: %w", err)
	}
	out := make([]*domain.Patrol, 0, len(rows))
	for _, r := range rows {
		p := &domain.Patrol{
			ID:            domain.PatrolID(r.ID),
			RouteID:       domain.RouteID(r.RouteID),
			AuthorityID:   domain.AuthorityID(r.AuthorityID),
			Phase:         domain.PatrolPhase(r.Phase),
			LastMajorNode: textNode(r.LastMajorNode),
			NextMajorNode: textNode(r.NextMajorNode),
			LeaderID:      textCharacter(r.LeaderID),
			CharacterID:   textCharacter(r.CharacterID),
			WaypointIndex: int(r.WaypointIndex),
			PhaseTicks:    int(r.PhaseTicks),
			StalledTicks:  int(r.StalledTicks),
			CreatedAt:     r.CreatedAt.Time,
			UpdatedAt:     r.UpdatedAt.Time,
		}
		if len(r.Enforcement) > 0 {
			var task domain.EnforcementTask
			if err := json.Unmarshal(r.Enforcement, &task); err != nil {
				return nil, fmt.Errorf("decode enforcement of patrol %s: %w", r.ID, err)
			}
			p.Enforcement = &task
		}
		out = append(out, p)
	}
	return out, nil
}

// AddMember inserts a membership row.
func (s *Store) AddMember(ctx context.Context, m domain.PatrolMember) error {
	err := s.q.InsertMember(ctx, sqlc.InsertMemberParams{
		PatrolID:    string(m.PatrolID),
		CharacterID: string(m.CharacterID),
		JoinedSeq:   m.JoinedSeq,
		JoinedAt:    timestamptz(m.JoinedAt),
	})
	switch {
	case isPgCode(err, pgForeignKeyViolation):
		return apperrors.ErrPatrolNotFoundf(string(m.PatrolID))
	case isPgCode(err, pgUniqueViolation):
		return apperrors.ErrAlreadyInPatrolf(string(m.CharacterID), "another patrol")
	case err != nil:
		return fmt.Errorf("insert member %s/%s: %w", m.PatrolID, m.CharacterID, err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (s *Store) RemoveMember(ctx context.Context, patrolID domain.PatrolID, characterID domain.CharacterID) error {
	if err := s.q.DeleteMember(ctx, sqlc.DeleteMemberParams{
		PatrolID:    string(patrolID),
		CharacterID: string(characterID),
	}); err != nil {
		return fmt.Errorf("delete member %s/%s: %w", patrolID, characterID, err)
	}
	return nil
}

// LoadMembers returns every membership row ordered by patrol then tenure.
func (s *Store) LoadMembers(ctx context.Context) ([]domain.PatrolMember, error) {
	rows, err := s.q.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]domain.PatrolMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PatrolMember{
			PatrolID:    domain.PatrolID(r.PatrolID),
			CharacterID: domain.CharacterID(r.CharacterID),
			JoinedSeq:   r.JoinedSeq,
			JoinedAt:    r.JoinedAt.Time,
		})
	}
	return out, nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func nodeText(n *domain.NodeID) pgtype.Text {
	if n == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*n), Valid: true}
}

func textNode(t pgtype.Text) *domain.NodeID {
	if !t.Valid {
		return nil
	}
	return domain.NodePtr(domain.NodeID(t.String))
}

func characterText(c *domain.CharacterID) pgtype.Text {
	if c == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*c), Valid: true}
}

func textCharacter(t pgtype.Text) *domain.CharacterID {
	if !t.Valid {
		return nil
	}
	return domain.CharacterPtr(domain.CharacterID(t.String))
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		t = time.Now()
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}
