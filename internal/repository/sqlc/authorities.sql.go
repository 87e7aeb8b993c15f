package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const deleteAuthority = `-- name: DeleteAuthority :execrows
DELETE FROM legal_authorities WHERE id = $1
`

func (q *Queries) DeleteAuthority(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAuthority, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteCell = `-- name: DeleteCell :exec
DELETE FROM legal_authority_cells WHERE authority_id = $1 AND node_id = $2
`

type DeleteCellParams struct {
	AuthorityID string `json:"authority_id"`
	NodeID      string `json:"node_id"`
}

func (q *Queries) DeleteCell(ctx context.Context, arg DeleteCellParams) error {
	_, err := q.db.Exec(ctx, deleteCell, arg.AuthorityID, arg.NodeID)
	return err
}

const insertCell = `-- name: InsertCell :exec
INSERT INTO legal_authority_cells (authority_id, node_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

type InsertCellParams struct {
	AuthorityID string `json:"authority_id"`
	NodeID      string `json:"node_id"`
}

func (q *Queries) InsertCell(ctx context.Context, arg InsertCellParams) error {
	_, err := q.db.Exec(ctx, insertCell, arg.AuthorityID, arg.NodeID)
	return err
}

const listAuthorities = `-- name: ListAuthorities :many
SELECT id, name, players_know_their_crimes, marshalling_node, preparing_node, prison_node, stowing_node, created_at, updated_at
FROM legal_authorities
ORDER BY id
`

func (q *Queries) ListAuthorities(ctx context.Context) ([]LegalAuthority, error) {
	rows, err := q.db.Query(ctx, listAuthorities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LegalAuthority
	for rows.Next() {
		var i LegalAuthority
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.PlayersKnowTheirCrimes,
			&i.MarshallingNode,
			&i.PreparingNode,
			&i.PrisonNode,
			&i.StowingNode,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCells = `-- name: ListCells :many
SELECT authority_id, node_id FROM legal_authority_cells
ORDER BY authority_id, node_id
`

func (q *Queries) ListCells(ctx context.Context) ([]LegalAuthorityCell, error) {
	rows, err := q.db.Query(ctx, listCells)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LegalAuthorityCell
	for rows.Next() {
		var i LegalAuthorityCell
		if err := rows.Scan(&i.AuthorityID, &i.NodeID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listLaws = `-- name: ListLaws :many
SELECT id, authority_id, name, enforcement_strategy FROM laws
ORDER BY id
`

func (q *Queries) ListLaws(ctx context.Context) ([]Law, error) {
	rows, err := q.db.Query(ctx, listLaws)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Law
	for rows.Next() {
		var i Law
		if err := rows.Scan(
			&i.ID,
			&i.AuthorityID,
			&i.Name,
			&i.EnforcementStrategy,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertAuthority = `-- name: UpsertAuthority :exec
INSERT INTO legal_authorities (
    id, name, players_know_their_crimes,
    marshalling_node, preparing_node, prison_node, stowing_node,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    players_know_their_crimes = EXCLUDED.players_know_their_crimes,
    marshalling_node = EXCLUDED.marshalling_node,
    preparing_node = EXCLUDED.preparing_node,
    prison_node = EXCLUDED.prison_node,
    stowing_node = EXCLUDED.stowing_node,
    updated_at = EXCLUDED.updated_at
`

type UpsertAuthorityParams struct {
	ID                     string             `json:"id"`
	Name                   string             `json:"name"`
	PlayersKnowTheirCrimes bool               `json:"players_know_their_crimes"`
	MarshallingNode        pgtype.Text        `json:"marshalling_node"`
	PreparingNode          pgtype.Text        `json:"preparing_node"`
	PrisonNode             pgtype.Text        `json:"prison_node"`
	StowingNode            pgtype.Text        `json:"stowing_node"`
	CreatedAt              pgtype.Timestamptz `json:"created_at"`
	UpdatedAt              pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpsertAuthority(ctx context.Context, arg UpsertAuthorityParams) error {
	_, err := q.db.Exec(ctx, upsertAuthority,
		arg.ID,
		arg.Name,
		arg.PlayersKnowTheirCrimes,
		arg.MarshallingNode,
		arg.PreparingNode,
		arg.PrisonNode,
		arg.StowingNode,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const upsertLaw = `-- name: UpsertLaw :exec
INSERT INTO laws (id, authority_id, name, enforcement_strategy)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    enforcement_strategy = EXCLUDED.enforcement_strategy
`

type UpsertLawParams struct {
	ID                  string `json:"id"`
	AuthorityID         string `json:"authority_id"`
	Name                string `json:"name"`
	EnforcementStrategy string `json:"enforcement_strategy"`
}

func (q *Queries) UpsertLaw(ctx context.Context, arg UpsertLawParams) error {
	_, err := q.db.Exec(ctx, upsertLaw,
		arg.ID,
		arg.AuthorityID,
		arg.Name,
		arg.EnforcementStrategy,
	)
	return err
}
