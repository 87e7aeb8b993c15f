package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const deleteMember = `-- name: DeleteMember :exec
DELETE FROM patrol_members WHERE patrol_id = $1 AND character_id = $2
`

type DeleteMemberParams struct {
	PatrolID    string `json:"patrol_id"`
	CharacterID string `json:"character_id"`
}

func (q *Queries) DeleteMember(ctx context.Context, arg DeleteMemberParams) error {
	_, err := q.db.Exec(ctx, deleteMember, arg.PatrolID, arg.CharacterID)
	return err
}

const deletePatrol = `-- name: DeletePatrol :exec
DELETE FROM patrols WHERE id = $1
`

func (q *Queries) DeletePatrol(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deletePatrol, id)
	return err
}

const insertMember = `-- name: InsertMember :exec
INSERT INTO patrol_members (patrol_id, character_id, joined_seq, joined_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (patrol_id, character_id) DO NOTHING
`

type InsertMemberParams struct {
	PatrolID    string             `json:"patrol_id"`
	CharacterID string             `json:"character_id"`
	JoinedSeq   int64              `json:"joined_seq"`
	JoinedAt    pgtype.Timestamptz `json:"joined_at"`
}

func (q *Queries) InsertMember(ctx context.Context, arg InsertMemberParams) error {
	_, err := q.db.Exec(ctx, insertMember,
		arg.PatrolID,
		arg.CharacterID,
		arg.JoinedSeq,
		arg.JoinedAt,
	)
	return err
}

const listMembers = `-- name: ListMembers :many
SELECT patrol_id, character_id, joined_seq, joined_at FROM patrol_members
ORDER BY patrol_id, joined_seq
`

func (q *Queries) ListMembers(ctx context.Context) ([]PatrolMember, error) {
	rows, err := q.db.Query(ctx, listMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PatrolMember
	for rows.Next() {
		var i PatrolMember
		if err := rows.Scan(
			&i.PatrolID,
			&i.CharacterID,
			&i.JoinedSeq,
			&i.JoinedAt,
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

const listPatrols = `-- name: ListPatrols :many
SELECT id, route_id, authority_id, phase, last_major_node, next_major_node,
       leader_id, character_id, waypoint_index, phase_ticks, stalled_ticks,
       enforcement, created_at, updated_at
FROM patrols
ORDER BY id
`

func (q *Queries) ListPatrols(ctx context.Context) ([]Patrol, error) {
	rows, err := q.db.Query(ctx, listPatrols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Patrol
	for rows.Next() {
		var i Patrol
		if err := rows.Scan(
			&i.ID,
			&i.RouteID,
			&i.AuthorityID,
			&i.Phase,
			&i.LastMajorNode,
			&i.NextMajorNode,
			&i.LeaderID,
			&i.CharacterID,
			&i.WaypointIndex,
			&i.PhaseTicks,
			&i.StalledTicks,
			&i.Enforcement,
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

const upsertPatrol = `-- name: UpsertPatrol :exec
INSERT INTO patrols (
    id, route_id, authority_id, phase, last_major_node, next_major_node,
    leader_id, character_id, waypoint_index, phase_ticks, stalled_ticks,
    enforcement, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
    phase = EXCLUDED.phase,
    last_major_node = EXCLUDED.last_major_node,
    next_major_node = EXCLUDED.next_major_node,
    leader_id = EXCLUDED.leader_id,
    character_id = EXCLUDED.character_id,
    waypoint_index = EXCLUDED.waypoint_index,
    phase_ticks = EXCLUDED.phase_ticks,
    stalled_ticks = EXCLUDED.stalled_ticks,
    enforcement = EXCLUDED.enforcement,
    updated_at = EXCLUDED.updated_at
`

type UpsertPatrolParams struct {
	ID            string             `json:"id"`
	RouteID       string             `json:"route_id"`
	AuthorityID   string             `json:"authority_id"`
	Phase         int16              `json:"phase"`
	LastMajorNode pgtype.Text        `json:"last_major_node"`
	NextMajorNode pgtype.Text        `json:"next_major_node"`
	LeaderID      pgtype.Text        `json:"leader_id"`
	CharacterID   pgtype.Text        `json:"character_id"`
	WaypointIndex int32              `json:"waypoint_index"`
	PhaseTicks    int32              `json:"phase_ticks"`
	StalledTicks  int32              `json:"stalled_ticks"`
	Enforcement   []byte             `json:"enforcement"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpsertPatrol(ctx context.Context, arg UpsertPatrolParams) error {
	_, err := q.db.Exec(ctx, upsertPatrol,
		arg.ID,
		arg.RouteID,
		arg.AuthorityID,
		arg.Phase,
		arg.LastMajorNode,
		arg.NextMajorNode,
		arg.LeaderID,
		arg.CharacterID,
		arg.WaypointIndex,
		arg.PhaseTicks,
		arg.StalledTicks,
		arg.Enforcement,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}
