package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const deleteRoute = `-- name: DeleteRoute :execrows
DELETE FROM patrol_routes WHERE id = $1
`

func (q *Queries) DeleteRoute(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRoute, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const insertRoute = `-- name: InsertRoute :exec
INSERT INTO patrol_routes (id, authority_id, name, start_trigger, min_members, max_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertRouteParams struct {
	ID           string             `json:"id"`
	AuthorityID  string             `json:"authority_id"`
	Name         string             `json:"name"`
	StartTrigger pgtype.Text        `json:"start_trigger"`
	MinMembers   int32              `json:"min_members"`
	MaxActive    int32              `json:"max_active"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) InsertRoute(ctx context.Context, arg InsertRouteParams) error {
	_, err := q.db.Exec(ctx, insertRoute,
		arg.ID,
		arg.AuthorityID,
		arg.Name,
		arg.StartTrigger,
		arg.MinMembers,
		arg.MaxActive,
		arg.CreatedAt,
	)
	return err
}

const insertWaypoint = `-- name: InsertWaypoint :exec
INSERT INTO patrol_route_waypoints (route_id, ordinal, node_id)
VALUES ($1, $2, $3)
`

type InsertWaypointParams struct {
	RouteID string `json:"route_id"`
	Ordinal int32  `json:"ordinal"`
	NodeID  string `json:"node_id"`
}

func (q *Queries) InsertWaypoint(ctx context.Context, arg InsertWaypointParams) error {
	_, err := q.db.Exec(ctx, insertWaypoint, arg.RouteID, arg.Ordinal, arg.NodeID)
	return err
}

const listRoutes = `-- name: ListRoutes :many
SELECT id, authority_id, name, start_trigger, min_members, max_active, created_at
FROM patrol_routes
ORDER BY id
`

func (q *Queries) ListRoutes(ctx context.Context) ([]PatrolRoute, error) {
	rows, err := q.db.Query(ctx, listRoutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PatrolRoute
	for rows.Next() {
		var i PatrolRoute
		if err := rows.Scan(
			&i.ID,
			&i.AuthorityID,
			&i.Name,
			&i.StartTrigger,
			&i.MinMembers,
			&i.MaxActive,
			&i.CreatedAt,
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

const listWaypoints = `-- name: ListWaypoints :many
SELECT route_id, ordinal, node_id FROM patrol_route_waypoints
ORDER BY route_id, ordinal
`

func (q *Queries) ListWaypoints(ctx context.Context) ([]PatrolRouteWaypoint, error) {
	rows, err := q.db.Query(ctx, listWaypoints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PatrolRouteWaypoint
	for rows.Next() {
		var i PatrolRouteWaypoint
		if err := rows.Scan(&i.RouteID, &i.Ordinal, &i.NodeID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
