package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const deleteNotificationsBefore = `-- name: DeleteNotificationsBefore :execrows
DELETE FROM notifications WHERE created_at < $1
`

func (q *Queries) DeleteNotificationsBefore(ctx context.Context, createdAt pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteNotificationsBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const insertNotification = `-- name: InsertNotification :exec
INSERT INTO notifications (id, recipient_id, type, title, message, resource_id, read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
`

type InsertNotificationParams struct {
	ID          string             `json:"id"`
	RecipientID string             `json:"recipient_id"`
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	ResourceID  pgtype.Text        `json:"resource_id"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) error {
	_, err := q.db.Exec(ctx, insertNotification,
		arg.ID,
		arg.RecipientID,
		arg.Type,
		arg.Title,
		arg.Message,
		arg.ResourceID,
		arg.CreatedAt,
	)
	return err
}

const listUnreadNotifications = `-- name: ListUnreadNotifications :many
SELECT id, recipient_id, type, title, message, resource_id, read, created_at
FROM notifications
WHERE recipient_id = $1 AND read = FALSE
ORDER BY created_at DESC, id
`

func (q *Queries) ListUnreadNotifications(ctx context.Context, recipientID string) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listUnreadNotifications, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(
			&i.ID,
			&i.RecipientID,
			&i.Type,
			&i.Title,
			&i.Message,
			&i.ResourceID,
			&i.Read,
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
