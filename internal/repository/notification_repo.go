package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/coachmatch/internal/models"
)

const notificationColumns = `id, recipient_id, title, description, type, read, created_at`

type NotificationListFilter struct {
	RecipientID string
	UnreadOnly  bool
	Offset      int
	Limit       int
}

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create is idempotent on id so a retried write never duplicates a
// notification.
func (r *NotificationRepository) Create(
	ctx context.Context,
	notification models.Notification,
) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (id, recipient_id, title, description, type, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING ` + notificationColumns
	created, err := scanNotification(r.db.QueryRow(
		ctx,
		query,
		notification.ID,
		notification.RecipientID,
		notification.Title,
		notification.Description,
		string(notification.Type),
		notification.Read,
		notification.CreatedAt,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	notification, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return notification, nil
}

func (r *NotificationRepository) ListByRecipient(
	ctx context.Context,
	filter NotificationListFilter,
) ([]models.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR read = FALSE)
	`, filter.RecipientID, filter.UnreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR read = FALSE)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4
	`, filter.RecipientID, filter.UnreadOnly, filter.Offset, filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *notification)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string, recipientID string) (*models.Notification, error) {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING ` + notificationColumns
	notification, err := scanNotification(r.db.QueryRow(ctx, query, id, recipientID))
	if err != nil {
		return nil, mapError(err)
	}
	return notification, nil
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var (
		notification     models.Notification
		notificationType string
	)
	if err := row.Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Title,
		&notification.Description,
		&notificationType,
		&notification.Read,
		&notification.CreatedAt,
	); err != nil {
		return nil, err
	}
	notification.Type = models.NotificationType(notificationType)
	return &notification, nil
}
