package repository

import (
	"context"

	"github.com/piggybanx/auction-service/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository reads and updates stored in-app notifications.
// Writes that must be atomic with a state change happen inside the auction
// and request transactions instead.
type NotificationRepository interface {
	ListUserNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) (bool, error)
}

// PostgresNotificationRepository implements NotificationRepository on pgx.
type PostgresNotificationRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresNotificationRepository(db *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{DB: db}
}

// ListUserNotifications returns the user's most recent notifications.
func (r *PostgresNotificationRepository) ListUserNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, title, message, auction_id, request_id, is_read, priority, created_at
	          FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.DB.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.AuctionID,
			&n.RequestID,
			&n.IsRead,
			&n.Priority,
			&n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one of the user's notifications as read. Returns false when
// the notification does not exist or belongs to someone else.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
