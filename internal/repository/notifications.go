package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ispcare/backend/internal/domain"
)

const notificationColumns = `id, user_id, type, category, title, message, priority, is_read, is_sent,
	COALESCE(metadata, '{}'::jsonb), created_at, sent_at, read_at`

// CreateNotification stores a notification
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO notifications (id, user_id, type, category, title, message, priority, is_read, is_sent, metadata, created_at, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Category,
		n.Title,
		n.Message,
		n.Priority,
		n.IsRead,
		n.IsSent,
		n.Metadata,
		n.CreatedAt,
		n.SentAt,
		n.ReadAt,
	)
	return err
}

// GetNotifications returns a user's most recent notifications
func (r *PostgresRepository) GetNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`
	return r.queryNotifications(ctx, query, userID, limit)
}

// GetUnreadNotifications returns all unread notifications for a user
func (r *PostgresRepository) GetUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications WHERE user_id = $1 AND is_read = FALSE
		ORDER BY created_at DESC`
	return r.queryNotifications(ctx, query, userID)
}

// CountUnread counts unread notifications for a user
func (r *PostgresRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	return count, err
}

// MarkNotificationRead marks one notification read
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error {
	query := `UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, notificationID, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of a user read
func (r *PostgresRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND is_read = FALSE`
	_, err := r.db.Exec(ctx, query, userID, at)
	return err
}

// ListReadBefore returns read notifications created and read before the cutoff
func (r *PostgresRepository) ListReadBefore(ctx context.Context, before time.Time) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications WHERE is_read = TRUE AND created_at < $1 AND read_at < $1
		ORDER BY created_at`
	return r.queryNotifications(ctx, query, before)
}

// DeleteReadBefore deletes read notifications created and read before the cutoff
func (r *PostgresRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1 AND read_at < $1`
	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SaveFCMToken registers a push token for a user
func (r *PostgresRepository) SaveFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	query := `INSERT INTO fcm_tokens (user_id, token) VALUES ($1, $2) ON CONFLICT (user_id, token) DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID, token)
	return err
}

// GetFCMTokens returns the push tokens registered for a user
func (r *PostgresRepository) GetFCMTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT token FROM fcm_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *PostgresRepository) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Category,
			&n.Title,
			&n.Message,
			&n.Priority,
			&n.IsRead,
			&n.IsSent,
			&n.Metadata,
			&n.CreatedAt,
			&n.SentAt,
			&n.ReadAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}
