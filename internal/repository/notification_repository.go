package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/postqueue/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.FailureNotification) (int64, error)
	MarkDelivered(ctx context.Context, id int64) error
	ListByPostID(ctx context.Context, postID string) ([]*models.FailureNotification, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.FailureNotification) (int64, error) {
	query := `
		INSERT INTO failure_notifications (post_id, message)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, n.PostID, n.Message).Scan(&n.ID, &n.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return n.ID, nil
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE failure_notifications SET delivered = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification %d delivered: %w", id, err)
	}
	return nil
}

func (r *notificationRepository) ListByPostID(ctx context.Context, postID string) ([]*models.FailureNotification, error) {
	query := `SELECT id, post_id, message, delivered, created_at FROM failure_notifications WHERE post_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.FailureNotification
	for rows.Next() {
		var n models.FailureNotification
		if err := rows.Scan(&n.ID, &n.PostID, &n.Message, &n.Delivered, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
