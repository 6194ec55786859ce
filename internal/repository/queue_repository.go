package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
)

type QueueRepository interface {
	Create(ctx context.Context, q *models.Queue) error
	GetByID(ctx context.Context, id string) (*models.Queue, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Queue, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Queue, error)
	ListActiveInWindow(ctx context.Context, userID string, platform models.Platform, from, to time.Time) ([]*models.Queue, error)
	FindBlocking(ctx context.Context, originalPostID string) (*models.Queue, error)
	Advance(ctx context.Context, q *models.Queue, prevCount int) error
	Rewind(ctx context.Context, q *models.Queue, advancedCount int) error
	SetStatus(ctx context.Context, id string, from, to models.QueueStatus, next *time.Time) error
	Remove(ctx context.Context, id string) error
}

type queueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) QueueRepository {
	return &queueRepository{db: db}
}

const queueColumns = `id, user_id, original_post_id, status, interval_days, next_scheduled_time,
	last_executed_time, execution_count, max_executions, created_at, updated_at`

func scanQueue(row rowScanner) (*models.Queue, error) {
	var q models.Queue
	var lastExecuted sql.NullTime
	var maxExecutions sql.NullInt64
	err := row.Scan(&q.ID, &q.UserID, &q.OriginalPostID, &q.Status, &q.Interval, &q.NextScheduledTime,
		&lastExecuted, &q.ExecutionCount, &maxExecutions, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastExecuted.Valid {
		q.LastExecutedTime = &lastExecuted.Time
	}
	if maxExecutions.Valid {
		n := int(maxExecutions.Int64)
		q.MaxExecutions = &n
	}
	return &q, nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *queueRepository) Create(ctx context.Context, q *models.Queue) error {
	query := `
		INSERT INTO queues (id, user_id, original_post_id, status, interval_days, next_scheduled_time, max_executions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, q.ID, q.UserID, q.OriginalPostID, q.Status, q.Interval,
		q.NextScheduledTime, nullInt(q.MaxExecutions)).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert queue: %w", err)
	}
	return nil
}

func (r *queueRepository) GetByID(ctx context.Context, id string) (*models.Queue, error) {
	query := `SELECT ` + queueColumns + ` FROM queues WHERE id = $1`
	q, err := scanQueue(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue %s: %w", id, err)
	}
	return q, nil
}

func (r *queueRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Queue, error) {
	query := `SELECT ` + queueColumns + ` FROM queues WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *queueRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Queue, error) {
	query := `SELECT ` + queueColumns + `
		FROM queues
		WHERE status = $1 AND next_scheduled_time <= $2
		ORDER BY next_scheduled_time
		LIMIT $3`
	return r.list(ctx, query, models.QueueStatusActive, now, limit)
}

// ListActiveInWindow returns active queues whose origin post targets platform
// and whose next slot falls in [from, to].
func (r *queueRepository) ListActiveInWindow(ctx context.Context, userID string, platform models.Platform, from, to time.Time) ([]*models.Queue, error) {
	query := `SELECT ` + prefixed("q", queueColumns) + `
		FROM queues q
		JOIN post_targets t ON t.post_id = q.original_post_id
		WHERE q.user_id = $1
			AND t.platform = $2
			AND q.status = 'active'
			AND q.next_scheduled_time BETWEEN $3 AND $4
		ORDER BY q.next_scheduled_time`
	return r.list(ctx, query, userID, platform, from, to)
}

func (r *queueRepository) FindBlocking(ctx context.Context, originalPostID string) (*models.Queue, error) {
	query := `SELECT ` + queueColumns + `
		FROM queues
		WHERE original_post_id = $1 AND status IN ('active', 'paused')
		ORDER BY created_at
		LIMIT 1`
	q, err := scanQueue(r.db.QueryRowContext(ctx, query, originalPostID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find queue for post %s: %w", originalPostID, err)
	}
	return q, nil
}

func (r *queueRepository) list(ctx context.Context, query string, args ...any) ([]*models.Queue, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []*models.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

// Advance persists an already-advanced queue. The write only applies while the
// row is still active at prevCount executions, so two overlapping sweeps
// cannot both fire the same slot.
func (r *queueRepository) Advance(ctx context.Context, q *models.Queue, prevCount int) error {
	query := `
		UPDATE queues
		SET status = $1, next_scheduled_time = $2, last_executed_time = $3, execution_count = $4, updated_at = now()
		WHERE id = $5 AND status = 'active' AND execution_count = $6
	`
	res, err := r.db.ExecContext(ctx, query, q.Status, q.NextScheduledTime, nullTime(q.LastExecutedTime),
		q.ExecutionCount, q.ID, prevCount)
	if err != nil {
		return fmt.Errorf("advance queue %s: %w", q.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

// Rewind restores a queue to its state before an advance whose clone could not
// be created. It only applies while the row still holds advancedCount
// executions and was not paused in the meantime.
func (r *queueRepository) Rewind(ctx context.Context, q *models.Queue, advancedCount int) error {
	query := `
		UPDATE queues
		SET status = $1, next_scheduled_time = $2, last_executed_time = $3, execution_count = $4, updated_at = now()
		WHERE id = $5 AND execution_count = $6 AND status IN ('active', 'completed')
	`
	res, err := r.db.ExecContext(ctx, query, q.Status, q.NextScheduledTime, nullTime(q.LastExecutedTime),
		q.ExecutionCount, q.ID, advancedCount)
	if err != nil {
		return fmt.Errorf("rewind queue %s: %w", q.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

// SetStatus moves a queue between statuses; next, when set, also replaces
// next_scheduled_time.
func (r *queueRepository) SetStatus(ctx context.Context, id string, from, to models.QueueStatus, next *time.Time) error {
	query := `
		UPDATE queues
		SET status = $1, next_scheduled_time = COALESCE($2, next_scheduled_time), updated_at = now()
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, to, nullTime(next), id, from)
	if err != nil {
		return fmt.Errorf("set queue %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

func (r *queueRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM queues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove queue %s: %w", id, err)
	}
	return nil
}
