package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postqueue/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Post, error)
	ListByQueueID(ctx context.Context, queueID string) ([]*models.Post, error)
	ListScheduledInWindow(ctx context.Context, userID string, platform models.Platform, from, to time.Time) ([]*models.PostTarget, error)
	Replace(ctx context.Context, post *models.Post) error
	Remove(ctx context.Context, id string) error

	ClaimTarget(ctx context.Context, postID string, platform models.Platform) (bool, error)
	MarkPublished(ctx context.Context, postID string, platform models.Platform, publishedID string) error
	MarkRetry(ctx context.Context, postID string, platform models.Platform, retryCount int, message string) error
	MarkFailed(ctx context.Context, postID string, platform models.Platform, message string) error
	SetSchedulerHandle(ctx context.Context, postID string, platform models.Platform, handle string) error
	FailStalePublishing(ctx context.Context, before time.Time, message string) ([]*models.PostTarget, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, url, cloned_from_post_id, created_by_queue_id, created_at, updated_at`

const targetColumns = `post_id, platform, content, scheduled_time, scheduler_handle, published_id, status, retry_count, error_message, updated_at`

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (id, user_id, url, cloned_from_post_id, created_by_queue_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		post.ID,
		post.UserID,
		post.URL,
		nullString(post.ClonedFromPostID),
		nullString(post.CreatedByQueueID),
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	if err := insertTargets(ctx, tx, post); err != nil {
		return err
	}

	return tx.Commit()
}

func insertTargets(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		INSERT INTO post_targets (post_id, platform, content, scheduled_time, status, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING updated_at
	`
	for _, t := range post.Targets {
		t.PostID = post.ID
		if t.Status == "" {
			t.Status = models.PostStatusScheduled
		}
		err := tx.QueryRowContext(ctx, query, t.PostID, t.Platform, t.Content, t.ScheduledTime, t.Status, t.RetryCount).
			Scan(&t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert %s target: %w", t.Platform, err)
		}
	}
	return nil
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var clonedFrom, createdByQueue sql.NullString
	err := row.Scan(&post.ID, &post.UserID, &post.URL, &clonedFrom, &createdByQueue, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	post.ClonedFromPostID = clonedFrom.String
	post.CreatedByQueueID = createdByQueue.String
	return &post, nil
}

func scanTarget(row rowScanner) (*models.PostTarget, error) {
	var t models.PostTarget
	err := row.Scan(&t.PostID, &t.Platform, &t.Content, &t.ScheduledTime, &t.SchedulerHandle,
		&t.PublishedID, &t.Status, &t.RetryCount, &t.ErrorMessage, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}

	if err := r.attachTargets(ctx, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *postRepository) ListByQueueID(ctx context.Context, queueID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE created_by_queue_id = $1 ORDER BY created_at`
	return r.list(ctx, query, queueID)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachTargets(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) attachTargets(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	byID := make(map[string]*models.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	query := `SELECT ` + targetColumns + ` FROM post_targets WHERE post_id = ANY($1) ORDER BY platform DESC`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list post targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return fmt.Errorf("scan post target: %w", err)
		}
		if p, ok := byID[t.PostID]; ok {
			p.Targets = append(p.Targets, t)
		}
	}
	return rows.Err()
}

func (r *postRepository) ListScheduledInWindow(ctx context.Context, userID string, platform models.Platform, from, to time.Time) ([]*models.PostTarget, error) {
	query := `
		SELECT t.post_id, t.platform, t.content, t.scheduled_time, t.scheduler_handle, t.published_id,
			t.status, t.retry_count, t.error_message, t.updated_at
		FROM post_targets t
		JOIN posts p ON p.id = t.post_id
		WHERE p.user_id = $1
			AND t.platform = $2
			AND t.status IN ('scheduled', 'publishing')
			AND t.scheduled_time BETWEEN $3 AND $4
		ORDER BY t.scheduled_time
	`
	rows, err := r.db.QueryContext(ctx, query, userID, platform, from, to)
	if err != nil {
		return nil, fmt.Errorf("list scheduled targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.PostTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// Replace rewrites the URL and every target of a post, provided no target has
// left the scheduled state. Target rows are locked for the duration so a
// concurrent publish claim cannot interleave.
func (r *postRepository) Replace(ctx context.Context, post *models.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT status FROM post_targets WHERE post_id = $1 FOR UPDATE`, post.ID)
	if err != nil {
		return fmt.Errorf("lock post targets: %w", err)
	}
	for rows.Next() {
		var status models.PostStatus
		if err := rows.Scan(&status); err != nil {
			rows.Close()
			return err
		}
		if status != models.PostStatusScheduled {
			rows.Close()
			return ErrConflict
		}
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET url = $1, updated_at = now() WHERE id = $2`, post.URL, post.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_targets WHERE post_id = $1`, post.ID); err != nil {
		return fmt.Errorf("delete post targets: %w", err)
	}
	if err := insertTargets(ctx, tx, post); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove post %s: %w", id, err)
	}
	return nil
}

// ClaimTarget moves a target from scheduled to publishing. It reports false
// when another invocation already claimed it or the target is gone.
func (r *postRepository) ClaimTarget(ctx context.Context, postID string, platform models.Platform) (bool, error) {
	query := `
		UPDATE post_targets
		SET status = $1, updated_at = now()
		WHERE post_id = $2 AND platform = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusPublishing, postID, platform, models.PostStatusScheduled)
	if err != nil {
		return false, fmt.Errorf("claim target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, postID string, platform models.Platform, publishedID string) error {
	query := `
		UPDATE post_targets
		SET status = $1, published_id = $2, error_message = '', updated_at = now()
		WHERE post_id = $3 AND platform = $4 AND status = $5
	`
	return r.transition(ctx, query, models.PostStatusPublished, publishedID, postID, platform, models.PostStatusPublishing)
}

// MarkRetry puts a target back to scheduled and clears its handle; the retry
// job's handle is stored once it is enqueued.
func (r *postRepository) MarkRetry(ctx context.Context, postID string, platform models.Platform, retryCount int, message string) error {
	query := `
		UPDATE post_targets
		SET status = $1, retry_count = $2, error_message = $3, scheduler_handle = '', updated_at = now()
		WHERE post_id = $4 AND platform = $5 AND status = $6 AND retry_count < $2
	`
	return r.transition(ctx, query, models.PostStatusScheduled, retryCount, message, postID, platform, models.PostStatusPublishing)
}

func (r *postRepository) MarkFailed(ctx context.Context, postID string, platform models.Platform, message string) error {
	query := `
		UPDATE post_targets
		SET status = $1, error_message = $2, updated_at = now()
		WHERE post_id = $3 AND platform = $4 AND status IN ($5, $6)
	`
	return r.transition(ctx, query, models.PostStatusFailed, message, postID, platform,
		models.PostStatusPublishing, models.PostStatusScheduled)
}

func (r *postRepository) SetSchedulerHandle(ctx context.Context, postID string, platform models.Platform, handle string) error {
	query := `UPDATE post_targets SET scheduler_handle = $1 WHERE post_id = $2 AND platform = $3`
	_, err := r.db.ExecContext(ctx, query, handle, postID, platform)
	if err != nil {
		return fmt.Errorf("set scheduler handle: %w", err)
	}
	return nil
}

// FailStalePublishing fails every target that has been publishing since
// before the cutoff and returns the targets it moved.
func (r *postRepository) FailStalePublishing(ctx context.Context, before time.Time, message string) ([]*models.PostTarget, error) {
	query := `
		UPDATE post_targets
		SET status = $1, error_message = $2, updated_at = now()
		WHERE status = $3 AND updated_at < $4
		RETURNING post_id, platform
	`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusFailed, message, models.PostStatusPublishing, before)
	if err != nil {
		return nil, fmt.Errorf("fail stale targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.PostTarget
	for rows.Next() {
		t := &models.PostTarget{Status: models.PostStatusFailed, ErrorMessage: message}
		if err := rows.Scan(&t.PostID, &t.Platform); err != nil {
			return nil, fmt.Errorf("scan stale target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (r *postRepository) transition(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update target status: %w", err)
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
