package models

import "time"

type QueueStatus string

const (
	QueueStatusActive    QueueStatus = "active"
	QueueStatusPaused    QueueStatus = "paused"
	QueueStatusCompleted QueueStatus = "completed"
)

// Queue is a recurring schedule that re-creates its origin post every Interval days.
type Queue struct {
	ID                string      `db:"id" json:"id"`
	UserID            string      `db:"user_id" json:"user_id"`
	OriginalPostID    string      `db:"original_post_id" json:"original_post_id"`
	Status            QueueStatus `db:"status" json:"status"`
	Interval          int         `db:"interval_days" json:"interval"`
	NextScheduledTime time.Time   `db:"next_scheduled_time" json:"next_scheduled_time"`
	LastExecutedTime  *time.Time  `db:"last_executed_time" json:"last_executed_time,omitempty"`
	ExecutionCount    int         `db:"execution_count" json:"execution_count"`
	MaxExecutions     *int        `db:"max_executions" json:"max_executions,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// Advance records one firing at now and moves the queue to its next slot,
// completing it once MaxExecutions is reached.
func (q *Queue) Advance(now time.Time) {
	executed := now
	q.LastExecutedTime = &executed
	q.ExecutionCount++
	q.NextScheduledTime = q.NextScheduledTime.AddDate(0, 0, q.Interval)
	if q.MaxExecutions != nil && q.ExecutionCount >= *q.MaxExecutions {
		q.Status = QueueStatusCompleted
	}
}

func (q *Queue) Blocking() bool {
	return q.Status == QueueStatusActive || q.Status == QueueStatusPaused
}
