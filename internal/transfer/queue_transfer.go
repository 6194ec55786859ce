package transfer

import "time"

type QueueCreation struct {
	OriginalPostID string     `json:"original_post_id"`
	Interval       int        `json:"interval"`
	MaxExecutions  *int       `json:"max_executions,omitempty"`
	FirstRunAt     *time.Time `json:"first_run_at,omitempty"`
	Force          bool       `json:"force,omitempty"`
}
