// Package tasks defines the deferred-job contract shared by the services
// that schedule work and the worker that runs it.
package tasks

import (
	"context"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
)

const (
	TypePublishPost   = "post:publish"
	TypeProcessQueues = "queue:process"
)

type PublishPostPayload struct {
	PostID   string          `json:"post_id"`
	Platform models.Platform `json:"platform"`
}

// Scheduler runs a named job once at (or shortly after) a point in time.
// Handles are opaque; Cancel must tolerate handles whose job already ran.
type Scheduler interface {
	ScheduleAt(ctx context.Context, at time.Time, taskType string, payload any) (string, error)
	ScheduleAfter(ctx context.Context, delay time.Duration, taskType string, payload any) (string, error)
	Cancel(ctx context.Context, handle string) error
}
