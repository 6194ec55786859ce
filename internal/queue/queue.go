package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postqueue/internal/tasks"
)

const (
	TaskTypePublishPost   = tasks.TypePublishPost
	TaskTypeProcessQueues = tasks.TypeProcessQueues
)

// ErrInvalidHandle is returned by Cancel for handles it did not issue.
var ErrInvalidHandle = errors.New("invalid scheduler handle")

// Enqueuer is the subset of *asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskDeleter is the subset of *asynq.Inspector the scheduler uses.
type TaskDeleter interface {
	DeleteTask(queue, id string) error
}

// AsynqScheduler implements tasks.Scheduler on top of asynq. Handles have the
// form "<queue>:<task id>".
type AsynqScheduler struct {
	client    Enqueuer
	inspector TaskDeleter
	queue     string
}

var _ tasks.Scheduler = (*AsynqScheduler)(nil)

func NewAsynqScheduler(client Enqueuer, inspector TaskDeleter, queue string) *AsynqScheduler {
	if queue == "" {
		queue = "default"
	}
	return &AsynqScheduler{client: client, inspector: inspector, queue: queue}
}

func (s *AsynqScheduler) ScheduleAt(ctx context.Context, at time.Time, taskType string, payload any) (string, error) {
	return s.enqueue(ctx, taskType, payload, asynq.ProcessAt(at))
}

func (s *AsynqScheduler) ScheduleAfter(ctx context.Context, delay time.Duration, taskType string, payload any) (string, error) {
	return s.enqueue(ctx, taskType, payload, asynq.ProcessIn(delay))
}

func (s *AsynqScheduler) enqueue(ctx context.Context, taskType string, payload any, when asynq.Option) (string, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	// Retries are decided by the publish path, not by asynq.
	task := asynq.NewTask(taskType, taskPayload, asynq.MaxRetry(0), asynq.Queue(s.queue))
	info, err := s.client.EnqueueContext(ctx, task, when)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return formatHandle(info.Queue, info.ID), nil
}

// Cancel deletes a pending task. Tasks that already ran or were removed are
// not an error.
func (s *AsynqScheduler) Cancel(ctx context.Context, handle string) error {
	queue, id, err := parseHandle(handle)
	if err != nil {
		return err
	}
	err = s.inspector.DeleteTask(queue, id)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("cancel task %s: %w", handle, err)
}

func formatHandle(queue, id string) string {
	return queue + ":" + id
}

func parseHandle(handle string) (string, string, error) {
	queue, id, ok := strings.Cut(handle, ":")
	if !ok || queue == "" || id == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return queue, id, nil
}

// NewProcessQueuesTask is registered with the asynq periodic scheduler.
func NewProcessQueuesTask() *asynq.Task {
	return asynq.NewTask(TaskTypeProcessQueues, nil, asynq.MaxRetry(0))
}
