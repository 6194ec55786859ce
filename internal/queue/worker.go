package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postqueue/internal/tasks"
)

// HandlePublishPostTask never returns an error: the publish path settles
// its own outcome and asynq retries are disabled.
func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload tasks.PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.log.Error().Err(err).Str("task", task.Type()).Msg("malformed publish payload")
		return nil
	}
	if payload.PostID == "" || !payload.Platform.Valid() {
		w.log.Error().Str("post_id", payload.PostID).Str("platform", string(payload.Platform)).Msg("incomplete publish payload")
		return nil
	}

	if err := w.publisher.Publish(ctx, payload.PostID, payload.Platform, taskHandle(ctx)); err != nil {
		w.log.WithPost(payload.PostID, string(payload.Platform)).Error().Err(err).Msg("publish task failed")
	}
	return nil
}

// HandleProcessQueuesTask fires due queues and fails publish attempts that
// never settled.
func (w *Worker) HandleProcessQueuesTask(ctx context.Context, task *asynq.Task) error {
	now := w.now()
	if _, err := w.processor.Sweep(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("queue sweep failed")
	}
	if _, err := w.publisher.ReapStale(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("stale publish sweep failed")
	}
	return nil
}

// taskHandle rebuilds the handle the scheduler returned for the running task.
func taskHandle(ctx context.Context) string {
	id, ok := asynq.GetTaskID(ctx)
	if !ok {
		return ""
	}
	queue, ok := asynq.GetQueueName(ctx)
	if !ok {
		return ""
	}
	return formatHandle(queue, id)
}
