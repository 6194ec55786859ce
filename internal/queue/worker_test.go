package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/postqueue/internal/jobs"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/tasks"
	"github.com/maheshrc27/postqueue/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublishService struct {
	calls   []tasks.PublishPostPayload
	handles []string
	reaped  []time.Time
	err     error
}

func (f *fakePublishService) Publish(ctx context.Context, postID string, p models.Platform, handle string) error {
	f.calls = append(f.calls, tasks.PublishPostPayload{PostID: postID, Platform: p})
	f.handles = append(f.handles, handle)
	return f.err
}

func (f *fakePublishService) ReapStale(ctx context.Context, now time.Time) (int, error) {
	f.reaped = append(f.reaped, now)
	return 0, f.err
}

type failingQueues struct {
	repository.QueueRepository
	calls int
}

func (f *failingQueues) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Queue, error) {
	f.calls++
	return nil, errors.New("db down")
}

func newTestWorker(pub *fakePublishService, qr repository.QueueRepository) *Worker {
	processor := job.NewQueueProcessor(qr, nil, nil, nil, 10, logger.Nop())
	return NewWorker(pub, processor, logger.Nop())
}

func publishTask(t *testing.T, payload any) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishPost, b)
}

func TestWorker_HandlePublishPostTask(t *testing.T) {
	pub := &fakePublishService{}
	w := newTestWorker(pub, &failingQueues{})

	err := w.HandlePublishPostTask(context.Background(), publishTask(t, tasks.PublishPostPayload{PostID: "p1", Platform: models.PlatformLinkedIn}))
	require.NoError(t, err)
	assert.Equal(t, []tasks.PublishPostPayload{{PostID: "p1", Platform: models.PlatformLinkedIn}}, pub.calls)
	assert.Equal(t, []string{""}, pub.handles)
}

func TestWorker_HandlePublishPostTaskNeverFails(t *testing.T) {
	pub := &fakePublishService{err: errors.New("db down")}
	w := newTestWorker(pub, &failingQueues{})
	ctx := context.Background()

	assert.NoError(t, w.HandlePublishPostTask(ctx, publishTask(t, tasks.PublishPostPayload{PostID: "p1", Platform: models.PlatformTwitter})))
	assert.NoError(t, w.HandlePublishPostTask(ctx, asynq.NewTask(TaskTypePublishPost, []byte("{not json"))))
	assert.NoError(t, w.HandlePublishPostTask(ctx, publishTask(t, tasks.PublishPostPayload{PostID: "p1", Platform: "myspace"})))
	assert.Len(t, pub.calls, 1)
}

func TestWorker_HandleProcessQueuesTask(t *testing.T) {
	qr := &failingQueues{}
	pub := &fakePublishService{err: errors.New("db down")}
	w := newTestWorker(pub, qr)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	assert.NoError(t, w.HandleProcessQueuesTask(context.Background(), NewProcessQueuesTask()))
	assert.Equal(t, 1, qr.calls)
	assert.Equal(t, []time.Time{now}, pub.reaped)
}
