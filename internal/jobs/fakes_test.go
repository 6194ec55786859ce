package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
)

// memPosts implements only what the queue processor touches; the rest of
// repository.PostRepository panics through the nil embedded interface.
type memPosts struct {
	repository.PostRepository
	mu        sync.Mutex
	posts     map[string]*models.Post
	failed    map[string]string
	createErr error
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[string]*models.Post{}, failed: map[string]string{}}
}

func (m *memPosts) Create(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, t := range post.Targets {
		t.PostID = post.ID
	}
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *memPosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) ListByQueueID(ctx context.Context, queueID string) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.CreatedByQueueID == queueID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Targets[0].ScheduledTime.Before(out[j].Targets[0].ScheduledTime)
	})
	return out, nil
}

func (m *memPosts) SetSchedulerHandle(ctx context.Context, postID string, p models.Platform, handle string) error {
	return nil
}

func (m *memPosts) MarkFailed(ctx context.Context, postID string, p models.Platform, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[postID+"/"+string(p)] = message
	return nil
}

type memQueues struct {
	repository.QueueRepository
	mu     sync.Mutex
	queues map[string]*models.Queue
}

func newMemQueues(qs ...*models.Queue) *memQueues {
	m := &memQueues{queues: map[string]*models.Queue{}}
	for _, q := range qs {
		m.queues[q.ID] = q
	}
	return m
}

func (m *memQueues) get(id string) *models.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.queues[id]
	return &cp
}

func (m *memQueues) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Queue
	for _, q := range m.queues {
		if q.Status == models.QueueStatusActive && !q.NextScheduledTime.After(now) {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memQueues) Advance(ctx context.Context, q *models.Queue, prevCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.queues[q.ID]
	if !ok || cur.Status != models.QueueStatusActive || cur.ExecutionCount != prevCount {
		return repository.ErrConflict
	}
	cp := *q
	m.queues[q.ID] = &cp
	return nil
}

func (m *memQueues) Rewind(ctx context.Context, q *models.Queue, advancedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.queues[q.ID]
	if !ok || cur.Status == models.QueueStatusPaused || cur.ExecutionCount != advancedCount {
		return repository.ErrConflict
	}
	cp := *q
	m.queues[q.ID] = &cp
	return nil
}

func (m *memQueues) SetStatus(ctx context.Context, id string, from, to models.QueueStatus, next *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.queues[id]
	if !ok || cur.Status != from {
		return repository.ErrConflict
	}
	cur.Status = to
	return nil
}

type fakeScheduler struct {
	mu   sync.Mutex
	at   []time.Time
	seq  int
	fail error
}

func (f *fakeScheduler) ScheduleAt(ctx context.Context, at time.Time, taskType string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.seq++
	f.at = append(f.at, at)
	return fmt.Sprintf("default:%d", f.seq), nil
}

func (f *fakeScheduler) ScheduleAfter(ctx context.Context, delay time.Duration, taskType string, payload any) (string, error) {
	return f.ScheduleAt(ctx, time.Now().Add(delay), taskType, payload)
}

func (f *fakeScheduler) Cancel(ctx context.Context, handle string) error { return nil }
