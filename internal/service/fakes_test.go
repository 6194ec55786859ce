package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/platform"
	"github.com/maheshrc27/postqueue/internal/repository"
)

type memPosts struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	// markPublishedErr simulates a store failure after a successful publish.
	markPublishedErr error
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[string]*models.Post{}}
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Targets = make([]*models.PostTarget, 0, len(p.Targets))
	for _, t := range p.Targets {
		tc := *t
		cp.Targets = append(cp.Targets, &tc)
	}
	return &cp
}

func (m *memPosts) Create(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; ok {
		return fmt.Errorf("duplicate post %s", post.ID)
	}
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	for _, t := range post.Targets {
		t.PostID = post.ID
		if t.Status == "" {
			t.Status = models.PostStatusScheduled
		}
	}
	m.posts[post.ID] = clonePost(post)
	return nil
}

func (m *memPosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (m *memPosts) filter(keep func(*models.Post) bool) []*models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memPosts) ListByUserID(ctx context.Context, userID string) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool { return p.UserID == userID }), nil
}

func (m *memPosts) ListByQueueID(ctx context.Context, queueID string) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool { return p.CreatedByQueueID == queueID }), nil
}

func (m *memPosts) ListScheduledInWindow(ctx context.Context, userID string, p models.Platform, from, to time.Time) ([]*models.PostTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostTarget
	for _, post := range m.posts {
		if post.UserID != userID {
			continue
		}
		for _, t := range post.Targets {
			if t.Platform != p || (t.Status != models.PostStatusScheduled && t.Status != models.PostStatusPublishing) {
				continue
			}
			if t.ScheduledTime.Before(from) || t.ScheduledTime.After(to) {
				continue
			}
			tc := *t
			out = append(out, &tc)
		}
	}
	return out, nil
}

func (m *memPosts) Replace(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.posts[post.ID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, t := range cur.Targets {
		if t.Status != models.PostStatusScheduled {
			return repository.ErrConflict
		}
	}
	for _, t := range post.Targets {
		t.PostID = post.ID
		if t.Status == "" {
			t.Status = models.PostStatusScheduled
		}
	}
	m.posts[post.ID] = clonePost(post)
	return nil
}

func (m *memPosts) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *memPosts) target(postID string, p models.Platform) *models.PostTarget {
	post, ok := m.posts[postID]
	if !ok {
		return nil
	}
	return post.Target(p)
}

func (m *memPosts) ClaimTarget(ctx context.Context, postID string, p models.Platform) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.target(postID, p)
	if t == nil || t.Status != models.PostStatusScheduled {
		return false, nil
	}
	t.Status = models.PostStatusPublishing
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPosts) MarkPublished(ctx context.Context, postID string, p models.Platform, publishedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markPublishedErr != nil {
		return m.markPublishedErr
	}
	t := m.target(postID, p)
	if t == nil || t.Status != models.PostStatusPublishing {
		return repository.ErrConflict
	}
	t.Status = models.PostStatusPublished
	t.PublishedID = publishedID
	t.ErrorMessage = ""
	return nil
}

func (m *memPosts) MarkRetry(ctx context.Context, postID string, p models.Platform, retryCount int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.target(postID, p)
	if t == nil || t.Status != models.PostStatusPublishing || t.RetryCount >= retryCount || retryCount > models.MaxRetries {
		return repository.ErrConflict
	}
	t.Status = models.PostStatusScheduled
	t.RetryCount = retryCount
	t.ErrorMessage = message
	t.SchedulerHandle = ""
	return nil
}

func (m *memPosts) MarkFailed(ctx context.Context, postID string, p models.Platform, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.target(postID, p)
	if t == nil || t.Terminal() {
		return repository.ErrConflict
	}
	t.Status = models.PostStatusFailed
	t.ErrorMessage = message
	return nil
}

func (m *memPosts) SetSchedulerHandle(ctx context.Context, postID string, p models.Platform, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.target(postID, p); t != nil {
		t.SchedulerHandle = handle
	}
	return nil
}

func (m *memPosts) FailStalePublishing(ctx context.Context, before time.Time, message string) ([]*models.PostTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostTarget
	for _, post := range m.posts {
		for _, t := range post.Targets {
			if t.Status != models.PostStatusPublishing || !t.UpdatedAt.Before(before) {
				continue
			}
			t.Status = models.PostStatusFailed
			t.ErrorMessage = message
			out = append(out, &models.PostTarget{PostID: post.ID, Platform: t.Platform, Status: t.Status, ErrorMessage: message})
		}
	}
	return out, nil
}

// touch backdates a target's last status change.
func (m *memPosts) touch(postID string, p models.Platform, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target(postID, p).UpdatedAt = at
}

// setStatus forces a target state for tests.
func (m *memPosts) setStatus(postID string, p models.Platform, status models.PostStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target(postID, p).Status = status
}

type memQueues struct {
	mu     sync.Mutex
	queues map[string]*models.Queue
	posts  *memPosts
}

func newMemQueues(posts *memPosts) *memQueues {
	return &memQueues{queues: map[string]*models.Queue{}, posts: posts}
}

func (m *memQueues) Create(ctx context.Context, q *models.Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	m.queues[q.ID] = &cp
	return nil
}

func (m *memQueues) GetByID(ctx context.Context, id string) (*models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (m *memQueues) ListByUserID(ctx context.Context, userID string) ([]*models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Queue
	for _, q := range m.queues {
		if q.UserID == userID {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
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
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memQueues) ListActiveInWindow(ctx context.Context, userID string, p models.Platform, from, to time.Time) ([]*models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Queue
	for _, q := range m.queues {
		if q.UserID != userID || q.Status != models.QueueStatusActive {
			continue
		}
		if q.NextScheduledTime.Before(from) || q.NextScheduledTime.After(to) {
			continue
		}
		origin, _ := m.posts.GetByID(ctx, q.OriginalPostID)
		if origin == nil || origin.Target(p) == nil {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memQueues) FindBlocking(ctx context.Context, originalPostID string) (*models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queues {
		if q.OriginalPostID == originalPostID && q.Blocking() {
			cp := *q
			return &cp, nil
		}
	}
	return nil, nil
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
	if next != nil {
		cur.NextScheduledTime = *next
	}
	return nil
}

func (m *memQueues) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, id)
	return nil
}

type scheduledJob struct {
	At      time.Time
	Delay   time.Duration
	Type    string
	Payload any
	Handle  string
}

type fakeScheduler struct {
	mu        sync.Mutex
	jobs      []scheduledJob
	cancelled []string
	failAt    error
	failAfter error
	failCncl  error
	seq       int
}

func (f *fakeScheduler) add(j scheduledJob) string {
	f.seq++
	j.Handle = fmt.Sprintf("default:%d", f.seq)
	f.jobs = append(f.jobs, j)
	return j.Handle
}

func (f *fakeScheduler) ScheduleAt(ctx context.Context, at time.Time, taskType string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt != nil {
		return "", f.failAt
	}
	return f.add(scheduledJob{At: at, Type: taskType, Payload: payload}), nil
}

func (f *fakeScheduler) ScheduleAfter(ctx context.Context, delay time.Duration, taskType string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter != nil {
		return "", f.failAfter
	}
	return f.add(scheduledJob{Delay: delay, Type: taskType, Payload: payload}), nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, handle)
	return f.failCncl
}

func (f *fakeScheduler) delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Duration
	for _, j := range f.jobs {
		if j.Delay > 0 {
			out = append(out, j.Delay)
		}
	}
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	platform models.Platform
	outcomes []platform.Outcome
	reply    platform.Outcome
	calls    int
	replies  []string
	panics   any
}

func (f *fakePublisher) Platform() models.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, conn *models.Connection, content string) platform.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics != nil {
		panic(f.panics)
	}
	if len(f.outcomes) == 0 {
		return platform.Success(fmt.Sprintf("%s-%d", f.platform, f.calls))
	}
	o := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return o
}

func (f *fakePublisher) Reply(ctx context.Context, conn *models.Connection, parentID, text string) platform.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, parentID+":"+text)
	if f.reply.Kind == platform.OutcomeSuccess && f.reply.ID == "" {
		return platform.Success("reply-" + parentID)
	}
	return f.reply
}

type fakeConnections struct {
	conns map[models.Platform]*models.Connection
	err   error
}

func (f *fakeConnections) GetDecryptedConnection(ctx context.Context, userID string, p models.Platform) (*models.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conns[p]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (f *fakeConnections) Save(ctx context.Context, conn *models.Connection, accountUsername string) error {
	return errors.New("not implemented")
}

func (f *fakeConnections) List(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeConnections) Remove(ctx context.Context, userID string, p models.Platform) error {
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
	panics   bool
}

func (f *fakeNotifier) NotifyFailure(ctx context.Context, postID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, postID+": "+message)
	if f.panics {
		panic("notifier exploded")
	}
	return f.err
}
