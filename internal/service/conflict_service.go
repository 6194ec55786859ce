package service

import (
	"context"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
)

const (
	// NearConflictWindow flags schedules close enough to warn about.
	NearConflictWindow = time.Hour
	// ExactConflictWindow flags schedules close enough to be a double submission.
	ExactConflictWindow = time.Second
)

type ConflictKind string

const (
	ConflictKindPost  ConflictKind = "post"
	ConflictKindQueue ConflictKind = "queue"
)

type Conflict struct {
	Kind          ConflictKind    `json:"kind"`
	ID            string          `json:"id"`
	Platform      models.Platform `json:"platform"`
	ScheduledTime time.Time       `json:"scheduled_time"`
}

type ConflictReport struct {
	Near  []Conflict `json:"near"`
	Exact []Conflict `json:"exact"`
}

func (r *ConflictReport) HasExact() bool { return len(r.Exact) > 0 }

func (r *ConflictReport) merge(other *ConflictReport) {
	r.Near = append(r.Near, other.Near...)
	r.Exact = append(r.Exact, other.Exact...)
}

// ConflictCheck describes one candidate slot. ExcludePostID and ExcludeQueueID
// keep an item from conflicting with itself during edits.
type ConflictCheck struct {
	UserID         string
	Platform       models.Platform
	At             time.Time
	ExcludePostID  string
	ExcludeQueueID string
}

type ConflictService interface {
	Check(ctx context.Context, c ConflictCheck) (*ConflictReport, error)
	CheckDuplicateQueue(ctx context.Context, originalPostID string, force bool) error
}

type conflictService struct {
	pr repository.PostRepository
	qr repository.QueueRepository
}

func NewConflictService(pr repository.PostRepository, qr repository.QueueRepository) ConflictService {
	return &conflictService{pr: pr, qr: qr}
}

// Check never writes. Every exact conflict is also reported as near.
func (s *conflictService) Check(ctx context.Context, c ConflictCheck) (*ConflictReport, error) {
	from, to := c.At.Add(-NearConflictWindow), c.At.Add(NearConflictWindow)
	report := &ConflictReport{}

	targets, err := s.pr.ListScheduledInWindow(ctx, c.UserID, c.Platform, from, to)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t.PostID == c.ExcludePostID {
			continue
		}
		report.add(Conflict{Kind: ConflictKindPost, ID: t.PostID, Platform: t.Platform, ScheduledTime: t.ScheduledTime}, c.At)
	}

	queues, err := s.qr.ListActiveInWindow(ctx, c.UserID, c.Platform, from, to)
	if err != nil {
		return nil, err
	}
	for _, q := range queues {
		if q.ID == c.ExcludeQueueID {
			continue
		}
		report.add(Conflict{Kind: ConflictKindQueue, ID: q.ID, Platform: c.Platform, ScheduledTime: q.NextScheduledTime}, c.At)
	}

	return report, nil
}

func (r *ConflictReport) add(c Conflict, at time.Time) {
	d := absDuration(c.ScheduledTime.Sub(at))
	if d > NearConflictWindow {
		return
	}
	r.Near = append(r.Near, c)
	if d <= ExactConflictWindow {
		r.Exact = append(r.Exact, c)
	}
}

// CheckDuplicateQueue rejects a second active or paused queue for the same
// origin post unless force is set. Completed queues never block.
func (s *conflictService) CheckDuplicateQueue(ctx context.Context, originalPostID string, force bool) error {
	if force {
		return nil
	}
	existing, err := s.qr.FindBlocking(ctx, originalPostID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateQueue
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
