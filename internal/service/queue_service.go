package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/transfer"
	"github.com/maheshrc27/postqueue/pkg/logger"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type QueueService interface {
	Create(ctx context.Context, userID string, req *transfer.QueueCreation) (*models.Queue, *ConflictReport, error)
	Get(ctx context.Context, userID, queueID string) (*models.Queue, error)
	List(ctx context.Context, userID string) ([]*models.Queue, error)
	Posts(ctx context.Context, userID, queueID string) ([]*models.Post, error)
	Pause(ctx context.Context, userID, queueID string) (*models.Queue, error)
	Resume(ctx context.Context, userID, queueID string) (*models.Queue, error)
	Remove(ctx context.Context, userID, queueID string) error
}

type queueService struct {
	qr  repository.QueueRepository
	pr  repository.PostRepository
	cs  ConflictService
	log *logger.Logger
	now func() time.Time
}

func NewQueueService(qr repository.QueueRepository, pr repository.PostRepository, cs ConflictService, log *logger.Logger) QueueService {
	return &queueService{
		qr:  qr,
		pr:  pr,
		cs:  cs,
		log: log.WithComponent("queues"),
		now: time.Now,
	}
}

func (s *queueService) Create(ctx context.Context, userID string, req *transfer.QueueCreation) (*models.Queue, *ConflictReport, error) {
	if req == nil || req.OriginalPostID == "" {
		return nil, nil, fmt.Errorf("%w: original post is required", ErrInvalidQueue)
	}
	if req.Interval < 1 {
		return nil, nil, fmt.Errorf("%w: interval must be at least 1 day", ErrInvalidQueue)
	}
	if req.MaxExecutions != nil && *req.MaxExecutions < 1 {
		return nil, nil, fmt.Errorf("%w: max executions must be at least 1", ErrInvalidQueue)
	}

	origin, err := s.pr.GetByID(ctx, req.OriginalPostID)
	if err != nil {
		return nil, nil, err
	}
	if origin == nil || origin.UserID != userID {
		return nil, nil, ErrPostNotFound
	}

	if err := s.cs.CheckDuplicateQueue(ctx, origin.ID, req.Force); err != nil {
		return nil, nil, err
	}

	now := s.now()
	next := now.AddDate(0, 0, req.Interval)
	if req.FirstRunAt != nil {
		if req.FirstRunAt.Before(now) {
			return nil, nil, fmt.Errorf("%w: first run must be in the future", ErrInvalidQueue)
		}
		next = *req.FirstRunAt
	}
	next = next.UTC()

	report := &ConflictReport{}
	for _, t := range origin.Targets {
		r, err := s.cs.Check(ctx, ConflictCheck{UserID: userID, Platform: t.Platform, At: next})
		if err != nil {
			return nil, nil, err
		}
		report.merge(r)
	}
	if report.HasExact() && !req.Force {
		return nil, report, ErrScheduleConflict
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, nil, fmt.Errorf("generate queue id: %w", err)
	}
	q := &models.Queue{
		ID:                id,
		UserID:            userID,
		OriginalPostID:    origin.ID,
		Status:            models.QueueStatusActive,
		Interval:          req.Interval,
		NextScheduledTime: next,
		MaxExecutions:     req.MaxExecutions,
	}
	if err := s.qr.Create(ctx, q); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("queue_id", q.ID).
		Str("original_post_id", origin.ID).
		Time("next_scheduled_time", next).
		Msg("queue created")
	return q, report, nil
}

func (s *queueService) Get(ctx context.Context, userID, queueID string) (*models.Queue, error) {
	q, err := s.qr.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q == nil || q.UserID != userID {
		return nil, ErrQueueNotFound
	}
	return q, nil
}

func (s *queueService) List(ctx context.Context, userID string) ([]*models.Queue, error) {
	return s.qr.ListByUserID(ctx, userID)
}

// Posts lists the clones a queue has produced so far.
func (s *queueService) Posts(ctx context.Context, userID, queueID string) ([]*models.Post, error) {
	if _, err := s.Get(ctx, userID, queueID); err != nil {
		return nil, err
	}
	return s.pr.ListByQueueID(ctx, queueID)
}

// Pause leaves next_scheduled_time untouched; the sweep only fires active queues.
func (s *queueService) Pause(ctx context.Context, userID, queueID string) (*models.Queue, error) {
	q, err := s.Get(ctx, userID, queueID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, q, models.QueueStatusActive, models.QueueStatusPaused, nil); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *queueService) Resume(ctx context.Context, userID, queueID string) (*models.Queue, error) {
	q, err := s.Get(ctx, userID, queueID)
	if err != nil {
		return nil, err
	}
	next := s.now().AddDate(0, 0, q.Interval).UTC()
	if err := s.transition(ctx, q, models.QueueStatusPaused, models.QueueStatusActive, &next); err != nil {
		return nil, err
	}
	q.NextScheduledTime = next
	return q, nil
}

func (s *queueService) transition(ctx context.Context, q *models.Queue, from, to models.QueueStatus, next *time.Time) error {
	if q.Status != from {
		return ErrQueueState
	}
	if err := s.qr.SetStatus(ctx, q.ID, from, to, next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrQueueState
		}
		return err
	}
	q.Status = to
	s.log.Info().Str("queue_id", q.ID).Str("status", string(to)).Msg("queue status changed")
	return nil
}

// Remove deletes the queue only; posts it already created stay scheduled.
func (s *queueService) Remove(ctx context.Context, userID, queueID string) error {
	q, err := s.Get(ctx, userID, queueID)
	if err != nil {
		return err
	}
	if err := s.qr.Remove(ctx, q.ID); err != nil {
		return err
	}
	s.log.Info().Str("queue_id", q.ID).Msg("queue removed")
	return nil
}
