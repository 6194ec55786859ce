package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postqueue/internal/metrics"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/internal/tasks"
	"github.com/maheshrc27/postqueue/pkg/logger"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultSweepLimit = 100

// QueueProcessor fires every due recurring queue: it clones the origin post
// into a new scheduled post and moves the queue to its next slot.
type QueueProcessor struct {
	qr        repository.QueueRepository
	pr        repository.PostRepository
	scheduler tasks.Scheduler
	metrics   metrics.Recorder
	limit     int
	log       *logger.Logger
}

func NewQueueProcessor(
	qr repository.QueueRepository,
	pr repository.PostRepository,
	scheduler tasks.Scheduler,
	rec metrics.Recorder,
	limit int,
	log *logger.Logger) *QueueProcessor {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	if rec == nil {
		rec = metrics.Nop()
	}
	return &QueueProcessor{
		qr:        qr,
		pr:        pr,
		scheduler: scheduler,
		metrics:   rec,
		limit:     limit,
		log:       log.WithComponent("queue-processor"),
	}
}

// Sweep processes up to limit due queues and reports how many fired. A queue
// that fails is logged and left for the next sweep.
func (p *QueueProcessor) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := p.qr.ListDue(ctx, now, p.limit)
	if err != nil {
		return 0, fmt.Errorf("list due queues: %w", err)
	}

	fired := 0
	for _, q := range due {
		if ctx.Err() != nil {
			break
		}
		ok, err := p.fire(ctx, q, now)
		if err != nil {
			p.log.WithQueueID(q.ID).Error().Err(err).Msg("failed to process queue")
			continue
		}
		if ok {
			fired++
		}
	}

	p.metrics.RecordSweep(len(due), fired)
	if len(due) > 0 {
		p.log.Info().Int("due", len(due)).Int("fired", fired).Msg("queue sweep finished")
	}
	return fired, ctx.Err()
}

func (p *QueueProcessor) fire(ctx context.Context, q *models.Queue, now time.Time) (bool, error) {
	log := p.log.WithQueueID(q.ID)

	origin, err := p.pr.GetByID(ctx, q.OriginalPostID)
	if err != nil {
		return false, err
	}
	if origin == nil {
		log.Warn().Str("original_post_id", q.OriginalPostID).Msg("origin post is gone, completing queue")
		if err := p.qr.SetStatus(ctx, q.ID, models.QueueStatusActive, models.QueueStatusCompleted, nil); err != nil && !errors.Is(err, repository.ErrConflict) {
			return false, err
		}
		return false, nil
	}

	slot := q.NextScheduledTime
	before := *q
	q.Advance(now)
	if err := p.qr.Advance(ctx, q, before.ExecutionCount); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Debug().Msg("queue already advanced by another sweep")
			return false, nil
		}
		return false, err
	}

	id, err := gonanoid.New()
	if err != nil {
		p.rewind(ctx, log, &before, q.ExecutionCount)
		return false, fmt.Errorf("generate post id: %w", err)
	}
	clone := &models.Post{
		ID:               id,
		UserID:           origin.UserID,
		URL:              origin.URL,
		CreatedByQueueID: q.ID,
		Targets:          service.CloneTargets(origin, slot),
	}
	if err := p.pr.Create(ctx, clone); err != nil {
		p.rewind(ctx, log, &before, q.ExecutionCount)
		return false, fmt.Errorf("create queued post: %w", err)
	}

	if err := service.ScheduleTargets(ctx, p.scheduler, p.pr, clone); err != nil {
		log.Error().Err(err).Str("post_id", clone.ID).Msg("failed to schedule queued post")
		service.FailUnscheduled(ctx, p.pr, clone, err, log)
	}

	p.metrics.RecordQueueFired(q.Status == models.QueueStatusCompleted)
	log.Info().
		Str("post_id", clone.ID).
		Time("scheduled_time", slot).
		Int("execution_count", q.ExecutionCount).
		Str("status", string(q.Status)).
		Msg("queue fired")
	return true, nil
}

// rewind gives a claimed slot back when its clone was never stored, so the
// next sweep fires it again.
func (p *QueueProcessor) rewind(ctx context.Context, log *logger.Logger, before *models.Queue, advancedCount int) {
	if err := p.qr.Rewind(ctx, before, advancedCount); err != nil {
		log.Error().Err(err).Int("execution_count", advancedCount).Msg("could not give back queue slot")
	}
}
