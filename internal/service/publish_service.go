package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postqueue/internal/metrics"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/platform"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/tasks"
	"github.com/maheshrc27/postqueue/pkg/logger"
	"github.com/maheshrc27/postqueue/pkg/utils"
)

// DefaultPublishTimeout bounds each outbound platform call.
const DefaultPublishTimeout = 30 * time.Second

// deliverySkew tolerates scheduler clocks that fire a job slightly early.
const deliverySkew = 5 * time.Second

// Backoff is the delay before retry number retryCount+1: 1, 2 and 4 minutes.
func Backoff(retryCount int) time.Duration {
	return time.Duration(1<<retryCount) * time.Minute
}

// PublishService drives one platform publish attempt for a post to a terminal
// or retry outcome. Platform failures never surface as errors; the returned
// error only reports that the store could not be read or written.
//
// handle identifies the scheduler job delivering the attempt. A job whose
// handle no longer matches the target was superseded by an edit and is
// dropped. An empty handle skips that check.
type PublishService interface {
	Publish(ctx context.Context, postID string, platform models.Platform, handle string) error
	// ReapStale fails targets left in publishing by an attempt that never
	// settled, and reports how many it moved.
	ReapStale(ctx context.Context, now time.Time) (int, error)
}

type publishService struct {
	pr         repository.PostRepository
	cs         ConnectionService
	notifier   NotificationService
	scheduler  tasks.Scheduler
	publishers map[models.Platform]platform.Publisher
	metrics    metrics.Recorder
	timeout    time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewPublishService(
	pr repository.PostRepository,
	cs ConnectionService,
	notifier NotificationService,
	scheduler tasks.Scheduler,
	publishers []platform.Publisher,
	rec metrics.Recorder,
	timeout time.Duration,
	log *logger.Logger) PublishService {
	byPlatform := make(map[models.Platform]platform.Publisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if rec == nil {
		rec = metrics.Nop()
	}
	return &publishService{
		pr:         pr,
		cs:         cs,
		notifier:   notifier,
		scheduler:  scheduler,
		publishers: byPlatform,
		metrics:    rec,
		timeout:    timeout,
		log:        log.WithComponent("publisher"),
		now:        time.Now,
	}
}

func (s *publishService) Publish(ctx context.Context, postID string, p models.Platform, handle string) (err error) {
	log := s.log.WithPost(postID, string(p))

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		log.Info().Msg("post no longer exists, nothing to publish")
		return nil
	}
	target := post.Target(p)
	if target == nil {
		log.Warn().Msg("post has no content for this platform")
		return nil
	}
	if target.Status != models.PostStatusScheduled {
		log.Debug().Str("status", string(target.Status)).Msg("target not scheduled, skipping")
		return nil
	}
	if s.superseded(target, handle) {
		log.Info().Str("handle", handle).Str("current_handle", target.SchedulerHandle).Msg("stale publish job, skipping")
		return nil
	}

	claimed, err := s.pr.ClaimTarget(ctx, postID, p)
	if err != nil {
		return err
	}
	if !claimed {
		log.Debug().Msg("target claimed by another invocation")
		return nil
	}

	var secrets []string
	defer func() {
		if r := recover(); r != nil {
			cause := utils.Redact(fmt.Sprint(r), secrets...)
			log.Error().Str("panic", cause).Msg("publish attempt panicked")
			err = s.fail(ctx, log, postID, p, fmt.Sprintf("Permanent error: publish interrupted: %s", cause))
		}
	}()

	conn, err := s.cs.GetDecryptedConnection(ctx, post.UserID, p)
	if conn != nil {
		secrets = []string{conn.AccessToken, conn.RefreshToken}
	}
	var outcome platform.Outcome
	switch {
	case err != nil:
		outcome = platform.FromError(fmt.Errorf("load connection: %w", err))
	case conn == nil:
		outcome = platform.Permanent(errors.New("account not connected"))
	default:
		outcome = s.attempt(ctx, log, post, target, conn)
	}

	return s.settle(ctx, log, post, target, outcome, secrets)
}

// superseded reports whether a delivery belongs to a job that was replaced.
// Until the new handle is stored, a job that arrives well before the
// target's scheduled time is treated as stale.
func (s *publishService) superseded(target *models.PostTarget, handle string) bool {
	if handle == "" || handle == target.SchedulerHandle {
		return false
	}
	if target.SchedulerHandle != "" {
		return true
	}
	return target.ScheduledTime.After(s.now().Add(deliverySkew))
}

func (s *publishService) attempt(ctx context.Context, log *logger.Logger, post *models.Post, target *models.PostTarget, conn *models.Connection) platform.Outcome {
	pub, ok := s.publishers[target.Platform]
	if !ok {
		return platform.Permanent(fmt.Errorf("no publisher configured for %s", target.Platform))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	outcome := pub.Publish(callCtx, conn, target.Content)
	cancel()
	if !outcome.OK() || post.URL == "" {
		return outcome
	}

	// The main content is live at this point; a failed link reply is logged only.
	replyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply := pub.Reply(replyCtx, conn, outcome.ID, post.URL)
	if !reply.OK() {
		log.Warn().
			Str("published_id", outcome.ID).
			Str("error", utils.Redact(reply.Error(), conn.AccessToken)).
			Msg("link reply failed, keeping post as published")
	}
	return outcome
}

func (s *publishService) settle(ctx context.Context, log *logger.Logger, post *models.Post, target *models.PostTarget, outcome platform.Outcome, secrets []string) error {
	p := target.Platform
	s.metrics.RecordPublish(string(p), outcome.Kind.String())

	if outcome.OK() {
		if err := s.pr.MarkPublished(ctx, post.ID, p, outcome.ID); err != nil {
			log.Error().Err(err).Str("published_id", outcome.ID).Msg("published but could not record it")
			return fmt.Errorf("mark published: %w", err)
		}
		log.Info().Str("published_id", outcome.ID).Msg("post published")
		return nil
	}

	cause := utils.Redact(outcome.Error(), secrets...)

	if outcome.Kind == platform.OutcomeTransient && target.RetryCount < models.MaxRetries {
		return s.retry(ctx, log, post, target, cause)
	}

	var msg string
	if outcome.Kind == platform.OutcomeTransient {
		msg = fmt.Sprintf("Failed after %d retry attempts: %s", models.MaxRetries, cause)
	} else {
		msg = fmt.Sprintf("Permanent error: %s", cause)
	}
	return s.fail(ctx, log, post.ID, p, msg)
}

func (s *publishService) retry(ctx context.Context, log *logger.Logger, post *models.Post, target *models.PostTarget, cause string) error {
	p := target.Platform
	attempt := target.RetryCount + 1
	msg := fmt.Sprintf("Retry attempt %d/%d: %s", attempt, models.MaxRetries, cause)

	if err := s.pr.MarkRetry(ctx, post.ID, p, attempt, msg); err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}

	delay := Backoff(target.RetryCount)
	handle, err := s.scheduler.ScheduleAfter(ctx, delay, tasks.TypePublishPost, tasks.PublishPostPayload{PostID: post.ID, Platform: p})
	if err != nil {
		log.Error().Err(err).Msg("could not schedule retry")
		return s.fail(ctx, log, post.ID, p, fmt.Sprintf("Permanent error: could not schedule retry after %q", cause))
	}
	if err := s.pr.SetSchedulerHandle(ctx, post.ID, p, handle); err != nil {
		log.Warn().Err(err).Msg("failed to store retry handle")
	}

	s.metrics.RecordRetry(string(p))
	log.Warn().
		Int("retry_count", attempt).
		Dur("delay", delay).
		Str("error", cause).
		Msg("transient publish failure, retry scheduled")
	return nil
}

func (s *publishService) fail(ctx context.Context, log *logger.Logger, postID string, p models.Platform, msg string) error {
	if err := s.pr.MarkFailed(ctx, postID, p, msg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	log.Error().Str("error", msg).Msg("post failed")
	s.dispatchFailure(ctx, log, postID, msg)
	return nil
}

// dispatchFailure is best effort: its own errors are logged and dropped.
func (s *publishService) dispatchFailure(ctx context.Context, log *logger.Logger, postID, msg string) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("failure notification panicked")
		}
	}()
	if err := s.notifier.NotifyFailure(ctx, postID, msg); err != nil {
		log.Warn().Err(err).Msg("failure notification not delivered")
	}
}

// staleAfter covers the publish call and the link reply, plus slack for the
// store round trips around them.
func (s *publishService) staleAfter() time.Duration {
	return 2*s.timeout + time.Minute
}

func (s *publishService) ReapStale(ctx context.Context, now time.Time) (int, error) {
	const msg = "Permanent error: publish interrupted before an outcome was recorded"
	stale, err := s.pr.FailStalePublishing(ctx, now.Add(-s.staleAfter()), msg)
	if err != nil {
		return 0, fmt.Errorf("fail stale targets: %w", err)
	}
	for _, t := range stale {
		log := s.log.WithPost(t.PostID, string(t.Platform))
		log.Error().Str("error", msg).Msg("post failed")
		s.metrics.RecordPublish(string(t.Platform), "interrupted")
		s.dispatchFailure(ctx, log, t.PostID, msg)
	}
	return len(stale), nil
}
