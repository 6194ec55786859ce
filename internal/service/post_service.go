package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/tasks"
	"github.com/maheshrc27/postqueue/internal/transfer"
	"github.com/maheshrc27/postqueue/pkg/logger"
	"github.com/maheshrc27/postqueue/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// scheduleSkew tolerates clients that submit "now" a little late.
const scheduleSkew = time.Minute

type PostService interface {
	Create(ctx context.Context, userID string, req *transfer.PostRequest) (*models.Post, *ConflictReport, error)
	Get(ctx context.Context, userID, postID string) (*models.Post, error)
	List(ctx context.Context, userID string, status models.PostStatus) ([]*models.Post, error)
	Update(ctx context.Context, userID, postID string, req *transfer.PostRequest) (*models.Post, *ConflictReport, error)
	Remove(ctx context.Context, userID, postID string) error
	Clone(ctx context.Context, userID, postID string, req *transfer.CloneRequest) (*models.Post, *ConflictReport, error)
}

type postService struct {
	pr        repository.PostRepository
	cs        ConflictService
	scheduler tasks.Scheduler
	log       *logger.Logger
	now       func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	cs ConflictService,
	scheduler tasks.Scheduler,
	log *logger.Logger) PostService {
	return &postService{
		pr:        pr,
		cs:        cs,
		scheduler: scheduler,
		log:       log.WithComponent("posts"),
		now:       time.Now,
	}
}

func (s *postService) Create(ctx context.Context, userID string, req *transfer.PostRequest) (*models.Post, *ConflictReport, error) {
	targets, err := s.buildTargets(req)
	if err != nil {
		return nil, nil, err
	}
	postURL, err := validateURL(req.URL)
	if err != nil {
		return nil, nil, err
	}

	report, err := s.checkConflicts(ctx, userID, "", targets, req.Force)
	if err != nil {
		return nil, report, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, nil, fmt.Errorf("generate post id: %w", err)
	}
	post := &models.Post{
		ID:      id,
		UserID:  userID,
		URL:     postURL,
		Targets: targets,
	}
	if err := s.pr.Create(ctx, post); err != nil {
		return nil, nil, err
	}

	if err := ScheduleTargets(ctx, s.scheduler, s.pr, post); err != nil {
		s.unwind(ctx, post)
		return nil, nil, err
	}

	s.log.Info().Str("post_id", post.ID).Int("targets", len(post.Targets)).Msg("post scheduled")
	return post, report, nil
}

// unwind drops a post whose publish jobs could not all be registered.
func (s *postService) unwind(ctx context.Context, post *models.Post) {
	s.cancelHandles(ctx, post)
	if err := s.pr.Remove(ctx, post.ID); err != nil {
		s.log.Error().Err(err).Str("post_id", post.ID).Msg("failed to remove unscheduled post")
	}
}

func (s *postService) Get(ctx context.Context, userID, postID string) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID string, status models.PostStatus) ([]*models.Post, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return posts, nil
	}

	filtered := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Status() == status {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *postService) Update(ctx context.Context, userID, postID string, req *transfer.PostRequest) (*models.Post, *ConflictReport, error) {
	post, err := s.Get(ctx, userID, postID)
	if err != nil {
		return nil, nil, err
	}
	if !post.Editable() {
		return nil, nil, ErrPostNotEditable
	}

	targets, err := s.buildTargets(req)
	if err != nil {
		return nil, nil, err
	}
	postURL, err := validateURL(req.URL)
	if err != nil {
		return nil, nil, err
	}

	report, err := s.checkConflicts(ctx, userID, post.ID, targets, req.Force)
	if err != nil {
		return nil, report, err
	}

	s.cancelHandles(ctx, post)

	updated := &models.Post{
		ID:               post.ID,
		UserID:           post.UserID,
		URL:              postURL,
		ClonedFromPostID: post.ClonedFromPostID,
		CreatedByQueueID: post.CreatedByQueueID,
		CreatedAt:        post.CreatedAt,
		Targets:          targets,
	}
	if err := s.pr.Replace(ctx, updated); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A publish claimed a target after the handles were cancelled.
			s.restore(ctx, post.ID)
			return nil, nil, ErrPostNotEditable
		}
		return nil, nil, err
	}

	if err := ScheduleTargets(ctx, s.scheduler, s.pr, updated); err != nil {
		// The edit is already committed, so targets left without a job are failed.
		FailUnscheduled(ctx, s.pr, updated, err, s.log)
		return nil, nil, err
	}

	updated.UpdatedAt = s.now()
	s.log.Info().Str("post_id", post.ID).Msg("post rescheduled")
	return updated, report, nil
}

// restore re-registers jobs for targets that are still scheduled after a
// rejected edit.
func (s *postService) restore(ctx context.Context, postID string) {
	current, err := s.pr.GetByID(ctx, postID)
	if err != nil || current == nil {
		return
	}
	pending := &models.Post{ID: current.ID}
	for _, t := range current.Targets {
		if t.Status == models.PostStatusScheduled {
			pending.Targets = append(pending.Targets, t)
		}
	}
	if err := ScheduleTargets(ctx, s.scheduler, s.pr, pending); err != nil {
		s.log.Error().Err(err).Str("post_id", postID).Msg("failed to restore publish jobs")
	}
}

func (s *postService) Remove(ctx context.Context, userID, postID string) error {
	post, err := s.Get(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Publishing() {
		return ErrPostPublishing
	}

	s.cancelHandles(ctx, post)
	if err := s.pr.Remove(ctx, post.ID); err != nil {
		return err
	}
	s.log.Info().Str("post_id", post.ID).Msg("post removed")
	return nil
}

func (s *postService) Clone(ctx context.Context, userID, postID string, req *transfer.CloneRequest) (*models.Post, *ConflictReport, error) {
	origin, err := s.Get(ctx, userID, postID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.validateTime(req.ScheduledTime); err != nil {
		return nil, nil, err
	}

	targets := CloneTargets(origin, req.ScheduledTime)
	report, err := s.checkConflicts(ctx, userID, "", targets, req.Force)
	if err != nil {
		return nil, report, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, nil, fmt.Errorf("generate post id: %w", err)
	}
	clone := &models.Post{
		ID:               id,
		UserID:           origin.UserID,
		URL:              origin.URL,
		ClonedFromPostID: origin.ID,
		Targets:          targets,
	}
	if err := s.pr.Create(ctx, clone); err != nil {
		return nil, nil, err
	}
	if err := ScheduleTargets(ctx, s.scheduler, s.pr, clone); err != nil {
		s.unwind(ctx, clone)
		return nil, nil, err
	}

	s.log.Info().Str("post_id", clone.ID).Str("cloned_from", origin.ID).Msg("post cloned")
	return clone, report, nil
}

func (s *postService) buildTargets(req *transfer.PostRequest) ([]*models.PostTarget, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidPost)
	}
	byPlatform := req.ByPlatform()
	if len(byPlatform) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", ErrInvalidPost)
	}

	targets := make([]*models.PostTarget, 0, len(byPlatform))
	for _, p := range models.Platforms {
		pc, ok := byPlatform[p]
		if !ok {
			continue
		}
		content := strings.TrimSpace(pc.Content)
		if content == "" {
			return nil, fmt.Errorf("%w: %s content is empty", ErrInvalidPost, p)
		}
		if n := utils.CharCount(content); n > p.MaxContentLength() {
			return nil, fmt.Errorf("%w: %s content is %d characters, limit is %d", ErrInvalidPost, p, n, p.MaxContentLength())
		}
		if err := s.validateTime(pc.ScheduledTime); err != nil {
			return nil, err
		}
		targets = append(targets, &models.PostTarget{
			Platform:      p,
			Content:       content,
			ScheduledTime: pc.ScheduledTime.UTC(),
			Status:        models.PostStatusScheduled,
		})
	}
	return targets, nil
}

func (s *postService) validateTime(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrInvalidPost)
	}
	if t.Before(s.now().Add(-scheduleSkew)) {
		return fmt.Errorf("%w: scheduled time is in the past", ErrInvalidPost)
	}
	return nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url must be an absolute http(s) link", ErrInvalidPost)
	}
	return raw, nil
}

// checkConflicts returns the merged report for every target and
// ErrScheduleConflict when an exact conflict exists and force is unset.
func (s *postService) checkConflicts(ctx context.Context, userID, excludePostID string, targets []*models.PostTarget, force bool) (*ConflictReport, error) {
	report := &ConflictReport{}
	for _, t := range targets {
		r, err := s.cs.Check(ctx, ConflictCheck{
			UserID:        userID,
			Platform:      t.Platform,
			At:            t.ScheduledTime,
			ExcludePostID: excludePostID,
		})
		if err != nil {
			return nil, err
		}
		report.merge(r)
	}
	if report.HasExact() && !force {
		return report, ErrScheduleConflict
	}
	return report, nil
}

// cancelHandles drops pending jobs for scheduled targets. Failures are
// logged; the claim in the publish path prevents stale jobs from running twice.
func (s *postService) cancelHandles(ctx context.Context, post *models.Post) {
	for _, t := range post.Targets {
		if t.Status != models.PostStatusScheduled || t.SchedulerHandle == "" {
			continue
		}
		if err := s.scheduler.Cancel(ctx, t.SchedulerHandle); err != nil {
			s.log.Warn().Err(err).
				Str("post_id", post.ID).
				Str("platform", string(t.Platform)).
				Msg("failed to cancel publish job")
		}
	}
}

// CloneTargets copies the content of every origin target into fresh
// scheduled targets at the given time.
func CloneTargets(origin *models.Post, at time.Time) []*models.PostTarget {
	targets := make([]*models.PostTarget, 0, len(origin.Targets))
	for _, t := range origin.Targets {
		targets = append(targets, &models.PostTarget{
			Platform:      t.Platform,
			Content:       t.Content,
			ScheduledTime: at.UTC(),
			Status:        models.PostStatusScheduled,
		})
	}
	return targets
}

// ScheduleTargets registers one publish job per target and stores its handle.
func ScheduleTargets(ctx context.Context, scheduler tasks.Scheduler, pr repository.PostRepository, post *models.Post) error {
	for _, t := range post.Targets {
		payload := tasks.PublishPostPayload{PostID: post.ID, Platform: t.Platform}
		handle, err := scheduler.ScheduleAt(ctx, t.ScheduledTime, tasks.TypePublishPost, payload)
		if err != nil {
			return fmt.Errorf("schedule %s publish: %w", t.Platform, err)
		}
		t.SchedulerHandle = handle
		if err := pr.SetSchedulerHandle(ctx, post.ID, t.Platform, handle); err != nil {
			return err
		}
	}
	return nil
}

// FailUnscheduled marks targets that never got a publish job as failed so
// they do not sit in scheduled forever.
func FailUnscheduled(ctx context.Context, pr repository.PostRepository, post *models.Post, cause error, log *logger.Logger) {
	msg := fmt.Sprintf("Permanent error: could not schedule publish: %v", cause)
	for _, t := range post.Targets {
		if t.SchedulerHandle != "" {
			continue
		}
		if err := pr.MarkFailed(ctx, post.ID, t.Platform, msg); err != nil {
			log.Error().Err(err).Str("post_id", post.ID).Str("platform", string(t.Platform)).Msg("failed to mark target failed")
			continue
		}
		t.Status = models.PostStatusFailed
		t.ErrorMessage = msg
	}
}
