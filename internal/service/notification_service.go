package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/pkg/logger"
	"github.com/mrz1836/postmark"
)

// EmailSender is the subset of *postmark.Client the notifier uses.
type EmailSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type NotificationService interface {
	NotifyFailure(ctx context.Context, postID, message string) error
}

type notificationService struct {
	nr      repository.NotificationRepository
	mail    EmailSender
	from    string
	alertTo string
	log     *logger.Logger
}

// NewNotificationService records every terminal failure and, when mail is
// non-nil, e-mails it to alertTo.
func NewNotificationService(nr repository.NotificationRepository, mail EmailSender, from, alertTo string, log *logger.Logger) NotificationService {
	return &notificationService{
		nr:      nr,
		mail:    mail,
		from:    from,
		alertTo: alertTo,
		log:     log.WithComponent("notifier"),
	}
}

func (s *notificationService) NotifyFailure(ctx context.Context, postID, message string) error {
	id, err := s.nr.Create(ctx, &models.FailureNotification{PostID: postID, Message: message})
	if err != nil {
		return err
	}

	if s.mail == nil || s.alertTo == "" {
		return nil
	}

	resp, err := s.mail.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       s.alertTo,
		Subject:  fmt.Sprintf("Post %s failed to publish", postID),
		TextBody: message,
		Tag:      "publish-failure",
	})
	if err != nil {
		return fmt.Errorf("send failure e-mail: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}

	if err := s.nr.MarkDelivered(ctx, id); err != nil {
		s.log.Warn().Err(err).Int64("notification_id", id).Msg("failed to mark notification delivered")
	}
	return nil
}
