package transfer

import (
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
)

type PlatformContent struct {
	Content       string    `json:"content"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

type PostRequest struct {
	Twitter  *PlatformContent `json:"twitter,omitempty"`
	LinkedIn *PlatformContent `json:"linkedin,omitempty"`
	URL      string           `json:"url,omitempty"`
	Force    bool             `json:"force,omitempty"`
}

// ByPlatform returns the requested platforms in publish order.
func (r *PostRequest) ByPlatform() map[models.Platform]*PlatformContent {
	out := map[models.Platform]*PlatformContent{}
	if r.Twitter != nil {
		out[models.PlatformTwitter] = r.Twitter
	}
	if r.LinkedIn != nil {
		out[models.PlatformLinkedIn] = r.LinkedIn
	}
	return out
}

type CloneRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	Force         bool      `json:"force,omitempty"`
}

type TargetResponse struct {
	Content       string            `json:"content"`
	ScheduledTime time.Time         `json:"scheduled_time"`
	Status        models.PostStatus `json:"status"`
	PublishedID   string            `json:"published_id,omitempty"`
	RetryCount    int               `json:"retry_count"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

type PostResponse struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Status           models.PostStatus `json:"status"`
	URL              string            `json:"url,omitempty"`
	Twitter          *TargetResponse   `json:"twitter,omitempty"`
	LinkedIn         *TargetResponse   `json:"linkedin,omitempty"`
	TwitterPostID    string            `json:"twitter_post_id,omitempty"`
	LinkedInPostID   string            `json:"linkedin_post_id,omitempty"`
	ClonedFromPostID string            `json:"cloned_from_post_id,omitempty"`
	CreatedByQueueID string            `json:"created_by_queue_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func NewPostResponse(p *models.Post) *PostResponse {
	resp := &PostResponse{
		ID:               p.ID,
		UserID:           p.UserID,
		Status:           p.Status(),
		URL:              p.URL,
		ClonedFromPostID: p.ClonedFromPostID,
		CreatedByQueueID: p.CreatedByQueueID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if t := p.Target(models.PlatformTwitter); t != nil {
		resp.Twitter = newTargetResponse(t)
		resp.TwitterPostID = t.PublishedID
	}
	if t := p.Target(models.PlatformLinkedIn); t != nil {
		resp.LinkedIn = newTargetResponse(t)
		resp.LinkedInPostID = t.PublishedID
	}
	return resp
}

func newTargetResponse(t *models.PostTarget) *TargetResponse {
	return &TargetResponse{
		Content:       t.Content,
		ScheduledTime: t.ScheduledTime,
		Status:        t.Status,
		PublishedID:   t.PublishedID,
		RetryCount:    t.RetryCount,
		ErrorMessage:  t.ErrorMessage,
	}
}

func NewPostResponses(posts []*models.Post) []*PostResponse {
	out := make([]*PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostResponse(p))
	}
	return out
}
