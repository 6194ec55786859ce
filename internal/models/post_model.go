package models

import "time"

type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformLinkedIn Platform = "linkedin"
)

// Platforms lists every platform a post can target, in publish order.
var Platforms = []Platform{PlatformTwitter, PlatformLinkedIn}

func (p Platform) Valid() bool {
	return p == PlatformTwitter || p == PlatformLinkedIn
}

// MaxContentLength is the character limit enforced before a post is accepted.
func (p Platform) MaxContentLength() int {
	switch p {
	case PlatformTwitter:
		return 280
	case PlatformLinkedIn:
		return 3000
	default:
		return 0
	}
}

type PostStatus string

const (
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

// MaxRetries bounds the number of transient-failure retries per target.
const MaxRetries = 3

type Post struct {
	ID               string        `db:"id" json:"id"`
	UserID           string        `db:"user_id" json:"user_id"`
	URL              string        `db:"url" json:"url,omitempty"`
	ClonedFromPostID string        `db:"cloned_from_post_id" json:"cloned_from_post_id,omitempty"`
	CreatedByQueueID string        `db:"created_by_queue_id" json:"created_by_queue_id,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
	Targets          []*PostTarget `json:"targets"`
}

// PostTarget is the per-platform half of a post. Each target runs its own
// publish state machine: scheduled -> publishing -> published | scheduled (retry) | failed.
type PostTarget struct {
	PostID          string     `db:"post_id" json:"post_id"`
	Platform        Platform   `db:"platform" json:"platform"`
	Content         string     `db:"content" json:"content"`
	ScheduledTime   time.Time  `db:"scheduled_time" json:"scheduled_time"`
	SchedulerHandle string     `db:"scheduler_handle" json:"-"`
	PublishedID     string     `db:"published_id" json:"published_id,omitempty"`
	Status          PostStatus `db:"status" json:"status"`
	RetryCount      int        `db:"retry_count" json:"retry_count"`
	ErrorMessage    string     `db:"error_message" json:"error_message,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

func (t *PostTarget) Terminal() bool {
	return t.Status == PostStatusPublished || t.Status == PostStatusFailed
}

// Target returns the post's target for platform, or nil.
func (p *Post) Target(platform Platform) *PostTarget {
	for _, t := range p.Targets {
		if t.Platform == platform {
			return t
		}
	}
	return nil
}

// Status folds the per-platform states into one value for readers that
// want a single post-level status.
func (p *Post) Status() PostStatus {
	var scheduled, failed bool
	for _, t := range p.Targets {
		switch t.Status {
		case PostStatusPublishing:
			return PostStatusPublishing
		case PostStatusScheduled:
			scheduled = true
		case PostStatusFailed:
			failed = true
		}
	}
	switch {
	case scheduled:
		return PostStatusScheduled
	case failed:
		return PostStatusFailed
	default:
		return PostStatusPublished
	}
}

// Editable reports whether no target has left the scheduled state.
func (p *Post) Editable() bool {
	for _, t := range p.Targets {
		if t.Status != PostStatusScheduled {
			return false
		}
	}
	return len(p.Targets) > 0
}

func (p *Post) Publishing() bool {
	for _, t := range p.Targets {
		if t.Status == PostStatusPublishing {
			return true
		}
	}
	return false
}
