package models

import "time"

type FailureNotification struct {
	ID        int64     `db:"id" json:"id"`
	PostID    string    `db:"post_id" json:"post_id"`
	Message   string    `db:"message" json:"message"`
	Delivered bool      `db:"delivered" json:"delivered"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
