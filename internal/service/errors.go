package service

import "errors"

var (
	ErrInvalidPost       = errors.New("invalid post")
	ErrPostNotFound      = errors.New("post not found")
	ErrPostNotEditable   = errors.New("post can only be edited while every platform is scheduled")
	ErrPostPublishing    = errors.New("post is being published")
	ErrScheduleConflict  = errors.New("another post is scheduled at the same time on this platform")
	ErrInvalidQueue      = errors.New("invalid queue")
	ErrQueueNotFound     = errors.New("queue not found")
	ErrDuplicateQueue    = errors.New("an active or paused queue already exists for this post")
	ErrQueueState        = errors.New("queue is not in a state that allows this change")
	ErrInvalidConnection = errors.New("invalid connection")
)
