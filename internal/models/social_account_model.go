package models

import (
	"time"
)

// SocialAccount is a user's OAuth connection to a platform. Tokens are
// stored AES-GCM encrypted.
type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Platform        Platform  `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	AccessToken     string    `db:"access_token" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Connection is a decrypted SocialAccount, handed to publishers only.
type Connection struct {
	UserID       string
	Platform     Platform
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
