package transfer

import "time"

type ConnectionRequest struct {
	Platform        string    `json:"platform"`
	AccountID       string    `json:"account_id"`
	AccountUsername string    `json:"account_username"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}
