package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/pkg/utils"
)

type ConnectionService interface {
	GetDecryptedConnection(ctx context.Context, userID string, platform models.Platform) (*models.Connection, error)
	Save(ctx context.Context, conn *models.Connection, accountUsername string) error
	List(ctx context.Context, userID string) ([]*models.SocialAccount, error)
	Remove(ctx context.Context, userID string, platform models.Platform) error
}

type connectionService struct {
	sa  repository.SocialAccountRepository
	key []byte
}

func NewConnectionService(sa repository.SocialAccountRepository, secretKey string) ConnectionService {
	return &connectionService{sa: sa, key: []byte(secretKey)}
}

// GetDecryptedConnection returns (nil, nil) when the user has not connected the platform.
func (s *connectionService) GetDecryptedConnection(ctx context.Context, userID string, platform models.Platform) (*models.Connection, error) {
	account, err := s.sa.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	return DecryptAccount(account, s.key)
}

// DecryptAccount opens both tokens of a stored account.
func DecryptAccount(account *models.SocialAccount, key []byte) (*models.Connection, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s access token: %w", account.Platform, err)
	}

	var refreshToken string
	if account.RefreshToken != "" {
		refreshToken, err = utils.Decrypt(account.RefreshToken, key)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s refresh token: %w", account.Platform, err)
		}
	}

	return &models.Connection{
		UserID:       account.UserID,
		Platform:     account.Platform,
		AccountID:    account.AccountID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    account.TokenExpiresAt,
	}, nil
}

func (s *connectionService) Save(ctx context.Context, conn *models.Connection, accountUsername string) error {
	if conn.UserID == "" || !conn.Platform.Valid() || conn.AccessToken == "" || conn.AccountID == "" {
		return ErrInvalidConnection
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(conn.AccessToken), s.key)
	if err != nil {
		return err
	}

	var encryptedRefreshToken string
	if conn.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(conn.RefreshToken), s.key)
		if err != nil {
			return err
		}
	}

	expiresAt := conn.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(2 * time.Hour)
	}

	_, err = s.sa.Upsert(ctx, &models.SocialAccount{
		UserID:          conn.UserID,
		Platform:        conn.Platform,
		AccountID:       conn.AccountID,
		AccountUsername: accountUsername,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  expiresAt,
	})
	return err
}

func (s *connectionService) List(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	return s.sa.ListByUserID(ctx, userID)
}

func (s *connectionService) Remove(ctx context.Context, userID string, platform models.Platform) error {
	if !platform.Valid() {
		return ErrInvalidConnection
	}
	return s.sa.Remove(ctx, userID, platform)
}
