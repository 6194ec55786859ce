package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type memAccounts struct {
	accounts map[models.Platform]*models.SocialAccount
}

func (m *memAccounts) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	if m.accounts == nil {
		m.accounts = map[models.Platform]*models.SocialAccount{}
	}
	sa.ID = int64(len(m.accounts) + 1)
	cp := *sa
	m.accounts[sa.Platform] = &cp
	return sa.ID, nil
}

func (m *memAccounts) GetByUserAndPlatform(ctx context.Context, userID string, p models.Platform) (*models.SocialAccount, error) {
	sa, ok := m.accounts[p]
	if !ok || sa.UserID != userID {
		return nil, nil
	}
	cp := *sa
	return &cp, nil
}

func (m *memAccounts) ListByUserID(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, sa := range m.accounts {
		if sa.UserID == userID {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (m *memAccounts) ListExpiringBefore(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (m *memAccounts) SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	return nil
}

func (m *memAccounts) Remove(ctx context.Context, userID string, p models.Platform) error {
	delete(m.accounts, p)
	return nil
}

func TestConnectionService_SaveEncryptsAndDecrypts(t *testing.T) {
	repo := &memAccounts{}
	svc := NewConnectionService(repo, testSecretKey)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).UTC()

	err := svc.Save(ctx, &models.Connection{
		UserID:       "user-1",
		Platform:     models.PlatformTwitter,
		AccountID:    "12345",
		AccessToken:  "access-secret",
		RefreshToken: "refresh-secret",
		ExpiresAt:    expires,
	}, "@someone")
	require.NoError(t, err)

	stored := repo.accounts[models.PlatformTwitter]
	require.NotNil(t, stored)
	assert.NotEqual(t, "access-secret", stored.AccessToken)
	assert.NotEqual(t, "refresh-secret", stored.RefreshToken)
	assert.Equal(t, "@someone", stored.AccountUsername)

	conn, err := svc.GetDecryptedConnection(ctx, "user-1", models.PlatformTwitter)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "access-secret", conn.AccessToken)
	assert.Equal(t, "refresh-secret", conn.RefreshToken)
	assert.Equal(t, "12345", conn.AccountID)
	assert.Equal(t, expires, conn.ExpiresAt)
}

func TestConnectionService_Missing(t *testing.T) {
	svc := NewConnectionService(&memAccounts{}, testSecretKey)

	conn, err := svc.GetDecryptedConnection(context.Background(), "user-1", models.PlatformLinkedIn)
	assert.NoError(t, err)
	assert.Nil(t, conn)
}

func TestConnectionService_Validation(t *testing.T) {
	svc := NewConnectionService(&memAccounts{}, testSecretKey)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Save(ctx, &models.Connection{UserID: "u", Platform: "myspace", AccountID: "1", AccessToken: "t"}, ""), ErrInvalidConnection)
	assert.ErrorIs(t, svc.Save(ctx, &models.Connection{UserID: "u", Platform: models.PlatformTwitter, AccountID: "1"}, ""), ErrInvalidConnection)
	assert.ErrorIs(t, svc.Remove(ctx, "u", "myspace"), ErrInvalidConnection)
}

func TestConnectionService_WrongKeyFails(t *testing.T) {
	repo := &memAccounts{}
	ctx := context.Background()
	require.NoError(t, NewConnectionService(repo, testSecretKey).Save(ctx, &models.Connection{
		UserID: "user-1", Platform: models.PlatformTwitter, AccountID: "1", AccessToken: "t",
	}, ""))

	_, err := NewConnectionService(repo, "fedcba9876543210fedcba9876543210").GetDecryptedConnection(ctx, "user-1", models.PlatformTwitter)
	assert.Error(t, err)
}
