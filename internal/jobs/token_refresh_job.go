package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/pkg/logger"
	"github.com/maheshrc27/postqueue/pkg/utils"
	"golang.org/x/oauth2"
)

const (
	refreshAhead     = 30 * time.Minute
	refreshTimeout   = time.Minute
	concurrencyLimit = 10
)

// TokenRefreshJob renews OAuth tokens that are about to expire so scheduled
// posts do not fail on an expired credential.
type TokenRefreshJob struct {
	sr      repository.SocialAccountRepository
	configs map[models.Platform]*oauth2.Config
	key     []byte
	log     *logger.Logger
	now     func() time.Time
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	configs map[models.Platform]*oauth2.Config,
	secretKey string,
	log *logger.Logger) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:      sr,
		configs: configs,
		key:     []byte(secretKey),
		log:     log.WithComponent("token-refresh"),
		now:     time.Now,
	}
}

// RefreshTokens is the cron entry point.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := c.Run(ctx); err != nil {
		c.log.Error().Err(err).Msg("token refresh run failed")
	}
}

// Run refreshes every connection expiring within the next 30 minutes and
// returns how many were renewed.
func (c *TokenRefreshJob) Run(ctx context.Context) (int, error) {
	accounts, err := c.sr.ListExpiringBefore(ctx, c.now().Add(refreshAhead))
	if err != nil {
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refresh(ctx, acc); err != nil {
				c.log.Warn().Err(err).
					Str("user_id", acc.UserID).
					Str("platform", string(acc.Platform)).
					Msg("unable to refresh token")
				return
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
		}(acc)
	}
	wg.Wait()

	if len(accounts) > 0 {
		c.log.Info().Int("expiring", len(accounts)).Int("refreshed", refreshed).Msg("token refresh finished")
	}
	return refreshed, nil
}

func (c *TokenRefreshJob) refresh(ctx context.Context, acc *models.SocialAccount) error {
	cfg, ok := c.configs[acc.Platform]
	if !ok {
		return fmt.Errorf("no oauth config for %s", acc.Platform)
	}

	conn, err := service.DecryptAccount(acc, c.key)
	if err != nil {
		return err
	}
	if conn.RefreshToken == "" {
		return errors.New("no refresh token stored")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	// An already expired token forces the source to hit the token endpoint.
	src := cfg.TokenSource(ctx, &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       c.now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return fmt.Errorf("refresh %s token: %w", acc.Platform, err)
	}

	accessToken, err := utils.Encrypt([]byte(tok.AccessToken), c.key)
	if err != nil {
		return err
	}
	var refreshToken string
	if tok.RefreshToken != "" && tok.RefreshToken != conn.RefreshToken {
		refreshToken, err = utils.Encrypt([]byte(tok.RefreshToken), c.key)
		if err != nil {
			return err
		}
	}
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(2 * time.Hour)
	}

	err = c.sr.SetToken(ctx, acc.ID, acc.AccessToken, &models.SocialAccount{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiresAt,
	})
	if errors.Is(err, repository.ErrConflict) {
		c.log.Debug().Str("user_id", acc.UserID).Str("platform", string(acc.Platform)).Msg("token changed during refresh, keeping newer value")
		return nil
	}
	return err
}

// OAuthConfig builds the refresh-only client configuration for one platform.
func OAuthConfig(clientID, clientSecret, tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
