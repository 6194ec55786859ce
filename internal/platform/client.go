package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/postqueue/internal/models"
	"golang.org/x/time/rate"
)

// Publisher posts content to one platform on behalf of a connected account.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, conn *models.Connection, content string) Outcome
	// Reply threads text under parentID: a reply tweet or a first comment.
	Reply(ctx context.Context, conn *models.Connection, parentID, text string) Outcome
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  float64
	RateBurst  int
}

const maxErrorBody = 512

type apiClient struct {
	platform   models.Platform
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
}

func newAPIClient(platform models.Platform, opts Options) *apiClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &apiClient{
		platform:   platform,
		baseURL:    opts.BaseURL,
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
		headers:    map[string]string{},
	}
}

// postJSON sends an authenticated JSON POST. Non-2xx responses come back as *StatusError.
func (c *apiClient) postJSON(ctx context.Context, token, path string, body any) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s request failed: %w", c.platform, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("read %s response: %w", c.platform, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, respBody, &StatusError{
			Platform:   c.platform,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), maxErrorBody),
		}
	}
	return resp, respBody, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
