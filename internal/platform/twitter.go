package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maheshrc27/postqueue/internal/models"
)

// TwitterClient publishes through the X API v2 tweets endpoint.
type TwitterClient struct {
	api *apiClient
}

func NewTwitterClient(opts Options) *TwitterClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twitter.com/2"
	}
	return &TwitterClient{api: newAPIClient(models.PlatformTwitter, opts)}
}

func (c *TwitterClient) Platform() models.Platform { return models.PlatformTwitter }

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (c *TwitterClient) Publish(ctx context.Context, conn *models.Connection, content string) Outcome {
	return c.tweet(ctx, conn, tweetRequest{Text: content})
}

func (c *TwitterClient) Reply(ctx context.Context, conn *models.Connection, parentID, text string) Outcome {
	return c.tweet(ctx, conn, tweetRequest{Text: text, Reply: &tweetReply{InReplyToTweetID: parentID}})
}

func (c *TwitterClient) tweet(ctx context.Context, conn *models.Connection, req tweetRequest) Outcome {
	_, body, err := c.api.postJSON(ctx, conn.AccessToken, "/tweets", req)
	if err != nil {
		return FromError(err)
	}

	var resp tweetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Permanent(fmt.Errorf("decode tweet response: %w", err))
	}
	if resp.Data.ID == "" {
		return Permanent(errors.New("tweet response carried no id"))
	}
	return Success(resp.Data.ID)
}
