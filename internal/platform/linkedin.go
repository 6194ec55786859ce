package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/maheshrc27/postqueue/internal/models"
)

const (
	restliVersion   = "2.0.0"
	linkedinVersion = "202401"
)

// LinkedInClient publishes through the LinkedIn Posts API and threads links
// as a first comment.
type LinkedInClient struct {
	api *apiClient
}

func NewLinkedInClient(opts Options) *LinkedInClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.linkedin.com/rest"
	}
	api := newAPIClient(models.PlatformLinkedIn, opts)
	api.headers["X-Restli-Protocol-Version"] = restliVersion
	api.headers["LinkedIn-Version"] = linkedinVersion
	return &LinkedInClient{api: api}
}

func (c *LinkedInClient) Platform() models.Platform { return models.PlatformLinkedIn }

type Distribution struct {
	FeedDistribution               string        `json:"feedDistribution"`
	TargetEntities                 []interface{} `json:"targetEntities"`
	ThirdPartyDistributionChannels []interface{} `json:"thirdPartyDistributionChannels"`
}

type PostRequest struct {
	Author                    string       `json:"author"`
	Commentary                string       `json:"commentary"`
	Visibility                string       `json:"visibility"`
	Distribution              Distribution `json:"distribution"`
	LifecycleState            string       `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool         `json:"isReshareDisabledByAuthor"`
}

type commentMessage struct {
	Text string `json:"text"`
}

type CommentRequest struct {
	Actor   string         `json:"actor"`
	Object  string         `json:"object"`
	Message commentMessage `json:"message"`
}

func authorURN(conn *models.Connection) string {
	return "urn:li:person:" + conn.AccountID
}

func (c *LinkedInClient) Publish(ctx context.Context, conn *models.Connection, content string) Outcome {
	if conn.AccountID == "" {
		return Permanent(errors.New("linkedin connection has no member id"))
	}

	req := PostRequest{
		Author:     authorURN(conn),
		Commentary: content,
		Visibility: "PUBLIC",
		Distribution: Distribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []interface{}{},
			ThirdPartyDistributionChannels: []interface{}{},
		},
		LifecycleState: "PUBLISHED",
	}

	resp, body, err := c.api.postJSON(ctx, conn.AccessToken, "/posts", req)
	if err != nil {
		return FromError(err)
	}

	// The post URN comes back in x-restli-id; some API versions also echo it in the body.
	if urn := resp.Header.Get("x-restli-id"); urn != "" {
		return Success(urn)
	}
	if id := idFromBody(body); id != "" {
		return Success(id)
	}
	return Permanent(errors.New("linkedin response carried no post urn"))
}

func (c *LinkedInClient) Reply(ctx context.Context, conn *models.Connection, parentID, text string) Outcome {
	req := CommentRequest{
		Actor:   authorURN(conn),
		Object:  parentID,
		Message: commentMessage{Text: text},
	}

	path := fmt.Sprintf("/socialActions/%s/comments", url.PathEscape(parentID))
	resp, body, err := c.api.postJSON(ctx, conn.AccessToken, path, req)
	if err != nil {
		return FromError(err)
	}

	if id := idFromBody(body); id != "" {
		return Success(id)
	}
	return Success(resp.Header.Get("x-restli-id"))
}

func idFromBody(body []byte) string {
	var result struct {
		ID string `json:"id"`
	}
	if len(body) == 0 || json.Unmarshal(body, &result) != nil {
		return ""
	}
	return result.ID
}
