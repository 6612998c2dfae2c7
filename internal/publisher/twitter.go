package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fraywing/threadcast/internal/config"
)

// TwitterClient posts thread units through a Twitter-v2-style API. A local
// token-bucket limiter keeps us under the documented request rate even when
// the server-side quota headers say there is headroom.
type TwitterClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type tweetRequest struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type rateLimitResponse struct {
	Resources struct {
		Tweets struct {
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"tweets"`
	} `json:"resources"`
}

func NewTwitterClient(cfg config.TwitterConfig, logger *zap.Logger) *TwitterClient {
	return &TwitterClient{
		baseURL: cfg.BaseURL,
		token:   cfg.BearerToken,
		client: &http.Client{
			Timeout: config.Duration(cfg.Timeout, 30*time.Second),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger:  logger,
	}
}

func (c *TwitterClient) Ready() bool {
	return c.token != ""
}

func (c *TwitterClient) Post(ctx context.Context, text string, inReplyTo string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	body := tweetRequest{Text: text}
	if inReplyTo != "" {
		body.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: inReplyTo}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/2/tweets", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &PostError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: retryAfterHint(resp),
		}
	}

	var parsed tweetResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("posting API returned no tweet id")
	}

	c.logger.Debug("Unit posted",
		zap.String("tweet_id", parsed.Data.ID),
		zap.String("in_reply_to", inReplyTo))

	return parsed.Data.ID, nil
}

func (c *TwitterClient) RateLimit(ctx context.Context) (*RateLimit, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/2/rate_limit_status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &PostError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// Header form is authoritative when present
	if remaining := resp.Header.Get("x-rate-limit-remaining"); remaining != "" {
		r, _ := strconv.Atoi(remaining)
		reset := time.Now()
		if epoch, err := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64); err == nil {
			reset = time.Unix(epoch, 0)
		}
		return &RateLimit{Remaining: r, Reset: reset}, nil
	}

	var parsed rateLimitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &RateLimit{
		Remaining: parsed.Resources.Tweets.Remaining,
		Reset:     time.Unix(parsed.Resources.Tweets.Reset, 0),
	}, nil
}

func (c *TwitterClient) Delete(ctx context.Context, id string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/2/tweets/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &PostError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func retryAfterHint(resp *http.Response) time.Duration {
	if value := resp.Header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if epoch, err := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64); err == nil {
		if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
			return wait
		}
	}
	return 0
}
