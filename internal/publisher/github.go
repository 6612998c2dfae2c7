package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
)

// GitHubClient is a minimal GitHub REST client covering what the review
// channel needs: find, create and update pull requests, append comments.
type GitHubClient struct {
	baseURL string
	token   string
	owner   string
	repo    string
	client  *http.Client
	logger  *zap.Logger
}

// PullRequest is the subset of the GitHub PR payload we use.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

func NewGitHubClient(cfg config.GitHubConfig, logger *zap.Logger) *GitHubClient {
	return &GitHubClient{
		baseURL: "https://api.github.com",
		token:   cfg.Token,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// FindPullRequest returns the open PR whose head is the given branch, or nil
// when none exists.
func (c *GitHubClient) FindPullRequest(ctx context.Context, headBranch string) (*PullRequest, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&head=%s",
		c.baseURL, c.owner, c.repo,
		url.QueryEscape(c.owner+":"+headBranch))

	var prs []PullRequest
	if err := c.do(ctx, "GET", endpoint, nil, &prs); err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

func (c *GitHubClient) CreatePullRequest(ctx context.Context, headBranch, baseBranch, title, body string) (*PullRequest, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, c.owner, c.repo)
	payload := map[string]string{
		"title": title,
		"head":  headBranch,
		"base":  baseBranch,
		"body":  body,
	}

	var pr PullRequest
	if err := c.do(ctx, "POST", endpoint, payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (c *GitHubClient) UpdatePullRequest(ctx context.Context, number int, title, body string) (*PullRequest, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, number)
	payload := map[string]string{
		"title": title,
		"body":  body,
	}

	var pr PullRequest
	if err := c.do(ctx, "PATCH", endpoint, payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// Comment appends a comment to the PR's conversation.
func (c *GitHubClient) Comment(ctx context.Context, number int, body string) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, c.owner, c.repo, number)
	payload := map[string]string{"body": body}
	return c.do(ctx, "POST", endpoint, payload, nil)
}

func (c *GitHubClient) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
