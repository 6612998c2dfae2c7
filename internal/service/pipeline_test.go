package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
)

// fakeCompletionServer answers planning, hook, assembly and verification
// prompts with canned JSON, keyed off the prompt text.
func fakeCompletionServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[len(req.Messages)-1].Content

		var content string
		switch {
		case strings.Contains(prompt, "opening lines"):
			content = `{"hooks": ["Hook variant A", "Hook variant B"]}`
		case strings.Contains(prompt, "Expand this thread plan"):
			content = `{"tweets": ["Why our builds got faster", "We rewrote the cache layer", "Read the details on the blog"]}`
		case strings.Contains(prompt, "Review this thread"):
			content = `{"verdict": "pass", "notes": []}`
		default:
			content = `{"key_points": ["builds were slow", "cache rewrite", "results"]}`
		}

		payload := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
}

func testPipelineConfig(t *testing.T, llmURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Models: config.ModelsConfig{
			BaseURL: llmURL,
			APIKey:  "test-key",
			Timeout: "5s",
			Retry: config.RetryConfig{
				MaxAttempts:     2,
				InitialInterval: "1ms",
				MaxInterval:     "1ms",
				Multiplier:      1,
			},
			Planning:     config.ModelConfig{Model: "plan-model", MaxTokens: 100},
			Creative:     config.ModelConfig{Model: "creative-model", MaxTokens: 100},
			Verification: config.ModelConfig{Model: "verify-model", MaxTokens: 100},
		},
		Thread: config.ThreadConfig{
			MaxSourceChars: 6000,
			HookCount:      2,
			MaxHashtags:    2,
			CallToAction:   "Full write-up linked below. Thoughts?",
		},
		Validator: config.ValidatorConfig{
			CharLimit:       280,
			ShortenedURLLen: 23,
			WarnFraction:    0.9,
		},
		Publisher: config.PublisherConfig{
			// No posting or review credentials: every item lands on the
			// review path without leaving the process
			Twitter: config.TwitterConfig{MinPostDelay: "1ms", MaxRateWait: "10ms", RatePerSecond: 100, RateBurst: 10},
		},
		Pipeline: config.PipelineConfig{
			AutoPublishEnabled: true,
			StateDir:           filepath.Join(dir, "records"),
			ReportDir:          filepath.Join(dir, "reports"),
			ItemsFile:          filepath.Join(dir, "items.json"),
			Workers:            2,
		},
	}
}

func writeItems(t *testing.T, path string, items []models.ContentItem) {
	t.Helper()
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestPipelineRunEndToEnd(t *testing.T) {
	srv := fakeCompletionServer(t)
	defer srv.Close()

	cfg := testPipelineConfig(t, srv.URL)
	writeItems(t, cfg.Pipeline.ItemsFile, []models.ContentItem{
		{Slug: "fast-builds", Title: "Fast Builds", URL: "https://blog.example.com/fast-builds",
			Categories: []string{"go"}, Body: "How we made builds fast.", AutoPublish: true},
		{Slug: "old-post", Title: "Old Post", PreviouslyPublished: true},
	})

	pipeline, err := NewPipelineService(cfg, nil, zap.NewNop())
	require.NoError(t, err)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Items, 2)
	assert.NotEmpty(t, report.RunID)

	by := map[string]models.ItemOutcome{}
	for _, item := range report.Items {
		by[item.Slug] = item
	}

	// Without posting credentials the item goes to review
	assert.Equal(t, models.OutcomeReview, by["fast-builds"].Outcome)
	// Previously published items are skipped before any model call
	assert.Equal(t, models.OutcomeSkipped, by["old-post"].Outcome)

	// The run report landed on disk
	reports, err := pipeline.ListReports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, report.RunID, reports[0].RunID)
}

func TestProcessItemLimitsRejectionNamesFailingUnit(t *testing.T) {
	// Short URLs count at the fixed shortened length, so this unit stays
	// under the limit in code points but over it at validation.
	overLimit := strings.Repeat("a", 254) + " see http://x.io"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[len(req.Messages)-1].Content

		var content string
		switch {
		case strings.Contains(prompt, "opening lines"):
			content = `{"hooks": ["Hook variant A"]}`
		case strings.Contains(prompt, "Expand this thread plan"):
			tweets, err := json.Marshal(map[string][]string{"tweets": {overLimit}})
			require.NoError(t, err)
			content = string(tweets)
		case strings.Contains(prompt, "Review this thread"):
			content = `{"verdict": "pass", "notes": []}`
		default:
			content = `{"key_points": ["one point"]}`
		}

		payload := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer srv.Close()

	cfg := testPipelineConfig(t, srv.URL)
	pipeline, err := NewPipelineService(cfg, nil, zap.NewNop())
	require.NoError(t, err)

	item := models.ContentItem{Slug: "short-link", Title: "Short Link",
		URL: "https://blog.example.com/short-link", Body: "text", AutoPublish: true}
	outcome := pipeline.ProcessItem(context.Background(), &item, models.DefaultStyleProfile())

	assert.Equal(t, models.OutcomeRejected, outcome.Outcome)
	// The report names the failing unit and the limit it broke
	assert.Contains(t, outcome.Error, "unit 1")
	assert.Contains(t, outcome.Error, "limit 280")
}

func TestProcessItemPlanningFailureAbortsItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "bad request"}}`)
	}))
	defer srv.Close()

	cfg := testPipelineConfig(t, srv.URL)
	pipeline, err := NewPipelineService(cfg, nil, zap.NewNop())
	require.NoError(t, err)

	item := models.ContentItem{Slug: "doomed", Title: "Doomed", Body: "text", AutoPublish: true}
	outcome := pipeline.ProcessItem(context.Background(), &item, models.DefaultStyleProfile())

	assert.Equal(t, models.OutcomeFailed, outcome.Outcome)
	assert.Equal(t, "planning", outcome.Stage)
	assert.NotEmpty(t, outcome.Error)
}
