package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
)

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func testModelsConfig(baseURL string) config.ModelsConfig {
	return config.ModelsConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: "5s",
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: "1ms",
			MaxInterval:     "5ms",
			Multiplier:      1,
		},
		Planning:     config.ModelConfig{Model: "plan-model", MaxTokens: 100, Temperature: 0.3},
		Creative:     config.ModelConfig{Model: "creative-model", MaxTokens: 100, Temperature: 0.9},
		Verification: config.ModelConfig{Model: "verify-model", MaxTokens: 100, Temperature: 0.1},
	}
}

func TestParseTaskKindFallsBackToPlanning(t *testing.T) {
	assert.Equal(t, TaskPlanning, ParseTaskKind("planning"))
	assert.Equal(t, TaskCreative, ParseTaskKind("creative"))
	assert.Equal(t, TaskVerification, ParseTaskKind("verification"))
	assert.Equal(t, TaskPlanning, ParseTaskKind("summarization"))
	assert.Equal(t, TaskPlanning, ParseTaskKind(""))
}

func TestRouterDispatchesByKind(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req["model"].(string)
		fmt.Fprint(w, completionBody(`{"tweets": ["hello"]}`))
	}))
	defer srv.Close()

	router := NewRouter(testModelsConfig(srv.URL), zap.NewNop())

	resp, err := router.Invoke(context.Background(), TaskCreative, Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "creative-model", gotModel)
	assert.Equal(t, []string{"hello"}, resp.StringSlice("tweets"))

	_, err = router.Invoke(context.Background(), TaskVerification, Request{Prompt: "check"})
	require.NoError(t, err)
	assert.Equal(t, "verify-model", gotModel)
}

func TestRouterRetriesOn429WithRetryAfter(t *testing.T) {
	calls := 0
	var secondCallAt time.Time
	start := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondCallAt = time.Now()
		fmt.Fprint(w, completionBody(`{"key_points": ["a"]}`))
	}))
	defer srv.Close()

	router := NewRouter(testModelsConfig(srv.URL), zap.NewNop())

	resp, err := router.Invoke(context.Background(), TaskPlanning, Request{Prompt: "plan"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"a"}, resp.StringSlice("key_points"))
	// The Retry-After hint overrides the millisecond backoff schedule
	assert.GreaterOrEqual(t, secondCallAt.Sub(start), time.Second)
}

func TestRouterDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	router := NewRouter(testModelsConfig(srv.URL), zap.NewNop())

	_, err := router.Invoke(context.Background(), TaskPlanning, Request{Prompt: "plan"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, "planning", modelErr.Task)
}

func TestRouterRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, completionBody(`{"hooks": ["h"]}`))
	}))
	defer srv.Close()

	router := NewRouter(testModelsConfig(srv.URL), zap.NewNop())

	resp, err := router.Invoke(context.Background(), TaskCreative, Request{Prompt: "hooks"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"h"}, resp.StringSlice("hooks"))
}

func TestRouterLineFallbackParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("- point one\n- point two"))
	}))
	defer srv.Close()

	router := NewRouter(testModelsConfig(srv.URL), zap.NewNop())

	resp, err := router.Invoke(context.Background(), TaskPlanning, Request{Prompt: "plan"})
	require.NoError(t, err)
	assert.Equal(t, []string{"point one", "point two"}, resp.StringSlice("key_points"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{StatusCode: 429}))
	assert.True(t, IsRetryable(&APIError{StatusCode: 503}))
	assert.False(t, IsRetryable(&APIError{StatusCode: 400}))
	assert.False(t, IsRetryable(&FormatError{Reason: "garbage"}))
}
