package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/pkg/retry"
)

// TaskKind selects which configured model backend handles a call.
type TaskKind int

const (
	TaskPlanning TaskKind = iota
	TaskCreative
	TaskVerification
)

func (k TaskKind) String() string {
	switch k {
	case TaskPlanning:
		return "planning"
	case TaskCreative:
		return "creative"
	case TaskVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// ParseTaskKind maps a kind name onto the enum. Unrecognized names resolve to
// TaskPlanning: a degraded low-temperature response beats no response.
func ParseTaskKind(name string) TaskKind {
	switch name {
	case "creative":
		return TaskCreative
	case "verification":
		return TaskVerification
	default:
		return TaskPlanning
	}
}

// Request is the prompt context for one routed call.
type Request struct {
	System string
	Prompt string
}

// Router dispatches calls to the model configured for each task kind,
// wrapping them in the shared retry policy and dual-path response parsing.
// It keeps no state across invocations.
type Router struct {
	client *Client
	table  map[TaskKind]config.ModelConfig
	policy retry.Policy
	logger *zap.Logger
}

func NewRouter(cfg config.ModelsConfig, logger *zap.Logger) *Router {
	timeout := config.Duration(cfg.Timeout, 120*time.Second)
	return &Router{
		client: NewClient(cfg.BaseURL, cfg.APIKey, timeout, logger),
		table: map[TaskKind]config.ModelConfig{
			TaskPlanning:     cfg.Planning,
			TaskCreative:     cfg.Creative,
			TaskVerification: cfg.Verification,
		},
		policy: cfg.Retry.Policy(),
		logger: logger,
	}
}

// ModelFor resolves the model configuration for a task kind. Kinds outside
// the table fall back to the planning entry.
func (r *Router) ModelFor(kind TaskKind) config.ModelConfig {
	if mc, ok := r.table[kind]; ok {
		return mc
	}
	return r.table[TaskPlanning]
}

// Invoke performs one routed model call. Transient failures are absorbed by
// the retry loop here; callers see either a parsed response or a terminal
// *ModelError.
func (r *Router) Invoke(ctx context.Context, kind TaskKind, req Request) (*ParsedResponse, error) {
	mc := r.ModelFor(kind)

	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	var raw string
	err := retry.Do(ctx, r.policy, IsRetryable, func(ctx context.Context) error {
		var callErr error
		raw, callErr = r.client.Complete(ctx, mc.Model, messages, mc.Temperature, mc.MaxTokens)
		if callErr == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(callErr, &apiErr) && apiErr.StatusCode == 429 && apiErr.RetryAfter > 0 {
			// Server told us how long to back off; honor it over the schedule
			return retry.WithDelay(callErr, apiErr.RetryAfter)
		}
		return callErr
	})
	if err != nil {
		r.logger.Error("Model call failed",
			zap.String("task", kind.String()),
			zap.String("model", mc.Model),
			zap.Error(err))
		return nil, &ModelError{Task: kind.String(), Model: mc.Model, Err: err}
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		r.logger.Warn("Model response unparsable",
			zap.String("task", kind.String()),
			zap.String("model", mc.Model),
			zap.Error(err))
		return nil, &ModelError{Task: kind.String(), Model: mc.Model, Err: err}
	}

	r.logger.Debug("Model call completed",
		zap.String("task", kind.String()),
		zap.String("model", mc.Model),
		zap.Int("response_chars", len(raw)))

	return parsed, nil
}
