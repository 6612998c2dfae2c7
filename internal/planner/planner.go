package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/llm"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/pkg/textutil"
)

// PlanningError aborts the pipeline run for the item; there is no partial
// plan. The router already retried transport failures, so this is terminal.
type PlanningError struct {
	Slug string
	Err  error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed for %s: %v", e.Slug, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Planner turns a content item plus a style profile into a structural thread
// plan and a handful of alternative opening hooks.
type Planner struct {
	router *llm.Router
	cfg    config.ThreadConfig
	logger *zap.Logger
}

func NewPlanner(router *llm.Router, cfg config.ThreadConfig, logger *zap.Logger) *Planner {
	return &Planner{
		router: router,
		cfg:    cfg,
		logger: logger,
	}
}

// Plan builds a single planning-kind prompt and extracts the ordered key
// points for the thread.
func (p *Planner) Plan(ctx context.Context, item *models.ContentItem, style *models.StyleProfile) (*models.ThreadPlan, error) {
	prompt := p.buildPlanPrompt(item, style)

	resp, err := p.router.Invoke(ctx, llm.TaskPlanning, llm.Request{
		System: "You are a social media strategist. Respond with JSON only.",
		Prompt: prompt,
	})
	if err != nil {
		return nil, &PlanningError{Slug: item.Slug, Err: err}
	}

	points := resp.StringSlice("key_points")
	if len(points) == 0 {
		return nil, &PlanningError{Slug: item.Slug, Err: fmt.Errorf("no key points in response")}
	}

	p.logger.Info("Thread planned",
		zap.String("slug", item.Slug),
		zap.Int("key_points", len(points)))

	return &models.ThreadPlan{
		Slug:      item.Slug,
		KeyPoints: points,
	}, nil
}

// GenerateHooks asks for count independent opening-line variants. Hooks are
// optional enrichment: a shortfall is accepted, never an error.
func (p *Planner) GenerateHooks(ctx context.Context, item *models.ContentItem, count int) ([]string, error) {
	prompt := fmt.Sprintf(
		"Write %d different attention-grabbing opening lines for a thread about %q.\n"+
			"Each must stand alone and fit in a single short post.\n"+
			"Respond with JSON: {\"hooks\": [\"...\"]}",
		count, item.Title)

	resp, err := p.router.Invoke(ctx, llm.TaskCreative, llm.Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	hooks := resp.StringSlice("hooks")
	if len(hooks) > count {
		hooks = hooks[:count]
	}
	if len(hooks) < count {
		p.logger.Debug("Fewer hooks than requested",
			zap.String("slug", item.Slug),
			zap.Int("requested", count),
			zap.Int("returned", len(hooks)))
	}

	return hooks, nil
}

func (p *Planner) buildPlanPrompt(item *models.ContentItem, style *models.StyleProfile) string {
	body := item.Body
	if len([]rune(body)) > p.cfg.MaxSourceChars {
		body = textutil.TruncateRunes(body, p.cfg.MaxSourceChars)
	}

	var sb strings.Builder
	sb.WriteString("Plan a social media thread for this blog post.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", item.Title)
	if len(item.Categories) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(item.Categories, ", "))
	}
	sb.WriteString("\nAuthor voice:\n")
	fmt.Fprintf(&sb, "- formality %.1f, enthusiasm %.1f, directness %.1f, technicality %.1f\n",
		style.Tone.Formality, style.Tone.Enthusiasm, style.Tone.Directness, style.Tone.Technicality)
	if len(style.VocabularyFavors) > 0 {
		fmt.Fprintf(&sb, "- favors words: %s\n", strings.Join(style.VocabularyFavors, ", "))
	}
	if len(style.VocabularyAvoids) > 0 {
		fmt.Fprintf(&sb, "- avoids words: %s\n", strings.Join(style.VocabularyAvoids, ", "))
	}
	fmt.Fprintf(&sb, "- emoji frequency %.2f (%s)\n", style.EmojiFrequency, style.EmojiPlacement)
	sb.WriteString("\nPost content:\n")
	sb.WriteString(body)
	sb.WriteString("\n\nRespond with JSON: {\"key_points\": [\"...\"]} with 4 to 8 ordered points, one thread unit each.")

	return sb.String()
}
