package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/llm"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/pkg/textutil"
)

// Assembler expands a thread plan into draft tweets and self-verifies the
// result through a separate verification-kind model call.
type Assembler struct {
	router    *llm.Router
	cfg       config.ThreadConfig
	charLimit int
	logger    *zap.Logger
}

func NewAssembler(router *llm.Router, cfg config.ThreadConfig, charLimit int, logger *zap.Logger) *Assembler {
	return &Assembler{
		router:    router,
		cfg:       cfg,
		charLimit: charLimit,
		logger:    logger,
	}
}

// Assemble performs the creative expansion of the plan into an ordered
// sequence of draft units. Units over the hard platform limit are truncated
// with an ellipsis marker rather than dropped; dropping would silently shrink
// the thread, which is worse than a visibly cut unit.
func (a *Assembler) Assemble(ctx context.Context, plan *models.ThreadPlan, style *models.StyleProfile) (*models.ThreadDraft, error) {
	prompt := a.buildAssemblePrompt(plan, style)

	resp, err := a.router.Invoke(ctx, llm.TaskCreative, llm.Request{
		System: "You write engaging social media threads. Respond with JSON only.",
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("assembly failed for %s: %w", plan.Slug, err)
	}

	texts := resp.StringSlice("tweets")
	if len(texts) == 0 {
		return nil, fmt.Errorf("assembly failed for %s: no tweets in response", plan.Slug)
	}

	units := make([]models.Tweet, 0, len(texts))
	truncated := 0
	for i, text := range texts {
		if utf8.RuneCountInString(text) > a.charLimit {
			text = textutil.TruncateRunes(text, a.charLimit)
			truncated++
		}
		units = append(units, models.Tweet{Text: text, Position: i + 1})
	}
	if truncated > 0 {
		a.logger.Warn("Truncated over-limit units",
			zap.String("slug", plan.Slug),
			zap.Int("truncated", truncated))
	}

	draft := &models.ThreadDraft{
		Slug:     plan.Slug,
		Units:    units,
		AltHooks: plan.Hooks,
		Status:   models.DraftStatusDraft,
		Provenance: models.Provenance{
			PlanningModel: a.router.ModelFor(llm.TaskPlanning).Model,
			CreativeModel: a.router.ModelFor(llm.TaskCreative).Model,
			StyleVersion:  style.Version,
			GeneratedAt:   time.Now().UTC(),
		},
	}
	if len(units) > 0 {
		draft.Hook = units[0].Text
	}

	a.logger.Info("Thread assembled",
		zap.String("slug", plan.Slug),
		zap.Int("units", len(units)))

	return draft, nil
}

// Verify runs the quality/safety self-check. A failed verification call is
// not fatal: the draft passes through marked unverified so a single auxiliary
// model outage cannot take the whole pipeline down.
func (a *Assembler) Verify(ctx context.Context, draft *models.ThreadDraft) models.VerificationVerdict {
	prompt := fmt.Sprintf(
		"Review this thread for quality and safety problems (factual red flags, spammy tone, "+
			"offensive content, broken flow).\n\n%s\n\n"+
			"Respond with JSON: {\"verdict\": \"pass\"|\"fail\", \"notes\": [\"...\"]}",
		draft.FullText())

	resp, err := a.router.Invoke(ctx, llm.TaskVerification, llm.Request{Prompt: prompt})
	if err != nil {
		a.logger.Warn("Verification call failed, proceeding unverified",
			zap.String("slug", draft.Slug),
			zap.Error(err))
		return models.VerificationVerdict{Verdict: models.VerdictUnverified}
	}

	verdict := models.VerificationVerdict{Notes: resp.StringSlice("notes")}
	switch strings.ToLower(resp.String("verdict")) {
	case "pass", "passed", "ok":
		verdict.Verdict = models.VerdictPassed
	case "fail", "failed":
		verdict.Verdict = models.VerdictFailed
	default:
		a.logger.Warn("Verification verdict missing, proceeding unverified",
			zap.String("slug", draft.Slug))
		verdict.Verdict = models.VerdictUnverified
	}

	if a.router.ModelFor(llm.TaskVerification).Model != "" {
		draft.Provenance.VerifyModel = a.router.ModelFor(llm.TaskVerification).Model
	}

	return verdict
}

func (a *Assembler) buildAssemblePrompt(plan *models.ThreadPlan, style *models.StyleProfile) string {
	var sb strings.Builder
	sb.WriteString("Expand this thread plan into final tweets, one per key point, in order.\n")
	fmt.Fprintf(&sb, "Hard limit: %d characters per tweet.\n\n", a.charLimit)
	sb.WriteString("Key points:\n")
	for i, kp := range plan.KeyPoints {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, kp)
	}
	fmt.Fprintf(&sb, "\nVoice: formality %.1f, enthusiasm %.1f, directness %.1f.\n",
		style.Tone.Formality, style.Tone.Enthusiasm, style.Tone.Directness)
	if style.EmojiFrequency > 0.2 {
		sb.WriteString("Use an occasional emoji where it fits.\n")
	} else {
		sb.WriteString("Avoid emoji.\n")
	}
	sb.WriteString("\nRespond with JSON: {\"tweets\": [\"...\"]}")
	return sb.String()
}
