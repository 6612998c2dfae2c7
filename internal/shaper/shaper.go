package shaper

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/pkg/textutil"
)

// Shaper applies the deterministic engagement pass: canonical thread arc,
// position markers, hashtags and a heuristic engagement score. No I/O, no
// model calls.
type Shaper struct {
	cfg       config.ThreadConfig
	charLimit int
}

func NewShaper(cfg config.ThreadConfig, charLimit int) *Shaper {
	return &Shaper{cfg: cfg, charLimit: charLimit}
}

var hookKeywords = []string{
	"how", "why", "what", "secret", "mistake", "lesson", "nobody", "stop", "never", "everything",
}

var ctaKeywords = []string{
	"follow", "share", "retweet", "reply", "thoughts", "read", "check out", "link",
}

var positionMarker = regexp.MustCompile(`\(\d+/\d+\)`)

// ApplyStructure enforces the canonical arc: the hook unit first, value units
// in the middle, a call-to-action unit last. Unit prose is never rewritten;
// the pass only reorders, appends the CTA unit when missing, and annotates
// position markers.
func (s *Shaper) ApplyStructure(draft *models.ThreadDraft, item *models.ContentItem) *models.ThreadDraft {
	if len(draft.Units) == 0 {
		return draft
	}

	units := make([]models.Tweet, len(draft.Units))
	copy(units, draft.Units)

	// The hook leads. When the planner chose a hook that matches a later
	// unit, move that unit to the front.
	if draft.Hook != "" {
		for i, u := range units {
			if i > 0 && strings.TrimSpace(u.Text) == strings.TrimSpace(draft.Hook) {
				hook := units[i]
				copy(units[1:i+1], units[0:i])
				units[0] = hook
				break
			}
		}
	}

	// The closer carries the call to action and the canonical link.
	if !hasCallToAction(units[len(units)-1].Text) {
		cta := s.cfg.CallToAction
		if item != nil && item.URL != "" {
			cta = cta + "\n" + item.URL
		}
		units = append(units, models.Tweet{Text: cta})
	}

	// Annotate position markers so readers can follow the chain. A unit
	// already at the platform limit is cut back first so the marker never
	// pushes it over.
	total := len(units)
	for i := range units {
		units[i].Position = i + 1
		if positionMarker.MatchString(units[i].Text) {
			continue
		}
		marker := fmt.Sprintf(" (%d/%d)", i+1, total)
		if s.charLimit > 0 {
			room := s.charLimit - utf8.RuneCountInString(marker)
			if utf8.RuneCountInString(units[i].Text) > room {
				units[i].Text = textutil.TruncateRunes(units[i].Text, room)
			}
		}
		units[i].Text += marker
	}

	draft.Units = units
	draft.Hook = units[0].Text
	return draft
}

// SelectHashtags maps category tags onto a bounded hashtag set. Ties are
// broken by category declaration order and the bound is hard: more input
// categories never mean more hashtags.
func (s *Shaper) SelectHashtags(item *models.ContentItem) []string {
	max := s.cfg.MaxHashtags
	if max <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var tags []string
	for _, category := range item.Categories {
		tag := hashtagFor(category)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == max {
			break
		}
	}
	return tags
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// hashtagFor normalizes a category into a hashtag, with a small alias table
// for categories whose literal form makes a poor tag.
func hashtagFor(category string) string {
	aliases := map[string]string{
		"golang":           "golang",
		"go":               "golang",
		"machine learning": "MachineLearning",
		"ai":               "AI",
		"devops":           "DevOps",
		"databases":        "databases",
		"web development":  "webdev",
	}

	key := strings.ToLower(strings.TrimSpace(category))
	if alias, ok := aliases[key]; ok {
		return "#" + alias
	}

	cleaned := nonAlnum.ReplaceAllString(key, "")
	if cleaned == "" {
		return ""
	}
	return "#" + cleaned
}

// EstimateEngagement scores a draft in [0,10] with a purely additive
// heuristic: hook strength, position markers, a question or explicit call to
// action in the closer. Not a model, just weighted signals with a hard cap.
func (s *Shaper) EstimateEngagement(draft *models.ThreadDraft) float64 {
	if len(draft.Units) == 0 {
		return 0
	}

	score := 2.0 // baseline for a structurally complete thread

	hook := strings.ToLower(draft.Units[0].Text)
	for _, kw := range hookKeywords {
		if strings.Contains(hook, kw) {
			score += 1.5
			break
		}
	}
	if strings.Contains(hook, "?") {
		score += 1.0
	}

	if positionMarker.MatchString(draft.Units[0].Text) {
		score += 1.5
	}

	last := draft.Units[len(draft.Units)-1].Text
	if strings.Contains(last, "?") {
		score += 2.0
	}
	if hasCallToAction(last) {
		score += 2.0
	}

	score += 0.5 * float64(len(draft.Hashtags))

	if score > 10 {
		score = 10
	}
	return score
}

func hasCallToAction(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range ctaKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
