package shaper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/internal/validator"
	"github.com/fraywing/threadcast/pkg/textutil"
)

func testConfig() config.ThreadConfig {
	return config.ThreadConfig{
		MaxHashtags:  2,
		CallToAction: "Full write-up linked below. Thoughts?",
	}
}

func draftWith(texts ...string) *models.ThreadDraft {
	units := make([]models.Tweet, len(texts))
	for i, text := range texts {
		units[i] = models.Tweet{Text: text, Position: i + 1}
	}
	d := &models.ThreadDraft{Slug: "test-post", Units: units}
	if len(units) > 0 {
		d.Hook = units[0].Text
	}
	return d
}

func TestApplyStructureAddsCTAAndMarkers(t *testing.T) {
	s := NewShaper(testConfig(), 280)
	item := &models.ContentItem{Slug: "test-post", URL: "https://blog.example.com/test-post"}

	draft := s.ApplyStructure(draftWith("opening line", "middle point"), item)

	// CTA unit appended since the last unit had no call to action
	require.Len(t, draft.Units, 3)
	last := draft.Units[2].Text
	assert.Contains(t, last, "Thoughts?")
	assert.Contains(t, last, item.URL)

	// Every unit is annotated and renumbered
	for i, unit := range draft.Units {
		assert.Equal(t, i+1, unit.Position)
		assert.Contains(t, unit.Text, fmt.Sprintf("(%d/%d)", i+1, 3))
	}
	assert.Equal(t, draft.Units[0].Text, draft.Hook)
}

func TestApplyStructureSkipsCTAWhenPresent(t *testing.T) {
	s := NewShaper(testConfig(), 280)

	draft := s.ApplyStructure(draftWith("opening", "read the full post at the link"), nil)

	// The closer already carries a call to action; nothing is appended
	require.Len(t, draft.Units, 2)
}

func TestApplyStructureMovesHookToFront(t *testing.T) {
	s := NewShaper(testConfig(), 280)
	draft := draftWith("context first", "the real hook", "closing thoughts, share it")
	draft.Hook = "the real hook"

	draft = s.ApplyStructure(draft, nil)

	assert.True(t, strings.HasPrefix(draft.Units[0].Text, "the real hook"))
	assert.True(t, strings.HasPrefix(draft.Units[1].Text, "context first"))
}

func TestApplyStructureKeepsMarkedUnitsWithinLimit(t *testing.T) {
	s := NewShaper(testConfig(), 280)

	// A unit already trimmed to the full platform limit upstream
	long := textutil.TruncateRunes(strings.Repeat("x", 400), 280)
	draft := s.ApplyStructure(draftWith(long, "check out the link"), nil)

	require.Len(t, draft.Units, 2)
	assert.Contains(t, draft.Units[0].Text, "(1/2)")

	v := validator.NewValidator(config.ValidatorConfig{
		CharLimit:       280,
		ShortenedURLLen: 23,
		WarnFraction:    0.9,
	})
	result := v.CheckLimits(draft)
	assert.True(t, result.OK)
	assert.Empty(t, result.Failures)
}

func TestApplyStructureDoesNotDoubleMark(t *testing.T) {
	s := NewShaper(testConfig(), 280)

	draft := s.ApplyStructure(draftWith("already marked (1/2)", "check out the link"), nil)

	assert.Equal(t, 1, strings.Count(draft.Units[0].Text, "(1/2)"))
}

func TestSelectHashtagsBound(t *testing.T) {
	s := NewShaper(testConfig(), 280)
	item := &models.ContentItem{
		Categories: []string{"Go", "DevOps", "Databases", "Web Development"},
	}

	tags := s.SelectHashtags(item)

	// Hard bound regardless of how many categories the item carries
	require.Len(t, tags, 2)
	assert.Equal(t, "#golang", tags[0])
	assert.Equal(t, "#DevOps", tags[1])
}

func TestSelectHashtagsDedupes(t *testing.T) {
	s := NewShaper(testConfig(), 280)
	item := &models.ContentItem{Categories: []string{"go", "golang"}}

	tags := s.SelectHashtags(item)

	// Both categories alias to the same tag
	assert.Equal(t, []string{"#golang"}, tags)
}

func TestSelectHashtagsNormalizesUnknownCategories(t *testing.T) {
	s := NewShaper(testConfig(), 280)
	item := &models.ContentItem{Categories: []string{"Distributed Systems!"}}

	assert.Equal(t, []string{"#distributedsystems"}, s.SelectHashtags(item))
}

func TestEstimateEngagementCapped(t *testing.T) {
	s := NewShaper(testConfig(), 280)

	draft := draftWith(
		"Why nobody talks about this mistake? (1/2)",
		"Follow for more. What do you think?",
	)
	draft.Hashtags = []string{"#golang", "#DevOps"}

	score := s.EstimateEngagement(draft)
	assert.LessOrEqual(t, score, 10.0)
	assert.GreaterOrEqual(t, score, 0.0)
	// Every signal fires here, so the cap is what holds it down
	assert.Equal(t, 10.0, score)
}

func TestEstimateEngagementBaseline(t *testing.T) {
	s := NewShaper(testConfig(), 280)

	score := s.EstimateEngagement(draftWith("plain statement", "another plain statement"))
	assert.Equal(t, 2.0, score)

	assert.Equal(t, 0.0, s.EstimateEngagement(&models.ThreadDraft{}))
}
