package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
)

func testConfig() config.ValidatorConfig {
	return config.ValidatorConfig{
		CharLimit:       280,
		ShortenedURLLen: 23,
		WarnFraction:    0.9,
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

func TestCheckLimitsPasses(t *testing.T) {
	v := NewValidator(testConfig())

	result := v.CheckLimits(draftWith("a short unit", "another short unit"))

	assert.True(t, result.OK)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Failures)
}

func TestCheckLimitsURLCountsShortened(t *testing.T) {
	v := NewValidator(testConfig())

	// 270 chars of text plus a long URL: raw length is far over the limit,
	// but the URL counts at the fixed shortened length
	text := strings.Repeat("a", 250) + " https://blog.example.com/a/very/long/path/that/would/never/fit"
	result := v.CheckLimits(draftWith(text))

	require.Len(t, result.Failures, 0)
	// 250 + 1 + 23 = 274, above the 252 warn threshold
	require.Len(t, result.Warnings, 1)
	assert.True(t, result.OK)
	assert.Equal(t, 274, result.Warnings[0].Effective)
}

func TestCheckLimitsBlocksOverLimit(t *testing.T) {
	v := NewValidator(testConfig())

	result := v.CheckLimits(draftWith("fine", strings.Repeat("x", 281)))

	assert.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Position)
	assert.True(t, result.Failures[0].Blocking)
}

func TestCheckLimitsExactlyAtLimit(t *testing.T) {
	v := NewValidator(testConfig())

	// Exactly at the limit is allowed, only strictly over blocks
	result := v.CheckLimits(draftWith(strings.Repeat("x", 280)))

	assert.True(t, result.OK)
	require.Len(t, result.Warnings, 1)
}

func TestCheckSafetyCategories(t *testing.T) {
	v := NewValidator(testConfig())

	clean := v.CheckSafety("a perfectly reasonable thread about compilers")
	assert.False(t, clean.Unsafe())
	assert.Equal(t, 0.0, clean.Score)

	spam := v.CheckSafety("BUY NOW!!! limited time offer, click here")
	assert.True(t, spam.SpamMarkers)
	assert.True(t, spam.Unsafe())

	links := v.CheckSafety("details at https://bit.ly/3xYzAbC today")
	assert.True(t, links.SuspiciousLinks)

	profane := v.CheckSafety("well shit, that broke production")
	assert.True(t, profane.Profanity)
	// Word-boundary matching: embedded substrings don't fire
	assert.False(t, v.CheckSafety("the mishit was recoverable").Profanity)
}

func TestFlagNumericClaims(t *testing.T) {
	v := NewValidator(testConfig())

	claims := v.FlagNumericClaims(draftWith(
		"we cut latency by 43.5% overnight",
		"9 out of 10 deployments now pass",
		"that made builds 10x faster",
		"nothing numeric here",
	))

	require.Len(t, claims, 3)
	assert.Equal(t, "43.5%", claims[0].Text)
	assert.Equal(t, 1, claims[0].Unit)
	assert.Equal(t, "9 out of 10", claims[1].Text)
	assert.Equal(t, "10x", claims[2].Text)
}

func TestCheckStructure(t *testing.T) {
	v := NewValidator(testConfig())

	good := draftWith("hook", "body")
	good.Engagement = 5
	assert.NoError(t, v.CheckStructure(good, 2))

	empty := &models.ThreadDraft{Slug: "x"}
	err := v.CheckStructure(empty, 2)
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "structure/units", valErr.Rule)

	blank := draftWith("hook", "   ")
	err = v.CheckStructure(blank, 2)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "structure/empty-unit", valErr.Rule)
	assert.Equal(t, 2, valErr.Unit)

	tagged := draftWith("hook", "body")
	tagged.Hashtags = []string{"#a", "#b", "#c"}
	err = v.CheckStructure(tagged, 2)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "structure/hashtags", valErr.Rule)

	scored := draftWith("hook", "body")
	scored.Engagement = 11
	err = v.CheckStructure(scored, 2)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "structure/engagement", valErr.Rule)
}
