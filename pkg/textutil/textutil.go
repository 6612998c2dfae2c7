package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended when a unit has to be cut down to the platform limit.
const Ellipsis = "…"

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Slug creates a URL-friendly slug from a title
func Slug(title string) string {
	// Convert to lowercase
	slug := strings.ToLower(title)

	// Replace spaces and special characters with hyphens
	reg := regexp.MustCompile(`[^a-z0-9\p{Han}]+`) // Allow Chinese characters
	slug = reg.ReplaceAllString(slug, "-")

	// Remove leading/trailing hyphens
	slug = strings.Trim(slug, "-")

	// Limit length
	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// ExtractURLs returns every URL embedded in the text, in order.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// EffectiveLength counts unicode code points, with every embedded URL counted
// at shortenedURLLen instead of its literal length. Posting platforms wrap
// links through a shortener, so the raw URL length is irrelevant.
func EffectiveLength(text string, shortenedURLLen int) int {
	length := utf8.RuneCountInString(text)
	for _, u := range urlPattern.FindAllString(text, -1) {
		length = length - utf8.RuneCountInString(u) + shortenedURLLen
	}
	return length
}

// TruncateRunes cuts text down to at most limit code points, replacing the
// tail with an ellipsis marker. Text already within the limit is returned
// unchanged.
func TruncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 0 {
		return ""
	}

	runes := []rune(text)
	keep := limit - utf8.RuneCountInString(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	return strings.TrimRight(string(runes[:keep]), " ") + Ellipsis
}
