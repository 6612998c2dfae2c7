package models

import "time"

// ContentItem is one source document to be turned into a thread. Items are
// produced by the upstream content detector and are read-only here; the
// pipeline never mutates them.
type ContentItem struct {
	Slug                string    `json:"slug"`
	Title               string    `json:"title"`
	URL                 string    `json:"url"`
	Categories          []string  `json:"categories"`
	Body                string    `json:"body"`
	AutoPublish         bool      `json:"auto_publish"`
	PreviouslyPublished bool      `json:"previously_published"`
	DetectedAt          time.Time `json:"detected_at"`
}

// StyleProfile carries aggregated writing-style signals used to bias
// generation toward the author's voice. Supplied externally, immutable for
// the duration of a run; Version is recorded on every generated thread.
type StyleProfile struct {
	Version           int               `json:"version"`
	Tone              ToneProfile       `json:"tone"`
	VocabularyFavors  []string          `json:"vocabulary_favors"`
	VocabularyAvoids  []string          `json:"vocabulary_avoids"`
	StructuralPrefs   map[string]string `json:"structural_prefs"`
	EmojiFrequency    float64           `json:"emoji_frequency"`
	EmojiPlacement    string            `json:"emoji_placement"`
	AnalyzedPostCount int               `json:"analyzed_post_count"`
}

// ToneProfile holds scalar tone signals in [0,1].
type ToneProfile struct {
	Formality    float64 `json:"formality"`
	Enthusiasm   float64 `json:"enthusiasm"`
	Directness   float64 `json:"directness"`
	Technicality float64 `json:"technicality"`
}

// DefaultStyleProfile is the neutral profile used when the upstream analyzer
// has too few source documents to work with.
func DefaultStyleProfile() *StyleProfile {
	return &StyleProfile{
		Version: 0,
		Tone: ToneProfile{
			Formality:    0.5,
			Enthusiasm:   0.5,
			Directness:   0.5,
			Technicality: 0.5,
		},
		StructuralPrefs: map[string]string{},
		EmojiFrequency:  0.1,
		EmojiPlacement:  "end",
	}
}
