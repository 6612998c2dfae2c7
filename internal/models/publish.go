package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StringArray represents a PostgreSQL text[] type
type StringArray []string

// Scan implements the sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case string:
		// Handle PostgreSQL array format: {value1,value2,value3}
		if v == "{}" || v == "" {
			*s = StringArray{}
			return nil
		}

		// Remove outer braces and split by comma
		trimmed := strings.Trim(v, "{}")
		if trimmed == "" {
			*s = StringArray{}
			return nil
		}

		parts := strings.Split(trimmed, ",")
		result := make([]string, len(parts))
		for i, part := range parts {
			// Remove quotes if present
			result[i] = strings.Trim(strings.TrimSpace(part), "\"")
		}
		*s = result
		return nil
	case []byte:
		// Try to parse as JSON first
		var arr []string
		if err := json.Unmarshal(v, &arr); err == nil {
			*s = arr
			return nil
		}
		// Fallback to string parsing
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into StringArray", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}

	// Format as PostgreSQL array: {value1,value2,value3}
	quoted := make([]string, len(s))
	for i, v := range s {
		// Escape quotes and wrap in quotes
		escaped := strings.ReplaceAll(v, "\"", "\\\"")
		quoted[i] = fmt.Sprintf("\"%s\"", escaped)
	}

	return fmt.Sprintf("{%s}", strings.Join(quoted, ",")), nil
}

// PublishRecord is the durable exactly-once marker for a slug. At most one
// successful record may ever exist per slug; it is read before every publish
// attempt and never deleted automatically.
type PublishRecord struct {
	ID          uint        `gorm:"primaryKey" json:"-"`
	Slug        string      `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Success     bool        `json:"success"`
	Platform    string      `gorm:"size:50" json:"platform"`
	PostIDs     StringArray `gorm:"type:text[]" json:"post_ids"`
	UnitsPosted int         `json:"units_posted"`
	UnitsTotal  int         `json:"units_total"`
	Reason      string      `gorm:"type:text" json:"reason,omitempty"`
	PostedAt    time.Time   `json:"posted_at"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"-"`
}

// ReviewRequest is the human-in-the-loop artifact produced when direct
// publishing is skipped or fails. Reprocessing the same slug updates the
// existing request in place.
type ReviewRequest struct {
	Slug      string `json:"slug"`
	BranchKey string `json:"branch_key"`
	Number    int    `json:"number"`
	URL       string `json:"url"`
	Body      string `json:"body"`
	Updated   bool   `json:"updated"`
}

// Pipeline run outcomes per item.
const (
	OutcomePublished = "published"
	OutcomeReview    = "review"
	OutcomeRejected  = "rejected"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// ItemOutcome summarizes what the pipeline did with one content item.
type ItemOutcome struct {
	Slug      string `json:"slug"`
	Outcome   string `json:"outcome"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error,omitempty"`
	ReviewURL string `json:"review_url,omitempty"`
	PostCount int    `json:"post_count,omitempty"`
}

// RunReport is the artifact written after each batch run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Items      []ItemOutcome `json:"items"`
}
