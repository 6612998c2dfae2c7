package models

import "time"

// Draft lifecycle states.
const (
	DraftStatusDraft     = "draft"
	DraftStatusValidated = "validated"
	DraftStatusRejected  = "rejected"
	DraftStatusPublished = "published"
)

// Verification verdicts.
const (
	VerdictPassed     = "passed"
	VerdictFailed     = "failed"
	VerdictUnverified = "unverified"
)

// ThreadPlan is the structural plan for a thread: ordered key points plus a
// few alternative opening hooks. It is ephemeral, consumed immediately by the
// assembler and never persisted.
type ThreadPlan struct {
	Slug      string   `json:"slug"`
	KeyPoints []string `json:"key_points"`
	Hooks     []string `json:"hooks"`
}

// Tweet is one unit of a thread, mapping to a single platform post.
type Tweet struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// VerificationVerdict is the quality/safety self-check result attached to a
// draft. A failed auxiliary verification call yields VerdictUnverified rather
// than aborting the pipeline.
type VerificationVerdict struct {
	Verdict string   `json:"verdict"`
	Notes   []string `json:"notes,omitempty"`
}

// Provenance records which models and style version produced a draft.
type Provenance struct {
	PlanningModel string    `json:"planning_model"`
	CreativeModel string    `json:"creative_model"`
	VerifyModel   string    `json:"verify_model,omitempty"`
	StyleVersion  int       `json:"style_version"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// ThreadDraft is the growing work object for one pipeline run. Units may
// exceed the platform limit before validation; after validation every unit is
// non-empty and within the limit.
type ThreadDraft struct {
	Slug       string              `json:"slug"`
	Units      []Tweet             `json:"units"`
	Hook       string              `json:"hook"`
	AltHooks   []string            `json:"alt_hooks,omitempty"`
	Hashtags   []string            `json:"hashtags"`
	Verdict    VerificationVerdict `json:"verdict"`
	Engagement float64             `json:"engagement"`
	Provenance Provenance          `json:"provenance"`
	Status     string              `json:"status"`
}

// FullText returns the concatenated unit texts, used for safety screening and
// numeric-claim flagging across the whole thread.
func (d *ThreadDraft) FullText() string {
	var out string
	for i, u := range d.Units {
		if i > 0 {
			out += "\n"
		}
		out += u.Text
	}
	return out
}

// Clean reports whether the draft passed validation with a clean verification
// verdict, i.e. it is eligible for direct publishing.
func (d *ThreadDraft) Clean() bool {
	return d.Status == DraftStatusValidated && d.Verdict.Verdict == VerdictPassed
}
