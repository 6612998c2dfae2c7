package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/pkg/textutil"
)

// ValidationError is a deterministic rejection. It names the failing rule and
// unit, and is never retried: the same content against the same rules cannot
// pass on a second attempt.
type ValidationError struct {
	Slug string
	Rule string
	Unit int
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Unit > 0 {
		return fmt.Sprintf("validation rejected %s: rule=%s unit=%d: %s", e.Slug, e.Rule, e.Unit, e.Msg)
	}
	return fmt.Sprintf("validation rejected %s: rule=%s: %s", e.Slug, e.Rule, e.Msg)
}

// UnitIssue is a per-unit length finding.
type UnitIssue struct {
	Position  int    `json:"position"`
	Effective int    `json:"effective"`
	Limit     int    `json:"limit"`
	Blocking  bool   `json:"blocking"`
	Message   string `json:"message"`
}

// LimitsResult is the outcome of the length check. Warnings don't block;
// a single blocking failure rejects the entire draft.
type LimitsResult struct {
	OK       bool        `json:"ok"`
	Warnings []UnitIssue `json:"warnings,omitempty"`
	Failures []UnitIssue `json:"failures,omitempty"`
}

// SafetyResult is the pattern-screening outcome. Any category match marks the
// draft unsafe for auto-publish; it does not block human-review creation.
type SafetyResult struct {
	Profanity       bool    `json:"profanity"`
	HateIndicators  bool    `json:"hate_indicators"`
	SpamMarkers     bool    `json:"spam_markers"`
	SuspiciousLinks bool    `json:"suspicious_links"`
	Score           float64 `json:"score"`
}

// Unsafe reports whether any screening category matched.
func (r SafetyResult) Unsafe() bool {
	return r.Profanity || r.HateIndicators || r.SpamMarkers || r.SuspiciousLinks
}

// Claim is a statistic-like token surfaced for mandatory human attention.
// Claims never block the pipeline; they annotate the review artifact.
type Claim struct {
	Unit int    `json:"unit"`
	Text string `json:"text"`
}

// Validator runs the deterministic platform-compliance checks. Pure: no
// network, no clock, no state.
type Validator struct {
	cfg config.ValidatorConfig
}

func NewValidator(cfg config.ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// CheckLimits computes the effective length of every unit, counting embedded
// URLs at the fixed shortened length and text as unicode code points. Units
// at or above the warn fraction produce warnings; a unit strictly over the
// limit is a blocking failure for the whole draft.
func (v *Validator) CheckLimits(draft *models.ThreadDraft) LimitsResult {
	result := LimitsResult{OK: true}
	warnAt := int(float64(v.cfg.CharLimit) * v.cfg.WarnFraction)

	for _, unit := range draft.Units {
		effective := textutil.EffectiveLength(unit.Text, v.cfg.ShortenedURLLen)

		switch {
		case effective > v.cfg.CharLimit:
			result.OK = false
			result.Failures = append(result.Failures, UnitIssue{
				Position:  unit.Position,
				Effective: effective,
				Limit:     v.cfg.CharLimit,
				Blocking:  true,
				Message:   fmt.Sprintf("unit %d is %d chars, limit %d", unit.Position, effective, v.cfg.CharLimit),
			})
		case effective >= warnAt:
			result.Warnings = append(result.Warnings, UnitIssue{
				Position:  unit.Position,
				Effective: effective,
				Limit:     v.cfg.CharLimit,
				Message:   fmt.Sprintf("unit %d is %d chars, close to limit %d", unit.Position, effective, v.cfg.CharLimit),
			})
		}
	}

	return result
}

var (
	profanityPatterns = compileWordPatterns([]string{
		"fuck", "shit", "asshole", "bitch", "bastard",
	})
	hatePatterns = compileWordPatterns([]string{
		"subhuman", "vermin", "go back to your country", "gas the",
	})
	spamPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)buy now`),
		regexp.MustCompile(`(?i)click here`),
		regexp.MustCompile(`(?i)limited time offer`),
		regexp.MustCompile(`(?i)make money fast`),
		regexp.MustCompile(`(?i)100% (free|guaranteed)`),
		regexp.MustCompile(`!{3,}`),
	}
	shortenerPattern = regexp.MustCompile(`(?i)https?://(bit\.ly|tinyurl\.com|goo\.gl|ow\.ly|is\.gd|cutt\.ly)/\S+`)
)

func compileWordPatterns(words []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}

// CheckSafety screens content for profanity, hate-speech indicators, spam
// markers and suspicious shortened URLs. Each category is independent; the
// score accumulates across them.
func (v *Validator) CheckSafety(content string) SafetyResult {
	var result SafetyResult

	for _, p := range profanityPatterns {
		if p.MatchString(content) {
			result.Profanity = true
			result.Score += 1.0
			break
		}
	}
	for _, p := range hatePatterns {
		if p.MatchString(content) {
			result.HateIndicators = true
			result.Score += 3.0
			break
		}
	}
	for _, p := range spamPatterns {
		if p.MatchString(content) {
			result.SpamMarkers = true
			result.Score += 1.0
			break
		}
	}
	if shortenerPattern.MatchString(content) {
		result.SuspiciousLinks = true
		result.Score += 1.5
	}

	return result
}

var claimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+(?:\.\d+)?%`),
	regexp.MustCompile(`(?i)\b\d+\s+(?:out\s+of|in)\s+\d+\b`),
	regexp.MustCompile(`(?i)\b\d+x\b`),
}

// FlagNumericClaims surfaces standalone statistic-like tokens (percentages,
// "X out of Y" phrasing, multipliers) for human attention on the review
// artifact.
func (v *Validator) FlagNumericClaims(draft *models.ThreadDraft) []Claim {
	var claims []Claim
	for _, unit := range draft.Units {
		for _, p := range claimPatterns {
			for _, match := range p.FindAllString(unit.Text, -1) {
				claims = append(claims, Claim{Unit: unit.Position, Text: match})
			}
		}
	}
	return claims
}

// CheckStructure verifies the assembled draft has the expected shape before
// it may pass this stage. A malformed shape is a hard rejection: the upstream
// call already retried transport failures, and retrying the same prompt will
// not fix a semantic format problem.
func (v *Validator) CheckStructure(draft *models.ThreadDraft, maxHashtags int) error {
	if len(draft.Units) == 0 {
		return &ValidationError{Slug: draft.Slug, Rule: "structure/units", Msg: "draft has no units"}
	}
	for _, unit := range draft.Units {
		if strings.TrimSpace(unit.Text) == "" {
			return &ValidationError{Slug: draft.Slug, Rule: "structure/empty-unit", Unit: unit.Position, Msg: "empty unit text"}
		}
	}
	if draft.Hook == "" {
		return &ValidationError{Slug: draft.Slug, Rule: "structure/hook", Msg: "draft has no hook"}
	}
	if len(draft.Hashtags) > maxHashtags {
		return &ValidationError{
			Slug: draft.Slug,
			Rule: "structure/hashtags",
			Msg:  fmt.Sprintf("%d hashtags exceeds bound %d", len(draft.Hashtags), maxHashtags),
		}
	}
	if draft.Engagement < 0 || draft.Engagement > 10 {
		return &ValidationError{
			Slug: draft.Slug,
			Rule: "structure/engagement",
			Msg:  fmt.Sprintf("engagement score %.2f outside [0,10]", draft.Engagement),
		}
	}
	return nil
}
