package publisher

import (
	"fmt"
	"strings"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/pkg/textutil"
)

// RenderPreview produces the human-readable review body: full thread text
// with per-unit character counts, hook alternatives, provenance, safety
// findings and any numeric claims flagged for attention.
func RenderPreview(in ReviewInput, vcfg config.ValidatorConfig) string {
	var sb strings.Builder
	draft := in.Draft

	fmt.Fprintf(&sb, "# Thread preview: %s\n\n", in.Item.Title)
	fmt.Fprintf(&sb, "Source: %s\n\n", in.Item.URL)

	if in.PartialRecord != nil {
		fmt.Fprintf(&sb, "> **Partial publish**: %d of %d units were posted before the run failed. ",
			in.PartialRecord.UnitsPosted, in.PartialRecord.UnitsTotal)
		sb.WriteString("The posted units are live on the platform and tracked in the publish record; ")
		sb.WriteString("finish or remediate manually before merging.\n")
		if len(in.PartialRecord.PostIDs) > 0 {
			fmt.Fprintf(&sb, ">\n> Posted IDs: %s\n", strings.Join(in.PartialRecord.PostIDs, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Units\n\n")
	for _, unit := range draft.Units {
		effective := textutil.EffectiveLength(unit.Text, vcfg.ShortenedURLLen)
		fmt.Fprintf(&sb, "**%d.** (%d/%d chars)\n\n", unit.Position, effective, vcfg.CharLimit)
		fmt.Fprintf(&sb, "> %s\n\n", strings.ReplaceAll(unit.Text, "\n", "\n> "))
	}

	if len(draft.Hashtags) > 0 {
		fmt.Fprintf(&sb, "Hashtags: %s\n\n", strings.Join(draft.Hashtags, " "))
	}

	if len(draft.AltHooks) > 0 {
		sb.WriteString("## Alternative hooks\n\n")
		for _, hook := range draft.AltHooks {
			fmt.Fprintf(&sb, "- %s\n", hook)
		}
		sb.WriteString("\n")
	}

	if len(in.Claims) > 0 {
		sb.WriteString("## Numeric claims (verify before publishing)\n\n")
		for _, claim := range in.Claims {
			fmt.Fprintf(&sb, "- unit %d: `%s`\n", claim.Unit, claim.Text)
		}
		sb.WriteString("\n")
	}

	var findings []string
	if in.Safety.Profanity {
		findings = append(findings, "profanity")
	}
	if in.Safety.HateIndicators {
		findings = append(findings, "hate-speech indicators")
	}
	if in.Safety.SpamMarkers {
		findings = append(findings, "spam markers")
	}
	if in.Safety.SuspiciousLinks {
		findings = append(findings, "suspicious shortened links")
	}
	if len(findings) > 0 {
		fmt.Fprintf(&sb, "## Safety findings\n\n%s (score %.1f)\n\n",
			strings.Join(findings, ", "), in.Safety.Score)
	}

	for _, warning := range in.Limits.Warnings {
		fmt.Fprintf(&sb, "⚠ %s\n", warning.Message)
	}
	for _, failure := range in.Limits.Failures {
		fmt.Fprintf(&sb, "✖ %s\n", failure.Message)
	}
	if len(in.Limits.Warnings)+len(in.Limits.Failures) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("## Provenance\n\n")
	fmt.Fprintf(&sb, "- planning model: %s\n", draft.Provenance.PlanningModel)
	fmt.Fprintf(&sb, "- creative model: %s\n", draft.Provenance.CreativeModel)
	if draft.Provenance.VerifyModel != "" {
		fmt.Fprintf(&sb, "- verification model: %s (verdict: %s)\n",
			draft.Provenance.VerifyModel, draft.Verdict.Verdict)
	} else {
		fmt.Fprintf(&sb, "- verification verdict: %s\n", draft.Verdict.Verdict)
	}
	fmt.Fprintf(&sb, "- style profile version: %d\n", draft.Provenance.StyleVersion)
	fmt.Fprintf(&sb, "- generated at: %s\n", draft.Provenance.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "- engagement estimate: %.1f/10\n", draft.Engagement)

	return sb.String()
}
