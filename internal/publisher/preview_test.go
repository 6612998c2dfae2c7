package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/internal/validator"
)

func TestRenderPreview(t *testing.T) {
	vcfg := config.ValidatorConfig{CharLimit: 280, ShortenedURLLen: 23, WarnFraction: 0.9}

	in := cleanInput("my-post")
	in.Draft.Hashtags = []string{"#golang"}
	in.Draft.AltHooks = []string{"another opener"}
	in.Draft.Engagement = 7.5
	in.Draft.Provenance = models.Provenance{
		PlanningModel: "plan-model",
		CreativeModel: "creative-model",
		StyleVersion:  2,
	}
	in.Claims = []validator.Claim{{Unit: 2, Text: "43%"}}
	in.Safety = validator.SafetyResult{SpamMarkers: true, Score: 1.0}

	body := RenderPreview(in, vcfg)

	assert.Contains(t, body, "# Thread preview: Test Post")
	assert.Contains(t, body, "hook (1/3)")
	assert.Contains(t, body, "#golang")
	assert.Contains(t, body, "another opener")
	assert.Contains(t, body, "43%")
	assert.Contains(t, body, "spam markers")
	assert.Contains(t, body, "creative-model")
	assert.Contains(t, body, "7.5/10")
}

func TestRenderPreviewPartialPublishBanner(t *testing.T) {
	vcfg := config.ValidatorConfig{CharLimit: 280, ShortenedURLLen: 23}

	in := cleanInput("my-post")
	in.PartialRecord = &models.PublishRecord{
		Slug:        "my-post",
		PostIDs:     models.StringArray{"100"},
		UnitsPosted: 1,
		UnitsTotal:  3,
	}

	body := RenderPreview(in, vcfg)

	assert.Contains(t, body, "**Partial publish**: 1 of 3 units were posted")
	assert.Contains(t, body, "100")
}
