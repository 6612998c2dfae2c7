package assembler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/llm"
	"github.com/fraywing/threadcast/internal/models"
)

func newTestRouter(t *testing.T, content string) (*llm.Router, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))

	cfg := config.ModelsConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: "5s",
		Retry: config.RetryConfig{
			MaxAttempts: 1, InitialInterval: "1ms", MaxInterval: "1ms", Multiplier: 1,
		},
		Planning: config.ModelConfig{Model: "plan-model"},
		Creative: config.ModelConfig{Model: "creative-model"},
	}
	return llm.NewRouter(cfg, zap.NewNop()), srv.Close
}

func testPlan() *models.ThreadPlan {
	return &models.ThreadPlan{
		Slug:      "my-post",
		KeyPoints: []string{"first", "second"},
		Hooks:     []string{"alt hook"},
	}
}

func TestAssembleBuildsDraft(t *testing.T) {
	router, closeSrv := newTestRouter(t, `{"tweets": ["opening line", "second unit"]}`)
	defer closeSrv()

	a := NewAssembler(router, config.ThreadConfig{}, 280, zap.NewNop())
	draft, err := a.Assemble(context.Background(), testPlan(), models.DefaultStyleProfile())
	require.NoError(t, err)

	require.Len(t, draft.Units, 2)
	assert.Equal(t, "opening line", draft.Units[0].Text)
	assert.Equal(t, 1, draft.Units[0].Position)
	assert.Equal(t, "opening line", draft.Hook)
	assert.Equal(t, []string{"alt hook"}, draft.AltHooks)
	assert.Equal(t, models.DraftStatusDraft, draft.Status)
	assert.Equal(t, "creative-model", draft.Provenance.CreativeModel)
	assert.Equal(t, "plan-model", draft.Provenance.PlanningModel)
}

func TestAssembleTruncatesOverLimitUnits(t *testing.T) {
	long := strings.Repeat("x", 400)
	router, closeSrv := newTestRouter(t, `{"tweets": ["`+long+`", "short"]}`)
	defer closeSrv()

	a := NewAssembler(router, config.ThreadConfig{}, 280, zap.NewNop())
	draft, err := a.Assemble(context.Background(), testPlan(), models.DefaultStyleProfile())
	require.NoError(t, err)

	// Over-limit units are cut with an ellipsis, never dropped
	require.Len(t, draft.Units, 2)
	assert.LessOrEqual(t, utf8.RuneCountInString(draft.Units[0].Text), 280)
	assert.True(t, strings.HasSuffix(draft.Units[0].Text, "…"))
	assert.Equal(t, "short", draft.Units[1].Text)
}

func TestAssembleFailsOnEmptyResponse(t *testing.T) {
	router, closeSrv := newTestRouter(t, `{"tweets": []}`)
	defer closeSrv()

	a := NewAssembler(router, config.ThreadConfig{}, 280, zap.NewNop())
	_, err := a.Assemble(context.Background(), testPlan(), models.DefaultStyleProfile())
	assert.Error(t, err)
}

func TestVerifyVerdicts(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{`{"verdict": "pass"}`, models.VerdictPassed},
		{`{"verdict": "fail", "notes": ["too spammy"]}`, models.VerdictFailed},
		{`{"something": "else"}`, models.VerdictUnverified},
	}

	for _, tc := range cases {
		router, closeSrv := newTestRouter(t, tc.content)
		a := NewAssembler(router, config.ThreadConfig{}, 280, zap.NewNop())

		draft := &models.ThreadDraft{Slug: "x", Units: []models.Tweet{{Text: "hi", Position: 1}}}
		verdict := a.Verify(context.Background(), draft)
		assert.Equal(t, tc.want, verdict.Verdict)
		closeSrv()
	}
}

func TestVerifyCallFailureIsUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := config.ModelsConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Retry:   config.RetryConfig{MaxAttempts: 1, InitialInterval: "1ms", MaxInterval: "1ms", Multiplier: 1},
	}
	a := NewAssembler(llm.NewRouter(cfg, zap.NewNop()), config.ThreadConfig{}, 280, zap.NewNop())

	draft := &models.ThreadDraft{Slug: "x", Units: []models.Tweet{{Text: "hi", Position: 1}}}
	verdict := a.Verify(context.Background(), draft)

	// Verification is auxiliary: its failure never fails the pipeline
	assert.Equal(t, models.VerdictUnverified, verdict.Verdict)
}
