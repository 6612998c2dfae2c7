package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/internal/validator"
)

// RateLimit is the posting platform's remaining quota for the current window.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}

// Poster is the direct-publish channel: a rate-limited posting API with
// reply-chain semantics.
type Poster interface {
	// Ready reports whether posting credentials are configured.
	Ready() bool

	// Post publishes one unit, optionally as a reply to a previous post,
	// and returns the remote post identifier.
	Post(ctx context.Context, text string, inReplyTo string) (string, error)

	// RateLimit returns the current posting quota state.
	RateLimit(ctx context.Context) (*RateLimit, error)

	// Delete removes a post. Kept for manual cleanup tooling; the pipeline
	// itself never deletes already-published units.
	Delete(ctx context.Context, id string) error
}

// ReviewInput is everything the human-review channel needs to render and
// file a review request for one slug.
type ReviewInput struct {
	Item   *models.ContentItem
	Draft  *models.ThreadDraft
	Limits validator.LimitsResult
	Safety validator.SafetyResult
	Claims []validator.Claim

	// PartialRecord is set when the review request is compensation for a
	// partially failed direct publish.
	PartialRecord *models.PublishRecord
}

// ReviewChannel files or updates the review request for a slug. Repeated
// runs on the same slug must update the existing request, not accumulate new
// ones.
type ReviewChannel interface {
	Ready() bool
	CreateOrUpdate(ctx context.Context, in ReviewInput) (*models.ReviewRequest, error)
}

// PostError is a non-2xx response from the posting API.
type PostError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *PostError) Error() string {
	return fmt.Sprintf("posting API returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is transient.
func (e *PostError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// isRetryablePost classifies posting failures the same way the model router
// classifies completion failures.
func isRetryablePost(err error) bool {
	if err == nil {
		return false
	}
	var postErr *PostError
	if errors.As(err, &postErr) {
		return postErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return true
}
