package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/internal/store"
	"github.com/fraywing/threadcast/pkg/retry"
)

// Publisher states.
const (
	StateDone            = "done"
	StatePartiallyFailed = "partially_failed"
	StateRejected        = "rejected"
)

// Outcome is the terminal result of one publish attempt.
type Outcome struct {
	State     string                `json:"state"`
	Published bool                  `json:"published"`
	Duplicate bool                  `json:"duplicate"`
	Reason    string                `json:"reason,omitempty"`
	Record    *models.PublishRecord `json:"record,omitempty"`
	Review    *models.ReviewRequest `json:"review,omitempty"`
}

// Publisher is the idempotent multi-step publish state machine. It either
// files a review request or performs the sequential reply-chained direct
// publish, and it always leaves a durable trace: a successful publish never
// happens twice for a slug, and a partial failure always produces both a
// record of what was posted and a review fallback.
type Publisher struct {
	store        store.RecordStore
	poster       Poster
	review       ReviewChannel
	cfg          config.PipelineConfig
	platform     string
	policy       retry.Policy
	minPostDelay time.Duration
	maxRateWait  time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	slugLocks map[string]*sync.Mutex
}

func NewPublisher(
	recordStore store.RecordStore,
	poster Poster,
	review ReviewChannel,
	pcfg config.PipelineConfig,
	tcfg config.TwitterConfig,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		store:        recordStore,
		poster:       poster,
		review:       review,
		cfg:          pcfg,
		platform:     "twitter",
		policy:       tcfg.Retry.Policy(),
		minPostDelay: config.Duration(tcfg.MinPostDelay, 2*time.Second),
		maxRateWait:  config.Duration(tcfg.MaxRateWait, 15*time.Minute),
		logger:       logger,
		slugLocks:    make(map[string]*sync.Mutex),
	}
}

// lockSlug serializes publish attempts per slug within this process. The
// store's PutIfAbsent covers racing processes.
func (p *Publisher) lockSlug(slug string) func() {
	p.mu.Lock()
	lock, ok := p.slugLocks[slug]
	if !ok {
		lock = &sync.Mutex{}
		p.slugLocks[slug] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Publish runs the state machine for one validated (or rejected) draft.
func (p *Publisher) Publish(ctx context.Context, in ReviewInput) (*Outcome, error) {
	slug := in.Item.Slug
	unlock := p.lockSlug(slug)
	defer unlock()

	existing, err := p.store.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load publish record for %s: %w", slug, err)
	}
	if existing != nil && existing.Success {
		// Idempotent short-circuit: already published, nothing to do
		p.logger.Info("Duplicate publish attempt short-circuited",
			zap.String("slug", slug))
		return &Outcome{State: StateDone, Duplicate: true, Record: existing}, nil
	}

	if reason := p.reviewReason(in, existing); reason != "" {
		p.logger.Info("Routing to review",
			zap.String("slug", slug),
			zap.String("reason", reason))
		return p.fileReview(ctx, in, nil, reason)
	}

	return p.publishDirect(ctx, in)
}

// reviewReason decides whether the draft must go to human review instead of
// direct publishing. Empty means direct publishing is safe.
func (p *Publisher) reviewReason(in ReviewInput, existing *models.PublishRecord) string {
	switch {
	case existing != nil:
		// A failed prior attempt may have live posts; republishing blindly
		// would duplicate them
		return "previous publish attempt on record"
	case !in.Item.AutoPublish:
		return "auto_publish disabled for this item"
	case !p.cfg.AutoPublishEnabled:
		return "auto-publish globally disabled"
	case p.cfg.DryRun:
		return "dry-run mode"
	case p.poster == nil || !p.poster.Ready():
		return "posting credentials absent"
	case !in.Limits.OK:
		return "validation failures"
	case in.Safety.Unsafe():
		return "safety findings"
	case !in.Draft.Clean():
		return fmt.Sprintf("draft not clean (status=%s verdict=%s)", in.Draft.Status, in.Draft.Verdict.Verdict)
	}
	return ""
}

// publishDirect posts the units sequentially and strictly in order, each
// replying to the previous unit's remote identifier. Reply ordering is
// load-bearing; this loop must never be parallelized.
func (p *Publisher) publishDirect(ctx context.Context, in ReviewInput) (*Outcome, error) {
	slug := in.Item.Slug
	units := in.Draft.Units
	total := len(units)

	p.logger.Info("Publishing directly",
		zap.String("slug", slug),
		zap.Int("units", total))

	var postedIDs []string
	replyTo := ""
	var unitErr error

	for i, unit := range units {
		if err := p.waitForQuota(ctx); err != nil {
			unitErr = fmt.Errorf("unit %d: %w", unit.Position, err)
			break
		}

		if i > 0 {
			// Minimum spacing between units regardless of quota headroom
			select {
			case <-ctx.Done():
				unitErr = ctx.Err()
			case <-time.After(p.minPostDelay):
			}
			if unitErr != nil {
				break
			}
		}

		var id string
		err := retry.Do(ctx, p.policy, isRetryablePost, func(ctx context.Context) error {
			var postErr error
			id, postErr = p.poster.Post(ctx, unit.Text, replyTo)
			if postErr == nil {
				return nil
			}
			var pe *PostError
			if errors.As(postErr, &pe) && pe.StatusCode == 429 && pe.RetryAfter > 0 {
				return retry.WithDelay(postErr, pe.RetryAfter)
			}
			return postErr
		})
		if err != nil {
			// Do not skip ahead: a broken chain is worse than a short one
			unitErr = fmt.Errorf("unit %d failed after retries: %w", unit.Position, err)
			break
		}

		postedIDs = append(postedIDs, id)
		replyTo = id
	}

	record := &models.PublishRecord{
		Slug:        slug,
		Platform:    p.platform,
		PostIDs:     postedIDs,
		UnitsPosted: len(postedIDs),
		UnitsTotal:  total,
		PostedAt:    time.Now().UTC(),
	}

	if unitErr == nil {
		record.Success = true
		if err := p.persist(ctx, record); err != nil {
			return nil, err
		}
		in.Draft.Status = models.DraftStatusPublished
		p.logger.Info("Thread published",
			zap.String("slug", slug),
			zap.Int("units", total))
		return &Outcome{State: StateDone, Published: true, Record: record}, nil
	}

	// Compensation: persist what actually went out, then fall back to
	// review. Cancellation lands here too; exiting without a record of the
	// already-posted units is the one thing this machine must never do.
	record.Reason = unitErr.Error()
	persistCtx := context.WithoutCancel(ctx)
	if err := p.persist(persistCtx, record); err != nil {
		p.logger.Error("Failed to persist partial publish record",
			zap.String("slug", slug),
			zap.Error(err))
	}

	p.logger.Error("Direct publish partially failed",
		zap.String("slug", slug),
		zap.Int("posted", len(postedIDs)),
		zap.Int("total", total),
		zap.Error(unitErr))

	outcome, err := p.fileReview(persistCtx, in, record, fmt.Sprintf("partial publish: %d of %d units posted", len(postedIDs), total))
	if err != nil {
		return nil, err
	}
	outcome.State = StatePartiallyFailed
	outcome.Record = record
	return outcome, nil
}

// waitForQuota blocks until the posting quota allows another request, up to
// the configured maximum wait. Rate limits are steady-state behavior, not an
// error; only an unreasonable reset distance aborts.
func (p *Publisher) waitForQuota(ctx context.Context) error {
	limit, err := p.poster.RateLimit(ctx)
	if err != nil {
		// Status endpoint failures shouldn't block posting; the per-post
		// retry loop handles 429s anyway
		p.logger.Warn("Rate limit status unavailable", zap.Error(err))
		return nil
	}
	if limit.Remaining > 0 {
		return nil
	}

	wait := time.Until(limit.Reset)
	if wait <= 0 {
		return nil
	}
	if wait > p.maxRateWait {
		return fmt.Errorf("rate limit reset %s away exceeds max wait %s", wait.Round(time.Second), p.maxRateWait)
	}

	p.logger.Info("Posting quota exhausted, waiting for reset",
		zap.Duration("wait", wait))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// persist writes the record with create-if-absent semantics. A loser of a
// cross-process race never overwrites a success that is already on record.
func (p *Publisher) persist(ctx context.Context, record *models.PublishRecord) error {
	err := p.store.PutIfAbsent(ctx, record)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrRecordExists) {
		return fmt.Errorf("failed to persist publish record: %w", err)
	}

	existing, getErr := p.store.Get(ctx, record.Slug)
	if getErr != nil {
		return fmt.Errorf("failed to persist publish record: %w", getErr)
	}
	if existing != nil && existing.Success {
		p.logger.Warn("Concurrent successful publish detected, keeping existing record",
			zap.String("slug", record.Slug))
		return nil
	}
	return p.store.Put(ctx, record)
}

func (p *Publisher) fileReview(ctx context.Context, in ReviewInput, partial *models.PublishRecord, reason string) (*Outcome, error) {
	in.PartialRecord = partial

	state := StateDone
	if in.Draft.Status == models.DraftStatusRejected {
		state = StateRejected
	}

	if p.review == nil || !p.review.Ready() {
		p.logger.Warn("Review channel unavailable, skipping review request",
			zap.String("slug", in.Item.Slug),
			zap.String("reason", reason))
		return &Outcome{State: state, Reason: reason}, nil
	}

	review, err := p.review.CreateOrUpdate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to file review for %s: %w", in.Item.Slug, err)
	}

	return &Outcome{State: state, Reason: reason, Review: review}, nil
}
