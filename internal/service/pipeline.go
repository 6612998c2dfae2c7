package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fraywing/threadcast/internal/assembler"
	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/llm"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/internal/planner"
	"github.com/fraywing/threadcast/internal/publisher"
	"github.com/fraywing/threadcast/internal/shaper"
	"github.com/fraywing/threadcast/internal/store"
	"github.com/fraywing/threadcast/internal/validator"
)

// PipelineService wires the generation stages and the publisher into the
// per-item flow: plan, assemble, shape, validate, publish. Items are
// independent; a failure in one never aborts the batch.
type PipelineService struct {
	cfg       *config.Config
	logger    *zap.Logger
	planner   *planner.Planner
	assembler *assembler.Assembler
	shaper    *shaper.Shaper
	validator *validator.Validator
	publisher *publisher.Publisher
	records   store.RecordStore
}

func NewPipelineService(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*PipelineService, error) {
	router := llm.NewRouter(cfg.Models, logger)

	var records store.RecordStore
	if cfg.Database.Enabled && db != nil {
		records = store.NewGormStore(db)
	} else {
		fileStore, err := store.NewFileStore(cfg.Pipeline.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize record store: %w", err)
		}
		records = fileStore
	}

	poster := publisher.NewTwitterClient(cfg.Publisher.Twitter, logger)
	review := publisher.NewGitHubReview(cfg.Publisher.GitHub, cfg.Validator, logger)

	return &PipelineService{
		cfg:       cfg,
		logger:    logger,
		planner:   planner.NewPlanner(router, cfg.Thread, logger),
		assembler: assembler.NewAssembler(router, cfg.Thread, cfg.Validator.CharLimit, logger),
		shaper:    shaper.NewShaper(cfg.Thread, cfg.Validator.CharLimit),
		validator: validator.NewValidator(cfg.Validator),
		publisher: publisher.NewPublisher(records, poster, review, cfg.Pipeline, cfg.Publisher.Twitter, logger),
		records:   records,
	}, nil
}

// Records exposes the publish-record store for read-only API access.
func (s *PipelineService) Records() store.RecordStore {
	return s.records
}

// Run processes the detector's item feed as one batch and writes the run
// report. Distinct slugs may be processed concurrently up to the configured
// worker bound; everything inside one item stays sequential.
func (s *PipelineService) Run(ctx context.Context) (*models.RunReport, error) {
	items, err := LoadContentItems(s.cfg.Pipeline.ItemsFile)
	if err != nil {
		return nil, err
	}
	style, err := LoadStyleProfile(s.cfg.Pipeline.StyleFile)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    s.cfg.Pipeline.DryRun,
		Items:     make([]models.ItemOutcome, len(items)),
	}

	s.logger.Info("Pipeline run started",
		zap.String("run_id", report.RunID),
		zap.Int("items", len(items)),
		zap.Bool("dry_run", report.DryRun))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Pipeline.Workers)

	for i := range items {
		g.Go(func() error {
			report.Items[i] = s.ProcessItem(gctx, &items[i], style)
			return nil
		})
	}
	// Workers never return errors; per-item failures land in the report
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()

	if err := s.writeReport(report); err != nil {
		s.logger.Error("Failed to write run report",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}

	s.logger.Info("Pipeline run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

// ProcessItem runs the full flow for one content item and reports what
// happened. All failures are captured in the outcome; the error taxonomy
// decides how far the item got, not whether the batch continues.
func (s *PipelineService) ProcessItem(ctx context.Context, item *models.ContentItem, style *models.StyleProfile) models.ItemOutcome {
	outcome := models.ItemOutcome{Slug: item.Slug}

	if item.PreviouslyPublished {
		outcome.Outcome = models.OutcomeSkipped
		return outcome
	}

	plan, err := s.planner.Plan(ctx, item, style)
	if err != nil {
		// No partial plan exists; the item is done for this run
		s.logger.Error("Planning failed",
			zap.String("slug", item.Slug),
			zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Stage = "planning"
		outcome.Error = err.Error()
		return outcome
	}

	hooks, err := s.planner.GenerateHooks(ctx, item, s.cfg.Thread.HookCount)
	if err != nil {
		// Hooks are enrichment; the first unit serves as the only hook
		s.logger.Warn("Hook generation failed",
			zap.String("slug", item.Slug),
			zap.Error(err))
	}
	plan.Hooks = hooks

	draft, err := s.assembler.Assemble(ctx, plan, style)
	if err != nil {
		s.logger.Error("Assembly failed",
			zap.String("slug", item.Slug),
			zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Stage = "assembly"
		outcome.Error = err.Error()
		return outcome
	}

	s.shaper.ApplyStructure(draft, item)
	draft.Hashtags = s.shaper.SelectHashtags(item)
	draft.Engagement = s.shaper.EstimateEngagement(draft)

	draft.Verdict = s.assembler.Verify(ctx, draft)

	structErr := s.validator.CheckStructure(draft, s.cfg.Thread.MaxHashtags)
	limits := s.validator.CheckLimits(draft)
	safety := s.validator.CheckSafety(draft.FullText())
	claims := s.validator.FlagNumericClaims(draft)

	if structErr == nil && limits.OK {
		draft.Status = models.DraftStatusValidated
	} else {
		draft.Status = models.DraftStatusRejected
		if structErr != nil {
			outcome.Error = structErr.Error()
		} else if len(limits.Failures) > 0 {
			outcome.Error = limits.Failures[0].Message
		}
		s.logger.Warn("Draft rejected by validation",
			zap.String("slug", item.Slug),
			zap.Int("limit_failures", len(limits.Failures)))
	}

	result, err := s.publisher.Publish(ctx, publisher.ReviewInput{
		Item:   item,
		Draft:  draft,
		Limits: limits,
		Safety: safety,
		Claims: claims,
	})
	if err != nil {
		s.logger.Error("Publish failed",
			zap.String("slug", item.Slug),
			zap.Error(err))
		outcome.Outcome = models.OutcomeFailed
		outcome.Stage = "publish"
		outcome.Error = err.Error()
		return outcome
	}

	return s.summarize(outcome, result)
}

func (s *PipelineService) summarize(outcome models.ItemOutcome, result *publisher.Outcome) models.ItemOutcome {
	if result.Review != nil {
		outcome.ReviewURL = result.Review.URL
	}
	if result.Record != nil {
		outcome.PostCount = result.Record.UnitsPosted
	}

	switch {
	case result.Duplicate:
		outcome.Outcome = models.OutcomeSkipped
		outcome.Error = ""
	case result.Published:
		outcome.Outcome = models.OutcomePublished
	case result.State == publisher.StatePartiallyFailed:
		outcome.Outcome = models.OutcomeFailed
		outcome.Stage = "publish"
		outcome.Error = result.Reason
	case result.State == publisher.StateRejected:
		outcome.Outcome = models.OutcomeRejected
	default:
		outcome.Outcome = models.OutcomeReview
	}
	return outcome
}

func (s *PipelineService) writeReport(report *models.RunReport) error {
	if err := os.MkdirAll(s.cfg.Pipeline.ReportDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	path := filepath.Join(s.cfg.Pipeline.ReportDir, report.RunID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}

// ListReports reads back previously written run reports, newest first.
func (s *PipelineService) ListReports() ([]*models.RunReport, error) {
	entries, err := os.ReadDir(s.cfg.Pipeline.ReportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	var reports []*models.RunReport
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.cfg.Pipeline.ReportDir, entry.Name()))
		if err != nil {
			continue
		}
		var report models.RunReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}
