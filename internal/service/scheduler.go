package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
)

type Scheduler struct {
	config   *config.SchedulerConfig
	logger   *zap.Logger
	pipeline *PipelineService
	ticker   *time.Ticker
	stopCh   chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, pipeline *PipelineService) *Scheduler {
	return &Scheduler{
		config:   cfg,
		logger:   logger,
		pipeline: pipeline,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.RunInterval)
	if err != nil {
		s.logger.Error("Invalid run interval", zap.String("interval", s.config.RunInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("run_interval", s.config.RunInterval))

	s.ticker = time.NewTicker(interval)

	// Run first batch immediately
	go func() {
		s.logger.Info("Running initial batch")
		if err := s.runBatch(ctx); err != nil {
			s.logger.Error("Initial batch failed", zap.Error(err))
		}
	}()

	// Start periodic runs
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.logger.Info("Running scheduled batch")
				if err := s.runBatch(ctx); err != nil {
					s.logger.Error("Scheduled batch failed", zap.Error(err))
				}
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runBatch(ctx context.Context) error {
	start := time.Now()
	report, err := s.pipeline.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Batch failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return err
	}

	s.logger.Info("Batch completed successfully",
		zap.String("run_id", report.RunID),
		zap.Int("items", len(report.Items)),
		zap.Duration("duration", duration))
	return nil
}
