package core

// scheduler.go runs background maintenance for import history.
//
// The retention job deletes applied-import runs (and their outcomes) older
// than the configured number of days. It runs once on start and then on
// every tick until the context is cancelled. A failed prune is logged and
// retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the history retention scheduler.
type RetentionConfig struct {
	RetentionDays int           // Days to keep history runs (default: 90)
	CheckInterval time.Duration // How often to prune (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler prunes old history runs until ctx is cancelled.
// It blocks; run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	s.logger.Info("history retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("history retention scheduler stopped")
			return
		case now := <-ticker.C:
			s.runRetentionJob(ctx, cfg, now)
		}
	}
}

// runRetentionJob performs one prune cycle relative to now.
func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig, now time.Time) {
	start := time.Now()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	pruned, err := s.history.PruneRuns(ctx, cutoff)
	if err != nil {
		s.logger.Error("history prune failed", "error", err)
		return
	}

	level := slog.LevelDebug
	if pruned > 0 {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "pruned import history",
		"runs_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
