package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls scheduled pruning of old decision records.
type RetentionConfig struct {
	// RetentionDays is how long decision records are kept. Records older
	// than this are deleted on each scheduled run. Default: 90
	RetentionDays int

	// PruneSchedule is a cron expression for when pruning runs, e.g.
	// "0 3 * * *" for daily at 3 AM. Empty disables scheduled pruning.
	PruneSchedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// RetentionScheduler prunes old audit records on a cron schedule.
type RetentionScheduler struct {
	store   *Store
	config  *RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewRetentionScheduler creates a scheduler for the given store.
func NewRetentionScheduler(store *Store, config *RetentionConfig, logger *slog.Logger) *RetentionScheduler {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionScheduler{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: logger.With("component", "audit.retention"),
	}
}

// Start begins scheduled pruning. If PruneSchedule is empty the scheduler
// does nothing. The scheduler stops when ctx is cancelled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.PruneSchedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.PruneSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.PruneSchedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("audit retention scheduler started",
		"schedule", s.config.PruneSchedule,
		"retention_days", s.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *RetentionScheduler) runPruning(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	deleted, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled audit pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("audit pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("audit pruning completed, no records deleted")
	}
}

// Stop stops the scheduler and waits for any running job to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("audit retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler has been started.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
