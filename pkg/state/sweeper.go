package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes expired conversation state on a cron schedule.
// Expiry is otherwise lazy (an expired row loads as absent), so the sweep
// only reclaims storage; it never changes observable load behavior.
type Sweeper struct {
	backend  Backend
	schedule string
	ttl      time.Duration
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper for the given backend.
//
// Common cron expressions:
//   - "0 3 * * *"    - daily at 3 AM
//   - "*/30 * * * *" - every 30 minutes
//
// If schedule is empty, Start does nothing.
func NewSweeper(backend Backend, schedule string, ttl time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		backend:  backend,
		schedule: schedule,
		ttl:      ttl,
		cron:     cron.New(),
		logger:   logger.With("component", "state.sweeper"),
	}
}

// Start begins scheduled sweeping. It validates the cron expression up
// front and stops automatically when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("state sweeper started",
		"schedule", s.schedule,
		"ttl", s.ttl.String(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep performs a single expiry sweep.
func (s *Sweeper) runSweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)

	deleted, err := s.backend.Cleanup(ctx, cutoff)
	if err != nil {
		s.logger.Error("state sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("state sweep completed", "deleted", deleted, "cutoff", cutoff)
	}
}

// Stop stops the scheduler. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.running = false
	s.logger.Info("state sweeper stopped")
}
