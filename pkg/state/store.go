package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Store is the conversation state store the decision engine talks to.
// It wraps a primary Backend with an in-memory fallback so that Load never
// fails and Save never fails the decision: a primary failure flips the
// store into degraded mode, serves state from the fallback, and surfaces
// through Degraded / HealthCheck instead of through the decision call.
//
// The engine does not know which backend is active; backend choice is a
// deployment concern.
type Store struct {
	primary  Backend
	fallback *MemoryBackend
	logger   *slog.Logger
	degraded atomic.Bool

	// onDegraded, if set, is invoked whenever the degraded flag changes.
	onDegraded func(degraded bool)
}

// NewStore creates a Store over the given primary backend. A nil primary
// means memory-only operation (the fallback is the only backend and the
// store is never degraded).
func NewStore(primary Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		primary:  primary,
		fallback: NewMemoryBackend(),
		logger:   logger.With("component", "state.store"),
	}
}

// OnDegradedChange registers a callback invoked when the degraded flag
// flips. Used to wire the health signal into metrics.
func (s *Store) OnDegradedChange(fn func(degraded bool)) {
	s.onDegraded = fn
}

// Load returns the state for a conversation id. It never fails: absent or
// expired state loads as the zero-value default, and a primary backend
// failure falls back to the in-memory copy.
func (s *Store) Load(ctx context.Context, conversationID string) ConversationState {
	if s.primary != nil {
		st, err := s.primary.Load(ctx, conversationID)
		if err == nil {
			s.setDegraded(false)
			if st == nil {
				return ConversationState{}
			}
			return *st
		}

		s.logger.Warn("primary state backend load failed, using in-memory fallback",
			"conversation_id", conversationID,
			"error", err,
		)
		s.setDegraded(true)
	}

	st, err := s.fallback.Load(ctx, conversationID)
	if err != nil || st == nil {
		return ConversationState{}
	}
	return *st
}

// Save persists the state for a conversation id. A primary backend failure
// is absorbed: the state lands in the in-memory fallback and the store is
// marked degraded, but the caller's decision is never blocked.
func (s *Store) Save(ctx context.Context, conversationID string, st ConversationState) {
	if s.primary != nil {
		err := s.primary.Save(ctx, conversationID, st)
		if err == nil {
			s.setDegraded(false)
			return
		}

		s.logger.Warn("primary state backend save failed, writing to in-memory fallback",
			"conversation_id", conversationID,
			"error", err,
		)
		s.setDegraded(true)
	}

	if err := s.fallback.Save(ctx, conversationID, st); err != nil {
		// The memory backend only fails on an empty id, which the engine
		// validates away; log rather than propagate.
		s.logger.Error("fallback state save failed", "conversation_id", conversationID, "error", err)
	}
}

// Degraded reports whether the store is running on its in-memory fallback.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// HealthCheck implements a readiness check: degraded mode is unhealthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.Degraded() {
		return fmt.Errorf("state store degraded: primary backend unavailable, using in-memory fallback")
	}
	return nil
}

// Close closes both backends.
func (s *Store) Close() error {
	var err error
	if s.primary != nil {
		err = s.primary.Close()
	}
	if ferr := s.fallback.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// setDegraded updates the degraded flag and fires the change callback on
// transitions.
func (s *Store) setDegraded(degraded bool) {
	old := s.degraded.Swap(degraded)
	if old == degraded {
		return
	}

	if degraded {
		s.logger.Error("state store degraded, conversation counters are ephemeral until the backend recovers")
	} else {
		s.logger.Info("state store recovered, primary backend healthy")
	}

	if s.onDegraded != nil {
		s.onDegraded(degraded)
	}
}
