package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"helpdesk-hq/beacon/pkg/policy"
	"helpdesk-hq/beacon/pkg/scorer"
	"helpdesk-hq/beacon/pkg/state"
	"helpdesk-hq/beacon/pkg/telemetry/metrics"
)

// Engine is the escalation decision orchestrator. It sequences the rule
// matcher, the turn-count guard, the feature extractor, and the external
// scorer into a single decision call, and owns the read-modify-write cycle
// against the conversation state store.
type Engine struct {
	store        *state.Store
	scorer       scorer.Scorer
	featureOrder []string
	modelVersion string

	// pol is swapped atomically on hot reload; policyMu protects the
	// pointer, never the Policy itself (policies are immutable).
	pol      *policy.Policy
	policyMu sync.RWMutex

	locks   *keyedMutex
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Config wires an Engine.
type Config struct {
	// Store is the conversation state store. Required.
	Store *state.Store

	// Scorer is the external probabilistic scorer. Required.
	Scorer scorer.Scorer

	// Policy is the initial escalation policy. Required, pre-compiled.
	Policy *policy.Policy

	// FeatureOrder is the configured feature vector order. Required; must
	// be a permutation of the canonical feature names.
	FeatureOrder []string

	// ModelVersion labels decisions with the scorer model version.
	ModelVersion string

	// Logger for structured logging. Defaults to slog.Default.
	Logger *slog.Logger

	// Metrics is optional; nil disables metric recording.
	Metrics *metrics.Collector
}

// New creates a fully wired decision engine. Configuration inconsistencies
// fail here, at startup, never at decision time.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, &ConfigurationError{Message: "state store cannot be nil"}
	}
	if cfg.Scorer == nil {
		return nil, &ConfigurationError{Message: "scorer cannot be nil"}
	}
	if cfg.Policy == nil {
		return nil, &ConfigurationError{Message: "policy cannot be nil"}
	}
	if err := ValidateFeatureOrder(cfg.FeatureOrder); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		store:        cfg.Store,
		scorer:       cfg.Scorer,
		featureOrder: append([]string(nil), cfg.FeatureOrder...),
		modelVersion: cfg.ModelVersion,
		pol:          cfg.Policy,
		locks:        newKeyedMutex(),
		logger:       logger.With("component", "engine"),
		metrics:      cfg.Metrics,
	}

	// Surface store degradation through metrics as well as health.
	cfg.Store.OnDegradedChange(func(degraded bool) {
		e.metrics.SetStoreDegraded(degraded)
	})

	return e, nil
}

// SetPolicy atomically replaces the policy in effect. In-flight decisions
// keep the policy they started with.
func (e *Engine) SetPolicy(p *policy.Policy) {
	if p == nil {
		return
	}
	e.policyMu.Lock()
	e.pol = p
	e.policyMu.Unlock()

	e.logger.Info("policy replaced", "version", p.Version)
}

// Policy returns the policy currently in effect.
func (e *Engine) Policy() *policy.Policy {
	e.policyMu.RLock()
	defer e.policyMu.RUnlock()
	return e.pol
}

// Decide runs one full decision for the given event.
//
// Decisions for the same conversation id are serialized; the state
// read-modify-write is applied as if turns arrive one at a time. State is
// persisted only after the decision completes, so a failed or cancelled
// call leaves no partial update. A scorer failure fails the decision; a
// store failure never does.
func (e *Engine) Decide(ctx context.Context, event Event) (*DecisionRecord, error) {
	start := time.Now()

	if err := validateEvent(event); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(event.ConversationID)
	defer unlock()

	pol := e.Policy()
	st := e.store.Load(ctx, event.ConversationID)

	userText := ""
	if event.Role == RoleUser {
		userText = event.Message
	}
	prevBotText := event.PrevBotText

	fired := EvaluateRules(userText, prevBotText, pol)

	var (
		escalate bool
		score    float64
		where    Where
		reason   string
	)

	switch {
	case firstEscalatingRule(fired) != "":
		where = WhereRules
		escalate = true
		score = 1.0
		reason = firstEscalatingRule(fired)

	case event.Role == RoleUser && st.TurnIndex < pol.Guards.MinTurnBeforeModel:
		where = WhereGuard
		escalate = false
		score = 0.0
		reason = "guard: too early for model"

	default:
		vector, updated := ExtractFeatures(st.TurnIndex, userText, prevBotText, st, pol, e.featureOrder)

		p, err := e.scorer.Score(ctx, vector)
		if err != nil {
			e.metrics.RecordScoringError()
			return nil, &ScoringError{Cause: err}
		}
		if p < 0 || p > 1 {
			e.metrics.RecordScoringError()
			return nil, &ScoringError{Cause: fmt.Errorf("scorer returned probability %g outside [0, 1]", p)}
		}

		st = updated
		where = WhereModel
		score = p
		escalate = p >= pol.Thresholds.Tau
		if escalate {
			reason = "model score >= tau"
		} else {
			reason = "model score < tau"
		}
	}

	// User turns advance the turn counter regardless of which branch
	// decided.
	if event.Role == RoleUser {
		st.TurnIndex++
	}

	record := &DecisionRecord{
		DecisionID:       uuid.NewString(),
		ConversationID:   event.ConversationID,
		TurnID:           event.TurnID,
		Escalate:         escalate,
		Where:            where,
		Score:            score,
		Threshold:        pol.Thresholds.Tau,
		FiredRules:       fired,
		Reason:           reason,
		LatencyMS:        time.Since(start).Milliseconds(),
		PolicyVersion:    pol.Version,
		ModelVersion:     e.modelVersion,
		RedactedUserText: Redact(userText),
		RedactedBotText:  Redact(prevBotText),
		State:            st,
	}

	// Persist after the decision is complete. Save never fails the call;
	// a backend failure degrades the store instead.
	e.store.Save(ctx, event.ConversationID, st)

	e.metrics.RecordDecision(string(where), escalate, fired, time.Since(start))

	e.logger.Info("decision",
		"conversation_id", event.ConversationID,
		"escalate", escalate,
		"where", where,
		"score", score,
		"fired_rules", fired,
		"latency_ms", record.LatencyMS,
	)

	return record, nil
}

// validateEvent rejects malformed events before the rule matcher runs.
func validateEvent(event Event) error {
	if event.ConversationID == "" {
		return &ValidationError{Field: "conversation_id", Message: "cannot be empty"}
	}
	if event.Role != RoleUser && event.Role != RoleBot {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("must be %q or %q, got %q", RoleUser, RoleBot, event.Role)}
	}
	if event.Role == RoleUser && event.Message == "" {
		return &ValidationError{Field: "message", Message: "cannot be empty on a user turn"}
	}
	return nil
}
