package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"helpdesk-hq/beacon/pkg/policy"
	"helpdesk-hq/beacon/pkg/state"
)

// stubScorer returns a fixed probability or error.
type stubScorer struct {
	p     float64
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubScorer) Score(ctx context.Context, features []float64) (float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.p, nil
}

func newTestEngine(t *testing.T, sc *stubScorer, policyYAML string) *Engine {
	t.Helper()

	if policyYAML == "" {
		policyYAML = rulesTestPolicy
	}
	pol, err := policy.Parse([]byte(policyYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	store := state.NewStore(state.NewMemoryBackend(), nil)
	t.Cleanup(func() { store.Close() })

	eng, err := New(Config{
		Store:        store,
		Scorer:       sc,
		Policy:       pol,
		FeatureOrder: FeatureNames(),
		ModelVersion: "model@test",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return eng
}

func TestNewRejectsBadConfig(t *testing.T) {
	pol, err := policy.Parse([]byte(rulesTestPolicy))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	store := state.NewStore(state.NewMemoryBackend(), nil)
	defer store.Close()
	sc := &stubScorer{p: 0.5}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil store", Config{Scorer: sc, Policy: pol, FeatureOrder: FeatureNames()}},
		{"nil scorer", Config{Store: store, Policy: pol, FeatureOrder: FeatureNames()}},
		{"nil policy", Config{Store: store, Scorer: sc, FeatureOrder: FeatureNames()}},
		{"bad feature order", Config{Store: store, Scorer: sc, Policy: pol, FeatureOrder: []string{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("expected ConfigurationError, got %T", err)
			}
		})
	}
}

func TestDecideValidation(t *testing.T) {
	eng := newTestEngine(t, &stubScorer{p: 0.5}, "")
	ctx := context.Background()

	tests := []struct {
		name  string
		event Event
	}{
		{"missing conversation id", Event{Role: RoleUser, Message: "hi"}},
		{"bad role", Event{ConversationID: "c1", Role: "system", Message: "hi"}},
		{"empty user message", Event{ConversationID: "c1", Role: RoleUser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Decide(ctx, tt.event)
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestDecideRulesBranch(t *testing.T) {
	sc := &stubScorer{p: 0.99}
	eng := newTestEngine(t, sc, "")
	ctx := context.Background()

	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "let me talk to a human",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if !rec.Escalate {
		t.Error("rules branch must escalate")
	}
	if rec.Where != WhereRules {
		t.Errorf("where = %q, want rules", rec.Where)
	}
	if rec.Score != 1.0 {
		t.Errorf("score = %g, want 1.0", rec.Score)
	}
	if rec.Reason != RuleExplicitHumanRequest {
		t.Errorf("reason = %q, want the fired rule name", rec.Reason)
	}
	if sc.calls != 0 {
		t.Errorf("rules branch must not consult the scorer, got %d calls", sc.calls)
	}
	if rec.State.TurnIndex != 1 {
		t.Errorf("user turn should advance the turn index, got %d", rec.State.TurnIndex)
	}
	if rec.DecisionID == "" {
		t.Error("decision id should be set")
	}
	if rec.PolicyVersion != "policy@test" || rec.ModelVersion != "model@test" {
		t.Errorf("version labels missing: %q / %q", rec.PolicyVersion, rec.ModelVersion)
	}
}

func TestDecideGuardBranch(t *testing.T) {
	sc := &stubScorer{p: 0.99}
	eng := newTestEngine(t, sc, "")
	ctx := context.Background()

	// min_turn_before_model is 1: the first user turn is guarded.
	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "my router is down",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if rec.Escalate {
		t.Error("guard branch must not escalate")
	}
	if rec.Where != WhereGuard {
		t.Errorf("where = %q, want guard", rec.Where)
	}
	if rec.Score != 0.0 {
		t.Errorf("score = %g, want 0.0", rec.Score)
	}
	if !strings.Contains(rec.Reason, "guard") {
		t.Errorf("reason = %q, should mention the guard", rec.Reason)
	}
	if sc.calls != 0 {
		t.Errorf("guard branch must not consult the scorer, got %d calls", sc.calls)
	}

	// The guard does not touch the rolling counters.
	if rec.State.NoProgressCount != 0 || rec.State.BotRepeatCount != 0 {
		t.Errorf("guard branch should leave counters untouched: %+v", rec.State)
	}

	// The second user turn clears the guard and reaches the model.
	rec, err = eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "still down",
	})
	if err != nil {
		t.Fatalf("second Decide failed: %v", err)
	}
	if rec.Where != WhereModel {
		t.Errorf("second turn should reach the model, got %q", rec.Where)
	}
}

func TestDecideModelBranchThreshold(t *testing.T) {
	ctx := context.Background()

	// tau is 0.5; guard floor 0 so the model decides from turn zero.
	noGuard := strings.Replace(rulesTestPolicy, "min_turn_before_model: 1", "min_turn_before_model: 0", 1)

	for _, tt := range []struct {
		p        float64
		escalate bool
	}{
		{0.49, false},
		{0.5, true}, // score == tau escalates
		{0.51, true},
	} {
		eng := newTestEngine(t, &stubScorer{p: tt.p}, noGuard)
		rec, err := eng.Decide(ctx, Event{
			ConversationID: "c1",
			Role:           RoleUser,
			Message:        "nothing works",
		})
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if rec.Where != WhereModel {
			t.Fatalf("where = %q, want model", rec.Where)
		}
		if rec.Escalate != tt.escalate {
			t.Errorf("p=%g: escalate = %v, want %v", tt.p, rec.Escalate, tt.escalate)
		}
		if rec.Score != tt.p {
			t.Errorf("p=%g: score = %g, want scorer output", tt.p, rec.Score)
		}
		if rec.Threshold != 0.5 {
			t.Errorf("threshold = %g, want 0.5", rec.Threshold)
		}
	}
}

func TestDecideBotTurn(t *testing.T) {
	sc := &stubScorer{p: 0.1}
	eng := newTestEngine(t, sc, "")
	ctx := context.Background()

	// Bot turns skip the guard and never advance the turn index.
	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleBot,
		PrevBotText:    "i don't understand",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if rec.Where != WhereModel {
		t.Errorf("bot turn should reach the model, got %q", rec.Where)
	}
	if rec.State.TurnIndex != 0 {
		t.Errorf("bot turn must not advance the turn index, got %d", rec.State.TurnIndex)
	}
	if rec.State.NoProgressCount != 1 {
		t.Errorf("unhelpful bot text should bump no_progress_count, got %g", rec.State.NoProgressCount)
	}
}

func TestDecideScoringErrorFailsDecision(t *testing.T) {
	sc := &stubScorer{err: errors.New("model host unreachable")}
	noGuard := strings.Replace(rulesTestPolicy, "min_turn_before_model: 1", "min_turn_before_model: 0", 1)
	eng := newTestEngine(t, sc, noGuard)
	ctx := context.Background()

	_, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "is anyone there",
	})
	if !IsScoring(err) {
		t.Fatalf("expected ScoringError, got %v", err)
	}

	// A failed decision leaves no state behind: the next call still sees
	// turn index zero.
	sc.err = nil
	sc.p = 0.1
	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "hello?",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if rec.State.TurnIndex != 1 {
		t.Errorf("failed decision must not persist state; turn index = %d, want 1", rec.State.TurnIndex)
	}
}

func TestDecideRejectsOutOfRangeProbability(t *testing.T) {
	noGuard := strings.Replace(rulesTestPolicy, "min_turn_before_model: 1", "min_turn_before_model: 0", 1)

	for _, p := range []float64{-0.1, 1.1} {
		eng := newTestEngine(t, &stubScorer{p: p}, noGuard)
		_, err := eng.Decide(context.Background(), Event{
			ConversationID: "c1",
			Role:           RoleUser,
			Message:        "hello",
		})
		if !IsScoring(err) {
			t.Errorf("p=%g: expected ScoringError, got %v", p, err)
		}
	}
}

func TestDecideRedactsAuditText(t *testing.T) {
	eng := newTestEngine(t, &stubScorer{p: 0.1}, "")
	ctx := context.Background()

	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "talk to a human, my email is jane@example.com and card 4111111111111111",
		PrevBotText:    "we emailed bot@support.example.com",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if strings.Contains(rec.RedactedUserText, "jane@example.com") ||
		strings.Contains(rec.RedactedUserText, "4111111111111111") {
		t.Errorf("user text not redacted: %q", rec.RedactedUserText)
	}
	if !strings.Contains(rec.RedactedUserText, "<EMAIL>") ||
		!strings.Contains(rec.RedactedUserText, "<NUMBER>") {
		t.Errorf("placeholders missing: %q", rec.RedactedUserText)
	}
	if strings.Contains(rec.RedactedBotText, "bot@support.example.com") {
		t.Errorf("bot text not redacted: %q", rec.RedactedBotText)
	}
}

func TestDecideDeterministicAcrossEngines(t *testing.T) {
	ctx := context.Background()

	run := func() *DecisionRecord {
		eng := newTestEngine(t, &stubScorer{p: 0.3}, "")
		var rec *DecisionRecord
		var err error
		turns := []Event{
			{ConversationID: "c1", Role: RoleUser, Message: "my internet is down"},
			{ConversationID: "c1", Role: RoleUser, Message: "still broken!", PrevBotText: "could you provide more details"},
			{ConversationID: "c1", Role: RoleUser, Message: "STILL broken!!", PrevBotText: "could you provide more details"},
		}
		for _, ev := range turns {
			rec, err = eng.Decide(ctx, ev)
			if err != nil {
				t.Fatalf("Decide failed: %v", err)
			}
		}
		return rec
	}

	a, b := run(), run()

	if a.Escalate != b.Escalate || a.Where != b.Where || a.Score != b.Score ||
		a.Reason != b.Reason {
		t.Errorf("identical replays diverged:\n%+v\n%+v", a, b)
	}
	if a.State.TurnIndex != b.State.TurnIndex ||
		a.State.NoProgressCount != b.State.NoProgressCount ||
		a.State.BotRepeatCount != b.State.BotRepeatCount ||
		a.State.PrevBotText != b.State.PrevBotText {
		t.Errorf("replayed state diverged:\n%+v\n%+v", a.State, b.State)
	}
}

func TestDecideSerializesConversation(t *testing.T) {
	noGuard := strings.Replace(rulesTestPolicy, "min_turn_before_model: 1", "min_turn_before_model: 0", 1)
	eng := newTestEngine(t, &stubScorer{p: 0.1}, noGuard)
	ctx := context.Background()

	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Decide(ctx, Event{
				ConversationID: "c1",
				Role:           RoleUser,
				Message:        fmt.Sprintf("message %d", i),
			})
			if err != nil {
				t.Errorf("Decide failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Every user turn must have been counted exactly once.
	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "final",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if rec.State.TurnIndex != turns+1 {
		t.Errorf("turn index = %d, want %d", rec.State.TurnIndex, turns+1)
	}
}

func TestSetPolicySwapsAtomically(t *testing.T) {
	eng := newTestEngine(t, &stubScorer{p: 0.1}, "")
	ctx := context.Background()

	newPol, err := policy.Parse([]byte(`
version: policy@v2
rules:
  explicit_human_request:
    patterns:
      - '\boperator\b'
thresholds:
  tau: 0.9
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	eng.SetPolicy(newPol)

	rec, err := eng.Decide(ctx, Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "get me an operator",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if rec.Where != WhereRules {
		t.Errorf("new policy rule should fire, got where=%q", rec.Where)
	}
	if rec.PolicyVersion != "policy@v2" {
		t.Errorf("policy version = %q, want policy@v2", rec.PolicyVersion)
	}

	// SetPolicy(nil) is ignored.
	eng.SetPolicy(nil)
	if eng.Policy() == nil {
		t.Error("nil policy must not replace the active one")
	}
}

// erroringBackend makes every primary operation fail so the store runs on
// its fallback.
type erroringBackend struct{}

func (f *erroringBackend) Load(ctx context.Context, id string) (*state.ConversationState, error) {
	return nil, errors.New("backend down")
}
func (f *erroringBackend) Save(ctx context.Context, id string, st state.ConversationState) error {
	return errors.New("backend down")
}
func (f *erroringBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, errors.New("backend down")
}
func (f *erroringBackend) Close() error { return nil }

func TestDecideSurvivesStoreFailure(t *testing.T) {
	pol, err := policy.Parse([]byte(rulesTestPolicy))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	store := state.NewStore(&erroringBackend{}, nil)
	defer store.Close()

	eng, err := New(Config{
		Store:        store,
		Scorer:       &stubScorer{p: 0.1},
		Policy:       pol,
		FeatureOrder: FeatureNames(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec, err := eng.Decide(context.Background(), Event{
		ConversationID: "c1",
		Role:           RoleUser,
		Message:        "I need a human",
	})
	if err != nil {
		t.Fatalf("store failure must not fail the decision: %v", err)
	}
	if !rec.Escalate {
		t.Error("decision content should be unaffected by the store")
	}
	if !store.Degraded() {
		t.Error("store should report degraded after primary failure")
	}
}
