package engine

import (
	"testing"

	"helpdesk-hq/beacon/pkg/policy"
	"helpdesk-hq/beacon/pkg/state"
)

func featuresPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Parse([]byte(rulesTestPolicy))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}

func featureValue(t *testing.T, vector []float64, order []string, name string) float64 {
	t.Helper()
	for i, n := range order {
		if n == name {
			return vector[i]
		}
	}
	t.Fatalf("feature %q not in order %v", name, order)
	return 0
}

func TestValidateFeatureOrder(t *testing.T) {
	if err := ValidateFeatureOrder(FeatureNames()); err != nil {
		t.Errorf("canonical order should validate, got %v", err)
	}

	// Any permutation is valid.
	permuted := FeatureNames()
	permuted[0], permuted[8] = permuted[8], permuted[0]
	if err := ValidateFeatureOrder(permuted); err != nil {
		t.Errorf("permuted order should validate, got %v", err)
	}

	bad := [][]string{
		nil,
		FeatureNames()[:8],
		append(FeatureNames(), "extra"),
		func() []string { o := FeatureNames(); o[0] = "unknown"; return o }(),
		func() []string { o := FeatureNames(); o[1] = o[0]; return o }(),
	}
	for i, order := range bad {
		if err := ValidateFeatureOrder(order); err == nil {
			t.Errorf("case %d: expected validation error for %v", i, order)
		}
	}
}

func TestExtractFeaturesBasicValues(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	vector, _ := ExtractFeatures(3, "HELP me!! please", "", state.ConversationState{}, pol, order)

	if got := featureValue(t, vector, order, FeatureTurnIdx); got != 3 {
		t.Errorf("turn_idx = %g, want 3", got)
	}
	if got := featureValue(t, vector, order, FeatureExclamCount); got != 2 {
		t.Errorf("exclam_count = %g, want 2", got)
	}
	if got := featureValue(t, vector, order, FeatureMsgLen); got != 16 {
		t.Errorf("msg_len = %g, want 16", got)
	}
	// 4 of 12 letters are uppercase.
	capsWant := 4.0 / 12.0
	if got := featureValue(t, vector, order, FeatureUserCapsRatio); got != capsWant {
		t.Errorf("user_caps_ratio = %g, want %g", got, capsWant)
	}
}

func TestExtractFeaturesCapsRatioNoLetters(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	vector, _ := ExtractFeatures(0, "1234 !!", "", state.ConversationState{}, pol, order)
	if got := featureValue(t, vector, order, FeatureUserCapsRatio); got != 0 {
		t.Errorf("caps ratio with no letters = %g, want 0", got)
	}
}

func TestExtractFeaturesBooleanSignals(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	vector, _ := ExtractFeatures(2, "I want a refund from a human",
		"i don't understand", state.ConversationState{}, pol, order)

	if got := featureValue(t, vector, order, FeatureUserRequestsHuman); got != 1 {
		t.Errorf("user_requests_human = %g, want 1", got)
	}
	if got := featureValue(t, vector, order, FeatureRiskTerms); got != 1 {
		t.Errorf("risk_terms = %g, want 1", got)
	}
	if got := featureValue(t, vector, order, FeatureBotUnhelpful); got != 1 {
		t.Errorf("bot_unhelpful = %g, want 1", got)
	}
}

func TestExtractFeaturesIgnoresEnableFlag(t *testing.T) {
	pol, err := policy.Parse([]byte(`
version: policy@test
rules:
  risk_terms:
    enabled: false
    patterns:
      - '\brefund\b'
thresholds:
  tau: 0.5
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	order := FeatureNames()

	vector, _ := ExtractFeatures(0, "I want a refund", "", state.ConversationState{}, pol, order)
	if got := featureValue(t, vector, order, FeatureRiskTerms); got != 1 {
		t.Errorf("disabled rule should still drive its feature, got %g", got)
	}
}

func TestExtractFeaturesCountersReadBeforeUpdate(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	st := state.ConversationState{NoProgressCount: 2, BotRepeatCount: 1}
	vector, updated := ExtractFeatures(4, "still broken",
		"i don't understand", st, pol, order)

	// The vector carries the pre-update counters.
	if got := featureValue(t, vector, order, FeatureNoProgressCount); got != 2 {
		t.Errorf("no_progress_count in vector = %g, want pre-update 2", got)
	}
	if got := featureValue(t, vector, order, FeatureBotRepeatCount); got != 1 {
		t.Errorf("bot_repeat_count in vector = %g, want pre-update 1", got)
	}

	// The unhelpful template bumps the counter for the next turn.
	if updated.NoProgressCount != 3 {
		t.Errorf("updated no_progress_count = %g, want 3", updated.NoProgressCount)
	}
}

func TestExtractFeaturesCounterDecayFloorsAtZero(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	st := state.ConversationState{}
	_, updated := ExtractFeatures(0, "hi", "here is your answer", st, pol, order)

	if updated.NoProgressCount != 0 {
		t.Errorf("no_progress_count = %g, want floor 0", updated.NoProgressCount)
	}
	if updated.BotRepeatCount != 0 {
		t.Errorf("bot_repeat_count = %g, want floor 0", updated.BotRepeatCount)
	}

	// Decay from a positive value drops by exactly one.
	st = state.ConversationState{NoProgressCount: 2.5, BotRepeatCount: 3}
	_, updated = ExtractFeatures(1, "thanks", "here is your answer", st, pol, order)
	if updated.NoProgressCount != 1.5 {
		t.Errorf("no_progress_count = %g, want 1.5", updated.NoProgressCount)
	}
	if updated.BotRepeatCount != 2 {
		t.Errorf("bot_repeat_count = %g, want 2", updated.BotRepeatCount)
	}
}

func TestExtractFeaturesBotRepeatDetection(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	// First sighting of the bot text: no repeat yet.
	_, st := ExtractFeatures(1, "hi", "Please Restart Your Router.", state.ConversationState{}, pol, order)
	if st.BotRepeatCount != 0 {
		t.Fatalf("first sighting should not count a repeat, got %g", st.BotRepeatCount)
	}
	if st.PrevBotText != "please restart your router." {
		t.Fatalf("prev bot text should be normalized, got %q", st.PrevBotText)
	}

	// Same bot text again, modulo case and surrounding space: repeat.
	_, st = ExtractFeatures(2, "still down", "  please restart your router.  ", st, pol, order)
	if st.BotRepeatCount != 1 {
		t.Errorf("repeat should increment the counter, got %g", st.BotRepeatCount)
	}

	// Different bot text: decay.
	_, st = ExtractFeatures(3, "ok", "let me check your line", st, pol, order)
	if st.BotRepeatCount != 0 {
		t.Errorf("new bot text should decay the counter, got %g", st.BotRepeatCount)
	}
}

func TestExtractFeaturesEmptyBotTextNeverRepeats(t *testing.T) {
	pol := featuresPolicy(t)
	order := FeatureNames()

	st := state.ConversationState{PrevBotText: ""}
	_, st = ExtractFeatures(1, "hello", "", st, pol, order)
	if st.BotRepeatCount != 0 {
		t.Errorf("empty bot text must not count as a repeat, got %g", st.BotRepeatCount)
	}
	_, st = ExtractFeatures(2, "hello again", "", st, pol, order)
	if st.BotRepeatCount != 0 {
		t.Errorf("consecutive empty bot texts must not count as repeats, got %g", st.BotRepeatCount)
	}
}

func TestExtractFeaturesRespectsOrder(t *testing.T) {
	pol := featuresPolicy(t)

	reversed := FeatureNames()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	canonical, _ := ExtractFeatures(5, "need a human!", "", state.ConversationState{}, pol, FeatureNames())
	flipped, _ := ExtractFeatures(5, "need a human!", "", state.ConversationState{}, pol, reversed)

	for i := range canonical {
		if canonical[i] != flipped[len(flipped)-1-i] {
			t.Fatalf("vector does not follow the configured order: %v vs %v", canonical, flipped)
		}
	}
}
