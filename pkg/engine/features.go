package engine

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"helpdesk-hq/beacon/pkg/policy"
	"helpdesk-hq/beacon/pkg/state"
)

// Feature names. The configured feature order must be a permutation of
// exactly these nine names.
const (
	FeatureTurnIdx           = "turn_idx"
	FeatureUserCapsRatio     = "user_caps_ratio"
	FeatureExclamCount       = "exclam_count"
	FeatureMsgLen            = "msg_len"
	FeatureBotUnhelpful      = "bot_unhelpful"
	FeatureUserRequestsHuman = "user_requests_human"
	FeatureRiskTerms         = "risk_terms"
	FeatureNoProgressCount   = "no_progress_count"
	FeatureBotRepeatCount    = "bot_repeat_count"
)

// featureNames is the canonical feature set.
var featureNames = []string{
	FeatureTurnIdx,
	FeatureUserCapsRatio,
	FeatureExclamCount,
	FeatureMsgLen,
	FeatureBotUnhelpful,
	FeatureUserRequestsHuman,
	FeatureRiskTerms,
	FeatureNoProgressCount,
	FeatureBotRepeatCount,
}

// FeatureNames returns a copy of the canonical feature name set.
func FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

// ValidateFeatureOrder checks that order contains each canonical feature
// exactly once. A mismatch is a configuration error, not a runtime
// fallback.
func ValidateFeatureOrder(order []string) error {
	if len(order) != len(featureNames) {
		return &ConfigurationError{Message: "feature order must list exactly the " +
			"nine escalation features"}
	}

	known := make(map[string]bool, len(featureNames))
	for _, name := range featureNames {
		known[name] = true
	}

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if !known[name] {
			return &ConfigurationError{Message: "unknown feature name " + name}
		}
		if seen[name] {
			return &ConfigurationError{Message: "duplicate feature name " + name}
		}
		seen[name] = true
	}

	return nil
}

// ExtractFeatures computes the feature vector in the given order and
// returns the updated conversation state.
//
// The counter features (no_progress_count, bot_repeat_count) are read
// before this call's update: the vector reflects history up to but not
// including this turn. The counters themselves then decay or grow by one:
// they rise under repeated negative signal and fall by at most one per
// turn, floored at zero, giving the scorer a smoothed stagnation signal
// rather than raw turn-level noise.
func ExtractFeatures(turnIndex int, userText, prevBotText string, st state.ConversationState, pol *policy.Policy, featureOrder []string) ([]float64, state.ConversationState) {
	values := map[string]float64{
		FeatureTurnIdx:           float64(turnIndex),
		FeatureUserCapsRatio:     capsRatio(userText),
		FeatureExclamCount:       float64(strings.Count(userText, "!")),
		FeatureMsgLen:            float64(utf8.RuneCountInString(userText)),
		FeatureBotUnhelpful:      boolFeature(pol.Rules.BotUnhelpfulTemplates.AnyPatternMatches(prevBotText)),
		FeatureUserRequestsHuman: boolFeature(pol.Rules.ExplicitHumanRequest.AnyPatternMatches(userText)),
		FeatureRiskTerms:         boolFeature(pol.Rules.RiskTerms.AnyPatternMatches(userText)),
		FeatureNoProgressCount:   st.NoProgressCount,
		FeatureBotRepeatCount:    st.BotRepeatCount,
	}

	// Rolling state update, defining the counters the *next* call reads.
	thisBot := strings.ToLower(strings.TrimSpace(prevBotText))

	if st.PrevBotText != "" && thisBot != "" && thisBot == st.PrevBotText {
		st.BotRepeatCount++
	} else {
		st.BotRepeatCount = math.Max(st.BotRepeatCount-1, 0)
	}

	if pol.Rules.BotUnhelpfulTemplates.AnyPatternMatches(thisBot) {
		st.NoProgressCount++
	} else {
		st.NoProgressCount = math.Max(st.NoProgressCount-1, 0)
	}

	st.PrevBotText = thisBot

	vector := make([]float64, len(featureOrder))
	for i, name := range featureOrder {
		vector[i] = values[name]
	}

	return vector, st
}

// capsRatio returns uppercase letters over alphabetic letters, 0 when the
// text has no letters.
func capsRatio(s string) float64 {
	var caps, letters int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	if letters == 0 {
		return 0.0
	}
	return float64(caps) / float64(letters)
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
