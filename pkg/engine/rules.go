package engine

import "helpdesk-hq/beacon/pkg/policy"

// EvaluateRules evaluates the configured pattern rules against the current
// turn and returns the fired rule names in evaluation order. The order is
// fixed by this function, never by configuration iteration order:
// explicit_human_request, then risk_terms (both against the user text),
// then bot_unhelpful_templates against the previous bot text, which fires
// under the bot_unhelpful_template_seen label.
//
// EvaluateRules is a pure function of its inputs; it never touches
// conversation state.
func EvaluateRules(userText, prevBotText string, pol *policy.Policy) []string {
	fired := make([]string, 0, 3)

	if pol.Rules.ExplicitHumanRequest.Matches(userText) {
		fired = append(fired, RuleExplicitHumanRequest)
	}
	if pol.Rules.RiskTerms.Matches(userText) {
		fired = append(fired, RuleRiskTerms)
	}
	if pol.Rules.BotUnhelpfulTemplates.Matches(prevBotText) {
		fired = append(fired, RuleBotUnhelpfulSeen)
	}

	return fired
}

// escalatingRules are the fired labels that short-circuit the pipeline into
// an immediate escalation. frustration_detected is listed even though the
// matcher never emits it; see RuleFrustrationDetected.
var escalatingRules = []string{
	RuleExplicitHumanRequest,
	RuleRiskTerms,
	RuleFrustrationDetected,
}

// firstEscalatingRule returns the first fired label that forces an
// escalation, or "" if none fired.
func firstEscalatingRule(fired []string) string {
	for _, name := range fired {
		for _, esc := range escalatingRules {
			if name == esc {
				return name
			}
		}
	}
	return ""
}
