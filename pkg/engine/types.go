package engine

import (
	"time"

	"helpdesk-hq/beacon/pkg/state"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn written by the customer.
	RoleUser Role = "user"

	// RoleBot is a turn written by the support bot.
	RoleBot Role = "bot"
)

// Where identifies the pipeline branch that produced a decision.
type Where string

const (
	// WhereRules means a pattern rule decided (always escalate).
	WhereRules Where = "rules"

	// WhereGuard means the turn-count guard decided (always no-escalate).
	WhereGuard Where = "guard"

	// WhereModel means the probabilistic scorer decided.
	WhereModel Where = "model"
)

// Fired rule labels. The bot-unhelpful rule fires under a different label
// than its configuration key; both spellings are load-bearing for
// downstream consumers.
const (
	RuleExplicitHumanRequest = "explicit_human_request"
	RuleRiskTerms            = "risk_terms"
	RuleBotUnhelpfulSeen     = "bot_unhelpful_template_seen"

	// RuleFrustrationDetected is checked by the decision pipeline but is
	// never produced by the rule matcher. The label is kept so existing
	// consumers of fired-rule sets keep working; see the package tests
	// for the documented gap.
	RuleFrustrationDetected = "frustration_detected"
)

// Event is one conversation turn submitted for a decision. Events are
// transient and never persisted.
type Event struct {
	// ConversationID keys the rolling state. Required.
	ConversationID string `json:"conversation_id"`

	// TurnID optionally identifies the turn for audit correlation.
	TurnID string `json:"turn_id,omitempty"`

	// Role is the turn author, user or bot. Required.
	Role Role `json:"role"`

	// Message is the turn text. Required on user turns.
	Message string `json:"message"`

	// PrevBotText is the most recent bot message before this turn.
	// Absent is treated as empty.
	PrevBotText string `json:"prev_bot_text"`

	// Timestamp is when the turn occurred. Informational only.
	Timestamp time.Time `json:"ts,omitempty"`

	// Language is the detected conversation language. Informational only.
	Language string `json:"lang,omitempty"`
}

// DecisionRecord is the auditable output of one decision call. Field names
// are part of the output contract; transports must not rename them.
type DecisionRecord struct {
	// DecisionID uniquely identifies this decision.
	DecisionID string `json:"decision_id"`

	// ConversationID echoes the event's conversation id.
	ConversationID string `json:"conversation_id"`

	// TurnID echoes the event's turn id, if any.
	TurnID string `json:"turn_id,omitempty"`

	// Escalate is the final decision.
	Escalate bool `json:"escalate"`

	// Where is the pipeline branch that decided.
	Where Where `json:"where"`

	// Score is the escalation probability: 1.0 on the rules branch, 0.0
	// on the guard branch, the scorer output on the model branch.
	Score float64 `json:"score"`

	// Threshold is the tau the score was compared against.
	Threshold float64 `json:"threshold"`

	// FiredRules lists fired rule names in evaluation order.
	FiredRules []string `json:"fired_rules"`

	// Reason is the human-readable explanation for the decision.
	Reason string `json:"reason"`

	// LatencyMS is the decision call duration in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// PolicyVersion is the version label of the policy in effect.
	PolicyVersion string `json:"policy_version"`

	// ModelVersion is the version label of the scorer model.
	ModelVersion string `json:"model_version"`

	// RedactedUserText is the user text with PII placeholders applied.
	RedactedUserText string `json:"redacted_user_text"`

	// RedactedBotText is the previous bot text with PII placeholders
	// applied.
	RedactedBotText string `json:"redacted_bot_text"`

	// State is the resulting conversation state snapshot after this
	// decision.
	State state.ConversationState `json:"state"`
}
