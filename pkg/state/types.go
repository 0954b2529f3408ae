package state

import (
	"context"
	"time"
)

// ConversationState is the rolling state for one conversation.
// Absent state is equivalent to the zero value; all counters are
// non-negative.
type ConversationState struct {
	// TurnIndex is the count of user turns processed so far.
	TurnIndex int `json:"turn_index"`

	// PrevBotText is the lower-cased, trimmed text of the most recent bot
	// turn seen by the feature extractor.
	PrevBotText string `json:"prev_bot_text"`

	// NoProgressCount is a decaying counter of unhelpful bot responses.
	NoProgressCount float64 `json:"no_progress_count"`

	// BotRepeatCount is a decaying counter of repeated bot responses.
	BotRepeatCount float64 `json:"bot_repeat_count"`

	// UpdatedAt is the last write time, used for TTL expiry. Zero for
	// state that has never been persisted.
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize clamps the counters to their declared lower bounds. Persisted
// records are coerced field by field on load, so a partially written or
// hand-edited record still yields a valid state.
func (s *ConversationState) Normalize() {
	if s.TurnIndex < 0 {
		s.TurnIndex = 0
	}
	if s.NoProgressCount < 0 {
		s.NoProgressCount = 0
	}
	if s.BotRepeatCount < 0 {
		s.BotRepeatCount = 0
	}
}

// Backend is the low-level persistence interface for conversation state.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Load retrieves the state for a conversation id.
	// Returns nil if no state exists or the stored state has expired.
	// Returns an error only on backend failure.
	Load(ctx context.Context, conversationID string) (*ConversationState, error)

	// Save upserts the state for a conversation id and refreshes its TTL.
	Save(ctx context.Context, conversationID string, st ConversationState) error

	// Cleanup removes entries last updated before the cutoff and returns
	// the number removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases backend resources.
	Close() error
}
