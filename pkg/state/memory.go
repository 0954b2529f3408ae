package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend implements Backend using an in-process map.
// It is the deployment fallback: fast, dependency-free, no TTL enforcement,
// and all data is lost when the process exits.
//
// MemoryBackend is thread-safe using sync.RWMutex.
type MemoryBackend struct {
	states map[string]ConversationState
	mu     sync.RWMutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewMemoryBackend creates a new in-memory state backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		states: make(map[string]ConversationState),
		now:    time.Now,
	}
}

// Load retrieves the state for a conversation id. Expiry is not enforced.
func (m *MemoryBackend) Load(ctx context.Context, conversationID string) (*ConversationState, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.states[conversationID]
	if !exists {
		return nil, nil
	}

	st.Normalize()
	return &st, nil
}

// Save upserts the state for a conversation id.
func (m *MemoryBackend) Save(ctx context.Context, conversationID string, st ConversationState) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}

	st.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[conversationID] = st
	return nil
}

// Cleanup removes entries last updated before the cutoff.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, st := range m.states {
		if st.UpdatedAt.Before(olderThan) {
			delete(m.states, id)
			deleted++
		}
	}

	return deleted, nil
}

// Close releases backend resources. A no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the number of stored conversations, for monitoring and tests.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
