// Package engine implements the escalation decision engine for support
// conversations.
//
// A decision call runs a fixed pipeline: pattern rules first, then a
// turn-count guard, then the probabilistic scorer over a feature vector
// computed from the current turn and the conversation's rolling counters.
// The result is an auditable DecisionRecord; the updated counters are
// persisted through the state store only after the decision completes.
//
// Decisions for different conversations run fully in parallel; decisions
// for the same conversation id are serialized by a keyed lock so the
// load-compute-save sequence never loses counter updates.
package engine
