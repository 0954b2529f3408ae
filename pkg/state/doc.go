// Package state persists the rolling per-conversation counters used by the
// escalation decision engine.
//
// Two interchangeable backends implement the Backend interface: a durable
// SQLite backend with TTL semantics (an inactive conversation's state
// expires and loads as absent) and an in-process map backend with no TTL
// enforcement. Store wraps a backend and never fails a load or save: a
// backend failure degrades to an ephemeral in-memory copy and raises a
// health signal instead of failing the decision call.
package state
