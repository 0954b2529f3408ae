// Package policy defines the escalation policy configuration: the named
// pattern rule sets, the turn-count guard, and the probability threshold.
//
// Policies are loaded from YAML and compiled once; a malformed pattern is a
// load-time error, never a decision-time error. The loaded Policy is
// immutable. Hot reload is provided by Watcher, which re-loads the file on
// change and hands the new Policy to a callback; a broken edit keeps the
// previous policy in effect.
package policy
