// Package audit persists escalation decision records for after-the-fact
// review. It is deliberately outside the decision engine: the engine
// returns DecisionRecords and the request boundary hands them to the
// recorder, so audit storage can never fail or slow a decision.
//
// Records are written asynchronously to SQLite and pruned on a retention
// schedule. Only decision records with already-redacted text are stored;
// conversation transcripts are not.
package audit
