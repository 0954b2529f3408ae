// Package logging configures the process-wide structured logger.
//
// Output is log/slog with a JSON or text handler; components derive scoped
// loggers with slog's With. Transcript text never reaches the logger
// directly: the decision engine redacts PII before any text lands on a
// DecisionRecord, and only record fields are logged.
package logging
