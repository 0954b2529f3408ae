// Beacon is a deterministic escalation decision service for customer
// support conversations.
//
// It evaluates each conversation event through a fixed pipeline of pattern
// rules, an early-turn guard, and a probabilistic scorer, and returns an
// auditable decision record:
//   - Pattern rules for explicit human requests and risk terms
//   - Turn-count guard before the model is consulted
//   - Logistic model scoring over rolling conversation features
//   - TTL-bounded conversation state in memory or SQLite
//   - Async audit trail of every decision
//
// Usage:
//
//	# Start server with default configuration
//	beacon run
//
//	# Start with custom configuration file
//	beacon run --config /path/to/config.yaml
//
//	# Validate configuration, policy, and model artifacts
//	beacon validate
//
//	# Show version information
//	beacon version
package main

func main() {
	Execute()
}
