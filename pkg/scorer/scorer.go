package scorer

import "context"

// Scorer scores an escalation feature vector.
// Implementations must be deterministic and safe for concurrent use. The
// vector's component order must match the feature order the scorer was
// built against; a length mismatch is an error, never a silent fallback.
type Scorer interface {
	// Score returns the escalation probability in [0, 1] for the vector.
	Score(ctx context.Context, features []float64) (float64, error)
}
