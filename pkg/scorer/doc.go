// Package scorer provides the probabilistic escalation scorer consumed by
// the decision engine.
//
// The engine depends only on the Scorer interface: a pure function from a
// fixed-order feature vector to a probability in [0, 1]. The shipped
// implementation is a logistic-regression model loaded from a JSON artifact
// (per-feature weights plus intercept); any mismatch between the model's
// weights and the configured feature order is a load-time error.
package scorer
