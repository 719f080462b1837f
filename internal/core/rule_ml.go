package core

import "context"

// MLEvaluator is the extension point for model-backed checks. Until a
// concrete model integration lands it reports a neutral pass.
type MLEvaluator struct{}

// Type implements RuleEvaluator.
func (MLEvaluator) Type() RuleType { return RuleML }

// Evaluate implements RuleEvaluator.
func (MLEvaluator) Evaluate(context.Context, Analysis, ValidationRule) (RuleOutcome, error) {
	return RuleOutcome{Passed: true, Score: scoreOf(0.5), Message: "ml validation not implemented"}, nil
}
