package core

import "context"

// PatternEvaluator is the extension point for waveform-pattern checks.
// Until a concrete matcher lands it reports a neutral pass.
type PatternEvaluator struct{}

// Type implements RuleEvaluator.
func (PatternEvaluator) Type() RuleType { return RulePattern }

// Evaluate implements RuleEvaluator.
func (PatternEvaluator) Evaluate(context.Context, Analysis, ValidationRule) (RuleOutcome, error) {
	return RuleOutcome{Passed: true, Score: scoreOf(0.5), Message: "pattern validation not implemented"}, nil
}
