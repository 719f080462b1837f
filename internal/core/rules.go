package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// RuleOutcome is an evaluator verdict prior to persistence.
type RuleOutcome struct {
	Passed  bool
	Score   *float64
	Message string
	Details map[string]any
}

// RuleEvaluator evaluates a single automated check against an analysis.
type RuleEvaluator interface {
	Type() RuleType
	Evaluate(ctx context.Context, analysis Analysis, rule ValidationRule) (RuleOutcome, error)
}

// RuleEngine dispatches stored rules to registered evaluators by rule type.
type RuleEngine struct {
	evaluators map[RuleType]RuleEvaluator
	timeout    time.Duration
}

// NewRuleEngine constructs an engine from the given evaluators. Registering
// an evaluator with an empty type, or two evaluators for the same type, is a
// configuration error.
func NewRuleEngine(evaluators ...RuleEvaluator) (*RuleEngine, error) {
	engine := &RuleEngine{evaluators: make(map[RuleType]RuleEvaluator, len(evaluators))}
	for _, evaluator := range evaluators {
		if evaluator == nil {
			return nil, fmt.Errorf("rule engine: nil evaluator")
		}
		ruleType := evaluator.Type()
		if ruleType == "" {
			return nil, fmt.Errorf("rule engine: evaluator with empty rule type")
		}
		if _, ok := engine.evaluators[ruleType]; ok {
			return nil, fmt.Errorf("rule engine: duplicate evaluator for rule type %q", ruleType)
		}
		engine.evaluators[ruleType] = evaluator
	}
	return engine, nil
}

// NewDefaultRuleEngine builds an engine with the built-in evaluator set:
// threshold checks over the default field registry, plus the pattern and ml
// extension points.
func NewDefaultRuleEngine() *RuleEngine {
	engine, err := NewRuleEngine(
		NewThresholdEvaluator(DefaultFieldRegistry()),
		PatternEvaluator{},
		MLEvaluator{},
	)
	if err != nil {
		panic(err)
	}
	return engine
}

// WithRuleTimeout bounds each rule's evaluation. Zero disables the bound.
func (e *RuleEngine) WithRuleTimeout(timeout time.Duration) *RuleEngine {
	e.timeout = timeout
	return e
}

// errNoEvaluator reports a stored rule whose type has no registered
// evaluator. The caller skips such rules with a warning.
type errNoEvaluator struct {
	ruleType RuleType
}

func (e errNoEvaluator) Error() string {
	return fmt.Sprintf("no evaluator registered for rule type %q", e.ruleType)
}

// evaluate runs a single rule, capturing wall-clock milliseconds and
// converting panics into errors so one misbehaving rule cannot abort a batch.
func (e *RuleEngine) evaluate(ctx context.Context, analysis Analysis, rule ValidationRule) (outcome RuleOutcome, elapsedMS float64, err error) {
	evaluator, ok := e.evaluators[rule.Type]
	if !ok {
		return RuleOutcome{}, 0, errNoEvaluator{ruleType: rule.Type}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		elapsedMS = float64(time.Since(start)) / float64(time.Millisecond)
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.Name, r)
		}
	}()
	outcome, err = evaluator.Evaluate(ctx, analysis, rule)
	return outcome, elapsedMS, err
}

// RunAutomatedRules evaluates every active rule against the analysis and
// persists one ValidationResult per successfully evaluated rule, returned in
// evaluation order. It fails with NotFoundError only when the analysis itself
// cannot be loaded. A rule with an unrecognised type is skipped with a
// warning; a rule that errors or panics is logged and excluded without
// affecting the rest of the batch.
func (s *Service) RunAutomatedRules(ctx context.Context, analysisID string) ([]ValidationResult, error) {
	finish := s.instrument(ctx, "run_automated_rules")
	results, err := s.runAutomatedRules(ctx, analysisID)
	finish(err)
	return results, err
}

func (s *Service) runAutomatedRules(ctx context.Context, analysisID string) ([]ValidationResult, error) {
	analysis, err := s.analyses.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.ActiveRules(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load active rules")
	}

	results := make([]ValidationResult, 0, len(rules))
	for _, rule := range rules {
		outcome, elapsedMS, err := s.engine.evaluate(ctx, analysis, rule)
		if err != nil {
			var skip errNoEvaluator
			if eris.As(err, &skip) {
				s.logger.Warn("skipping rule with unrecognised type",
					"rule", rule.Name, "rule_id", rule.ID, "rule_type", string(rule.Type))
			} else {
				s.logger.Error("rule evaluation failed",
					"rule", rule.Name, "rule_id", rule.ID, "error", err)
			}
			continue
		}

		result := ValidationResult{
			AnalysisID:      analysis.ID,
			RuleID:          rule.ID,
			Passed:          outcome.Passed,
			Score:           outcome.Score,
			Message:         outcome.Message,
			Details:         outcome.Details,
			ExecutionTimeMS: elapsedMS,
		}
		persisted, err := s.store.AppendResult(ctx, result)
		if err != nil {
			s.logger.Error("persist rule result", "rule_id", rule.ID, "analysis_id", analysis.ID, "error", err)
			continue
		}
		results = append(results, persisted)
	}
	return results, nil
}
