package core

import (
	"context"
	"fmt"
	"strings"
)

// FieldAccessor resolves a named numeric field on an analysis. The boolean
// reports whether the analysis carries a value for the field.
type FieldAccessor func(analysis Analysis) (float64, bool)

// FieldRegistry maps threshold-rule field names to typed accessors. Fields
// are validated at registration time instead of failing dynamically during
// each evaluation.
type FieldRegistry struct {
	fields map[string]FieldAccessor
}

// NewFieldRegistry constructs an empty registry.
func NewFieldRegistry() *FieldRegistry {
	return &FieldRegistry{fields: make(map[string]FieldAccessor)}
}

// Register adds a field accessor. Empty names, nil accessors, and duplicate
// registrations are configuration errors.
func (r *FieldRegistry) Register(name string, accessor FieldAccessor) error {
	if name == "" {
		return fmt.Errorf("field registry: empty field name")
	}
	if accessor == nil {
		return fmt.Errorf("field registry: nil accessor for field %q", name)
	}
	if _, ok := r.fields[name]; ok {
		return fmt.Errorf("field registry: duplicate field %q", name)
	}
	r.fields[name] = accessor
	return nil
}

// Resolve returns the accessor registered for name.
func (r *FieldRegistry) Resolve(name string) (FieldAccessor, bool) {
	accessor, ok := r.fields[name]
	return accessor, ok
}

func measurementField(name string) FieldAccessor {
	return func(analysis Analysis) (float64, bool) {
		return analysis.Measurement(name)
	}
}

// DefaultFieldRegistry covers the fields referenced by stock threshold
// rules: the model's confidence plus the named clinical measurements
// produced by the inference pipeline.
func DefaultFieldRegistry() *FieldRegistry {
	registry := NewFieldRegistry()
	mustRegister := func(name string, accessor FieldAccessor) {
		if err := registry.Register(name, accessor); err != nil {
			panic(err)
		}
	}
	mustRegister("ai_confidence", func(analysis Analysis) (float64, bool) {
		if analysis.AIConfidence == nil {
			return 0, false
		}
		return *analysis.AIConfidence, true
	})
	for _, name := range []string{
		"heart_rate",
		"pr_interval_ms",
		"qrs_duration_ms",
		"qt_interval_ms",
		"signal_noise_ratio",
	} {
		mustRegister(name, measurementField(name))
	}
	return registry
}

// ThresholdEvaluator checks a registered analysis field against optional
// min/max bounds taken from the rule parameters.
type ThresholdEvaluator struct {
	fields *FieldRegistry
}

// NewThresholdEvaluator constructs a threshold evaluator over the registry.
func NewThresholdEvaluator(fields *FieldRegistry) ThresholdEvaluator {
	if fields == nil {
		fields = DefaultFieldRegistry()
	}
	return ThresholdEvaluator{fields: fields}
}

// Type implements RuleEvaluator.
func (ThresholdEvaluator) Type() RuleType { return RuleThreshold }

// Evaluate implements RuleEvaluator. An unknown or missing field fails the
// rule with a descriptive message rather than erroring; bound violations are
// all listed in the result message.
func (e ThresholdEvaluator) Evaluate(_ context.Context, analysis Analysis, rule ValidationRule) (RuleOutcome, error) {
	field, _ := rule.Parameters["field"].(string)
	if field == "" {
		return failedOutcome("threshold rule has no field parameter", nil), nil
	}

	accessor, ok := e.fields.Resolve(field)
	if !ok {
		return failedOutcome(fmt.Sprintf("unknown analysis field %q", field), map[string]any{"field": field}), nil
	}
	value, ok := accessor(analysis)
	if !ok {
		return failedOutcome(fmt.Sprintf("analysis has no value for field %q", field), map[string]any{"field": field}), nil
	}

	minValue := numericParameter(rule.Parameters, "min_value")
	maxValue := numericParameter(rule.Parameters, "max_value")

	details := map[string]any{"field": field, "value": value}
	if minValue != nil {
		details["min_value"] = *minValue
	}
	if maxValue != nil {
		details["max_value"] = *maxValue
	}

	var violations []string
	if minValue != nil && value < *minValue {
		violations = append(violations, fmt.Sprintf("%s=%v below minimum %v", field, value, *minValue))
	}
	if maxValue != nil && value > *maxValue {
		violations = append(violations, fmt.Sprintf("%s=%v above maximum %v", field, value, *maxValue))
	}

	if len(violations) > 0 {
		return RuleOutcome{
			Passed:  false,
			Score:   scoreOf(0),
			Message: strings.Join(violations, "; "),
			Details: details,
		}, nil
	}
	return RuleOutcome{
		Passed:  true,
		Score:   scoreOf(1),
		Message: fmt.Sprintf("%s=%v within bounds", field, value),
		Details: details,
	}, nil
}

func failedOutcome(message string, details map[string]any) RuleOutcome {
	return RuleOutcome{Passed: false, Score: scoreOf(0), Message: message, Details: details}
}

func scoreOf(v float64) *float64 { return &v }

// numericParameter reads an optional numeric parameter, tolerating the types
// a JSON or YAML decode of the opaque parameter map can produce.
func numericParameter(parameters map[string]any, key string) *float64 {
	raw, ok := parameters[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	default:
		return nil
	}
}
