// Package domain defines the core persistent entities, value types, and
// error/event primitives used by clinicore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in error values and persistence buckets.
const (
	// EntityAnalysis identifies an AI-produced diagnostic analysis.
	EntityAnalysis EntityType = "analysis"
	// EntityValidator identifies a roster validator record.
	EntityValidator EntityType = "validator"
	// EntityValidation identifies an expert validation record.
	EntityValidation EntityType = "validation"
	// EntityValidationRule identifies an automated check definition.
	EntityValidationRule EntityType = "validation_rule"
	// EntityValidationResult identifies the outcome of one rule evaluation.
	EntityValidationResult EntityType = "validation_result"
	// EntityQualityMetric identifies a normalized reviewer-rating metric.
	EntityQualityMetric EntityType = "quality_metric"
)

// ClinicalUrgency is the severity tier attached to an analysis. It drives
// validator eligibility and escalation.
type ClinicalUrgency string

// Canonical urgency tiers, ordered from least to most severe.
const (
	UrgencyLow      ClinicalUrgency = "low"
	UrgencyNormal   ClinicalUrgency = "normal"
	UrgencyHigh     ClinicalUrgency = "high"
	UrgencyCritical ClinicalUrgency = "critical"
)

// Rank returns the ordinal severity of the urgency tier. Unknown values rank
// below every canonical tier.
func (u ClinicalUrgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyNormal:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	default:
		return 0
	}
}

// ValidatorRole enumerates clinical roles recognised by the eligibility policy.
type ValidatorRole string

// Canonical validator roles, ordered from least to most privileged.
const (
	RoleTechnician   ValidatorRole = "technician"
	RolePhysician    ValidatorRole = "physician"
	RoleCardiologist ValidatorRole = "cardiologist"
	RoleAdmin        ValidatorRole = "admin"
)

// Rank returns the ordinal privilege level of the role. Unknown roles rank
// below every canonical role.
func (r ValidatorRole) Rank() int {
	switch r {
	case RoleTechnician:
		return 1
	case RolePhysician:
		return 2
	case RoleCardiologist:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

// ValidationStatus enumerates validation lifecycle states.
type ValidationStatus string

// Canonical validation statuses. A validation starts pending and transitions
// exactly once to approved or rejected.
const (
	StatusPending  ValidationStatus = "pending"
	StatusApproved ValidationStatus = "approved"
	StatusRejected ValidationStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s ValidationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// RuleType tags automated check definitions for evaluator dispatch.
type RuleType string

// Canonical rule types recognised by the rule execution engine.
const (
	RuleThreshold RuleType = "threshold"
	RulePattern   RuleType = "pattern"
	RuleML        RuleType = "ml"
)

// Base carries identity and bookkeeping shared by persistent records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Analysis is an AI-produced diagnostic result awaiting expert confirmation.
// It is owned by the external inference pipeline; this core reads it and
// writes back only the derived IsValidated flag.
type Analysis struct {
	ID                         string             `json:"id"`
	ClinicalUrgency            ClinicalUrgency    `json:"clinical_urgency"`
	RequiresImmediateAttention bool               `json:"requires_immediate_attention"`
	AIConfidence               *float64           `json:"ai_confidence,omitempty"`
	CreatedBy                  string             `json:"created_by"`
	IsValidated                bool               `json:"is_validated"`
	Measurements               map[string]float64 `json:"measurements,omitempty"`
}

// Measurement returns the named clinical measurement when present.
func (a Analysis) Measurement(name string) (float64, bool) {
	v, ok := a.Measurements[name]
	return v, ok
}

// Validator describes a roster member eligible to confirm analyses. Owned by
// the external identity/roster service.
type Validator struct {
	ID              string        `json:"id"`
	Role            ValidatorRole `json:"role"`
	ExperienceYears *int          `json:"experience_years,omitempty"`
}

// Validation records one expert review of an analysis, including agreement,
// corrections, and quality ratings. Rows are never physically deleted.
type Validation struct {
	Base
	AnalysisID            string           `json:"analysis_id"`
	ValidatorID           string           `json:"validator_id"`
	Status                ValidationStatus `json:"status"`
	RequiresSecondOpinion bool             `json:"requires_second_opinion"`
	ValidationDate        *time.Time       `json:"validation_date,omitempty"`

	AgreesWithAI       *bool            `json:"agrees_with_ai,omitempty"`
	ClinicalNotes      string           `json:"clinical_notes,omitempty"`
	CorrectedDiagnosis string           `json:"corrected_diagnosis,omitempty"`
	CorrectedUrgency   *ClinicalUrgency `json:"corrected_urgency,omitempty"`

	SignalQualityRating *float64 `json:"signal_quality_rating,omitempty"`
	AIConfidenceRating  *float64 `json:"ai_confidence_rating,omitempty"`
	OverallQualityScore *float64 `json:"overall_quality_score,omitempty"`

	Recommendations           string `json:"recommendations,omitempty"`
	FollowUpRequired          bool   `json:"follow_up_required"`
	FollowUpNotes             string `json:"follow_up_notes,omitempty"`
	ValidationDurationMinutes *int   `json:"validation_duration_minutes,omitempty"`

	DigitalSignature   string     `json:"digital_signature,omitempty"`
	SignatureTimestamp *time.Time `json:"signature_timestamp,omitempty"`
}

// ValidationRule defines one automated check. Rules are administered
// externally and read-only to this core.
type ValidationRule struct {
	Base
	Name       string         `json:"name"`
	Type       RuleType       `json:"rule_type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Active     bool           `json:"active"`
}

// ValidationResult captures the outcome of evaluating one rule against one
// analysis. Results are append-only.
type ValidationResult struct {
	Base
	AnalysisID      string         `json:"analysis_id"`
	RuleID          string         `json:"rule_id"`
	Passed          bool           `json:"passed"`
	Score           *float64       `json:"score,omitempty"`
	Message         string         `json:"message,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	ExecutionTimeMS float64        `json:"execution_time_ms"`
}

// QualityMetric is a normalized, range-checked value derived from a
// reviewer's subjective rating. Metrics are append-only and IsWithinNormal is
// fixed at creation time.
type QualityMetric struct {
	Base
	AnalysisID        string  `json:"analysis_id"`
	MetricName        string  `json:"metric_name"`
	MetricValue       float64 `json:"metric_value"`
	MetricUnit        string  `json:"metric_unit,omitempty"`
	NormalMin         float64 `json:"normal_min"`
	NormalMax         float64 `json:"normal_max"`
	IsWithinNormal    bool    `json:"is_within_normal"`
	CalculationMethod string  `json:"calculation_method,omitempty"`
}
