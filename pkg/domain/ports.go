package domain

import "context"

// AnalysisProvider exposes the external inference pipeline that owns
// analyses. The engine reads analyses and writes back only the derived
// validation flag.
type AnalysisProvider interface {
	GetAnalysis(ctx context.Context, id string) (Analysis, error)
	UpdateValidationStatus(ctx context.Context, id string, validated bool) error
}

// ValidatorDirectory exposes the external identity/roster service. Results
// include only validators currently available for assignment whose role rank
// and experience meet the supplied minimums.
type ValidatorDirectory interface {
	AvailableValidators(ctx context.Context, minRole ValidatorRole, minExperienceYears int) ([]Validator, error)
}

// EventSink accepts outbound notification events. Implementations must not
// block the caller on delivery; a non-nil error indicates the event could not
// be accepted for delivery at all.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// Store is the persistence abstraction for validation workflow records.
//
// CreateValidation and CompleteValidation carry the atomic check-then-act
// guarantees the workflow relies on: at most one validation per analysis, and
// exactly one pending-to-terminal transition per validation.
type Store interface {
	// CreateValidation persists a new validation. It returns ConflictError
	// when a validation already exists for the same analysis; this uniqueness
	// guard is authoritative under concurrent creation.
	CreateValidation(ctx context.Context, validation Validation) (Validation, error)
	GetValidation(ctx context.Context, id string) (Validation, error)
	// CompleteValidation atomically applies mutate to a pending validation.
	// It returns NotFoundError for an unknown id and ConflictError when the
	// validation is no longer pending. The mutator must leave the validation
	// in a terminal status.
	CompleteValidation(ctx context.Context, id string, mutate func(*Validation) error) (Validation, error)
	ValidationsByAnalysis(ctx context.Context, analysisID string) ([]Validation, error)

	ActiveRules(ctx context.Context) ([]ValidationRule, error)
	PutRule(ctx context.Context, rule ValidationRule) (ValidationRule, error)

	AppendResult(ctx context.Context, result ValidationResult) (ValidationResult, error)
	ResultsByAnalysis(ctx context.Context, analysisID string) ([]ValidationResult, error)

	AppendQualityMetric(ctx context.Context, metric QualityMetric) (QualityMetric, error)
	QualityMetricsByAnalysis(ctx context.Context, analysisID string) ([]QualityMetric, error)
}
