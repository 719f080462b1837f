package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"clinicore/pkg/domain"
)

// Policy holds the externally supplied workflow tunables. It is injected at
// construction so the eligibility matcher and second-opinion computation stay
// free of ambient state.
type Policy struct {
	// MinExperienceYearsCritical is the experience floor for a physician to
	// take a critical-urgency case, and the tier-1 escalation floor.
	MinExperienceYearsCritical int
	// RequireDoubleValidationCritical enables the second-opinion flag for
	// qualifying analyses.
	RequireDoubleValidationCritical bool
}

// An analysis with a known AI confidence below this warrants a second
// opinion when the double-validation flag is enabled.
const secondOpinionConfidenceFloor = 0.7

// AuditArchiver writes immutable audit documents for completed validations.
type AuditArchiver interface {
	ArchiveValidation(ctx context.Context, validation Validation) error
}

// Service owns the validation lifecycle: assignment eligibility, the
// pending-to-terminal state machine, urgent-case escalation, automated rule
// execution, and quality metric aggregation.
type Service struct {
	store     domain.Store
	analyses  domain.AnalysisProvider
	directory domain.ValidatorDirectory
	events    domain.EventSink
	policy    Policy
	engine    *RuleEngine

	archiver AuditArchiver
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	nowFn    func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger used for side-channel failures.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer sets the operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithRuleEngine replaces the default automated rule engine.
func WithRuleEngine(engine *RuleEngine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithAuditArchiver enables archival of completed validations.
func WithAuditArchiver(archiver AuditArchiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService constructs the orchestration service around its collaborators.
func NewService(store domain.Store, analyses domain.AnalysisProvider, directory domain.ValidatorDirectory, events domain.EventSink, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:     store,
		analyses:  analyses,
		directory: directory,
		events:    events,
		policy:    policy,
		engine:    NewDefaultRuleEngine(),
		logger:    noopLogger{},
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateValidationInput identifies the analysis and the requesting validator.
type CreateValidationInput struct {
	AnalysisID               string
	ValidatorID              string
	ValidatorRole            ValidatorRole
	ValidatorExperienceYears *int
}

// CreateValidation assigns a validator to an analysis and persists a pending
// validation. It fails with NotFoundError when the analysis is unknown,
// ConflictError when a validation already exists for the analysis, and
// PermissionDeniedError when the validator is ineligible for the analysis's
// urgency tier. The assignment notification is fire-and-forget.
func (s *Service) CreateValidation(ctx context.Context, in CreateValidationInput) (Validation, error) {
	finish := s.instrument(ctx, "create_validation")
	created, err := s.createValidation(ctx, in)
	finish(err)
	return created, err
}

func (s *Service) createValidation(ctx context.Context, in CreateValidationInput) (Validation, error) {
	analysis, err := s.analyses.GetAnalysis(ctx, in.AnalysisID)
	if err != nil {
		return Validation{}, err
	}

	// Fast-path duplicate check; the store's uniqueness guard is the
	// authoritative arbiter under concurrent creation.
	existing, err := s.store.ValidationsByAnalysis(ctx, in.AnalysisID)
	if err != nil {
		return Validation{}, eris.Wrap(err, "query validations")
	}
	if len(existing) > 0 {
		return Validation{}, domain.ConflictError{
			Entity: EntityValidation,
			ID:     existing[0].ID,
			Reason: "analysis " + in.AnalysisID + " already has a validation",
		}
	}

	if !CanValidate(in.ValidatorRole, in.ValidatorExperienceYears, analysis.ClinicalUrgency, s.policy.MinExperienceYearsCritical) {
		return Validation{}, domain.PermissionDeniedError{
			Reason: "validator " + in.ValidatorID + " is not eligible for " + string(analysis.ClinicalUrgency) + " urgency",
		}
	}

	now := s.nowFn()
	validation := Validation{
		Base:                  Base{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now},
		AnalysisID:            in.AnalysisID,
		ValidatorID:           in.ValidatorID,
		Status:                StatusPending,
		RequiresSecondOpinion: s.requiresSecondOpinion(analysis),
	}

	created, err := s.store.CreateValidation(ctx, validation)
	if err != nil {
		return Validation{}, err
	}

	s.publish(ctx, Event{
		Kind:         domain.EventValidationAssigned,
		AnalysisID:   analysis.ID,
		ValidationID: created.ID,
		ValidatorID:  created.ValidatorID,
		Urgency:      analysis.ClinicalUrgency,
		OccurredAt:   now,
	})
	return created, nil
}

// requiresSecondOpinion computes the second-opinion flag once, at creation.
func (s *Service) requiresSecondOpinion(analysis Analysis) bool {
	if !s.policy.RequireDoubleValidationCritical {
		return false
	}
	if analysis.ClinicalUrgency == UrgencyCritical || analysis.RequiresImmediateAttention {
		return true
	}
	return analysis.AIConfidence != nil && *analysis.AIConfidence < secondOpinionConfidenceFloor
}

// SubmitValidationInput carries the reviewer's verdict and feedback. A nil
// Approved defaults to approval.
type SubmitValidationInput struct {
	Approved *bool

	AgreesWithAI       *bool
	ClinicalNotes      string
	CorrectedDiagnosis string
	CorrectedUrgency   *ClinicalUrgency

	SignalQualityRating *float64
	AIConfidenceRating  *float64
	OverallQualityScore *float64

	Recommendations           string
	FollowUpRequired          bool
	FollowUpNotes             string
	ValidationDurationMinutes *int

	DigitalSignature string
}

// SubmitValidation records the reviewer's verdict on a pending validation.
// It fails with NotFoundError for an unknown validation, PermissionDeniedError
// when the submitter is not the assignee, and ConflictError when the
// validation already reached a terminal status. The post-commit side effects
// (analysis flag refresh, quality metrics, notifications, audit archival) are
// independently fault-tolerant: failures are logged and never roll back the
// state transition.
func (s *Service) SubmitValidation(ctx context.Context, validationID, validatorID string, in SubmitValidationInput) (Validation, error) {
	finish := s.instrument(ctx, "submit_validation")
	updated, err := s.submitValidation(ctx, validationID, validatorID, in)
	finish(err)
	return updated, err
}

func (s *Service) submitValidation(ctx context.Context, validationID, validatorID string, in SubmitValidationInput) (Validation, error) {
	now := s.nowFn()
	updated, err := s.store.CompleteValidation(ctx, validationID, func(v *Validation) error {
		if v.ValidatorID != validatorID {
			return domain.PermissionDeniedError{
				Reason: "validator " + validatorID + " is not assigned to validation " + validationID,
			}
		}

		status := StatusApproved
		if in.Approved != nil && !*in.Approved {
			status = StatusRejected
		}
		v.Status = status
		v.ValidationDate = &now

		v.AgreesWithAI = in.AgreesWithAI
		v.ClinicalNotes = in.ClinicalNotes
		v.CorrectedDiagnosis = in.CorrectedDiagnosis
		v.CorrectedUrgency = in.CorrectedUrgency
		v.SignalQualityRating = in.SignalQualityRating
		v.AIConfidenceRating = in.AIConfidenceRating
		v.OverallQualityScore = in.OverallQualityScore
		v.Recommendations = in.Recommendations
		v.FollowUpRequired = in.FollowUpRequired
		v.FollowUpNotes = in.FollowUpNotes
		v.ValidationDurationMinutes = in.ValidationDurationMinutes

		if in.DigitalSignature != "" {
			v.DigitalSignature = in.DigitalSignature
			v.SignatureTimestamp = &now
		}
		return nil
	})
	if err != nil {
		return Validation{}, err
	}

	s.refreshAnalysisFlag(ctx, updated.AnalysisID)
	s.recordQualityMetrics(ctx, updated)
	s.notifyCompletion(ctx, updated)
	s.archiveValidation(ctx, updated)

	return updated, nil
}

// refreshAnalysisFlag pushes the derived is_validated flag to the analysis
// provider: true iff at least one terminal validation exists.
func (s *Service) refreshAnalysisFlag(ctx context.Context, analysisID string) {
	validations, err := s.store.ValidationsByAnalysis(ctx, analysisID)
	if err != nil {
		s.logger.Error("refresh analysis flag: query validations", "analysis_id", analysisID, "error", err)
		return
	}
	validated := false
	for _, v := range validations {
		if v.Status.Terminal() {
			validated = true
			break
		}
	}
	if err := s.analyses.UpdateValidationStatus(ctx, analysisID, validated); err != nil {
		s.logger.Error("refresh analysis flag: update provider", "analysis_id", analysisID, "error", err)
	}
}

// notifyCompletion records the completion in the metrics, emits the
// completion event to the original requester and, for a rejected critical
// analysis, an additional critical-rejection alert.
func (s *Service) notifyCompletion(ctx context.Context, validation Validation) {
	analysis, err := s.analyses.GetAnalysis(ctx, validation.AnalysisID)
	if err != nil {
		s.logger.Error("completion notification: load analysis", "analysis_id", validation.AnalysisID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveCompletion(ctx, analysis.ClinicalUrgency, validation.Status)
	}
	s.publish(ctx, Event{
		Kind:         domain.EventValidationCompleted,
		AnalysisID:   validation.AnalysisID,
		ValidationID: validation.ID,
		ValidatorID:  validation.ValidatorID,
		RequesterID:  analysis.CreatedBy,
		Status:       validation.Status,
		OccurredAt:   s.nowFn(),
	})
	if validation.Status == StatusRejected && analysis.ClinicalUrgency == UrgencyCritical {
		s.publish(ctx, Event{
			Kind:         domain.EventCriticalRejection,
			AnalysisID:   validation.AnalysisID,
			ValidationID: validation.ID,
			Urgency:      analysis.ClinicalUrgency,
			OccurredAt:   s.nowFn(),
		})
	}
}

func (s *Service) archiveValidation(ctx context.Context, validation Validation) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveValidation(ctx, validation); err != nil {
		s.logger.Error("archive validation", "validation_id", validation.ID, "error", err)
	}
}

// publish hands an event to the sink; failure is logged, never propagated.
func (s *Service) publish(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("publish event", "kind", string(event.Kind), "analysis_id", event.AnalysisID, "error", err)
	}
}

// instrument records the observed duration and outcome of an operation.
func (s *Service) instrument(ctx context.Context, operation string) func(error) {
	start := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		_, span = s.tracer.Start(ctx, operation)
	}
	return func(err error) {
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
		}
		if span != nil {
			span.End(err)
		}
	}
}
