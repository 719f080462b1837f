// Package memory provides the in-memory implementation of the core
// persistence store used for tests and ephemeral environments. It is also
// the transactional engine behind the sqlite and postgres snapshot stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinicore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

type (
	// Validation aliases domain.Validation for in-memory persistence operations.
	Validation = domain.Validation
	// ValidationRule aliases domain.ValidationRule.
	ValidationRule = domain.ValidationRule
	// ValidationResult aliases domain.ValidationResult.
	ValidationResult = domain.ValidationResult
	// QualityMetric aliases domain.QualityMetric.
	QualityMetric = domain.QualityMetric
)

type memoryState struct {
	validations map[string]Validation
	byAnalysis  map[string]string // analysis id -> validation id
	rules       map[string]ValidationRule
	results     []ValidationResult
	metrics     []QualityMetric
}

func newMemoryState() memoryState {
	return memoryState{
		validations: make(map[string]Validation),
		byAnalysis:  make(map[string]string),
		rules:       make(map[string]ValidationRule),
	}
}

// Snapshot captures a point-in-time clone of the store state for external
// persistence.
type Snapshot struct {
	Validations map[string]Validation     `json:"validations"`
	Rules       map[string]ValidationRule `json:"rules"`
	Results     []ValidationResult        `json:"results"`
	Metrics     []QualityMetric           `json:"quality_metrics"`
}

// Store is a mutex-guarded in-memory store enforcing the workflow's
// uniqueness and lifecycle invariants.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the time source (tests).
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

func newID() string { return uuid.NewString() }

// CreateValidation persists a new pending validation. The per-analysis
// uniqueness guard lives here and is authoritative under concurrent
// creation: the losing writer receives a ConflictError.
func (s *Store) CreateValidation(_ context.Context, validation Validation) (Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if validation.AnalysisID == "" {
		return Validation{}, domain.NotFoundError{Entity: domain.EntityAnalysis, ID: ""}
	}
	if existingID, ok := s.state.byAnalysis[validation.AnalysisID]; ok {
		return Validation{}, domain.ConflictError{
			Entity: domain.EntityValidation,
			ID:     existingID,
			Reason: "analysis " + validation.AnalysisID + " already has a validation",
		}
	}

	now := s.nowFn()
	if validation.ID == "" {
		validation.ID = newID()
	}
	if validation.CreatedAt.IsZero() {
		validation.CreatedAt = now
	}
	validation.UpdatedAt = now
	if validation.Status == "" {
		validation.Status = domain.StatusPending
	}

	s.state.validations[validation.ID] = cloneValidation(validation)
	s.state.byAnalysis[validation.AnalysisID] = validation.ID
	return validation, nil
}

// GetValidation retrieves a validation by id.
func (s *Store) GetValidation(_ context.Context, id string) (Validation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.validations[id]
	if !ok {
		return Validation{}, domain.NotFoundError{Entity: domain.EntityValidation, ID: id}
	}
	return cloneValidation(v), nil
}

// CompleteValidation applies mutate to a pending validation under the store
// lock so the pending check and the terminal write form one atomic step. A
// validation that already reached a terminal status yields a ConflictError;
// mutators that fail leave the row untouched.
func (s *Store) CompleteValidation(_ context.Context, id string, mutate func(*Validation) error) (Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.validations[id]
	if !ok {
		return Validation{}, domain.NotFoundError{Entity: domain.EntityValidation, ID: id}
	}
	if current.Status.Terminal() {
		return Validation{}, domain.ConflictError{
			Entity: domain.EntityValidation,
			ID:     id,
			Reason: "validation already completed with status " + string(current.Status),
		}
	}

	updated := cloneValidation(current)
	if err := mutate(&updated); err != nil {
		return Validation{}, err
	}
	if !updated.Status.Terminal() {
		return Validation{}, domain.ConflictError{
			Entity: domain.EntityValidation,
			ID:     id,
			Reason: "completion must leave the validation in a terminal status",
		}
	}
	updated.UpdatedAt = s.nowFn()

	s.state.validations[id] = cloneValidation(updated)
	return updated, nil
}

// ValidationsByAnalysis lists validations recorded for an analysis.
func (s *Store) ValidationsByAnalysis(_ context.Context, analysisID string) ([]Validation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Validation
	for _, v := range s.state.validations {
		if v.AnalysisID == analysisID {
			out = append(out, cloneValidation(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ActiveRules lists active rule definitions ordered by name then id.
func (s *Store) ActiveRules(_ context.Context) ([]ValidationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ValidationRule
	for _, rule := range s.state.rules {
		if rule.Active {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PutRule upserts a rule definition. Rules are administered externally; this
// entry point exists for seeding and synchronisation.
func (s *Store) PutRule(_ context.Context, rule ValidationRule) (ValidationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	if rule.ID == "" {
		rule.ID = newID()
		rule.CreatedAt = now
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	s.state.rules[rule.ID] = cloneRule(rule)
	return rule, nil
}

// AppendResult persists one rule evaluation outcome. Results are append-only.
func (s *Store) AppendResult(_ context.Context, result ValidationResult) (ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	if result.ID == "" {
		result.ID = newID()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	s.state.results = append(s.state.results, cloneResult(result))
	return result, nil
}

// ResultsByAnalysis lists rule results for an analysis in append order.
func (s *Store) ResultsByAnalysis(_ context.Context, analysisID string) ([]ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ValidationResult
	for _, r := range s.state.results {
		if r.AnalysisID == analysisID {
			out = append(out, cloneResult(r))
		}
	}
	return out, nil
}

// AppendQualityMetric persists one reviewer-rating metric. Metrics are
// append-only.
func (s *Store) AppendQualityMetric(_ context.Context, metric QualityMetric) (QualityMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	if metric.ID == "" {
		metric.ID = newID()
	}
	if metric.CreatedAt.IsZero() {
		metric.CreatedAt = now
	}
	metric.UpdatedAt = now
	s.state.metrics = append(s.state.metrics, metric)
	return metric, nil
}

// QualityMetricsByAnalysis lists quality metrics for an analysis in append
// order.
func (s *Store) QualityMetricsByAnalysis(_ context.Context, analysisID string) ([]QualityMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QualityMetric
	for _, m := range s.state.metrics {
		if m.AnalysisID == analysisID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := Snapshot{
		Validations: make(map[string]Validation, len(s.state.validations)),
		Rules:       make(map[string]ValidationRule, len(s.state.rules)),
		Results:     make([]ValidationResult, 0, len(s.state.results)),
		Metrics:     append([]QualityMetric(nil), s.state.metrics...),
	}
	for id, v := range s.state.validations {
		snapshot.Validations[id] = cloneValidation(v)
	}
	for id, rule := range s.state.rules {
		snapshot.Rules[id] = cloneRule(rule)
	}
	for _, r := range s.state.results {
		snapshot.Results = append(snapshot.Results, cloneResult(r))
	}
	return snapshot
}

// ImportState replaces the store state with the provided snapshot,
// rebuilding the per-analysis index.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := newMemoryState()
	for id, v := range snapshot.Validations {
		state.validations[id] = cloneValidation(v)
		if v.AnalysisID != "" {
			state.byAnalysis[v.AnalysisID] = id
		}
	}
	for id, rule := range snapshot.Rules {
		state.rules[id] = cloneRule(rule)
	}
	for _, r := range snapshot.Results {
		state.results = append(state.results, cloneResult(r))
	}
	state.metrics = append(state.metrics, snapshot.Metrics...)
	s.state = state
}

func cloneValidation(v Validation) Validation {
	cp := v
	cp.ValidationDate = cloneTimePtr(v.ValidationDate)
	cp.SignatureTimestamp = cloneTimePtr(v.SignatureTimestamp)
	cp.AgreesWithAI = cloneBoolPtr(v.AgreesWithAI)
	cp.CorrectedUrgency = cloneUrgencyPtr(v.CorrectedUrgency)
	cp.SignalQualityRating = cloneFloatPtr(v.SignalQualityRating)
	cp.AIConfidenceRating = cloneFloatPtr(v.AIConfidenceRating)
	cp.OverallQualityScore = cloneFloatPtr(v.OverallQualityScore)
	cp.ValidationDurationMinutes = cloneIntPtr(v.ValidationDurationMinutes)
	return cp
}

func cloneRule(rule ValidationRule) ValidationRule {
	cp := rule
	if rule.Parameters != nil {
		cp.Parameters = make(map[string]any, len(rule.Parameters))
		for k, v := range rule.Parameters {
			cp.Parameters[k] = v
		}
	}
	return cp
}

func cloneResult(result ValidationResult) ValidationResult {
	cp := result
	cp.Score = cloneFloatPtr(result.Score)
	if result.Details != nil {
		cp.Details = make(map[string]any, len(result.Details))
		for k, v := range result.Details {
			cp.Details[k] = v
		}
	}
	return cp
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneBoolPtr(b *bool) *bool {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func cloneIntPtr(i *int) *int {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

func cloneUrgencyPtr(u *domain.ClinicalUrgency) *domain.ClinicalUrgency {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
