package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinicore/pkg/domain"
)

func pendingValidation(analysisID string) Validation {
	return Validation{AnalysisID: analysisID, ValidatorID: "val-1"}
}

func approve(v *Validation) error {
	v.Status = domain.StatusApproved
	return nil
}

func TestCreateValidationFillsDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	created, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if err != nil {
		t.Fatalf("create validation: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.Status != domain.StatusPending {
		t.Fatalf("expected pending default, got %s", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", created.Base)
	}

	fetched, err := store.GetValidation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get validation: %v", err)
	}
	if fetched.AnalysisID != "an-1" {
		t.Fatalf("fetched analysis id = %s", fetched.AnalysisID)
	}
}

func TestCreateValidationUniquePerAnalysis(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.CreateValidation(ctx, pendingValidation("an-1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCreateValidationConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.CreateValidation(ctx, pendingValidation("an-1"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !domain.IsConflict(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestGetValidationNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.GetValidation(context.Background(), "missing")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCompleteValidationTerminalOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	created, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.CompleteValidation(ctx, created.ID, approve)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("status = %s", updated.Status)
	}

	_, err = store.CompleteValidation(ctx, created.ID, func(v *Validation) error {
		v.Status = domain.StatusRejected
		return nil
	})
	if !domain.IsConflict(err) {
		t.Fatalf("second completion must conflict, got %v", err)
	}

	fetched, err := store.GetValidation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != domain.StatusApproved {
		t.Fatalf("terminal status must stick, got %s", fetched.Status)
	}
}

func TestCompleteValidationMutatorErrorLeavesRow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	created, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantErr := domain.PermissionDeniedError{Reason: "not assignee"}
	_, err = store.CompleteValidation(ctx, created.ID, func(v *Validation) error {
		v.Status = domain.StatusApproved
		return wantErr
	})
	if !domain.IsPermissionDenied(err) {
		t.Fatalf("expected mutator error back, got %v", err)
	}
	fetched, err := store.GetValidation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != domain.StatusPending {
		t.Fatalf("failed mutation must not persist, got %s", fetched.Status)
	}
}

func TestCompleteValidationRequiresTerminalStatus(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	created, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = store.CompleteValidation(ctx, created.ID, func(v *Validation) error { return nil })
	if !domain.IsConflict(err) {
		t.Fatalf("non-terminal mutator must be rejected, got %v", err)
	}
}

func TestCompleteValidationNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.CompleteValidation(context.Background(), "missing", approve)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestActiveRulesFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, rule := range []ValidationRule{
		{Name: "zeta", Type: domain.RuleThreshold, Active: true},
		{Name: "alpha", Type: domain.RulePattern, Active: true},
		{Name: "disabled", Type: domain.RuleML, Active: false},
	} {
		if _, err := store.PutRule(ctx, rule); err != nil {
			t.Fatalf("put rule %s: %v", rule.Name, err)
		}
	}

	active, err := store.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("active rules: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(active))
	}
	if active[0].Name != "alpha" || active[1].Name != "zeta" {
		t.Fatalf("rules not name-ordered: %s, %s", active[0].Name, active[1].Name)
	}
}

func TestAppendResultOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, msg := range []string{"first", "second", "third"} {
		if _, err := store.AppendResult(ctx, ValidationResult{AnalysisID: "an-1", Message: msg}); err != nil {
			t.Fatalf("append result: %v", err)
		}
	}
	if _, err := store.AppendResult(ctx, ValidationResult{AnalysisID: "an-other", Message: "noise"}); err != nil {
		t.Fatalf("append result: %v", err)
	}

	results, err := store.ResultsByAnalysis(ctx, "an-1")
	if err != nil {
		t.Fatalf("results by analysis: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].Message != want {
			t.Fatalf("result %d = %q, want %q", i, results[i].Message, want)
		}
	}
}

func TestQualityMetricsByAnalysis(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.AppendQualityMetric(ctx, QualityMetric{AnalysisID: "an-1", MetricName: "overall_quality_score", MetricValue: 0.9}); err != nil {
		t.Fatalf("append metric: %v", err)
	}
	metrics, err := store.QualityMetricsByAnalysis(ctx, "an-1")
	if err != nil {
		t.Fatalf("metrics by analysis: %v", err)
	}
	if len(metrics) != 1 || metrics[0].MetricName != "overall_quality_score" {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	created, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.PutRule(ctx, ValidationRule{Name: "r", Type: domain.RuleThreshold, Active: true}); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	if _, err := store.AppendResult(ctx, ValidationResult{AnalysisID: "an-1"}); err != nil {
		t.Fatalf("append result: %v", err)
	}

	restored := NewStore()
	restored.ImportState(store.ExportState())

	fetched, err := restored.GetValidation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after import: %v", err)
	}
	if fetched.AnalysisID != "an-1" {
		t.Fatalf("restored analysis id = %s", fetched.AnalysisID)
	}

	// The per-analysis index must be rebuilt by import.
	_, err = restored.CreateValidation(ctx, pendingValidation("an-1"))
	if !domain.IsConflict(err) {
		t.Fatalf("uniqueness must survive import, got %v", err)
	}

	rules, err := restored.ActiveRules(ctx)
	if err != nil || len(rules) != 1 {
		t.Fatalf("rules after import: %v, %d", err, len(rules))
	}
	results, err := restored.ResultsByAnalysis(ctx, "an-1")
	if err != nil || len(results) != 1 {
		t.Fatalf("results after import: %v, %d", err, len(results))
	}
}

func TestClonesShieldInternalState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	rating := 4.5
	created, err := store.CreateValidation(ctx, Validation{
		AnalysisID:          "an-1",
		ValidatorID:         "val-1",
		SignalQualityRating: &rating,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	*created.SignalQualityRating = 1.0

	fetched, err := store.GetValidation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.SignalQualityRating == nil || *fetched.SignalQualityRating != 4.5 {
		t.Fatalf("caller mutation leaked into store: %v", fetched.SignalQualityRating)
	}
}

func TestSetNowFunc(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	created, err := store.CreateValidation(ctx, pendingValidation("an-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.CreatedAt.Equal(fixed) {
		t.Fatalf("created at = %v, want %v", created.CreatedAt, fixed)
	}
}
