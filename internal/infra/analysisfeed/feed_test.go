package analysisfeed

import (
	"context"
	"testing"

	"clinicore/pkg/domain"
)

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	conf := 0.88
	p.Put(domain.Analysis{
		ID:              "an-1",
		ClinicalUrgency: domain.UrgencyHigh,
		AIConfidence:    &conf,
		Measurements:    map[string]float64{"heart_rate": 72},
	})

	got, err := p.GetAnalysis(ctx, "an-1")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.ClinicalUrgency != domain.UrgencyHigh {
		t.Fatalf("urgency = %s", got.ClinicalUrgency)
	}
	if v, ok := got.Measurement("heart_rate"); !ok || v != 72 {
		t.Fatalf("measurement = %v, %v", v, ok)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	p := NewProvider()
	_, err := p.GetAnalysis(context.Background(), "missing")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateValidationStatus(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	p.Put(domain.Analysis{ID: "an-1"})

	if err := p.UpdateValidationStatus(ctx, "an-1", true); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := p.GetAnalysis(ctx, "an-1")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if !got.IsValidated {
		t.Fatalf("validated flag not set")
	}

	if err := p.UpdateValidationStatus(ctx, "missing", true); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGetReturnsClone(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	p.Put(domain.Analysis{ID: "an-1", Measurements: map[string]float64{"heart_rate": 72}})

	got, err := p.GetAnalysis(ctx, "an-1")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	got.Measurements["heart_rate"] = 999

	again, err := p.GetAnalysis(ctx, "an-1")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if v, _ := again.Measurement("heart_rate"); v != 72 {
		t.Fatalf("caller mutation leaked into provider: %v", v)
	}
}
