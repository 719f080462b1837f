package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinicore/pkg/domain"
)

type recordingSender struct {
	mu        sync.Mutex
	delivered []string
	failures  map[string]int // message key -> remaining failures
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failures: make(map[string]int)}
}

func (s *recordingSender) record(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[key] > 0 {
		s.failures[key]--
		return fmt.Errorf("delivery of %s failed", key)
	}
	s.delivered = append(s.delivered, key)
	return nil
}

func (s *recordingSender) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	copy(out, s.delivered)
	return out
}

func (s *recordingSender) SendValidationAssignment(_ context.Context, validatorID, analysisID string, _ domain.ClinicalUrgency) error {
	return s.record("assign:" + validatorID + ":" + analysisID)
}

func (s *recordingSender) SendUrgentValidationAlert(_ context.Context, validatorID, analysisID string, _ domain.ClinicalUrgency) error {
	return s.record("urgent:" + validatorID + ":" + analysisID)
}

func (s *recordingSender) SendNoValidatorAlert(_ context.Context, analysisID string, _ domain.ClinicalUrgency) error {
	return s.record("novalidator:" + analysisID)
}

func (s *recordingSender) SendValidationComplete(_ context.Context, requesterID, analysisID string, status domain.ValidationStatus) error {
	return s.record("complete:" + requesterID + ":" + analysisID + ":" + string(status))
}

func (s *recordingSender) SendCriticalRejectionAlert(_ context.Context, analysisID, validatorID string) error {
	return s.record("rejection:" + analysisID + ":" + validatorID)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sender := newRecordingSender()
	d := NewDispatcher(sender, nil)
	d.Start()
	defer func() { _ = d.Stop(context.Background()) }()

	ctx := context.Background()
	events := []domain.Event{
		{Kind: domain.EventValidationAssigned, ValidatorID: "val-1", AnalysisID: "an-1", Urgency: domain.UrgencyNormal},
		{Kind: domain.EventUrgentValidationAlert, ValidatorID: "val-2", AnalysisID: "an-2", Urgency: domain.UrgencyCritical},
		{Kind: domain.EventNoValidatorAvailable, AnalysisID: "an-3", Urgency: domain.UrgencyCritical},
		{Kind: domain.EventValidationCompleted, RequesterID: "dr-1", AnalysisID: "an-4", Status: domain.StatusApproved},
		{Kind: domain.EventCriticalRejection, AnalysisID: "an-5", ValidatorID: "val-3"},
	}
	for _, e := range events {
		if err := d.Publish(ctx, e); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	waitFor(t, func() bool { return len(sender.snapshot()) == len(events) })
	got := sender.snapshot()
	want := map[string]bool{
		"assign:val-1:an-1":           true,
		"urgent:val-2:an-2":           true,
		"novalidator:an-3":            true,
		"complete:dr-1:an-4:approved": true,
		"rejection:an-5:val-3":        true,
	}
	for _, key := range got {
		if !want[key] {
			t.Fatalf("unexpected delivery %q", key)
		}
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	sender := newRecordingSender()
	sender.failures["assign:val-1:an-1"] = 2
	d := NewDispatcher(sender, nil)
	d.Start()
	defer func() { _ = d.Stop(context.Background()) }()

	if err := d.Publish(context.Background(), domain.Event{
		Kind: domain.EventValidationAssigned, ValidatorID: "val-1", AnalysisID: "an-1",
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sender.snapshot()) == 1 })
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	sender := newRecordingSender()
	sender.failures["assign:val-1:an-1"] = 100
	d := NewDispatcher(sender, nil)
	d.Start()

	if err := d.Publish(context.Background(), domain.Event{
		Kind: domain.EventValidationAssigned, ValidatorID: "val-1", AnalysisID: "an-1",
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if n := len(sender.snapshot()); n != 0 {
		t.Fatalf("abandoned event must not be delivered, got %d", n)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	sender := newRecordingSender()
	d := NewDispatcher(sender, nil)
	// Not started: the queue fills and overflow is dropped.
	ctx := context.Background()
	for i := 0; i < queueCapacity+10; i++ {
		if err := d.Publish(ctx, domain.Event{Kind: domain.EventValidationAssigned, AnalysisID: "an"}); err != nil {
			t.Fatalf("publish must not fail on overflow: %v", err)
		}
	}
}

func TestStopHonorsContext(t *testing.T) {
	d := NewDispatcher(newRecordingSender(), nil)
	d.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestCaptureSink(t *testing.T) {
	sink := &CaptureSink{}
	ctx := context.Background()
	_ = sink.Publish(ctx, domain.Event{Kind: domain.EventValidationAssigned, AnalysisID: "an-1"})
	_ = sink.Publish(ctx, domain.Event{Kind: domain.EventCriticalRejection, AnalysisID: "an-2"})

	if len(sink.Events()) != 2 {
		t.Fatalf("expected 2 captured events")
	}
	rejects := sink.ByKind(domain.EventCriticalRejection)
	if len(rejects) != 1 || rejects[0].AnalysisID != "an-2" {
		t.Fatalf("unexpected filtered events %+v", rejects)
	}
}
