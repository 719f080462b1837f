package notify

import (
	"context"
	"sync"

	"clinicore/pkg/domain"
)

// LogSender writes every notification to the structured log. It is the
// default channel in deployments without a pager or messaging bridge.
type LogSender struct {
	logger interface {
		Info(msg string, keysAndValues ...any)
	}
}

// NewLogSender constructs a sender that records notifications via logger.
func NewLogSender(logger interface {
	Info(msg string, keysAndValues ...any)
}) *LogSender {
	return &LogSender{logger: logger}
}

// SendValidationAssignment logs a standard assignment notification.
func (s *LogSender) SendValidationAssignment(_ context.Context, validatorID, analysisID string, urgency domain.ClinicalUrgency) error {
	s.logger.Info("validation assigned", "validator_id", validatorID, "analysis_id", analysisID, "urgency", urgency)
	return nil
}

// SendUrgentValidationAlert logs an urgent escalation alert.
func (s *LogSender) SendUrgentValidationAlert(_ context.Context, validatorID, analysisID string, urgency domain.ClinicalUrgency) error {
	s.logger.Info("urgent validation alert", "validator_id", validatorID, "analysis_id", analysisID, "urgency", urgency)
	return nil
}

// SendNoValidatorAlert logs a staffing gap for an urgent analysis.
func (s *LogSender) SendNoValidatorAlert(_ context.Context, analysisID string, urgency domain.ClinicalUrgency) error {
	s.logger.Info("no validator available", "analysis_id", analysisID, "urgency", urgency)
	return nil
}

// SendValidationComplete logs a completion notice for the requesting clinician.
func (s *LogSender) SendValidationComplete(_ context.Context, requesterID, analysisID string, status domain.ValidationStatus) error {
	s.logger.Info("validation complete", "requester_id", requesterID, "analysis_id", analysisID, "status", status)
	return nil
}

// SendCriticalRejectionAlert logs an expert rejection of a critical finding.
func (s *LogSender) SendCriticalRejectionAlert(_ context.Context, analysisID, validatorID string) error {
	s.logger.Info("critical analysis rejected", "analysis_id", analysisID, "validator_id", validatorID)
	return nil
}

// CaptureSink records published events in memory for assertions.
type CaptureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

// Publish stores the event.
func (c *CaptureSink) Publish(_ context.Context, event domain.Event) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

// Events returns a defensive copy of captured events.
func (c *CaptureSink) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByKind returns captured events of one kind.
func (c *CaptureSink) ByKind(kind domain.EventKind) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
