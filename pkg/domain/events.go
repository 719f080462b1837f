package domain

import "time"

// EventKind identifies an outbound notification event.
type EventKind string

// Notification events emitted by the orchestration engine. Delivery is
// fire-and-forget relative to the primary state transition.
const (
	// EventValidationAssigned notifies a validator of a new assignment.
	EventValidationAssigned EventKind = "validation_assigned"
	// EventUrgentValidationAlert marks an escalated assignment as urgent.
	EventUrgentValidationAlert EventKind = "urgent_validation_alert"
	// EventNoValidatorAvailable reports a failed escalation search.
	EventNoValidatorAvailable EventKind = "no_validator_available"
	// EventValidationCompleted notifies the requester of a terminal review.
	EventValidationCompleted EventKind = "validation_completed"
	// EventCriticalRejection flags a rejected review of a critical analysis.
	EventCriticalRejection EventKind = "critical_rejection"
)

// Event is an outbound notification emitted by the engine and consumed by a
// delivery component with its own retry policy.
type Event struct {
	Kind         EventKind        `json:"kind"`
	AnalysisID   string           `json:"analysis_id"`
	ValidationID string           `json:"validation_id,omitempty"`
	ValidatorID  string           `json:"validator_id,omitempty"`
	RequesterID  string           `json:"requester_id,omitempty"`
	Urgency      ClinicalUrgency  `json:"urgency,omitempty"`
	Status       ValidationStatus `json:"status,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
