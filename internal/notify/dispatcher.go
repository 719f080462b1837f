// Package notify delivers workflow events to clinical staff channels.
// Delivery is fire-and-forget: the validation workflow publishes events and
// never blocks on, or fails because of, notification problems.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinicore/pkg/domain"
)

// Sender delivers individual notifications to an external channel (pager,
// messaging bridge, email gateway).
type Sender interface {
	SendValidationAssignment(ctx context.Context, validatorID, analysisID string, urgency domain.ClinicalUrgency) error
	SendUrgentValidationAlert(ctx context.Context, validatorID, analysisID string, urgency domain.ClinicalUrgency) error
	SendNoValidatorAlert(ctx context.Context, analysisID string, urgency domain.ClinicalUrgency) error
	SendValidationComplete(ctx context.Context, requesterID, analysisID string, status domain.ValidationStatus) error
	SendCriticalRejectionAlert(ctx context.Context, analysisID, validatorID string) error
}

// Logger is the minimal logging surface the dispatcher needs.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Compile-time contract assertion ensuring the dispatcher satisfies the event sink port.
var _ domain.EventSink = (*Dispatcher)(nil)

const (
	queueCapacity  = 64
	maxAttempts    = 3
	initialBackoff = 100 * time.Millisecond
)

// Dispatcher consumes workflow events asynchronously and fans them out to a
// Sender with bounded retry. A full queue drops the event with a log entry
// rather than blocking the workflow.
type Dispatcher struct {
	sender Sender
	logger Logger

	queue chan domain.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher constructs a dispatcher delivering through sender. A nil
// logger disables dispatcher logging.
func NewDispatcher(sender Sender, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan domain.Event, queueCapacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing queued events.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.loop()
}

// Stop signals the dispatcher to halt and waits for completion.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish enqueues a workflow event for asynchronous delivery. It never
// blocks; events that do not fit the queue are dropped and logged.
func (d *Dispatcher) Publish(_ context.Context, event domain.Event) error {
	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("notification queue full, dropping event",
			"kind", event.Kind, "analysis_id", event.AnalysisID)
		return nil
	}
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case event := <-d.queue:
			d.deliverWithRetry(event)
		}
	}
}

func (d *Dispatcher) deliverWithRetry(event domain.Event) {
	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.deliver(event)
		if lastErr == nil {
			return
		}
		d.logger.Warn("notification delivery failed",
			"kind", event.Kind, "analysis_id", event.AnalysisID,
			"attempt", attempt, "error", lastErr)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	d.logger.Error("notification delivery abandoned",
		"kind", event.Kind, "analysis_id", event.AnalysisID, "error", lastErr)
}

func (d *Dispatcher) deliver(event domain.Event) error {
	switch event.Kind {
	case domain.EventValidationAssigned:
		return d.sender.SendValidationAssignment(d.ctx, event.ValidatorID, event.AnalysisID, event.Urgency)
	case domain.EventUrgentValidationAlert:
		return d.sender.SendUrgentValidationAlert(d.ctx, event.ValidatorID, event.AnalysisID, event.Urgency)
	case domain.EventNoValidatorAvailable:
		return d.sender.SendNoValidatorAlert(d.ctx, event.AnalysisID, event.Urgency)
	case domain.EventValidationCompleted:
		return d.sender.SendValidationComplete(d.ctx, event.RequesterID, event.AnalysisID, event.Status)
	case domain.EventCriticalRejection:
		return d.sender.SendCriticalRejectionAlert(d.ctx, event.AnalysisID, event.ValidatorID)
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
}
