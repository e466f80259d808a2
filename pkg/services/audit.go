package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/lexflow/pkg/eventbus"
	"github.com/dukex/lexflow/pkg/events"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence"
)

// AuditRecorder writes every flow lifecycle event to the audit log.
type AuditRecorder struct {
	logger *slog.Logger
	repo   persistence.AuditRepository
}

func NewAuditRecorder(repo persistence.AuditRepository, opts ...Option) *AuditRecorder {
	o := applyOptions("audit_recorder", opts)

	return &AuditRecorder{logger: o.logger, repo: repo}
}

// Register subscribes the recorder to all flow events.
func (a *AuditRecorder) Register(subscriber eventbus.EventSubscriber) error {
	for _, eventType := range []events.EventType{
		events.FlowOpenedEvent,
		events.FlowStepChangedEvent,
		events.FlowSubmittedEvent,
		events.FlowCompletedEvent,
		events.FlowFailedEvent,
		events.FlowClosedEvent,
	} {
		if err := subscriber.Handle(eventType, a.Record); err != nil {
			return fmt.Errorf("failed to handle %s: %w", eventType, err)
		}
	}

	return nil
}

// Record stores one event. Events are keyed by their id, so redelivery is harmless.
func (a *AuditRecorder) Record(ctx context.Context, event any) error {
	flowEvent, ok := event.(events.FlowEvent)
	if !ok {
		return fmt.Errorf("%w: unexpected event %T", ErrInvalidRequest, event)
	}

	base := flowEvent.GetBase()
	entry := &models.AuditLog{
		ID:        base.ID,
		FlowID:    base.FlowID,
		SessionID: base.SessionID,
		FlowKind:  base.FlowKind,
		Action:    models.AuditAction(flowEvent.GetType()),
		Detail:    auditDetail(flowEvent),
		CreatedAt: base.Timestamp,
	}

	if err := a.repo.Record(ctx, entry); err != nil {
		a.logger.ErrorContext(ctx, "Failed to record audit log", "flow_id", base.FlowID, "action", entry.Action, "error", err)

		return err
	}

	return nil
}

// auditDetail keeps the event's navigation facts. Payloads and results stay
// out of the audit log.
func auditDetail(event events.FlowEvent) map[string]any {
	switch e := event.(type) {
	case *events.FlowOpened:
		return map[string]any{"total_steps": e.TotalSteps}
	case *events.FlowStepChanged:
		return map[string]any{"from": e.From, "to": e.To, "transition": e.Transition}
	case *events.FlowSubmitted:
		return map[string]any{"step_index": e.StepIndex, "endpoint": e.Endpoint, "generation": e.Generation}
	case *events.FlowFailed:
		return map[string]any{"step_index": e.StepIndex, "error": e.Error, "policy": string(e.Policy)}
	case *events.FlowClosed:
		return map[string]any{"reason": e.Reason}
	default:
		return nil
	}
}
