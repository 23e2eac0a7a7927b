package notification

import (
	"context"

	"dealerflow/internal/features/instance"

	"go.uber.org/zap"
)

// EngineEventSink turns engine events into notifications for the assignee
// (when one is known) and broadcasts every event to the websocket hub.
type EngineEventSink struct {
	Service NotificationService
	Hub     *Hub
	Logger  *zap.Logger
}

func NewEngineEventSink(service NotificationService, hub *Hub, logger *zap.Logger) *EngineEventSink {
	return &EngineEventSink{
		Service: service,
		Hub:     hub,
		Logger:  logger,
	}
}

func (s *EngineEventSink) Publish(ctx context.Context, event instance.Event) {
	if s.Hub != nil {
		s.Hub.Broadcast(event)
	}

	// Only events with a known recipient become stored notifications; the
	// rest reach subscribers through the hub alone.
	if event.Assignee == "" {
		return
	}

	n := Notification{
		UserID:  event.Assignee,
		Title:   titleFor(event.Type),
		Message: event.Message,
		Type:    typeFor(event.Type),
		Link:    "/instances/" + event.InstanceID,
	}
	if err := s.Service.Notify(ctx, n); err != nil {
		s.Logger.Error("Failed to store engine notification",
			zap.String("instance_id", event.InstanceID),
			zap.Error(err))
	}
}

func titleFor(eventType string) string {
	switch eventType {
	case instance.EventStepOpened:
		return "Step ready for work"
	case instance.EventStepAssigned:
		return "Step assigned to you"
	default:
		return "Process update"
	}
}

func typeFor(eventType string) NotificationType {
	switch eventType {
	case instance.EventStepOpened, instance.EventStepAssigned:
		return NotificationTypeWork
	case instance.EventStepRejected, instance.EventProcessOnHold:
		return NotificationTypeWarning
	default:
		return NotificationTypeInfo
	}
}
