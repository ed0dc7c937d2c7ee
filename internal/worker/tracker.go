package worker

import (
	"context"

	"go.uber.org/zap"

	"PulseTrigger/internal/models"
)

// Tracker receives delivered events for analytics. Its errors never change
// the event's status.
type Tracker interface {
	TrackSent(ctx context.Context, ev models.EmailEvent) error
}

// LogTracker records deliveries in the structured log.
type LogTracker struct {
	Log *zap.Logger
}

func (t LogTracker) TrackSent(_ context.Context, ev models.EmailEvent) error {
	t.Log.Info("email_sent",
		zap.String("event_id", ev.ID),
		zap.String("user_id", ev.UserID),
		zap.String("trigger_type", string(ev.TriggerType)),
		zap.String("template_id", ev.TemplateID()),
		zap.String("message_id", ev.MessageID),
	)
	return nil
}
