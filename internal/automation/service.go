package automation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PulseTrigger/internal/clock"
	"PulseTrigger/internal/db"
	"PulseTrigger/internal/metrics"
	"PulseTrigger/internal/models"
	"PulseTrigger/internal/templates"
)

// Service is the in-process entry point used by business code: it schedules
// campaign events, cancels them and reports counts.
type Service struct {
	Store     db.Store
	Templates *templates.Registry
	Clock     clock.Clock
	Log       *zap.Logger

	// NewID generates event ids. Defaults to uuid.NewString.
	NewID func() string
}

func New(store db.Store, registry *templates.Registry, clk clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		Store:     store,
		Templates: registry,
		Clock:     clk,
		Log:       logger,
		NewID:     uuid.NewString,
	}
}

// TriggerEmail schedules one pending event per template bound to tt and
// returns the ids of the events that were stored. Repeated calls are not
// deduplicated. Errors are logged, never returned to the caller.
func (s *Service) TriggerEmail(
	ctx context.Context,
	tt models.TriggerType,
	userID string,
	payload map[string]any,
) []string {

	tpls := s.Templates.TemplatesFor(tt)
	if len(tpls) == 0 {
		s.Log.Debug("no templates bound to trigger",
			zap.String("trigger_type", string(tt)),
			zap.String("user_id", userID),
		)
		return nil
	}

	now := s.Clock.Now()
	ids := make([]string, 0, len(tpls))

	for _, tpl := range tpls {

		data := make(map[string]any, len(payload)+1)
		for k, v := range payload {
			data[k] = v
		}
		data[models.PayloadTemplateID] = tpl.ID

		ev := models.EmailEvent{
			ID:          s.NewID(),
			UserID:      userID,
			TriggerType: tt,
			Payload:     data,
			Status:      models.StatusPending,
			ScheduledAt: now.Add(tpl.Delay()),
			CreatedAt:   now,
		}

		if err := s.Store.Insert(ctx, ev); err != nil {
			s.Log.Error("failed to schedule email",
				zap.String("trigger_type", string(tt)),
				zap.String("user_id", userID),
				zap.String("template_id", tpl.ID),
				zap.Error(err),
			)
			continue
		}

		ids = append(ids, ev.ID)
	}

	metrics.EmailsTriggered.WithLabelValues(string(tt)).Add(float64(len(ids)))

	s.Log.Info("emails scheduled",
		zap.String("trigger_type", string(tt)),
		zap.String("user_id", userID),
		zap.Int("count", len(ids)),
	)

	return ids
}

// CancelEmailsForUser cancels the user's pending events, optionally limited to
// one trigger type. Events already claimed by a running dispatch cycle are
// left to finish. It returns how many events were cancelled.
func (s *Service) CancelEmailsForUser(ctx context.Context, userID string, tt *models.TriggerType) int {

	n, err := s.Store.CancelPending(ctx, userID, tt)
	if err != nil {
		s.Log.Error("failed to cancel emails",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return 0
	}

	metrics.EmailsCancelled.Add(float64(n))

	fields := []zap.Field{zap.String("user_id", userID), zap.Int("count", n)}
	if tt != nil {
		fields = append(fields, zap.String("trigger_type", string(*tt)))
	}
	s.Log.Info("emails cancelled", fields...)

	return n
}

// GetStats recomputes the counters from every stored event.
func (s *Service) GetStats(ctx context.Context) (models.Stats, error) {

	events, err := s.Store.List(ctx, db.Filter{})
	if err != nil {
		return models.Stats{}, err
	}

	return Aggregate(events), nil
}

func (s *Service) Events(ctx context.Context, f db.Filter) ([]models.EmailEvent, error) {
	return s.Store.List(ctx, f)
}

// Aggregate counts events by status and trigger type.
func Aggregate(events []models.EmailEvent) models.Stats {

	st := models.Stats{ByType: make(map[models.TriggerType]int)}

	for _, ev := range events {
		switch ev.Status {
		case models.StatusSent:
			st.TotalSent++
		case models.StatusPending:
			st.TotalPending++
		case models.StatusFailed:
			st.TotalFailed++
		case models.StatusCancelled:
			st.TotalCancelled++
		}
		st.ByType[ev.TriggerType]++
	}

	return st
}
