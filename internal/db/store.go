package db

import (
	"context"
	"errors"
	"time"

	"PulseTrigger/internal/models"
)

var (
	ErrNotFound   = errors.New("event not found")
	ErrNotPending = errors.New("event is not pending")
)

// Store holds scheduled email events.
//
// ClaimDue is the dispatcher's atomic select step: the returned events stay
// pending but are hidden from CancelPending until Complete or Release.
type Store interface {
	Insert(ctx context.Context, ev models.EmailEvent) error
	ClaimDue(ctx context.Context, now time.Time) ([]models.EmailEvent, error)
	Complete(ctx context.Context, id string, res Completion) error
	Release(ctx context.Context, ids []string) error
	CancelPending(ctx context.Context, userID string, tt *models.TriggerType) (int, error)
	List(ctx context.Context, f Filter) ([]models.EmailEvent, error)
}

// Completion is the terminal outcome the dispatcher writes back.
type Completion struct {
	Status    models.EventStatus
	SentAt    *time.Time
	MessageID string
	ErrorMsg  string
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	UserID      string
	TriggerType models.TriggerType
	Status      models.EventStatus
}

func (f Filter) match(ev models.EmailEvent) bool {
	if f.UserID != "" && ev.UserID != f.UserID {
		return false
	}
	if f.TriggerType != "" && ev.TriggerType != f.TriggerType {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	return true
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
