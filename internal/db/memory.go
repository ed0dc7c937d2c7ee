package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PulseTrigger/internal/models"
)

type memRecord struct {
	ev      models.EmailEvent
	claimed bool
}

// MemoryStore keeps events in process memory, in insertion order.
// Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records []*memRecord
	byID    map[string]*memRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*memRecord)}
}

func (s *MemoryStore) Insert(_ context.Context, ev models.EmailEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[ev.ID]; exists {
		return fmt.Errorf("insert event %s: duplicate id", ev.ID)
	}
	rec := &memRecord{ev: ev.Clone()}
	s.records = append(s.records, rec)
	s.byID[ev.ID] = rec
	return nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time) ([]models.EmailEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.EmailEvent
	for _, rec := range s.records {
		if rec.claimed || rec.ev.Status != models.StatusPending || rec.ev.ScheduledAt.After(now) {
			continue
		}
		rec.claimed = true
		due = append(due, rec.ev.Clone())
	}
	return due, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, res Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if rec.ev.Status.Terminal() {
		return ErrNotPending
	}
	if !res.Status.Terminal() {
		return fmt.Errorf("complete event %s: status %q is not terminal", id, res.Status)
	}

	rec.claimed = false
	rec.ev.Status = res.Status
	rec.ev.MessageID = res.MessageID
	rec.ev.ErrorMsg = res.ErrorMsg
	if res.SentAt != nil {
		sentAt := *res.SentAt
		rec.ev.SentAt = &sentAt
	}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if rec, ok := s.byID[id]; ok {
			rec.claimed = false
		}
	}
	return nil
}

func (s *MemoryStore) CancelPending(_ context.Context, userID string, tt *models.TriggerType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.records {
		if rec.claimed || rec.ev.Status != models.StatusPending || rec.ev.UserID != userID {
			continue
		}
		if tt != nil && rec.ev.TriggerType != *tt {
			continue
		}
		rec.ev.Status = models.StatusCancelled
		n++
	}
	return n, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]models.EmailEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EmailEvent, 0, len(s.records))
	for _, rec := range s.records {
		if f.match(rec.ev) {
			out = append(out, rec.ev.Clone())
		}
	}
	return out, nil
}
