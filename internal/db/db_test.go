package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"PulseTrigger/internal/models"
)

// newTestPostgres connects to DATABASE_URL and works inside a throwaway
// schema, so the test never touches existing tables.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schemaName := fmt.Sprintf("pulsetrigger_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schemaName); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	store := &PostgresStore{Pool: pool}

	t.Cleanup(func() {
		store.Close()
		admin.Exec(context.Background(), "DROP SCHEMA "+schemaName+" CASCADE")
		admin.Close()
	})

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func pgStatus(t *testing.T, s *PostgresStore, id string) models.EmailEvent {
	t.Helper()
	evs, err := s.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, ev := range evs {
		if ev.ID == id {
			return ev
		}
	}
	t.Fatalf("event %s not found", id)
	return models.EmailEvent{}
}

// TestPostgresStore_Lifecycle tests claim, cancel and complete against a
// real database.
func TestPostgresStore_Lifecycle(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	empty, err := s.List(ctx, Filter{})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v (%v)", empty, err)
	}

	for _, ev := range []models.EmailEvent{
		event("a", "u1", models.TriggerWelcome, fixedTime),
		event("b", "u1", models.TriggerWelcome, fixedTime.Add(-time.Minute)),
		event("later", "u1", models.TriggerWelcome, fixedTime.Add(24*time.Hour)),
		event("other", "u2", models.TriggerAbandonedCart, fixedTime.Add(24*time.Hour)),
	} {
		if err := s.Insert(ctx, ev); err != nil {
			t.Fatalf("insert %s: %v", ev.ID, err)
		}
	}

	due, err := s.ClaimDue(ctx, fixedTime)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(due) != 2 || due[0].ID != "a" || due[1].ID != "b" {
		t.Fatalf("unexpected due events: %+v", due)
	}
	if due[0].TemplateID() != "t-a" {
		t.Errorf("payload not round-tripped: %+v", due[0].Payload)
	}

	n, err := s.CancelPending(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the unclaimed event cancelled, got %d", n)
	}

	sentAt := fixedTime
	if err := s.Complete(ctx, "a", Completion{Status: models.StatusSent, SentAt: &sentAt, MessageID: "m1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.Complete(ctx, "a", Completion{Status: models.StatusFailed}); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}
	if err := s.Complete(ctx, "missing", Completion{Status: models.StatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	a := pgStatus(t, s, "a")
	if a.Status != models.StatusSent || a.SentAt == nil || !a.SentAt.Equal(fixedTime) || a.MessageID != "m1" {
		t.Errorf("unexpected sent event: %+v", a)
	}
	if pgStatus(t, s, "later").Status != models.StatusCancelled {
		t.Errorf("later event not cancelled")
	}

	cart := models.TriggerAbandonedCart
	if n, _ := s.CancelPending(ctx, "u2", &cart); n != 1 {
		t.Errorf("expected typed cancel to match 1, got %d", n)
	}

	if err := s.Release(ctx, []string{"b"}); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, _ := s.ClaimDue(ctx, fixedTime)
	if len(again) != 1 || again[0].ID != "b" {
		t.Errorf("released event not reclaimed: %+v", again)
	}
}

// TestPostgresStore_RecoverClaims tests that claims left by a dead process
// are released at startup and the events become dispatchable again.
func TestPostgresStore_RecoverClaims(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	if err := s.Insert(ctx, event("a", "u1", models.TriggerWelcome, fixedTime)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if due, _ := s.ClaimDue(ctx, fixedTime); len(due) != 1 {
		t.Fatalf("expected one claimed event")
	}

	// process dies here: no Complete, no Release
	if due, _ := s.ClaimDue(ctx, fixedTime); len(due) != 0 {
		t.Fatalf("claimed event selected twice")
	}

	n, err := s.RecoverClaims(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered claim, got %d", n)
	}

	due, _ := s.ClaimDue(ctx, fixedTime)
	if len(due) != 1 || due[0].ID != "a" {
		t.Errorf("recovered event not claimable: %+v", due)
	}
}
