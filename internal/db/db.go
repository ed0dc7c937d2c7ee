package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"PulseTrigger/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS email_events (
	seq          BIGSERIAL PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	user_id      TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	payload      JSONB NOT NULL DEFAULT '{}'::jsonb,
	status       TEXT NOT NULL,
	claimed      BOOLEAN NOT NULL DEFAULT FALSE,
	scheduled_at TIMESTAMPTZ NOT NULL,
	sent_at      TIMESTAMPTZ,
	message_id   TEXT NOT NULL DEFAULT '',
	error_msg    TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS email_events_due_idx ON email_events (status, scheduled_at);
CREATE INDEX IF NOT EXISTS email_events_user_idx ON email_events (user_id);
`

const eventColumns = `seq, id, user_id, trigger_type, payload, status, scheduled_at, sent_at, message_id, error_msg, created_at`

// PostgresStore is the optional durable Store, selected with STORE_DRIVER=postgres.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, conn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, err
	}

	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

// Migrate creates the events table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

// RecoverClaims releases claims left behind by a process that died mid-cycle.
// Call it at startup, before the dispatcher runs: it assumes one dispatcher
// per database.
func (s *PostgresStore) RecoverClaims(ctx context.Context) (int, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_events SET claimed=FALSE WHERE status=$1 AND claimed`,
		string(models.StatusPending),
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Insert(ctx context.Context, ev models.EmailEvent) error {

	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO email_events
		 (id, user_id, trigger_type, payload, status, scheduled_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ev.ID,
		ev.UserID,
		string(ev.TriggerType),
		payloadJSON,
		string(models.StatusPending),
		ev.ScheduledAt,
		ev.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ClaimDue(ctx context.Context, now time.Time) ([]models.EmailEvent, error) {

	rows, err := s.Pool.Query(ctx,
		`UPDATE email_events
		 SET claimed = TRUE
		 WHERE seq IN (
		   SELECT seq FROM email_events
		   WHERE status = $1 AND NOT claimed AND scheduled_at <= $2
		   ORDER BY seq
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+eventColumns,
		string(models.StatusPending),
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type seqEvent struct {
		seq int64
		ev  models.EmailEvent
	}
	var claimed []seqEvent
	for rows.Next() {
		seq, ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, seqEvent{seq: seq, ev: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].seq < claimed[j].seq })

	out := make([]models.EmailEvent, len(claimed))
	for i, c := range claimed {
		out[i] = c.ev
	}
	return out, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, res Completion) error {

	if !res.Status.Terminal() {
		return fmt.Errorf("complete event %s: status %q is not terminal", id, res.Status)
	}

	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_events
		 SET status=$2,
		     sent_at=COALESCE($3, sent_at),
		     message_id=$4,
		     error_msg=$5,
		     claimed=FALSE
		 WHERE id=$1 AND status=$6`,
		id,
		string(res.Status),
		res.SentAt,
		res.MessageID,
		res.ErrorMsg,
		string(models.StatusPending),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM email_events WHERE id=$1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

func (s *PostgresStore) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.Pool.Exec(ctx,
		`UPDATE email_events SET claimed=FALSE WHERE id = ANY($1)`,
		ids,
	)
	return err
}

func (s *PostgresStore) CancelPending(ctx context.Context, userID string, tt *models.TriggerType) (int, error) {

	var typeArg *string
	if tt != nil {
		v := string(*tt)
		typeArg = &v
	}

	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_events
		 SET status=$1
		 WHERE user_id=$2
		   AND status=$3
		   AND NOT claimed
		   AND ($4::text IS NULL OR trigger_type=$4)`,
		string(models.StatusCancelled),
		userID,
		string(models.StatusPending),
		typeArg,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]models.EmailEvent, error) {

	rows, err := s.Pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM email_events
		 WHERE ($1 = '' OR user_id=$1)
		   AND ($2 = '' OR trigger_type=$2)
		   AND ($3 = '' OR status=$3)
		 ORDER BY seq`,
		f.UserID,
		string(f.TriggerType),
		string(f.Status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.EmailEvent, 0)
	for rows.Next() {
		_, ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (int64, models.EmailEvent, error) {
	var (
		seq         int64
		ev          models.EmailEvent
		triggerType string
		status      string
		payloadJSON []byte
	)
	if err := row.Scan(
		&seq,
		&ev.ID,
		&ev.UserID,
		&triggerType,
		&payloadJSON,
		&status,
		&ev.ScheduledAt,
		&ev.SentAt,
		&ev.MessageID,
		&ev.ErrorMsg,
		&ev.CreatedAt,
	); err != nil {
		return 0, ev, err
	}

	ev.TriggerType = models.TriggerType(triggerType)
	ev.Status = models.EventStatus(status)
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil {
			return 0, ev, fmt.Errorf("decode payload of %s: %w", ev.ID, err)
		}
	}
	return seq, ev, nil
}
