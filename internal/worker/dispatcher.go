package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"PulseTrigger/internal/clock"
	"PulseTrigger/internal/db"
	"PulseTrigger/internal/email"
	"PulseTrigger/internal/metrics"
	"PulseTrigger/internal/models"
	"PulseTrigger/internal/templates"
)

const DefaultInterval = 30 * time.Second

// Dispatcher periodically sends due events. Cycles never overlap and events
// inside a cycle are sent one at a time, in insertion order.
type Dispatcher struct {
	Store     db.Store
	Templates *templates.Registry
	Transport email.Transport
	Tracker   Tracker
	Limiter   *rate.Limiter // nil means unlimited
	Clock     clock.Clock
	Interval  time.Duration
	Log       *zap.Logger

	cycleMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// CycleReport summarises one dispatch cycle.
type CycleReport struct {
	Claimed  int
	Sent     int
	Failed   int
	Released int
}

// Start runs the dispatch loop in the background until Stop is called or ctx
// is cancelled. Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done != nil {
		return
	}

	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		d.Log.Info("dispatch loop started", zap.Duration("interval", interval))

		for {
			select {

			case <-ctx.Done():
				d.Log.Info("dispatch loop shutting down")
				return

			case <-ticker.C:
				d.RunCycle(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunCycle claims every due pending event and attempts delivery of each.
// If ctx ends mid-cycle, unattempted events are released back to pending.
func (d *Dispatcher) RunCycle(ctx context.Context) CycleReport {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
	}()

	var report CycleReport

	now := d.Clock.Now()

	due, err := d.Store.ClaimDue(ctx, now)
	if err != nil {
		d.Log.Error("failed to claim due events", zap.Error(err))
		return report
	}
	report.Claimed = len(due)

	for i, ev := range due {

		if ctx.Err() != nil {
			report.Released = d.release(due[i:])
			break
		}

		// ----------------------------
		// Rate Limit
		// ----------------------------
		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				d.Log.Warn("rate limiter stopped by context", zap.Error(err))
				report.Released = d.release(due[i:])
				break
			}
		}

		if d.dispatch(ctx, ev, now) == models.StatusSent {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	if report.Claimed > 0 {
		d.Log.Info("dispatch cycle complete",
			zap.Int("claimed", report.Claimed),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("released", report.Released),
		)
	}

	return report
}

func (d *Dispatcher) dispatch(ctx context.Context, ev models.EmailEvent, now time.Time) models.EventStatus {

	// ----------------------------
	// Resolve Template
	// ----------------------------
	tpl, ok := d.Templates.Lookup(ev.TemplateID())
	if !ok {
		err := fmt.Errorf("template %q not found", ev.TemplateID())
		return d.fail(ctx, ev, metrics.ReasonTemplateMissing, err)
	}

	msg, err := email.Render(tpl, ev.Recipient(), ev.Payload)
	if err != nil {
		return d.fail(ctx, ev, metrics.ReasonRender, err)
	}

	// ----------------------------
	// Send Email
	// ----------------------------
	// a started send outlives Stop; only unattempted events are released
	res, err := d.Transport.Send(context.WithoutCancel(ctx), msg)
	if err != nil {
		return d.fail(ctx, ev, metrics.ReasonTransport, err)
	}

	// ----------------------------
	// Mark as Sent
	// ----------------------------
	sentAt := now
	if err := d.Store.Complete(context.WithoutCancel(ctx), ev.ID, db.Completion{
		Status:    models.StatusSent,
		SentAt:    &sentAt,
		MessageID: res.MessageID,
	}); err != nil {
		d.Log.Error("failed to update sent status",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}

	metrics.EmailsSent.WithLabelValues(string(ev.TriggerType)).Inc()

	ev.Status = models.StatusSent
	ev.SentAt = &sentAt
	ev.MessageID = res.MessageID

	if d.Tracker != nil {
		if err := d.Tracker.TrackSent(ctx, ev); err != nil {
			d.Log.Warn("analytics tracking failed",
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
		}
	}

	return models.StatusSent
}

func (d *Dispatcher) fail(ctx context.Context, ev models.EmailEvent, reason string, cause error) models.EventStatus {

	d.Log.Error("email send failed",
		zap.String("event_id", ev.ID),
		zap.String("user_id", ev.UserID),
		zap.String("template_id", ev.TemplateID()),
		zap.String("reason", reason),
		zap.Error(cause),
	)

	if err := d.Store.Complete(context.WithoutCancel(ctx), ev.ID, db.Completion{
		Status:   models.StatusFailed,
		ErrorMsg: cause.Error(),
	}); err != nil {
		d.Log.Error("failed to update failure status",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}

	metrics.EmailFailures.WithLabelValues(string(ev.TriggerType), reason).Inc()

	return models.StatusFailed
}

func (d *Dispatcher) release(events []models.EmailEvent) int {

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}

	// ctx is already done here
	if err := d.Store.Release(context.Background(), ids); err != nil {
		d.Log.Error("failed to release claimed events",
			zap.Int("count", len(ids)),
			zap.Error(err),
		)
	}

	return len(ids)
}
