package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"PulseTrigger/internal/automation"
	"PulseTrigger/internal/clock"
	"PulseTrigger/internal/db"
	"PulseTrigger/internal/models"
	"PulseTrigger/internal/templates"
)

func newTestHandler(t *testing.T) (*Handler, *automation.Service) {
	t.Helper()
	log := zaptest.NewLogger(t)
	svc := automation.New(
		db.NewMemoryStore(),
		templates.Default(),
		clock.NewFake(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
		log,
	)
	return &Handler{Service: svc, Log: log}, svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTrigger(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h.Routes(), http.MethodPost, "/trigger",
		`{"trigger_type":"welcome","user_id":"user-42","payload":{"name":"Ann"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		EventIDs []string `json:"event_ids"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.EventIDs) != 2 {
		t.Errorf("expected 2 event ids, got %v", resp.EventIDs)
	}
}

func TestTrigger_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)
	routes := h.Routes()

	cases := map[string]string{
		"bad json":     `{`,
		"unknown type": `{"trigger_type":"birthday","user_id":"u1"}`,
		"no user":      `{"trigger_type":"welcome"}`,
	}
	for name, body := range cases {
		if rec := do(t, routes, http.MethodPost, "/trigger", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestTriggerBulk(t *testing.T) {
	h, svc := newTestHandler(t)

	csv := "user_id,name\nu1,Ann\nu2,Bob\n"
	rec := do(t, h.Routes(), http.MethodPost, "/trigger/bulk?trigger_type=abandoned_cart", csv)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	events, _ := svc.Events(context.Background(), db.Filter{TriggerType: models.TriggerAbandonedCart})
	if len(events) != 4 {
		t.Errorf("expected 4 cart events, got %d", len(events))
	}
	if events[0].Payload["name"] != "Ann" {
		t.Errorf("csv field not in payload: %+v", events[0].Payload)
	}

	if rec := do(t, h.Routes(), http.MethodPost, "/trigger/bulk", csv); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without trigger_type, got %d", rec.Code)
	}
}

func TestCancelAndStats(t *testing.T) {
	h, svc := newTestHandler(t)
	routes := h.Routes()
	ctx := context.Background()

	svc.TriggerEmail(ctx, models.TriggerWelcome, "u1", nil)
	svc.TriggerEmail(ctx, models.TriggerAbandonedCart, "u1", nil)

	rec := do(t, routes, http.MethodPost, "/cancel", `{"user_id":"u1","trigger_type":"abandoned_cart"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var cancel struct {
		Cancelled int `json:"cancelled"`
	}
	json.NewDecoder(rec.Body).Decode(&cancel)
	if cancel.Cancelled != 2 {
		t.Errorf("expected 2 cancelled, got %d", cancel.Cancelled)
	}

	rec = do(t, routes, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st models.Stats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalPending != 2 || st.TotalCancelled != 2 || st.ByType[models.TriggerWelcome] != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}

	if rec := do(t, routes, http.MethodPost, "/cancel", `{"user_id":"u1","trigger_type":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rec.Code)
	}
	if rec := do(t, routes, http.MethodPost, "/cancel", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user, got %d", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	h, svc := newTestHandler(t)
	routes := h.Routes()
	ctx := context.Background()

	svc.TriggerEmail(ctx, models.TriggerWelcome, "u1", nil)
	svc.TriggerEmail(ctx, models.TriggerWelcome, "u2", nil)

	rec := do(t, routes, http.MethodGet, "/events?user_id=u2&status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Events []models.EmailEvent `json:"events"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Events) != 2 || resp.Events[0].UserID != "u2" {
		t.Errorf("unexpected events: %+v", resp.Events)
	}

	if rec := do(t, routes, http.MethodGet, "/events?status=lost", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
}
