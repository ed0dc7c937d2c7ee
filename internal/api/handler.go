package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"PulseTrigger/internal/automation"
	"PulseTrigger/internal/csvparser"
	"PulseTrigger/internal/db"
	"PulseTrigger/internal/models"
)

const maxBulkRows = 5000

type Handler struct {
	Service *automation.Service
	Log     *zap.Logger
}

type triggerRequest struct {
	TriggerType string         `json:"trigger_type"`
	UserID      string         `json:"user_id"`
	Payload     map[string]any `json:"payload"`
}

type cancelRequest struct {
	UserID      string `json:"user_id"`
	TriggerType string `json:"trigger_type,omitempty"`
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger", h.Trigger)
	mux.HandleFunc("POST /trigger/bulk", h.TriggerBulk)
	mux.HandleFunc("POST /cancel", h.Cancel)
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("GET /events", h.Events)
	return mux
}

func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tt, err := models.ParseTriggerType(req.TriggerType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	ids := h.Service.TriggerEmail(r.Context(), tt, req.UserID, req.Payload)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"event_ids": ids,
	})
}

// TriggerBulk fires one trigger per CSV row. The body is a CSV with a
// user_id column; other columns become payload fields.
func (h *Handler) TriggerBulk(w http.ResponseWriter, r *http.Request) {

	tt, err := models.ParseTriggerType(r.URL.Query().Get("trigger_type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := csvparser.ParseTriggerRows(r.Body, maxBulkRows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scheduled := 0
	for _, row := range rows {
		scheduled += len(h.Service.TriggerEmail(r.Context(), tt, row.UserID, row.Payload()))
	}

	h.Log.Info("bulk trigger accepted",
		zap.String("trigger_type", string(tt)),
		zap.Int("users", len(rows)),
		zap.Int("events", scheduled),
	)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"users":  len(rows),
		"events": scheduled,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	var tt *models.TriggerType
	if req.TriggerType != "" {
		parsed, err := models.ParseTriggerType(req.TriggerType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tt = &parsed
	}

	n := h.Service.CancelEmailsForUser(r.Context(), req.UserID, tt)

	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": n,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.GetStats(r.Context())
	if err != nil {
		h.Log.Error("stats failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := db.Filter{
		UserID: q.Get("user_id"),
		Status: models.EventStatus(q.Get("status")),
	}
	if v := q.Get("trigger_type"); v != "" {
		tt, err := models.ParseTriggerType(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.TriggerType = tt
	}
	switch f.Status {
	case "", models.StatusPending, models.StatusSent, models.StatusFailed, models.StatusCancelled:
	default:
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}

	events, err := h.Service.Events(r.Context(), f)
	if err != nil {
		h.Log.Error("list events failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
