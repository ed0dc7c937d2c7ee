package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownTriggerType = errors.New("unknown trigger type")

type TriggerType string

const (
	TriggerWelcome               TriggerType = "welcome"
	TriggerAbandonedCart         TriggerType = "abandoned_cart"
	TriggerProductRecommendation TriggerType = "product_recommendation"
	TriggerPurchaseConfirmation  TriggerType = "purchase_confirmation"
	TriggerNewsletter            TriggerType = "newsletter"
)

// TriggerTypes lists every trigger type in a stable order.
var TriggerTypes = []TriggerType{
	TriggerWelcome,
	TriggerAbandonedCart,
	TriggerProductRecommendation,
	TriggerPurchaseConfirmation,
	TriggerNewsletter,
}

func (t TriggerType) Valid() bool {
	for _, known := range TriggerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTriggerType validates a trigger type coming from outside the process.
func ParseTriggerType(s string) (TriggerType, error) {
	t := TriggerType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTriggerType, s)
	}
	return t, nil
}

type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusSent      EventStatus = "sent"
	StatusFailed    EventStatus = "failed"
	StatusCancelled EventStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s EventStatus) Terminal() bool {
	return s != StatusPending
}

// PayloadTemplateID is the payload key linking an event to its template.
const PayloadTemplateID = "templateId"

// PayloadEmail, when present in the payload, overrides the recipient address.
const PayloadEmail = "email"

type EmailTemplate struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	TriggerType TriggerType `json:"trigger_type"`
	DelayHours  float64     `json:"delay_hours"`
}

// Delay converts DelayHours to a duration; negative values count as zero.
func (t EmailTemplate) Delay() time.Duration {
	if t.DelayHours <= 0 {
		return 0
	}
	return time.Duration(t.DelayHours * float64(time.Hour))
}

type EmailEvent struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	TriggerType TriggerType    `json:"trigger_type"`
	Payload     map[string]any `json:"payload"`

	Status      EventStatus `json:"status"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
	MessageID   string      `json:"message_id,omitempty"`
	ErrorMsg    string      `json:"error_msg,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TemplateID returns the template reference captured at trigger time.
func (e EmailEvent) TemplateID() string {
	id, _ := e.Payload[PayloadTemplateID].(string)
	return id
}

// Recipient is the payload email when set, otherwise the user id.
func (e EmailEvent) Recipient() string {
	if addr, ok := e.Payload[PayloadEmail].(string); ok && addr != "" {
		return addr
	}
	return e.UserID
}

// Clone returns a copy that shares no mutable state with e.
func (e EmailEvent) Clone() EmailEvent {
	out := e
	if e.Payload != nil {
		out.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			out.Payload[k] = v
		}
	}
	if e.SentAt != nil {
		sentAt := *e.SentAt
		out.SentAt = &sentAt
	}
	return out
}

type Stats struct {
	TotalSent      int                 `json:"total_sent"`
	TotalPending   int                 `json:"total_pending"`
	TotalFailed    int                 `json:"total_failed"`
	TotalCancelled int                 `json:"total_cancelled"`
	ByType         map[TriggerType]int `json:"by_type"`
}
