package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"PulseTrigger/internal/models"
)

// Render builds a message from a template and the event payload.
// The subject is plain text, the body is HTML-escaped.
func Render(tpl models.EmailTemplate, to string, data map[string]any) (Message, error) {

	subject, err := texttemplate.New(tpl.ID + ":subject").Parse(tpl.Subject)
	if err != nil {
		return Message{}, fmt.Errorf("template parse error: %w", err)
	}

	body, err := htmltemplate.New(tpl.ID + ":body").Parse(tpl.Body)
	if err != nil {
		return Message{}, fmt.Errorf("template parse error: %w", err)
	}

	var subj, html bytes.Buffer

	// Execute templates with dynamic data
	if err := subject.Execute(&subj, data); err != nil {
		return Message{}, fmt.Errorf("template execution error: %w", err)
	}
	if err := body.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("template execution error: %w", err)
	}

	return Message{
		To:      to,
		Subject: subj.String(),
		HTML:    html.String(),
	}, nil
}

// SMTPTransport sends through an SMTP relay.
type SMTPTransport struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (s *SMTPTransport) Send(ctx context.Context, msg Message) (Result, error) {

	if err := validate(msg); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.Host)

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	if err := d.DialAndSend(m); err != nil {
		return Result{}, fmt.Errorf("smtp send error: %w", err)
	}

	return Result{MessageID: id}, nil
}
