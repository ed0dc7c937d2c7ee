package email

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("message has no recipient")

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Result struct {
	MessageID string
}

// Transport delivers one rendered message. A nil error means the provider
// accepted the message.
type Transport interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// ProviderConfig carries the settings used to pick the active provider.
type ProviderConfig struct {
	From string

	ResendAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	// RetryAttempts > 0 wraps the provider in WithRetry.
	RetryAttempts int
}

const (
	ProviderResend  = "resend"
	ProviderSMTP    = "smtp"
	ProviderConsole = "console"
)

// NewTransport resolves the single active provider once, in precedence order:
// Resend when an API key is set, else SMTP when a host is set, else console.
func NewTransport(cfg ProviderConfig, logger *zap.Logger) (Transport, string) {

	var (
		t    Transport
		name string
	)

	switch {
	case cfg.ResendAPIKey != "":
		t, name = NewResendTransport(cfg.ResendAPIKey, cfg.From), ProviderResend
	case cfg.SMTPHost != "":
		t, name = &SMTPTransport{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		}, ProviderSMTP
	default:
		t, name = &ConsoleTransport{Log: logger}, ProviderConsole
	}

	if cfg.RetryAttempts > 0 {
		t = WithRetry(t, cfg.RetryAttempts)
	}

	logger.Info("email provider selected",
		zap.String("provider", name),
		zap.Int("retry_attempts", cfg.RetryAttempts),
	)

	return t, name
}

func validate(msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if msg.Subject == "" && msg.HTML == "" && msg.Text == "" {
		return fmt.Errorf("message to %s is empty", msg.To)
	}
	return nil
}
