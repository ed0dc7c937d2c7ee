package email

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsoleTransport logs messages instead of delivering them. It is the
// fallback when no provider is configured.
type ConsoleTransport struct {
	Log *zap.Logger
}

func (c *ConsoleTransport) Send(_ context.Context, msg Message) (Result, error) {

	if err := validate(msg); err != nil {
		return Result{}, err
	}

	id := "console-" + uuid.NewString()

	c.Log.Info("email (console provider)",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)

	return Result{MessageID: id}, nil
}
