package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendTransport sends emails via the Resend API.
type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(apiKey, from string) *ResendTransport {
	return &ResendTransport{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (r *ResendTransport) Send(ctx context.Context, msg Message) (Result, error) {

	if err := validate(msg); err != nil {
		return Result{}, err
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("resend send error: %w", err)
	}

	return Result{MessageID: sent.Id}, nil
}
