package email

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type retryTransport struct {
	next    Transport
	retries int
}

// WithRetry retries failed sends with exponential backoff, up to retries extra
// attempts. Validation errors are not retried.
func WithRetry(next Transport, retries int) Transport {
	return &retryTransport{next: next, retries: retries}
}

func (r *retryTransport) Send(ctx context.Context, msg Message) (Result, error) {

	var res Result

	operation := func() error {
		var err error
		res, err = r.next.Send(ctx, msg)
		if errors.Is(err, ErrNoRecipient) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.retries)), ctx))
	return res, err
}
