package session

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arthurwhennig/asterix/internal/models"
)

// withRetry runs fn up to 1+retries times with exponential backoff between
// attempts. Context cancellation and ErrNotFound are permanent: a missing
// catalog object will not appear on a second try. Returns the number of
// attempts made alongside the final error.
func withRetry(ctx context.Context, clock clockwork.Clock, retries int, backoff time.Duration, fn func(ctx context.Context) error) (int, error) {
	var err error
	attempts := 0
	for try := 0; try <= retries; try++ {
		attempts++
		err = fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if errors.Is(err, models.ErrNotFound) || ctx.Err() != nil {
			return attempts, err
		}
		if try == retries {
			break
		}

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-clock.After(backoff * time.Duration(1<<try)):
		}
	}
	return attempts, err
}
