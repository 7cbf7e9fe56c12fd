package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times, sleeping backoff (doubled each round)
// between tries. Only errors recognised by retryable are retried; other
// errors return immediately.
func Do(ctx context.Context, attempts int, backoff time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	wait := backoff
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
