package provider

import (
	"context"
	"time"
)

// MaxRetries is the maximum number of retry attempts for transient failures.
const MaxRetries = 3

// BaseRetryDelay is the initial delay for exponential backoff.
const BaseRetryDelay = 1 * time.Second

// Backoff returns the exponential backoff delay for the given attempt,
// doubling base for each attempt: base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Sleep waits for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
