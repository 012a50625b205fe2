package images

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// ErrRetriesExhausted marks a batch that kept failing transiently.
var ErrRetriesExhausted = errors.New("image lookup retries exhausted")

// RetryPolicy bounds how often a batch is re-sent.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Attempts returns the total number of requests a batch may issue.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// IsTransient reports whether a lookup error is worth retrying: timeouts,
// transport failures, 5xx, 408 and 429. Other 4xx responses, undecodable
// bodies and cancellation are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code >= 500:
			return true
		case statusErr.Code == http.StatusRequestTimeout, statusErr.Code == http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleepWithContext blocks for d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
