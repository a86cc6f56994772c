package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Policy is an explicit retry schedule applied at the call site of an
// external dependency. Wait doubles per attempt, capped at MaxWait.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		InitialWait: time.Second,
		MaxWait:     10 * time.Second,
	}
}

// StatusError carries a non-2xx HTTP status so Retryable can distinguish
// server-side trouble (retry) from client errors (give up).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Retryable reports whether the error is transient: HTTP 5xx/429, network
// timeouts, and connection-level syscall failures. Everything else is final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	return false
}

// Do runs fn under the policy, sleeping between attempts and honouring ctx
// cancellation during the wait. Non-retryable errors fail immediately.
func Do[T any](ctx context.Context, p Policy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	wait := p.InitialWait
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		if attempt == p.MaxAttempts {
			break
		}

		slog.Debug("retrying operation", "operation", name, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > p.MaxWait {
			wait = p.MaxWait
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, p.MaxAttempts, lastErr)
}
