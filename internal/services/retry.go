package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
)

// RetryPolicy bounds every provider call: a per-attempt timeout and
// exponential backoff between a small fixed number of attempts.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     32 * time.Second,
		Timeout:      60 * time.Second,
	}
}

// Backoff returns the wait before the given attempt (1-based, attempt 1 never waits).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 || p.InitialDelay <= 0 {
		return 0
	}

	delay := p.InitialDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// transientFunc reports whether a raw provider error is worth another attempt.
type transientFunc func(err error) bool

var sleepCtx = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// withRetry runs call under policy and converts the final failure into an
// *apperr.ProviderError.
func withRetry[T any](
	ctx context.Context,
	policy RetryPolicy,
	log *zap.Logger,
	provider, op string,
	transient transientFunc,
	call func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleepCtx(ctx, policy.Backoff(attempt)); err != nil {
			return zero, &apperr.ProviderError{Provider: provider, Op: op, Err: err}
		}

		attemptCtx := ctx
		cancel := func() {}
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}

		result, err := call(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, &apperr.ProviderError{Provider: provider, Op: op, Err: fmt.Errorf("context cancelled: %w", err)}
		}

		retryable := errors.Is(err, context.DeadlineExceeded) || (transient != nil && transient(err))
		if !retryable {
			return zero, &apperr.ProviderError{Provider: provider, Op: op, Err: err}
		}

		if attempt < attempts {
			log.Warn("⚠️ provider call failed, retrying",
				zap.String("provider", provider),
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	return zero, &apperr.ProviderError{
		Provider:  provider,
		Op:        op,
		Retryable: true,
		Err:       fmt.Errorf("failed after %d attempts: %w", attempts, lastErr),
	}
}

// isHTTPTransient classifies an HTTP status code returned by a provider SDK.
func isHTTPTransient(status int) bool {
	return status == 429 || status == 408 || status >= 500
}
