package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy reintentos con backoff exponencial acotado.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy valores por defecto para contención.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 50 * time.Millisecond, MaxInterval: 2 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// retry ejecuta op hasta MaxAttempts veces mientras el error sea reintentable.
// Si se agotan los intentos devuelve exhausted envolviendo la última causa.
func retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, exhausted error,
	onRetry func(err error, wait time.Duration), op func() error) error {
	err := backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), onRetry)
	if err != nil && retryable(err) {
		return fmt.Errorf("%w: %w", exhausted, err)
	}
	return err
}
