// Package resilience provides reliability patterns for vendor calls: retry
// with classification, status polling with backoff, and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/lumigen/lumigen/internal/domain"
)

// RetryConfig controls the retry policy.
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	RetryableCodes []string
	RetryableHTTP  []int
}

// DefaultRetry returns the standard vendor-call retry policy.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2,
		RetryableCodes: []string{domain.CodeTimeout, domain.CodeServer, domain.CodeRateLimit, domain.CodeNetwork},
		RetryableHTTP:  []int{429, 500, 502, 503, 504},
	}
}

// Retryable classifies an error as transient under the given config.
// Credential and validation failures are never retryable.
func Retryable(err error, cfg RetryConfig) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrValidation) {
		return false
	}

	var ve *domain.VendorError
	if errors.As(err, &ve) {
		for _, code := range cfg.RetryableCodes {
			if ve.Code == code {
				return true
			}
		}
		for _, status := range cfg.RetryableHTTP {
			if ve.HTTPStatus == status {
				return true
			}
		}
		return false
	}

	// Network-level transience: timeouts, connection resets, truncated reads.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrServer) ||
		errors.Is(err, domain.ErrRateLimited)
}

// Retry runs op up to cfg.MaxRetries+1 times, backing off exponentially with
// up to 10% jitter between attempts. Only errors classified retryable trigger
// another attempt; the final attempt's error propagates unchanged.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, jitter(delay)); err != nil {
				return zero, err
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries || !Retryable(err, cfg) {
			return zero, err
		}
	}
	return zero, lastErr
}

// jitter perturbs d by up to +10%.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
