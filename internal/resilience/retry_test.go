package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumigen/lumigen/internal/domain"
)

func fastRetry(maxRetries int) RetryConfig {
	cfg := DefaultRetry()
	cfg.MaxRetries = maxRetries
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Fatalf("expected ok after 1 call, got %q after %d", got, calls)
	}
}

func TestRetryFatalErrorNotRetried(t *testing.T) {
	calls := 0
	fatal := &domain.VendorError{Code: domain.CodeValidation, Message: "bad prompt"}
	_, err := Retry(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	if calls != 1 {
		t.Fatalf("expected exactly 1 invocation for a fatal error, got %d", calls)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRetryTransientErrorExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := &domain.VendorError{Code: domain.CodeServer, HTTPStatus: 503, Message: "unavailable"}
	_, err := Retry(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, transient
	})
	if calls != 4 {
		t.Fatalf("expected maxRetries+1 = 4 invocations, got %d", calls)
	}
	// The final attempt's error propagates unchanged.
	var ve *domain.VendorError
	if !errors.As(err, &ve) || ve.HTTPStatus != 503 {
		t.Fatalf("expected the original vendor error, got %v", err)
	}
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &domain.VendorError{Code: domain.CodeTimeout, Message: "slow"}
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 invocations, got %d", calls)
	}
}

func TestRetryContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialDelay = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, cfg, func(context.Context) (int, error) {
		return 0, &domain.VendorError{Code: domain.CodeServer, Message: "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	cfg := DefaultRetry()
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation code", &domain.VendorError{Code: domain.CodeValidation}, false},
		{"auth code", &domain.VendorError{Code: domain.CodeAuth}, false},
		{"timeout code", &domain.VendorError{Code: domain.CodeTimeout}, true},
		{"server code", &domain.VendorError{Code: domain.CodeServer}, true},
		{"rate limit code", &domain.VendorError{Code: domain.CodeRateLimit}, true},
		{"retryable http 429", &domain.VendorError{Code: domain.CodeUnknown, HTTPStatus: 429}, true},
		{"retryable http 502", &domain.VendorError{Code: domain.CodeUnknown, HTTPStatus: 502}, true},
		{"non-retryable http 404", &domain.VendorError{Code: domain.CodeUnknown, HTTPStatus: 404}, false},
		{"bare timeout sentinel", domain.ErrTimeout, true},
		{"bare auth sentinel", domain.ErrAuth, false},
		{"plain error", errors.New("nope"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Retryable(c.err, cfg); got != c.want {
				t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestRetryDelayGrows(t *testing.T) {
	cfg := fastRetry(2)
	cfg.InitialDelay = 20 * time.Millisecond
	cfg.MaxDelay = time.Second

	var stamps []time.Time
	_, _ = Retry(context.Background(), cfg, func(context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, &domain.VendorError{Code: domain.CodeServer, Message: "boom"}
	})
	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if second <= first {
		t.Errorf("expected growing delays, got %v then %v", first, second)
	}
}
