package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrPollTimeout is returned when a poll exhausts its attempts without the
// remote job reaching a terminal state. It is distinct from a remote failure.
var ErrPollTimeout = errors.New("polling timed out")

// PollConfig controls the polling schedule.
type PollConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPoll is the general-purpose schedule: 60 attempts starting at 2s,
// growing 1.5x up to 30s.
func DefaultPoll() PollConfig {
	return PollConfig{MaxAttempts: 60, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 1.5}
}

// ShortPoll suits fast status checks.
func ShortPoll() PollConfig {
	return PollConfig{MaxAttempts: 20, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 1.3}
}

// LongPoll suits multi-minute generation jobs.
func LongPoll() PollConfig {
	return PollConfig{MaxAttempts: 120, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 1.5}
}

// Poller drives an asynchronous remote job to completion. Check fetches the
// current status, Done reports completion, Failed (optional) reports a
// terminal failure from the status, and Extract pulls the final result.
type Poller[S, R any] struct {
	Check   func(context.Context) (S, error)
	Done    func(S) bool
	Failed  func(S) error
	Extract func(S) (R, error)
}

// Run polls until Done, a terminal failure, context cancellation, or attempt
// exhaustion. Delays grow multiplicatively, are clamped at MaxDelay, and get
// ±10% jitter so concurrent pollers do not synchronize. An Extract failure is
// wrapped as a polling failure, not passed through raw.
func (p Poller[S, R]) Run(ctx context.Context, cfg PollConfig) (R, error) {
	var zero R
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 2 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 1.5
	}

	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		status, err := p.Check(ctx)
		if err != nil {
			return zero, fmt.Errorf("status check (attempt %d): %w", attempt, err)
		}

		if p.Done(status) {
			result, err := p.Extract(status)
			if err != nil {
				return zero, fmt.Errorf("extract result: %w", err)
			}
			return result, nil
		}

		if p.Failed != nil {
			if err := p.Failed(status); err != nil {
				return zero, err
			}
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		if err := sleep(ctx, pollJitter(delay)); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return zero, fmt.Errorf("%w after %d attempts", ErrPollTimeout, cfg.MaxAttempts)
}

// pollJitter perturbs d by ±10%.
func pollJitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + rand.Float64()*0.2))
}
