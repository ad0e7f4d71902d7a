package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeStatus struct {
	state  string
	result string
}

func fastPoll(maxAttempts int) PollConfig {
	return PollConfig{MaxAttempts: maxAttempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 1.5}
}

func sequencePoller(states ...fakeStatus) Poller[fakeStatus, string] {
	i := 0
	return Poller[fakeStatus, string]{
		Check: func(context.Context) (fakeStatus, error) {
			s := states[i]
			if i < len(states)-1 {
				i++
			}
			return s, nil
		},
		Done: func(s fakeStatus) bool { return s.state == "completed" },
		Failed: func(s fakeStatus) error {
			if s.state == "failed" {
				return errors.New("remote reported failure")
			}
			return nil
		},
		Extract: func(s fakeStatus) (string, error) { return s.result, nil },
	}
}

func TestPollCompletesOnThirdCheck(t *testing.T) {
	p := sequencePoller(
		fakeStatus{state: "processing"},
		fakeStatus{state: "processing"},
		fakeStatus{state: "completed", result: "done"},
	)
	got, err := p.Run(context.Background(), fastPoll(10))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "done" {
		t.Fatalf("expected %q, got %q", "done", got)
	}
}

func TestPollTimeoutDistinctFromFailure(t *testing.T) {
	p := sequencePoller(fakeStatus{state: "processing"})
	_, err := p.Run(context.Background(), fastPoll(3))
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}

func TestPollRemoteFailureImmediate(t *testing.T) {
	checks := 0
	p := Poller[fakeStatus, string]{
		Check: func(context.Context) (fakeStatus, error) {
			checks++
			return fakeStatus{state: "failed"}, nil
		},
		Done:    func(s fakeStatus) bool { return s.state == "completed" },
		Failed:  func(fakeStatus) error { return errors.New("job failed upstream") },
		Extract: func(s fakeStatus) (string, error) { return s.result, nil },
	}
	_, err := p.Run(context.Background(), fastPoll(10))
	if err == nil || errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected immediate remote failure, got %v", err)
	}
	if checks != 1 {
		t.Fatalf("expected 1 check before failing, got %d", checks)
	}
}

func TestPollExtractFailureWrapped(t *testing.T) {
	p := Poller[fakeStatus, string]{
		Check:   func(context.Context) (fakeStatus, error) { return fakeStatus{state: "completed"}, nil },
		Done:    func(fakeStatus) bool { return true },
		Extract: func(fakeStatus) (string, error) { return "", errors.New("missing output url") },
	}
	_, err := p.Run(context.Background(), fastPoll(5))
	if err == nil || !strings.Contains(err.Error(), "extract result") {
		t.Fatalf("expected wrapped extraction failure, got %v", err)
	}
}

func TestPollCheckErrorPropagates(t *testing.T) {
	p := Poller[fakeStatus, string]{
		Check:   func(context.Context) (fakeStatus, error) { return fakeStatus{}, errors.New("connection refused") },
		Done:    func(fakeStatus) bool { return false },
		Extract: func(s fakeStatus) (string, error) { return s.result, nil },
	}
	_, err := p.Run(context.Background(), fastPoll(5))
	if err == nil || !strings.Contains(err.Error(), "status check") {
		t.Fatalf("expected status check error, got %v", err)
	}
}

func TestPollContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := PollConfig{MaxAttempts: 10, InitialDelay: time.Hour, Multiplier: 1.5}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	p := sequencePoller(fakeStatus{state: "processing"})
	_, err := p.Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPollPresets(t *testing.T) {
	short := ShortPoll()
	if short.MaxAttempts != 20 || short.InitialDelay != 500*time.Millisecond {
		t.Errorf("unexpected short poll preset: %+v", short)
	}
	long := LongPoll()
	if long.MaxAttempts != 120 || long.InitialDelay != time.Second {
		t.Errorf("unexpected long poll preset: %+v", long)
	}
}
