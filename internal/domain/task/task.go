// Package task defines the Task domain entity and its status state machine.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Kind tags what sort of work a task performs.
type Kind string

const (
	KindGeneration Kind = "generation"
	KindProcessing Kind = "processing"
)

// Task represents a managed unit of orchestrated asynchronous work.
// Instances handed to callers are copies; the task manager owns the
// authoritative record.
type Task struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Status      Status         `json:"status"`
	Progress    int            `json:"progress"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	EstimatedAt *time.Time     `json:"estimated_completion,omitempty"`
}

// ClampProgress bounds p to the [0,100] range.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// EstimateCompletion projects a completion time from elapsed time and
// progress. Returns nil when progress is too low to extrapolate.
func EstimateCompletion(startedAt time.Time, progress int, now time.Time) *time.Time {
	if progress < 5 || progress >= 100 || startedAt.IsZero() {
		return nil
	}
	elapsed := now.Sub(startedAt)
	total := time.Duration(float64(elapsed) * 100 / float64(progress))
	eta := startedAt.Add(total)
	return &eta
}

// CanTransition reports whether a transition from one status to another is
// permitted. Terminal states permit nothing; pending may start processing or
// go terminal directly (a cancellation before start).
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing || to.IsTerminal()
	case StatusProcessing:
		return to.IsTerminal()
	}
	return false
}
