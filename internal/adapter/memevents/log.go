// Package memevents implements an in-memory append-only log of task
// lifecycle events with per-task retrieval.
package memevents

import (
	"sync"
	"time"
)

// Event is one recorded task lifecycle transition.
type Event struct {
	TaskID   string    `json:"task_id"`
	Type     string    `json:"type"`
	Status   string    `json:"status,omitempty"`
	Progress int       `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Event type constants.
const (
	TypeCreated   = "task.created"
	TypeStarted   = "task.started"
	TypeProgress  = "task.progress"
	TypeCompleted = "task.completed"
	TypeFailed    = "task.failed"
	TypeCancelled = "task.cancelled"
)

// Log stores events per task, trimming each task's history to a bound.
type Log struct {
	mu         sync.RWMutex
	byTask     map[string][]Event
	maxPerTask int
}

// NewLog creates a Log keeping at most maxPerTask events per task.
func NewLog(maxPerTask int) *Log {
	if maxPerTask < 1 {
		maxPerTask = 100
	}
	return &Log{
		byTask:     make(map[string][]Event),
		maxPerTask: maxPerTask,
	}
}

// Append records an event, dropping the oldest events for the task once the
// per-task bound is exceeded.
func (l *Log) Append(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	events := append(l.byTask[ev.TaskID], ev)
	if len(events) > l.maxPerTask {
		events = events[len(events)-l.maxPerTask:]
	}
	l.byTask[ev.TaskID] = events
}

// ForTask returns a copy of the recorded events for the given task, in
// append order.
func (l *Log) ForTask(taskID string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := l.byTask[taskID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Drop removes all events for the given task. Called when a task is purged.
func (l *Log) Drop(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byTask, taskID)
}

// TaskCount returns the number of tasks with recorded events.
func (l *Log) TaskCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byTask)
}
