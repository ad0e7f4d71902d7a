// Package service implements Lumigen's core orchestration logic: the task
// manager, the generation pipeline, and artifact retrieval.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumigen/lumigen/internal/adapter/memevents"
	otelx "github.com/lumigen/lumigen/internal/adapter/otel"
	"github.com/lumigen/lumigen/internal/adapter/ws"
	"github.com/lumigen/lumigen/internal/domain"
	"github.com/lumigen/lumigen/internal/domain/task"
	"github.com/lumigen/lumigen/internal/port/broadcast"
	"github.com/lumigen/lumigen/internal/resilience"
)

// TaskFunc is the unit of work a task runs. It reports progress through
// report and returns the task's result.
type TaskFunc func(ctx context.Context, report func(progress int)) (any, error)

// taskRecord is the authoritative state for one task. The cancelled flag is
// set by Cancel before the work goroutine observes its context; once set,
// any later completion or failure report from the goroutine is suppressed.
type taskRecord struct {
	task      task.Task
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled bool
}

// TaskService manages asynchronous task lifecycles: creation under a
// concurrency ceiling, execution with progress reporting, cancellation, and
// retention-based cleanup.
type TaskService struct {
	mu      sync.RWMutex
	tasks   map[string]*taskRecord
	running int

	maxConcurrent int
	retention     time.Duration

	events  *memevents.Log
	bcast   broadcast.Broadcaster
	metrics *otelx.Metrics
	now     func() time.Time // injectable for tests
}

// NewTaskService creates a task manager. maxConcurrent bounds simultaneously
// active (pending or processing) tasks; retention controls how long terminal
// tasks remain queryable before the sweeper purges them.
func NewTaskService(maxConcurrent int, retention time.Duration, events *memevents.Log, bcast broadcast.Broadcaster, metrics *otelx.Metrics) *TaskService {
	if maxConcurrent < 1 {
		maxConcurrent = 50
	}
	if bcast == nil {
		bcast = broadcast.Nop{}
	}
	return &TaskService{
		tasks:         make(map[string]*taskRecord),
		maxConcurrent: maxConcurrent,
		retention:     retention,
		events:        events,
		bcast:         bcast,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Create allocates a task in pending without launching any work. Returns
// domain.ErrTaskLimit when the active-task ceiling is reached. Created tasks
// count toward the ceiling until they reach a terminal status.
func (s *TaskService) Create(kind task.Kind, metadata map[string]any) (*task.Task, error) {
	now := s.now()
	t := task.Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    task.StatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rec := &taskRecord{task: t, ctx: runCtx, cancel: cancel}

	s.mu.Lock()
	if s.running >= s.maxConcurrent {
		s.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %d tasks active", domain.ErrTaskLimit, s.maxConcurrent)
	}
	s.running++
	s.tasks[t.ID] = rec
	s.mu.Unlock()

	s.record(memevents.Event{TaskID: t.ID, Type: memevents.TypeCreated, Status: string(t.Status)})

	out := t
	return &out, nil
}

// Submit creates a task and launches fn in a goroutine. The returned copy
// reflects the task at creation time; poll Get for updates.
func (s *TaskService) Submit(kind task.Kind, metadata map[string]any, fn TaskFunc) (*task.Task, error) {
	t, err := s.Create(kind, metadata)
	if err != nil {
		return nil, err
	}
	s.Start(t.ID, fn)
	return t, nil
}

// Start launches fn for a previously created task. Unknown IDs are ignored.
func (s *TaskService) Start(id string, fn TaskFunc) {
	s.mu.RLock()
	rec, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	go s.run(rec.ctx, id, fn)
}

// run executes fn for the given task, translating its outcome into the final
// status transition. A panic in fn fails the task instead of crashing the
// process.
func (s *TaskService) run(ctx context.Context, id string, fn TaskFunc) {
	s.transition(id, task.StatusProcessing, nil, "")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "task_id", id, "panic", r)
			s.transition(id, task.StatusFailed, nil, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := fn(ctx, func(progress int) {
		s.reportProgress(id, progress)
	})

	switch {
	case ctx.Err() != nil:
		// Cancel already moved the task to cancelled; the work goroutine's
		// outcome is discarded.
	case err != nil:
		s.transition(id, task.StatusFailed, nil, err.Error())
	default:
		s.transition(id, task.StatusCompleted, result, "")
	}
}

// Get returns a copy of the task. domain.ErrNotFound if unknown or purged.
func (s *TaskService) Get(id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	out := rec.task
	return &out, nil
}

// List returns copies of all tasks matching the optional status and kind
// filters, newest first.
func (s *TaskService) List(status task.Status, kind task.Kind) []task.Task {
	s.mu.RLock()
	out := make([]task.Task, 0, len(s.tasks))
	for _, rec := range s.tasks {
		if status != "" && rec.task.Status != status {
			continue
		}
		if kind != "" && rec.task.Kind != kind {
			continue
		}
		out = append(out, rec.task)
	}
	s.mu.RUnlock()

	sortTasksNewestFirst(out)
	return out
}

// Counts reports how many tasks are in each status.
func (s *TaskService) Counts() map[task.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[task.Status]int, 5)
	for _, rec := range s.tasks {
		out[rec.task.Status]++
	}
	return out
}

// Events returns the recorded lifecycle events for a task.
func (s *TaskService) Events(id string) []memevents.Event {
	if s.events == nil {
		return nil
	}
	return s.events.ForTask(id)
}

// Cancel aborts a running task: its context is cancelled and its status moves
// to cancelled immediately, so the cancellation wins over any completion the
// work goroutine reports afterwards. Returns false when the task is unknown
// or already terminal.
func (s *TaskService) Cancel(id string) bool {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok || rec.task.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	rec.cancelled = true
	cancel := rec.cancel
	s.mu.Unlock()

	cancel()
	s.transition(id, task.StatusCancelled, nil, "")
	return true
}

// Delete removes a terminal task and its event history. Active tasks must be
// cancelled first; deleting one returns domain.ErrValidation.
func (s *TaskService) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if !rec.task.Status.IsTerminal() {
		s.mu.Unlock()
		return fmt.Errorf("task %s is %s: %w", id, rec.task.Status, domain.ErrValidation)
	}
	delete(s.tasks, id)
	s.mu.Unlock()

	if s.events != nil {
		s.events.Drop(id)
	}
	return nil
}

// Wait polls the task until it reaches a terminal state, using the given
// schedule. resilience.ErrPollTimeout when the schedule is exhausted first.
func (s *TaskService) Wait(ctx context.Context, id string, cfg resilience.PollConfig) (*task.Task, error) {
	poller := resilience.Poller[*task.Task, *task.Task]{
		Check: func(context.Context) (*task.Task, error) {
			return s.Get(id)
		},
		Done: func(t *task.Task) bool {
			return t.Status.IsTerminal()
		},
		Extract: func(t *task.Task) (*task.Task, error) {
			return t, nil
		},
	}
	return poller.Run(ctx, cfg)
}

// StartSweep spawns a goroutine purging terminal tasks older than the
// retention window. Returns a cancel function that stops the sweeper.
func (s *TaskService) StartSweep(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
	return cancel
}

func (s *TaskService) sweep() {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	var purged []string
	for id, rec := range s.tasks {
		if rec.task.Status.IsTerminal() && rec.task.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			purged = append(purged, id)
		}
	}
	s.mu.Unlock()

	if s.events != nil {
		for _, id := range purged {
			s.events.Drop(id)
		}
	}
	if len(purged) > 0 {
		slog.Debug("purged expired tasks", "count", len(purged))
	}
}

// reportProgress clamps and records a progress update, refreshing the
// estimated completion time. Progress never moves backwards; updates below
// the current value and updates against terminal tasks are dropped.
func (s *TaskService) reportProgress(id string, progress int) {
	progress = task.ClampProgress(progress)
	now := s.now()

	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok || rec.task.Status.IsTerminal() || rec.cancelled || progress < rec.task.Progress {
		s.mu.Unlock()
		return
	}
	rec.task.Progress = progress
	rec.task.UpdatedAt = now
	if rec.task.StartedAt != nil {
		rec.task.EstimatedAt = task.EstimateCompletion(*rec.task.StartedAt, progress, now)
	}
	s.mu.Unlock()

	s.record(memevents.Event{TaskID: id, Type: memevents.TypeProgress, Progress: progress})
	s.bcast.BroadcastEvent(context.Background(), ws.EventTaskProgress, ws.TaskProgressEvent{
		TaskID:   id,
		Progress: progress,
	})
}

// transition applies a status change if the state machine permits it,
// recording the event, broadcasting it, and updating metrics. Reports against
// a cancelled task are suppressed except for the cancellation itself.
func (s *TaskService) transition(id string, to task.Status, result any, errMsg string) {
	now := s.now()

	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if rec.cancelled && to != task.StatusCancelled {
		s.mu.Unlock()
		return
	}
	if !task.CanTransition(rec.task.Status, to) {
		s.mu.Unlock()
		return
	}

	rec.task.Status = to
	rec.task.UpdatedAt = now
	switch to {
	case task.StatusProcessing:
		started := now
		rec.task.StartedAt = &started
	case task.StatusCompleted:
		rec.task.Result = result
		rec.task.Progress = 100
		completed := now
		rec.task.CompletedAt = &completed
		rec.task.EstimatedAt = nil
	case task.StatusFailed, task.StatusCancelled:
		rec.task.Error = errMsg
		completed := now
		rec.task.CompletedAt = &completed
		rec.task.EstimatedAt = nil
	}
	if to.IsTerminal() {
		s.running--
	}
	snapshot := rec.task
	s.mu.Unlock()

	s.record(memevents.Event{TaskID: id, Type: eventType(to), Status: string(to), Message: errMsg})
	s.bcast.BroadcastEvent(context.Background(), ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID: id,
		Kind:   string(snapshot.Kind),
		Status: string(to),
		Error:  errMsg,
	})
	s.observe(snapshot, to)
}

func (s *TaskService) observe(t task.Task, to task.Status) {
	if s.metrics == nil {
		return
	}
	ctx := context.Background()
	switch to {
	case task.StatusProcessing:
		s.metrics.TasksStarted.Add(ctx, 1)
	case task.StatusCompleted:
		s.metrics.TasksCompleted.Add(ctx, 1)
	case task.StatusFailed:
		s.metrics.TasksFailed.Add(ctx, 1)
	case task.StatusCancelled:
		s.metrics.TasksCancelled.Add(ctx, 1)
	}
	if to.IsTerminal() && t.StartedAt != nil && t.CompletedAt != nil {
		s.metrics.TaskDuration.Record(ctx, t.CompletedAt.Sub(*t.StartedAt).Seconds())
	}
}

func (s *TaskService) record(ev memevents.Event) {
	if s.events != nil {
		s.events.Append(ev)
	}
}

func eventType(to task.Status) string {
	switch to {
	case task.StatusProcessing:
		return memevents.TypeStarted
	case task.StatusCompleted:
		return memevents.TypeCompleted
	case task.StatusFailed:
		return memevents.TypeFailed
	case task.StatusCancelled:
		return memevents.TypeCancelled
	}
	return memevents.TypeCreated
}

func sortTasksNewestFirst(tasks []task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
