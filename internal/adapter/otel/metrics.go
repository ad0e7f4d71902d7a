package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lumigen"

// Metrics holds all Lumigen metric instruments.
type Metrics struct {
	TasksStarted   metric.Int64Counter
	TasksCompleted metric.Int64Counter
	TasksFailed    metric.Int64Counter
	TasksCancelled metric.Int64Counter
	TaskDuration   metric.Float64Histogram
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
	VendorDuration metric.Float64Histogram
	PollAttempts   metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksStarted, err = meter.Int64Counter("lumigen.tasks.started",
		metric.WithDescription("Number of tasks started"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("lumigen.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("lumigen.tasks.failed",
		metric.WithDescription("Number of tasks failed"))
	if err != nil {
		return nil, err
	}

	m.TasksCancelled, err = meter.Int64Counter("lumigen.tasks.cancelled",
		metric.WithDescription("Number of tasks cancelled"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("lumigen.task.duration_seconds",
		metric.WithDescription("Task duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("lumigen.cache.hits",
		metric.WithDescription("Response cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("lumigen.cache.misses",
		metric.WithDescription("Response cache misses"))
	if err != nil {
		return nil, err
	}

	m.VendorDuration, err = meter.Float64Histogram("lumigen.vendor.duration_seconds",
		metric.WithDescription("Vendor call duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.PollAttempts, err = meter.Int64Histogram("lumigen.poll.attempts",
		metric.WithDescription("Poll attempts until a job reached a terminal state"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
