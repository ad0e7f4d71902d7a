package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lumigen"

// StartGenerateSpan starts a span for a generation request.
func StartGenerateSpan(ctx context.Context, taskID, vendor, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generate",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("vendor.name", vendor),
			attribute.String("vendor.operation", operation),
		),
	)
}

// StartPollSpan starts a span covering the long-poll of a remote job.
func StartPollSpan(ctx context.Context, taskID, jobID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "poll",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("job.id", jobID),
		),
	)
}

// StartFetchSpan starts a span for an artifact download.
func StartFetchSpan(ctx context.Context, artifactID, url string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "fetch",
		trace.WithAttributes(
			attribute.String("artifact.id", artifactID),
			attribute.String("artifact.url", url),
		),
	)
}
