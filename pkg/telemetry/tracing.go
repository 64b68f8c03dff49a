package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "manufacturing-analytics-platform/chaos-core"
)

// StartPhaseSpan opens a span for one orchestration phase of a run
func StartPhaseSpan(ctx context.Context, phase string, runID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, phase)
	span.SetAttributes(attribute.String("chaos.run_id", runID))
	return ctx, span
}
