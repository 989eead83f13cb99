package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pilot-agent"

func agentTracer() trace.Tracer {
	return Tracer(tracerName)
}

// TraceRun creates the root span for one agent run.
func TraceRun(ctx context.Context, runID, task string, maxSteps int) (context.Context, trace.Span) {
	ctx, span := agentTracer().Start(ctx, "agent.run",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("task", task),
		attribute.Int("max_steps", maxSteps),
	)
	return ctx, span
}

// TraceRunResult records the exit of a run on its span.
func TraceRunResult(span trace.Span, exitReason string, steps int, success bool) {
	span.SetAttributes(
		attribute.String("exit_reason", exitReason),
		attribute.Int("steps_taken", steps),
		attribute.Bool("success", success),
	)
	if !success {
		span.SetStatus(codes.Error, exitReason)
	}
}

// TraceTurn creates a span for one model turn.
func TraceTurn(ctx context.Context, turnID, model string) (context.Context, trace.Span) {
	ctx, span := agentTracer().Start(ctx, "agent.turn",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("turn_id", turnID),
		attribute.String("model", model),
	)
	return ctx, span
}

// TraceTurnResult records the outcome of a turn on its span.
func TraceTurnResult(span trace.Span, responseChars int, tools []string, err error) {
	span.SetAttributes(
		attribute.Int("response_chars", responseChars),
		attribute.StringSlice("tools_invoked", tools),
	)
	RecordError(span, err)
}

// TraceToolInvoke creates a span for a single backend tool call.
func TraceToolInvoke(ctx context.Context, tool string) (context.Context, trace.Span) {
	ctx, span := agentTracer().Start(ctx, "tools.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("tool", tool))
	return ctx, span
}

// TraceToolResult records the size of a tool result before and after reduction.
func TraceToolResult(span trace.Span, rawBytes, sentBytes int, err error) {
	span.SetAttributes(
		attribute.Int("raw_bytes", rawBytes),
		attribute.Int("sent_bytes", sentBytes),
	)
	RecordError(span, err)
}

// RecordError marks the span as failed when err is non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
