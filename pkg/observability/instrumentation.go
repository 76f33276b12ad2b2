package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentPhase wraps one reasoning phase with a span and status recording.
func (t *Telemetry) InstrumentPhase(ctx context.Context, phase string, jobID string, fn func(context.Context) error) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("reasoning.%s", phase),
		trace.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("job.id", jobID),
		),
	)
	defer span.End()

	startTime := time.Now()
	err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentLLMCall wraps an LLM completion with a span and token accounting.
func (t *Telemetry) InstrumentLLMCall(ctx context.Context, model string, fn func(context.Context) (promptTokens, completionTokens int, err error)) error {
	ctx, span := t.StartSpan(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.model", model),
		),
	)
	defer span.End()

	startTime := time.Now()
	promptTokens, completionTokens, err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", promptTokens),
			attribute.Int("llm.completion_tokens", completionTokens),
			attribute.Int("llm.total_tokens", promptTokens+completionTokens),
		)
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentRetrieval wraps a document search call with a span.
func (t *Telemetry) InstrumentRetrieval(ctx context.Context, query string, fn func(context.Context) (hits int, err error)) error {
	ctx, span := t.StartSpan(ctx, "retrieval.search",
		trace.WithAttributes(
			attribute.Int("query.length", len(query)),
		),
	)
	defer span.End()

	startTime := time.Now()
	hits, err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("retrieval.hits", hits))
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// StartJobSpan starts the root span for one research job.
func (t *Telemetry) StartJobSpan(ctx context.Context, jobID, query, complexity string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "research.job",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Int("query.length", len(query)),
			attribute.String("complexity", complexity),
		),
	)
}
