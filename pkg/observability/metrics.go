package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all orchestration engine metrics.
type Metrics struct {
	meter metric.Meter

	// Counters
	jobsTotal            metric.Int64Counter
	subagentTasksTotal   metric.Int64Counter
	reasoningStepsTotal  metric.Int64Counter
	llmRequestsTotal     metric.Int64Counter
	llmTokensUsedTotal   metric.Int64Counter
	retrievalTotal       metric.Int64Counter
	synthesisFallbacks   metric.Int64Counter
	emergencyRetrievals  metric.Int64Counter

	// Histograms
	jobDuration       metric.Float64Histogram
	taskDuration      metric.Float64Histogram
	llmDuration       metric.Float64Histogram
	retrievalDuration metric.Float64Histogram

	// Gauges (async instruments over atomics)
	activeJobs  metric.Int64ObservableGauge
	queuedTasks metric.Int64ObservableGauge

	activeJobCount  atomic.Int64
	queuedTaskCount atomic.Int64
}

// NewMetrics creates and initializes all metrics.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{
		meter: meter,
	}

	var err error

	m.jobsTotal, err = meter.Int64Counter(
		"research_jobs_total",
		metric.WithDescription("Total number of research jobs submitted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.subagentTasksTotal, err = meter.Int64Counter(
		"subagent_tasks_total",
		metric.WithDescription("Total number of specialist sub-agent tasks settled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.reasoningStepsTotal, err = meter.Int64Counter(
		"reasoning_steps_total",
		metric.WithDescription("Total number of reasoning steps appended"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of LLM completion requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmTokensUsedTotal, err = meter.Int64Counter(
		"llm_tokens_used_total",
		metric.WithDescription("Total number of LLM tokens consumed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.retrievalTotal, err = meter.Int64Counter(
		"retrieval_requests_total",
		metric.WithDescription("Total number of document search requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.synthesisFallbacks, err = meter.Int64Counter(
		"synthesis_fallbacks_total",
		metric.WithDescription("Synthesis runs that fell back to concatenation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.emergencyRetrievals, err = meter.Int64Counter(
		"emergency_retrievals_total",
		metric.WithDescription("Jobs that used the single-shot retrieval fallback"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.jobDuration, err = meter.Float64Histogram(
		"research_job_duration_seconds",
		metric.WithDescription("Duration of research jobs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.taskDuration, err = meter.Float64Histogram(
		"subagent_task_duration_seconds",
		metric.WithDescription("Duration of specialist task execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.llmDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("Duration of LLM requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.retrievalDuration, err = meter.Float64Histogram(
		"retrieval_duration_seconds",
		metric.WithDescription("Duration of document search requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.activeJobs, err = meter.Int64ObservableGauge(
		"active_research_jobs",
		metric.WithDescription("Number of jobs currently RUNNING"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeJobCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	m.queuedTasks, err = meter.Int64ObservableGauge(
		"queued_subagent_tasks",
		metric.WithDescription("Specialist tasks waiting on the concurrency limit"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.queuedTaskCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordJobStarted records a job entering RUNNING.
func (m *Metrics) RecordJobStarted(ctx context.Context, tier string) {
	m.jobsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("complexity", tier),
		),
	)
	m.activeJobCount.Add(1)
}

// RecordJobComplete records a job reaching a terminal state.
func (m *Metrics) RecordJobComplete(ctx context.Context, duration time.Duration, status string) {
	m.jobDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.activeJobCount.Add(-1)
}

// RecordTaskQueued records a specialist task waiting for a slot.
func (m *Metrics) RecordTaskQueued(ctx context.Context) {
	m.queuedTaskCount.Add(1)
}

// RecordTaskSettled records a specialist task settling with the given status.
func (m *Metrics) RecordTaskSettled(ctx context.Context, duration time.Duration, focusArea, status string) {
	m.subagentTasksTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("focus_area", focusArea),
			attribute.String("status", status),
		),
	)
	m.taskDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.queuedTaskCount.Add(-1)
}

// RecordReasoningStep records one appended reasoning step.
func (m *Metrics) RecordReasoningStep(ctx context.Context, stepType string) {
	m.reasoningStepsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("step_type", stepType),
		),
	)
}

// RecordLLMRequest records an LLM request with token usage.
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration) {
	m.llmRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)

	m.llmTokensUsedTotal.Add(ctx, promptTokens+completionTokens,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("type", "total"),
		),
	)

	m.llmDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)
}

// RecordRetrieval records a document search request.
func (m *Metrics) RecordRetrieval(ctx context.Context, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	m.retrievalTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.retrievalDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}

// RecordSynthesisFallback records a synthesis run degrading to concatenation.
func (m *Metrics) RecordSynthesisFallback(ctx context.Context) {
	m.synthesisFallbacks.Add(ctx, 1)
}

// RecordEmergencyRetrieval records a job using the single-shot fallback.
func (m *Metrics) RecordEmergencyRetrieval(ctx context.Context) {
	m.emergencyRetrievals.Add(ctx, 1)
}

// ActiveJobCount returns the current number of RUNNING jobs.
func (m *Metrics) ActiveJobCount() int64 {
	return m.activeJobCount.Load()
}

// QueuedTaskCount returns the current number of queued specialist tasks.
func (m *Metrics) QueuedTaskCount() int64 {
	return m.queuedTaskCount.Load()
}
