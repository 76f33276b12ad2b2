package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sagehive/sagehive/pkg/classify"
	"github.com/sagehive/sagehive/pkg/decompose"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
	"github.com/sagehive/sagehive/pkg/reasoning"
	"github.com/sagehive/sagehive/pkg/subagent"
	"github.com/sagehive/sagehive/pkg/synthesis"
)

// Options configures the lead orchestrator.
type Options struct {
	Completer domain.Completer
	Retriever domain.Retriever
	Store     *JobStore
	Executor  *subagent.Executor
	Synthesis *synthesis.Engine
	Logger    observability.Logger
	Metrics   *observability.Metrics
	Telemetry *observability.Telemetry

	// TaskTimeout is the fixed per-task timeout stamped on every specialist
	// task.
	TaskTimeout time.Duration
	// JobTimeout bounds one job's whole run.
	JobTimeout time.Duration
	// MaxReflections bounds reflection+retry cycles per job.
	MaxReflections int
	// MaxCandidates is the retrieval candidate cap for the emergency path.
	MaxCandidates int
}

// Orchestrator sequences the full research pipeline for each job:
// classify -> gather facts -> plan -> decompose -> execute -> validate ->
// (one bounded reflection+retry) -> synthesize. It is the only layer that
// surfaces a job-level failure to the caller.
type Orchestrator struct {
	opts Options

	mu   sync.Mutex
	done map[string]chan struct{}
}

// Interface check.
var _ domain.JobService = (*Orchestrator)(nil)

// New creates a lead orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if opts.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.Synthesis == nil {
		return nil, fmt.Errorf("synthesis engine is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 2 * time.Minute
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Minute
	}
	if opts.MaxReflections < 0 {
		opts.MaxReflections = 0
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 10
	}

	return &Orchestrator{
		opts: opts,
		done: make(map[string]chan struct{}),
	}, nil
}

// Submit creates a job and schedules it, returning the job ID immediately.
func (o *Orchestrator) Submit(ctx context.Context, query string, opts domain.SubmitOptions) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}

	now := time.Now()
	job := &domain.ResearchJob{
		ID:        uuid.NewString(),
		Query:     query,
		Objective: opts.Objective,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.opts.Store.Save(ctx, job); err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}

	o.mu.Lock()
	o.done[job.ID] = make(chan struct{})
	o.mu.Unlock()

	// The run outlives the submitting request.
	go o.run(job, opts)

	return job.ID, nil
}

// GetStatus returns a snapshot of the job. Reads are idempotent: a COMPLETED
// job's report and confidence never change on read.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*domain.ResearchJob, error) {
	return o.opts.Store.Load(ctx, jobID)
}

// Await blocks until the job is terminal or the timeout elapses, returning
// ErrAwaitTimeout rather than a partial job.
func (o *Orchestrator) Await(ctx context.Context, jobID string, timeout time.Duration) (*domain.ResearchJob, error) {
	job, err := o.opts.Store.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	o.mu.Lock()
	ch, ok := o.done[jobID]
	o.mu.Unlock()
	if !ok {
		// Run already finished between the load and here.
		return o.opts.Store.Load(ctx, jobID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return o.opts.Store.Load(ctx, jobID)
	case <-timer.C:
		return nil, domain.ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run drives one job from RUNNING to a terminal state. Every non-fatal
// failure is absorbed along the way; anything that escapes marks the job
// FAILED.
func (o *Orchestrator) run(job *domain.ResearchJob, submitOpts domain.SubmitOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.JobTimeout)
	defer cancel()

	logger := o.jobLogger(job.ID)
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.finish(ctx, job, startTime, fmt.Errorf("orchestrator panic: %v", r))
		}
	}()

	tier := classify.Classify(job.Query)
	job.Complexity = tier
	job.Status = domain.JobRunning
	o.saveJob(ctx, job)

	if o.opts.Telemetry != nil {
		spanCtx, jobSpan := o.opts.Telemetry.StartJobSpan(ctx, job.ID, job.Query, string(tier))
		ctx = spanCtx
		defer jobSpan.End()
	}
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordJobStarted(ctx, string(tier))
	}

	logger.Info(ctx, "Research job started", map[string]interface{}{
		"complexity": string(tier),
		"fan_out":    tier.FanOut(),
	})

	// Per-job reasoning stack. The log has a single writer: this goroutine.
	rlog := reasoning.NewLog()
	var engineOpts []reasoning.EngineOption
	if o.opts.Metrics != nil {
		engineOpts = append(engineOpts, reasoning.WithMetrics(o.opts.Metrics))
	}
	engine := reasoning.NewEngine(o.opts.Completer, rlog, logger, engineOpts...)
	selector := classify.NewFocusSelector(o.opts.Completer, logger, engine)
	decomposer := decompose.NewDecomposer(selector, logger, o.opts.TaskTimeout)

	objective := submitOpts.Objective
	if objective == "" {
		objective = job.Query
	}
	job.Objective = objective

	_ = o.phase(ctx, "gather_facts", job.ID, func(ctx context.Context) error {
		engine.GatherFacts(ctx, job.Query, objective)
		return nil
	})

	var plan *domain.TaskPlan
	if err := o.phase(ctx, "planning", job.ID, func(ctx context.Context) error {
		var planErr error
		plan, planErr = engine.CreatePlan(ctx, objective, []string{"document retrieval", "llm completion"})
		return planErr
	}); err != nil {
		o.finish(ctx, job, startTime, err)
		return
	}
	job.Plan = plan

	var tasks []domain.SubagentTask
	_ = o.phase(ctx, "decompose", job.ID, func(ctx context.Context) error {
		tasks = decomposer.Decompose(ctx, job.Query, tier, submitOpts)
		return nil
	})
	if len(tasks) == 0 {
		o.finish(ctx, job, startTime, domain.ErrDecomposition)
		return
	}
	job.Tasks = tasks
	o.saveJob(ctx, job)

	threshold := tier.SimilarityThreshold()

	engine.ExecuteStep(ctx,
		fmt.Sprintf("Dispatching %d specialist tasks", len(tasks)),
		"run specialists concurrently",
		"")
	_ = o.phase(ctx, "execute", job.ID, func(ctx context.Context) error {
		job.Results = o.opts.Executor.RunAll(ctx, tasks, threshold)
		return nil
	})

	var validation *domain.ValidationResult
	_ = o.phase(ctx, "validate", job.ID, func(ctx context.Context) error {
		validation = engine.ValidateProgress(ctx, job.Query, combinedContent(job), len(job.Sources()))
		return nil
	})

	// One bounded reflection+retry, never an unbounded loop.
	for reflection := 0; reflection < o.opts.MaxReflections && (!validation.TaskCompleted || validation.InLoop); reflection++ {
		reason := describeShortfall(job, validation)
		job.Plan = engine.ReflectAndAdjust(ctx, reason, job.Plan)

		retryTasks := decomposer.Decompose(ctx, job.Query, tier, submitOpts)
		engine.ExecuteStep(ctx,
			fmt.Sprintf("Retrying with %d specialist tasks after reflection", len(retryTasks)),
			"re-run specialists",
			"")
		retryResults := o.opts.Executor.RunAll(ctx, retryTasks, threshold)

		job.Tasks = append(job.Tasks, retryTasks...)
		job.Results = append(job.Results, retryResults...)

		validation = engine.ValidateProgress(ctx, job.Query, combinedContent(job), len(job.Sources()))
	}

	if countCompleted(job) == 0 {
		o.emergencyRetrieval(ctx, job, engine, threshold, logger)
	}

	job.Trace = rlog.Steps()
	var report string
	var confidence float64
	_ = o.phase(ctx, "synthesize", job.ID, func(ctx context.Context) error {
		report, confidence = o.opts.Synthesis.Synthesize(ctx, job, engine)
		return nil
	})
	engine.RecordSynthesis(ctx, fmt.Sprintf("Synthesized final report (%d chars, confidence %.2f)", len(report), confidence))
	// Refresh so the final validation and synthesis steps land in the trace.
	job.Trace = rlog.Steps()

	job.FinalReport = report
	job.ConfidenceScore = confidence
	o.finish(ctx, job, startTime, nil)
}

// emergencyRetrieval is the degraded path when every specialist task failed:
// one direct search, its hits stashed as raw material for synthesis.
func (o *Orchestrator) emergencyRetrieval(ctx context.Context, job *domain.ResearchJob, engine *reasoning.Engine, threshold float64, logger observability.Logger) {
	logger.Warn(ctx, "All specialist tasks failed, using emergency single-shot retrieval")
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordEmergencyRetrieval(ctx)
	}
	engine.RecordObservation(ctx, "all specialist tasks failed; falling back to a single direct retrieval call")

	docs, err := o.opts.Retriever.Search(ctx, job.Query, o.opts.MaxCandidates, threshold)
	if err != nil || len(docs) == 0 {
		engine.RecordObservation(ctx, "emergency retrieval produced no material")
		return
	}

	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] %s\n", d.SourceID, d.Content)
	}
	job.FinalReport = b.String()
}

// finish moves the job to its terminal state and wakes any waiters.
func (o *Orchestrator) finish(ctx context.Context, job *domain.ResearchJob, startTime time.Time, err error) {
	if err != nil {
		job.Status = domain.JobFailed
		job.Error = err.Error()
		o.jobLogger(job.ID).Error(ctx, "Research job failed", err)
	} else {
		job.Status = domain.JobCompleted
		o.jobLogger(job.ID).Info(ctx, "Research job completed", map[string]interface{}{
			"confidence": job.ConfidenceScore,
			"tasks":      len(job.Tasks),
		})
	}

	o.saveJob(ctx, job)

	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordJobComplete(ctx, time.Since(startTime), string(job.Status))
	}

	o.mu.Lock()
	if ch, ok := o.done[job.ID]; ok {
		close(ch)
		delete(o.done, job.ID)
	}
	o.mu.Unlock()
}

// phase wraps one pipeline phase in a span when telemetry is attached.
func (o *Orchestrator) phase(ctx context.Context, name, jobID string, fn func(context.Context) error) error {
	if o.opts.Telemetry == nil {
		return fn(ctx)
	}
	return o.opts.Telemetry.InstrumentPhase(ctx, name, jobID, fn)
}

func (o *Orchestrator) saveJob(ctx context.Context, job *domain.ResearchJob) {
	if err := o.opts.Store.Save(ctx, job); err != nil {
		o.jobLogger(job.ID).Error(ctx, "Failed to persist job snapshot", err)
	}
}

func (o *Orchestrator) jobLogger(jobID string) observability.Logger {
	if sl, ok := o.opts.Logger.(*observability.StructuredLogger); ok {
		return sl.WithJob(jobID)
	}
	return o.opts.Logger
}

func combinedContent(job *domain.ResearchJob) string {
	var b strings.Builder
	for _, r := range job.Results {
		if r.Status == domain.ResultCompleted {
			b.WriteString(r.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func countCompleted(job *domain.ResearchJob) int {
	n := 0
	for _, r := range job.Results {
		if r.Status == domain.ResultCompleted {
			n++
		}
	}
	return n
}

func describeShortfall(job *domain.ResearchJob, validation *domain.ValidationResult) string {
	var reasons []string
	if validation.InLoop {
		reasons = append(reasons, "reasoning loop detected")
	}
	for _, r := range job.Results {
		switch r.Status {
		case domain.ResultTimedOut:
			reasons = append(reasons, fmt.Sprintf("task %s timeout", r.TaskID))
		case domain.ResultFailed:
			reasons = append(reasons, fmt.Sprintf("task %s failed: %s", r.TaskID, r.Error))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "answer incomplete")
	}
	return strings.Join(reasons, "; ")
}
