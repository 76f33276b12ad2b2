package subagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// TaskRunner executes a single specialist task; satisfied by Specialist.
type TaskRunner interface {
	Run(ctx context.Context, task domain.SubagentTask, threshold float64) (string, []domain.SourceRef, error)
}

// ExecutorStats tracks task outcomes across the executor's lifetime.
type ExecutorStats struct {
	Completed atomic.Int64
	Failed    atomic.Int64
	TimedOut  atomic.Int64
}

// Executor runs specialist tasks concurrently, bounded by a semaphore shared
// across all jobs. Fan-out may exceed the concurrency bound; excess tasks
// wait for a slot.
//
// RunAll never returns an error: every failure or timeout is captured in the
// corresponding SubagentResult.
type Executor struct {
	runner  TaskRunner
	sem     chan struct{}
	logger  observability.Logger
	metrics *observability.Metrics
	stats   ExecutorStats
}

// ExecutorOption customizes the executor.
type ExecutorOption func(*Executor)

// WithMetrics attaches task metrics.
func WithMetrics(m *observability.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor with the given concurrency bound.
func NewExecutor(runner TaskRunner, maxConcurrent int, logger observability.Logger, opts ...ExecutorOption) *Executor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	e := &Executor{
		runner: runner,
		sem:    make(chan struct{}, maxConcurrent),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the executor's outcome counters.
func (e *Executor) Stats() *ExecutorStats {
	return &e.stats
}

// RunAll executes all tasks and returns one result per task, in submission
// order regardless of completion order. A task's timeout cancels only that
// task's in-flight calls, never its siblings.
func (e *Executor) RunAll(ctx context.Context, tasks []domain.SubagentTask, threshold float64) []domain.SubagentResult {
	results := make([]domain.SubagentResult, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		if e.metrics != nil {
			e.metrics.RecordTaskQueued(ctx)
		}

		go func(idx int, task domain.SubagentTask) {
			defer wg.Done()

			e.sem <- struct{}{}
			defer func() { <-e.sem }()

			results[idx] = e.runOne(ctx, task, threshold)
		}(i, task)
	}
	wg.Wait()

	return results
}

func (e *Executor) runOne(ctx context.Context, task domain.SubagentTask, threshold float64) (result domain.SubagentResult) {
	startTime := time.Now()

	result = domain.SubagentResult{TaskID: task.ID}

	defer func() {
		// A panicking specialist settles as FAILED; siblings keep running.
		if r := recover(); r != nil {
			result.Status = domain.ResultFailed
			result.Error = fmt.Sprintf("specialist panic: %v", r)
			result.Content = ""
			result.Sources = nil
		}

		result.ExecutionTime = time.Since(startTime)

		if e.metrics != nil {
			e.metrics.RecordTaskSettled(ctx, result.ExecutionTime, string(task.FocusArea), string(result.Status))
		}
		switch result.Status {
		case domain.ResultCompleted:
			e.stats.Completed.Add(1)
		case domain.ResultTimedOut:
			e.stats.TimedOut.Add(1)
		default:
			e.stats.Failed.Add(1)
		}
	}()

	taskCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	content, sources, err := e.runner.Run(taskCtx, task, threshold)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			result.Status = domain.ResultTimedOut
		} else {
			result.Status = domain.ResultFailed
		}
		result.Error = err.Error()

		e.logger.Warn(ctx, "Specialist task settled unsuccessfully", map[string]interface{}{
			"task_id":    task.ID,
			"focus_area": string(task.FocusArea),
			"status":     string(result.Status),
			"error":      err.Error(),
		})
		return result
	}

	result.Status = domain.ResultCompleted
	result.Content = content
	result.Sources = sources
	return result
}
