package domain

import "errors"

// Error taxonomy for the orchestration engine. Only ErrDecomposition and
// uncaught infrastructure failures inside the orchestrator surface a job as
// FAILED; everything else is absorbed where it occurs.
var (
	// ErrDecomposition means no task list could be produced even via the
	// single-task fallback. Fatal to the job.
	ErrDecomposition = errors.New("task decomposition produced no tasks")

	// ErrPlanningUnavailable means the planning model call failed after
	// retries, so no plan exists to decompose. Fatal to the job.
	ErrPlanningUnavailable = errors.New("planning model unavailable")

	// ErrAllSubagentsFailed signals that every specialist task settled as
	// FAILED or TIMED_OUT; the orchestrator falls back to a single direct
	// retrieval call. Non-fatal.
	ErrAllSubagentsFailed = errors.New("all subagent tasks failed")

	// ErrSynthesis signals the synthesis model call failed; the engine
	// falls back to concatenating sub-agent outputs. Non-fatal.
	ErrSynthesis = errors.New("report synthesis failed")

	// ErrJobNotFound is returned when a job ID is unknown to the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrAwaitTimeout is returned when a blocking wait on a job outlives
	// the caller-supplied timeout.
	ErrAwaitTimeout = errors.New("timed out waiting for job to complete")
)
