package domain

import (
	"time"
)

// ComplexityTier classifies how much research effort a query demands.
type ComplexityTier string

const (
	ComplexitySimple      ComplexityTier = "simple"
	ComplexityModerate    ComplexityTier = "moderate"
	ComplexityComplex     ComplexityTier = "complex"
	ComplexityVeryComplex ComplexityTier = "very_complex"
)

// FanOut returns the number of specialist tasks spawned for this tier.
func (t ComplexityTier) FanOut() int {
	switch t {
	case ComplexitySimple:
		return 2
	case ComplexityModerate:
		return 3
	case ComplexityComplex:
		return 4
	case ComplexityVeryComplex:
		return 5
	default:
		return 3
	}
}

// SimilarityThreshold returns the retrieval similarity cutoff for this tier.
// Higher tiers loosen the threshold since broader recall is needed.
func (t ComplexityTier) SimilarityThreshold() float64 {
	switch t {
	case ComplexitySimple:
		return 0.75
	case ComplexityModerate:
		return 0.70
	case ComplexityComplex:
		return 0.65
	case ComplexityVeryComplex:
		return 0.60
	default:
		return 0.70
	}
}

// FocusArea is a thematic lens used to bias a sub-agent's query and answer.
type FocusArea string

const (
	FocusConceptual   FocusArea = "conceptual"
	FocusTechnical    FocusArea = "technical"
	FocusComparative  FocusArea = "comparative"
	FocusExamples     FocusArea = "examples"
	FocusOverview     FocusArea = "overview"
	FocusApplications FocusArea = "applications"
	FocusGeneral      FocusArea = "general"
)

// AllFocusAreas returns the fixed focus area enumeration in canonical order.
func AllFocusAreas() []FocusArea {
	return []FocusArea{
		FocusConceptual,
		FocusTechnical,
		FocusComparative,
		FocusExamples,
		FocusOverview,
		FocusApplications,
		FocusGeneral,
	}
}

// Valid reports whether f is one of the seven known focus areas.
func (f FocusArea) Valid() bool {
	switch f {
	case FocusConceptual, FocusTechnical, FocusComparative, FocusExamples,
		FocusOverview, FocusApplications, FocusGeneral:
		return true
	}
	return false
}

// SpecialistType is the concrete sub-agent role invoked for a task.
// Mostly 1:1 with focus area, except GENERAL absorbs overview+general and
// EXAMPLES absorbs applications.
type SpecialistType string

const (
	SpecialistConceptual  SpecialistType = "CONCEPTUAL"
	SpecialistTechnical   SpecialistType = "TECHNICAL"
	SpecialistComparative SpecialistType = "COMPARATIVE"
	SpecialistExamples    SpecialistType = "EXAMPLES"
	SpecialistGeneral     SpecialistType = "GENERAL"
)

// Specialist maps a focus area to the specialist type that handles it.
func (f FocusArea) Specialist() SpecialistType {
	switch f {
	case FocusConceptual:
		return SpecialistConceptual
	case FocusTechnical:
		return SpecialistTechnical
	case FocusComparative:
		return SpecialistComparative
	case FocusExamples, FocusApplications:
		return SpecialistExamples
	default:
		return SpecialistGeneral
	}
}

// StepType identifies the reasoning phase that produced a step.
type StepType string

const (
	StepFactGathering StepType = "FACT_GATHERING"
	StepPlanning      StepType = "PLANNING"
	StepExecution     StepType = "EXECUTION"
	StepValidation    StepType = "VALIDATION"
	StepReflection    StepType = "REFLECTION"
	StepSynthesis     StepType = "SYNTHESIS"
)

// ReasoningStep is one atomic record in a job's reasoning trace.
// Immutable once created; exposed verbatim in the final trace.
type ReasoningStep struct {
	Type         StepType  `json:"step_type"`
	Timestamp    time.Time `json:"timestamp"`
	Content      string    `json:"content"`
	Observations string    `json:"observations,omitempty"`
	NextAction   string    `json:"next_action,omitempty"`
}

// FactGathering captures what is known, recalled, and assumed at the start
// of planning. Read-only after creation.
type FactGathering struct {
	GivenFacts    []string `json:"given_facts"`
	RecalledFacts []string `json:"recalled_facts"`
	Assumptions   []string `json:"assumptions"`
}

// TaskPlan describes how a job will be carried out. Replaced, not mutated,
// when a reflection cycle produces a revised plan.
type TaskPlan struct {
	Objective       string   `json:"objective"`
	Steps           []string `json:"steps"`
	ExpectedOutcome string   `json:"expected_outcome"`
	Resources       []string `json:"resources,omitempty"`
}

// SubagentTask is one unit of specialist work. Immutable after decomposition.
type SubagentTask struct {
	ID            string         `json:"task_id"`
	FocusArea     FocusArea      `json:"focus_area"`
	AdjustedQuery string         `json:"adjusted_query"`
	Specialist    SpecialistType `json:"specialist_type"`
	Timeout       time.Duration  `json:"timeout_seconds"`
}

// ResultStatus records how a sub-agent task settled.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "COMPLETED"
	ResultFailed    ResultStatus = "FAILED"
	ResultTimedOut  ResultStatus = "TIMED_OUT"
)

// SourceRef points at a retrieved document used in a sub-agent answer.
type SourceRef struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// SubagentResult is the outcome of one specialist run. There is exactly one
// per SubagentTask, positionally aligned with the task list.
type SubagentResult struct {
	TaskID        string        `json:"task_id"`
	Status        ResultStatus  `json:"status"`
	Content       string        `json:"content,omitempty"`
	Sources       []SourceRef   `json:"sources,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
}

// ValidationResult is the outcome of a progress validation pass.
type ValidationResult struct {
	TaskCompleted   bool    `json:"is_task_completed"`
	InLoop          bool    `json:"is_in_loop"`
	ProgressSummary string  `json:"progress_summary"`
	NextInstruction string  `json:"next_instruction,omitempty"`
	Confidence      float64 `json:"confidence_level"`
}

// JobStatus is the lifecycle state of a research job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the status is COMPLETED or FAILED.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ResearchJob is the top-level aggregate for one research request.
// Owned exclusively by the orchestrator for the job's lifetime.
//
// Invariants: len(Tasks) == len(Results) once the job is terminal, and
// ConfidenceScore is always within [0, 1].
type ResearchJob struct {
	ID              string           `json:"job_id"`
	Query           string           `json:"query"`
	Objective       string           `json:"objective,omitempty"`
	Complexity      ComplexityTier   `json:"complexity,omitempty"`
	Status          JobStatus        `json:"status"`
	Plan            *TaskPlan        `json:"plan,omitempty"`
	Tasks           []SubagentTask   `json:"tasks,omitempty"`
	Results         []SubagentResult `json:"results,omitempty"`
	Trace           []ReasoningStep  `json:"reasoning_trace,omitempty"`
	FinalReport     string           `json:"final_report,omitempty"`
	ConfidenceScore float64          `json:"confidence_score"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Sources collects the source references of all completed results, in task
// order, de-duplicated by source ID.
func (j *ResearchJob) Sources() []SourceRef {
	seen := make(map[string]bool)
	var out []SourceRef
	for _, r := range j.Results {
		if r.Status != ResultCompleted {
			continue
		}
		for _, src := range r.Sources {
			if seen[src.SourceID] {
				continue
			}
			seen[src.SourceID] = true
			out = append(out, src)
		}
	}
	return out
}
