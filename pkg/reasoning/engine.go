package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// planAttempts is how many times the planning model call is tried before the
// job is declared unplannable.
const planAttempts = 3

// Engine drives the structured reasoning cycle for one job:
// FACT_GATHERING -> PLANNING -> EXECUTION <-> VALIDATION -> (REFLECTION ->
// PLANNING) | SYNTHESIS. One Engine instance per job; not safe for concurrent
// use.
type Engine struct {
	completer domain.Completer
	log       *Log
	logger    observability.Logger
	metrics   *observability.Metrics

	iterations  int
	assumptions []string
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithMetrics attaches step metrics.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a reasoning engine writing to the given log.
func NewEngine(completer domain.Completer, log *Log, logger observability.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		completer: completer,
		log:       log,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Log returns the reasoning log owned by this engine.
func (e *Engine) Log() *Log {
	return e.log
}

// Iterations returns the number of execution iterations so far.
func (e *Engine) Iterations() int {
	return e.iterations
}

// Assumptions returns the current working assumptions.
func (e *Engine) Assumptions() []string {
	out := make([]string, len(e.assumptions))
	copy(out, e.assumptions)
	return out
}

func (e *Engine) append(ctx context.Context, stepType domain.StepType, content, observations, nextAction string) domain.ReasoningStep {
	step := e.log.Append(stepType, content, observations, nextAction)
	if e.metrics != nil {
		e.metrics.RecordReasoningStep(ctx, string(stepType))
	}
	return step
}

// recalledFactsResponse is the structured contract for the fact recall call.
type recalledFactsResponse struct {
	RecalledFacts []string `json:"recalled_facts"`
	Assumptions   []string `json:"assumptions"`
}

// GatherFacts extracts given facts from the query and context, recalls domain
// facts via the model, and formulates assumptions. Fact recall is
// best-effort: a failed or malformed model call degrades to given facts only,
// with the degradation noted as an observation. Appends one FACT_GATHERING
// step.
func (e *Engine) GatherFacts(ctx context.Context, query, contextText string) *domain.FactGathering {
	facts := &domain.FactGathering{
		GivenFacts: []string{fmt.Sprintf("research query: %s", query)},
	}
	for _, line := range strings.Split(contextText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			facts.GivenFacts = append(facts.GivenFacts, line)
		}
	}

	observations := ""
	resp, err := e.completer.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: "You are a research assistant preparing to investigate a query. " +
			"Respond with JSON: {\"recalled_facts\": [...], \"assumptions\": [...]}. " +
			"List facts you already know that bear on the query, and assumptions you are making.",
		UserPrompt: query,
		JSONMode:   true,
	})
	if err != nil {
		observations = "fact recall unavailable, proceeding with given facts only"
		e.logger.Warn(ctx, "Fact recall call failed", map[string]interface{}{"error": err.Error()})
	} else {
		var recalled recalledFactsResponse
		if jsonErr := json.Unmarshal([]byte(resp.Content), &recalled); jsonErr != nil {
			observations = "fact recall returned malformed output, proceeding with given facts only"
			e.logger.Warn(ctx, "Fact recall output malformed", map[string]interface{}{"error": jsonErr.Error()})
		} else {
			facts.RecalledFacts = recalled.RecalledFacts
			facts.Assumptions = recalled.Assumptions
		}
	}

	if len(facts.Assumptions) == 0 {
		facts.Assumptions = []string{"retrieved documents are current enough to answer the query"}
	}
	e.assumptions = append(e.assumptions, facts.Assumptions...)

	e.append(ctx, domain.StepFactGathering,
		fmt.Sprintf("Gathered %d given, %d recalled facts and %d assumptions for: %s",
			len(facts.GivenFacts), len(facts.RecalledFacts), len(facts.Assumptions), query),
		observations,
		"create task plan")

	return facts
}

// planResponse is the structured contract for the planning call.
type planResponse struct {
	Objective       string   `json:"objective"`
	Steps           []string `json:"steps"`
	ExpectedOutcome string   `json:"expected_outcome"`
}

// CreatePlan produces a task plan for the objective. The planning model call
// is retried; if it stays unavailable the job cannot proceed and
// ErrPlanningUnavailable is returned. Malformed model output degrades to a
// deterministic default plan instead. Appends one PLANNING step.
func (e *Engine) CreatePlan(ctx context.Context, objective string, resources []string) (*domain.TaskPlan, error) {
	var resp *domain.CompletionResponse
	var err error

	for attempt := 1; attempt <= planAttempts; attempt++ {
		resp, err = e.completer.Complete(ctx, domain.CompletionRequest{
			SystemPrompt: "You are a research lead planning an investigation. " +
				"Respond with JSON: {\"objective\": \"...\", \"steps\": [...], \"expected_outcome\": \"...\"}.",
			UserPrompt: fmt.Sprintf("Objective: %s\nAvailable resources: %s",
				objective, strings.Join(resources, ", ")),
			JSONMode: true,
		})
		if err == nil {
			break
		}
		e.logger.Warn(ctx, "Planning call failed", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlanningUnavailable, err)
	}

	plan := &domain.TaskPlan{
		Objective:       objective,
		ExpectedOutcome: "a synthesized report answering the objective",
		Resources:       resources,
	}

	observations := ""
	var parsed planResponse
	if jsonErr := json.Unmarshal([]byte(resp.Content), &parsed); jsonErr != nil || len(parsed.Steps) == 0 {
		observations = "planning output malformed, using default plan structure"
		plan.Steps = []string{
			"classify query complexity",
			"select focus areas and decompose into specialist tasks",
			"execute specialist tasks against retrieval",
			"validate progress",
			"synthesize final report",
		}
	} else {
		plan.Steps = parsed.Steps
		if parsed.ExpectedOutcome != "" {
			plan.ExpectedOutcome = parsed.ExpectedOutcome
		}
	}

	e.append(ctx, domain.StepPlanning,
		fmt.Sprintf("Created plan with %d steps for objective: %s", len(plan.Steps), objective),
		observations,
		"decompose into specialist tasks")

	return plan, nil
}

// ExecuteStep records one execution iteration. Appends one EXECUTION step.
func (e *Engine) ExecuteStep(ctx context.Context, description, action, result string) domain.ReasoningStep {
	e.iterations++
	return e.append(ctx, domain.StepExecution,
		description,
		result,
		action)
}

// RecordObservation attaches an observation to the log as part of the most
// recent phase, without advancing the state machine. Used for side notes such
// as a focus-selection fallback.
func (e *Engine) RecordObservation(ctx context.Context, observation string) {
	e.append(ctx, domain.StepFactGathering, "Observation", observation, "")
}

// ValidateProgress assesses whether the task is answered, detects reasoning
// loops, and scores confidence. Appends one VALIDATION step.
//
// Loop detection examines the last 4 recorded steps: if they span at most 2
// distinct step types and more than 3 execution iterations have run, the
// engine is considered stuck.
func (e *Engine) ValidateProgress(ctx context.Context, originalTask, answer string, sourceCount int) *domain.ValidationResult {
	completed := strings.TrimSpace(answer) != "" && sourceCount >= 1

	inLoop := false
	recent := e.log.LastN(4)
	if len(recent) == 4 && e.iterations > 3 {
		distinct := make(map[domain.StepType]bool)
		for _, s := range recent {
			distinct[s.Type] = true
		}
		if len(distinct) <= 2 {
			inLoop = true
		}
	}

	execCount := e.log.CountByType(domain.StepExecution)
	validationCount := e.log.CountByType(domain.StepValidation) + 1 // including this one
	reflectionCount := e.log.CountByType(domain.StepReflection)

	confidence := 0.3*float64(execCount) + 0.2*float64(validationCount)
	if confidence > 1.0 {
		confidence = 1.0
	}
	if inLoop {
		confidence -= 0.3
	}
	confidence -= 0.1 * float64(reflectionCount)
	if confidence < 0.0 {
		confidence = 0.0
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	result := &domain.ValidationResult{
		TaskCompleted:   completed,
		InLoop:          inLoop,
		Confidence:      confidence,
		ProgressSummary: fmt.Sprintf("%d execution, %d validation, %d reflection steps; answer present: %t, sources: %d", execCount, validationCount, reflectionCount, completed, sourceCount),
	}
	if !completed {
		result.NextInstruction = fmt.Sprintf("gather more material for: %s", originalTask)
	}

	e.append(ctx, domain.StepValidation,
		result.ProgressSummary,
		fmt.Sprintf("in_loop=%t confidence=%.2f", inLoop, confidence),
		result.NextInstruction)

	return result
}

// ReflectAndAdjust records what went wrong, adjusts working assumptions, and
// returns a revised plan. The previous plan is kept by the caller, not
// destroyed. Appends one REFLECTION step.
func (e *Engine) ReflectAndAdjust(ctx context.Context, whatWentWrong string, previous *domain.TaskPlan) *domain.TaskPlan {
	if strings.Contains(strings.ToLower(whatWentWrong), "timeout") {
		e.assumptions = append(e.assumptions, "external calls may need longer timeouts")
	}

	revised := &domain.TaskPlan{
		Objective:       previous.Objective,
		ExpectedOutcome: previous.ExpectedOutcome,
		Resources:       previous.Resources,
	}
	revised.Steps = append(revised.Steps, previous.Steps...)
	revised.Steps = append(revised.Steps, "retry failed specialist tasks with adjusted queries")

	e.append(ctx, domain.StepReflection,
		fmt.Sprintf("Reflection: %s", whatWentWrong),
		fmt.Sprintf("revised plan has %d steps", len(revised.Steps)),
		"re-decompose and retry once")

	return revised
}

// RecordSynthesis marks the terminal synthesis phase in the trace.
func (e *Engine) RecordSynthesis(ctx context.Context, summary string) {
	e.append(ctx, domain.StepSynthesis, summary, "", "")
}
