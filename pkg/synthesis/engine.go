package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// Validator produces the final confidence assessment; satisfied by
// reasoning.Engine.
type Validator interface {
	ValidateProgress(ctx context.Context, originalTask, answer string, sourceCount int) *domain.ValidationResult
}

// Engine reconciles all sub-agent outputs plus the reasoning trace into one
// structured report. The report structure is deterministic; its content is
// model-driven. A failed synthesis call degrades to plain concatenation of
// sub-agent outputs under section headers.
type Engine struct {
	completer domain.Completer
	logger    observability.Logger
	metrics   *observability.Metrics
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithMetrics attaches fallback metrics.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a synthesis engine.
func NewEngine(completer domain.Completer, logger observability.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		completer: completer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synthesize produces the final report and confidence score for a job whose
// sub-agent results have settled. Never fails: synthesis degradation is
// absorbed here.
func (e *Engine) Synthesize(ctx context.Context, job *domain.ResearchJob, validator Validator) (string, float64) {
	completed := completedByFocus(job)

	report := ""
	if len(completed) > 0 || job.FinalReport != "" {
		resp, err := e.completer.Complete(ctx, domain.CompletionRequest{
			SystemPrompt: synthesisSystemPrompt,
			UserPrompt:   buildSynthesisPrompt(job, completed),
		})
		if err != nil {
			e.logger.Warn(ctx, "Synthesis call failed, falling back to concatenation", map[string]interface{}{
				"job_id": job.ID,
				"error":  err.Error(),
			})
			if e.metrics != nil {
				e.metrics.RecordSynthesisFallback(ctx)
			}
			report = concatenate(job, completed)
		} else {
			report = resp.Content
		}
	}

	sourceCount := len(job.Sources())
	validation := validator.ValidateProgress(ctx, job.Query, report, sourceCount)

	confidence := validation.Confidence
	if report == "" && len(completed) == 0 {
		confidence = 0.0
	}

	return report, confidence
}

const synthesisSystemPrompt = "You are the lead researcher assembling a final report from specialist " +
	"findings. Cross-reference the findings, explicitly flag any contradictions between specialists, " +
	"and produce a structured report with an executive summary followed by a findings section per " +
	"focus area. Preserve source citations."

type taggedResult struct {
	focus   domain.FocusArea
	content string
}

func completedByFocus(job *domain.ResearchJob) []taggedResult {
	focusByTask := make(map[string]domain.FocusArea, len(job.Tasks))
	for _, t := range job.Tasks {
		focusByTask[t.ID] = t.FocusArea
	}

	var out []taggedResult
	for _, r := range job.Results {
		if r.Status != domain.ResultCompleted || strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, taggedResult{
			focus:   focusByTask[r.TaskID],
			content: r.Content,
		})
	}
	return out
}

func buildSynthesisPrompt(job *domain.ResearchJob, completed []taggedResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research query: %s\n", job.Query)
	if job.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", job.Objective)
	}

	b.WriteString("\nReasoning trace:\n")
	for _, step := range job.Trace {
		fmt.Fprintf(&b, "- [%s] %s", step.Type, step.Content)
		if step.Observations != "" {
			fmt.Fprintf(&b, " (%s)", step.Observations)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nSpecialist findings:\n")
	for _, r := range completed {
		fmt.Fprintf(&b, "\n### %s\n%s\n", r.focus, r.content)
	}

	if job.FinalReport != "" && len(completed) == 0 {
		fmt.Fprintf(&b, "\nEmergency retrieval material:\n%s\n", job.FinalReport)
	}

	return b.String()
}

// concatenate is the degraded-mode report: sub-agent outputs under section
// headers, no cross-referencing.
func concatenate(job *domain.ResearchJob, completed []taggedResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Report: %s\n", job.Query)

	for _, r := range completed {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", titleCase(string(r.focus)), r.content)
	}

	if len(completed) == 0 && job.FinalReport != "" {
		fmt.Fprintf(&b, "\n%s\n", job.FinalReport)
	}

	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
