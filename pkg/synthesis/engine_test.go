package synthesis_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sagehive/sagehive/internal/testutil"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
	"github.com/sagehive/sagehive/pkg/synthesis"
)

type stubValidator struct {
	result *domain.ValidationResult
}

func (v *stubValidator) ValidateProgress(_ context.Context, _, _ string, _ int) *domain.ValidationResult {
	return v.result
}

func testLogger() observability.Logger {
	observability.SetLogOutput(io.Discard)
	return observability.NewStructuredLogger("synthesis-test")
}

func jobWithResults() *domain.ResearchJob {
	job := testutil.NewTestJob("Compare Zep vs MemGPT")
	job.Tasks = []domain.SubagentTask{
		{ID: "t1", FocusArea: domain.FocusComparative, Specialist: domain.SpecialistComparative},
		{ID: "t2", FocusArea: domain.FocusApplications, Specialist: domain.SpecialistExamples},
		{ID: "t3", FocusArea: domain.FocusGeneral, Specialist: domain.SpecialistGeneral},
	}
	job.Results = []domain.SubagentResult{
		{TaskID: "t1", Status: domain.ResultCompleted, Content: "Zep favors temporal graphs.",
			Sources: []domain.SourceRef{{SourceID: "doc-1", Score: 0.9}}},
		{TaskID: "t2", Status: domain.ResultCompleted, Content: "MemGPT shines in chat products.",
			Sources: []domain.SourceRef{{SourceID: "doc-2", Score: 0.8}}},
		{TaskID: "t3", Status: domain.ResultFailed, Error: "boom"},
	}
	job.Trace = []domain.ReasoningStep{
		{Type: domain.StepPlanning, Content: "Created plan"},
		{Type: domain.StepExecution, Content: "Ran specialists"},
	}
	return job
}

func TestSynthesize(t *testing.T) {
	completer := testutil.NewMockCompleter()
	completer.Responses["default"] = "## Executive Summary\nBoth tools work."

	engine := synthesis.NewEngine(completer, testLogger())
	validator := &stubValidator{result: &domain.ValidationResult{TaskCompleted: true, Confidence: 0.8}}

	report, confidence := engine.Synthesize(context.Background(), jobWithResults(), validator)

	assert.Equal(t, "## Executive Summary\nBoth tools work.", report)
	assert.Equal(t, 0.8, confidence)

	// The prompt carries the trace and the findings tagged by focus area,
	// and only COMPLETED results.
	prompt := completer.GetLastRequest().UserPrompt
	assert.Contains(t, prompt, "Reasoning trace")
	assert.Contains(t, prompt, "### comparative")
	assert.Contains(t, prompt, "Zep favors temporal graphs.")
	assert.Contains(t, prompt, "### applications")
	assert.NotContains(t, prompt, "boom")
	assert.Contains(t, completer.GetLastRequest().SystemPrompt, "contradictions")
}

func TestSynthesizeFallbackConcatenation(t *testing.T) {
	completer := testutil.NewMockCompleter()
	completer.ShouldError = true
	completer.ErrorMessage = "model down"

	engine := synthesis.NewEngine(completer, testLogger())
	validator := &stubValidator{result: &domain.ValidationResult{Confidence: 0.5}}

	report, confidence := engine.Synthesize(context.Background(), jobWithResults(), validator)

	// Degraded report still contains every completed finding under headers.
	assert.Contains(t, report, "# Research Report: Compare Zep vs MemGPT")
	assert.Contains(t, report, "## Comparative")
	assert.Contains(t, report, "Zep favors temporal graphs.")
	assert.Contains(t, report, "MemGPT shines in chat products.")
	assert.Equal(t, 0.5, confidence)
}

func TestSynthesizeNoResults(t *testing.T) {
	completer := testutil.NewMockCompleter()

	engine := synthesis.NewEngine(completer, testLogger())
	validator := &stubValidator{result: &domain.ValidationResult{Confidence: 0.4}}

	job := testutil.NewTestJob("query")
	report, confidence := engine.Synthesize(context.Background(), job, validator)

	assert.Empty(t, report)
	assert.Equal(t, 0.0, confidence)
	// No findings to synthesize: no model call either.
	assert.Equal(t, 0, completer.GetCallCount())
}

func TestSynthesizeEmergencyMaterial(t *testing.T) {
	completer := testutil.NewMockCompleter()
	completer.Responses["default"] = "Report from emergency material."

	engine := synthesis.NewEngine(completer, testLogger())
	validator := &stubValidator{result: &domain.ValidationResult{Confidence: 0.3}}

	job := testutil.NewTestJob("query")
	job.FinalReport = "raw retrieval text"

	report, confidence := engine.Synthesize(context.Background(), job, validator)

	assert.Equal(t, "Report from emergency material.", report)
	assert.Equal(t, 0.3, confidence)
	assert.Contains(t, completer.GetLastRequest().UserPrompt, "raw retrieval text")
}
