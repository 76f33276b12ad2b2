package orchestrator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagehive/sagehive/internal/testutil"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
	"github.com/sagehive/sagehive/pkg/orchestrator"
	"github.com/sagehive/sagehive/pkg/subagent"
	"github.com/sagehive/sagehive/pkg/synthesis"
)

// routingCompleter answers JSON-mode calls per phase and free-text calls with
// a canned specialist answer.
func routingCompleter() *testutil.MockCompleter {
	mock := testutil.NewMockCompleter()
	mock.CompleteFunc = func(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
		content := "A focused specialist answer citing [1]."
		if req.JSONMode {
			switch {
			case strings.Contains(req.SystemPrompt, "recalled_facts"):
				content = `{"recalled_facts": ["graphs model relations"], "assumptions": ["query is answerable"]}`
			case strings.Contains(req.SystemPrompt, "expected_outcome"):
				content = `{"objective": "o", "steps": ["retrieve", "synthesize"], "expected_outcome": "a report"}`
			case strings.Contains(req.SystemPrompt, "focus_areas"):
				content = `{"focus_areas": ["general", "overview"]}`
			}
		}
		return &domain.CompletionResponse{
			Content:      content,
			Usage:        domain.TokenUsage{PromptTokens: 50, CompletionTokens: 50, TotalTokens: 100},
			FinishReason: "stop",
		}, nil
	}
	return mock
}

type failingRunner struct{}

func (failingRunner) Run(_ context.Context, _ domain.SubagentTask, _ float64) (string, []domain.SourceRef, error) {
	return "", nil, fmt.Errorf("mocked specialist failure")
}

func testLogger() observability.Logger {
	observability.SetLogOutput(io.Discard)
	return observability.NewStructuredLogger("orchestrator-test")
}

func newOrchestrator(t *testing.T, completer domain.Completer, retriever domain.Retriever, runner subagent.TaskRunner) *orchestrator.Orchestrator {
	t.Helper()

	logger := testLogger()

	if runner == nil {
		runner = subagent.NewSpecialist(completer, retriever, logger, 10)
	}

	o, err := orchestrator.New(orchestrator.Options{
		Completer:      completer,
		Retriever:      retriever,
		Store:          orchestrator.NewJobStore(100),
		Executor:       subagent.NewExecutor(runner, 4, logger),
		Synthesis:      synthesis.NewEngine(completer, logger),
		Logger:         logger,
		Metrics:        testutil.NewTestMetrics(t),
		Telemetry:      testutil.NewTestTelemetry(t),
		TaskTimeout:    2 * time.Second,
		JobTimeout:     10 * time.Second,
		MaxReflections: 1,
		MaxCandidates:  10,
	})
	require.NoError(t, err)
	return o
}

func TestResearchJobEndToEnd(t *testing.T) {
	completer := routingCompleter()
	retriever := testutil.NewMockRetriever()
	retriever.Documents = []domain.RetrievedDocument{
		{Content: "A temporal knowledge graph tracks facts over time.", SourceID: "doc-1", Score: 0.9},
	}

	o := newOrchestrator(t, completer, retriever, nil)
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "What is a temporal knowledge graph?", domain.SubmitOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, domain.ComplexitySimple, job.Complexity)
	assert.Len(t, job.Tasks, 2)
	assert.Equal(t, len(job.Tasks), len(job.Results))
	assert.NotEmpty(t, job.FinalReport)
	assert.GreaterOrEqual(t, job.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, job.ConfidenceScore, 1.0)
	assert.NotEmpty(t, job.Trace)
	assert.NotEmpty(t, job.Sources())

	// The trace walks the reasoning cycle in order, through to synthesis.
	assert.Equal(t, domain.StepFactGathering, job.Trace[0].Type)
	assert.Equal(t, domain.StepPlanning, job.Trace[1].Type)
	assert.Equal(t, domain.StepSynthesis, job.Trace[len(job.Trace)-1].Type)

	validations := 0
	for _, step := range job.Trace {
		if step.Type == domain.StepValidation {
			validations++
		}
	}
	// One validation after execution, one more inside synthesis.
	assert.Equal(t, 2, validations)
}

func TestAllSubagentsFailStillCompletes(t *testing.T) {
	completer := routingCompleter()
	retriever := testutil.NewMockRetriever()
	retriever.Documents = []domain.RetrievedDocument{
		{Content: "Emergency material.", SourceID: "doc-9", Score: 0.95},
	}

	o := newOrchestrator(t, completer, retriever, failingRunner{})
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "How does vector similarity search work?", domain.SubmitOptions{})
	require.NoError(t, err)

	job, err := o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)

	// Every specialist failed, yet the job completed via the single-shot
	// retrieval fallback.
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, len(job.Tasks), len(job.Results))
	for _, r := range job.Results {
		assert.Equal(t, domain.ResultFailed, r.Status)
	}
	assert.NotEmpty(t, job.FinalReport)
	assert.GreaterOrEqual(t, job.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, job.ConfidenceScore, 1.0)
	assert.GreaterOrEqual(t, retriever.GetCallCount(), 1)
}

func TestPlanningUnavailableFailsJob(t *testing.T) {
	completer := testutil.NewMockCompleter()
	completer.ShouldError = true
	completer.ErrorMessage = "model unavailable"

	o := newOrchestrator(t, completer, testutil.NewMockRetriever(), nil)
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "Explain agent memory", domain.SubmitOptions{})
	require.NoError(t, err)

	job, err := o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.Error, "planning model unavailable")
}

func TestGetStatusIdempotent(t *testing.T) {
	completer := routingCompleter()
	o := newOrchestrator(t, completer, testutil.NewMockRetriever(), nil)
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "What is episodic memory?", domain.SubmitOptions{})
	require.NoError(t, err)

	_, err = o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)

	first, err := o.GetStatus(ctx, jobID)
	require.NoError(t, err)
	second, err := o.GetStatus(ctx, jobID)
	require.NoError(t, err)

	// No re-synthesis on read.
	assert.Equal(t, first.FinalReport, second.FinalReport)
	assert.Equal(t, first.ConfidenceScore, second.ConfidenceScore)
	assert.Equal(t, len(first.Trace), len(second.Trace))
}

func TestGetStatusUnknownJob(t *testing.T) {
	o := newOrchestrator(t, routingCompleter(), testutil.NewMockRetriever(), nil)

	_, err := o.GetStatus(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestSubmitRejectsEmptyQuery(t *testing.T) {
	o := newOrchestrator(t, routingCompleter(), testutil.NewMockRetriever(), nil)

	_, err := o.Submit(context.Background(), "   ", domain.SubmitOptions{})
	assert.Error(t, err)
}

func TestAwaitTimeout(t *testing.T) {
	completer := routingCompleter()
	slowRunner := &slowRunnerT{delay: 300 * time.Millisecond}

	o := newOrchestrator(t, completer, testutil.NewMockRetriever(), slowRunner)
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "What is a knowledge graph?", domain.SubmitOptions{})
	require.NoError(t, err)

	_, err = o.Await(ctx, jobID, 10*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrAwaitTimeout)

	// Waiting long enough still yields the completed job.
	job, err := o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
}

type slowRunnerT struct {
	delay time.Duration
}

func (r *slowRunnerT) Run(ctx context.Context, _ domain.SubagentTask, _ float64) (string, []domain.SourceRef, error) {
	select {
	case <-time.After(r.delay):
		return "slow answer", []domain.SourceRef{{SourceID: "doc-1", Score: 0.9}}, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func TestJobStatusRoundTrip(t *testing.T) {
	completer := routingCompleter()
	retriever := testutil.NewMockRetriever()

	o := newOrchestrator(t, completer, retriever, nil)
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "Compare Zep vs MemGPT for production chatbots", domain.SubmitOptions{})
	require.NoError(t, err)

	job, err := o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)

	payload, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded domain.ResearchJob
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, job.Status, decoded.Status)
	assert.Equal(t, len(job.Tasks), len(decoded.Tasks))
	assert.Equal(t, len(job.Results), len(decoded.Results))
	assert.Equal(t, len(decoded.Tasks), len(decoded.Results))
}

func TestFocusOverrideRespected(t *testing.T) {
	completer := routingCompleter()
	o := newOrchestrator(t, completer, testutil.NewMockRetriever(), nil)
	ctx := context.Background()

	jobID, err := o.Submit(ctx, "What is a knowledge graph?", domain.SubmitOptions{
		FocusAreas:     []domain.FocusArea{domain.FocusTechnical},
		MaxSpecialists: 1,
	})
	require.NoError(t, err)

	job, err := o.Await(ctx, jobID, 5*time.Second)
	require.NoError(t, err)

	require.Len(t, job.Tasks, 1)
	assert.Equal(t, domain.FocusTechnical, job.Tasks[0].FocusArea)
}
