package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// InstrumentedCompleter wraps a Completer with spans, metrics, and token
// budget enforcement.
type InstrumentedCompleter struct {
	completer domain.Completer
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	budget    *TokenBudget
	model     string
}

// NewInstrumentedCompleter creates a new instrumented completer. The budget
// may be nil, in which case no limit is enforced.
func NewInstrumentedCompleter(completer domain.Completer, telemetry *observability.Telemetry, metrics *observability.Metrics, budget *TokenBudget, model string) (*InstrumentedCompleter, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}

	return &InstrumentedCompleter{
		completer: completer,
		telemetry: telemetry,
		metrics:   metrics,
		budget:    budget,
		model:     model,
	}, nil
}

// Complete performs an instrumented completion. The span is managed by the
// telemetry LLM wrapper; token accounting happens here.
func (c *InstrumentedCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if c.budget != nil && c.budget.Exhausted() {
		return nil, ErrBudgetExhausted
	}

	var response *domain.CompletionResponse
	startTime := time.Now()

	err := c.telemetry.InstrumentLLMCall(ctx, c.model, func(ctx context.Context) (int, int, error) {
		var callErr error
		response, callErr = c.completer.Complete(ctx, req)
		if callErr != nil {
			return 0, 0, callErr
		}
		return response.Usage.PromptTokens, response.Usage.CompletionTokens, nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.RecordLLMRequest(ctx, c.model,
		int64(response.Usage.PromptTokens),
		int64(response.Usage.CompletionTokens),
		time.Since(startTime))

	if c.budget != nil {
		c.budget.Consume(int64(response.Usage.TotalTokens))
	}

	return response, nil
}
