package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// TestTimeout provides a standard timeout for test contexts
const TestTimeout = 5 * time.Second

// NewTestContext creates a context with standard test timeout
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestJob creates a test research job
func NewTestJob(query string) *domain.ResearchJob {
	now := time.Now()
	return &domain.ResearchJob{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestTask creates a test sub-agent task
func NewTestTask(focus domain.FocusArea, query string) domain.SubagentTask {
	return domain.SubagentTask{
		ID:            uuid.NewString(),
		FocusArea:     focus,
		AdjustedQuery: query,
		Specialist:    focus.Specialist(),
		Timeout:       TestTimeout,
	}
}

// NewTestMetrics creates a Metrics instance backed by a manual reader, so no
// exporter is needed in tests.
func NewTestMetrics(t *testing.T) *observability.Metrics {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	metrics, err := observability.NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create test metrics: %v", err)
	}
	return metrics
}

// NewTestTelemetry creates telemetry with tracing and metrics disabled.
func NewTestTelemetry(t *testing.T) *observability.Telemetry {
	t.Helper()

	telemetry, err := observability.NewTelemetry(&observability.TelemetryConfig{
		ServiceName:    "test-service",
		ServiceVersion: "test",
		Environment:    "test",
		EnableTracing:  false,
		EnableMetrics:  false,
		SamplingRate:   1.0,
	})
	if err != nil {
		t.Fatalf("failed to create test telemetry: %v", err)
	}
	return telemetry
}
