package observability_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagehive/sagehive/pkg/observability"
)

func newDisabledTelemetry(t *testing.T) *observability.Telemetry {
	t.Helper()

	telemetry, err := observability.NewTelemetry(&observability.TelemetryConfig{
		ServiceName:    "instrumentation-test",
		ServiceVersion: "test",
		Environment:    "test",
		SamplingRate:   1.0,
	})
	require.NoError(t, err)
	return telemetry
}

func TestInstrumentPhase(t *testing.T) {
	telemetry := newDisabledTelemetry(t)

	called := false
	err := telemetry.InstrumentPhase(context.Background(), "planning", "job-1", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	phaseErr := fmt.Errorf("planning broke")
	err = telemetry.InstrumentPhase(context.Background(), "planning", "job-1", func(ctx context.Context) error {
		return phaseErr
	})
	assert.ErrorIs(t, err, phaseErr)
}

func TestInstrumentLLMCall(t *testing.T) {
	telemetry := newDisabledTelemetry(t)

	err := telemetry.InstrumentLLMCall(context.Background(), "llama3.2", func(ctx context.Context) (int, int, error) {
		return 120, 80, nil
	})
	assert.NoError(t, err)

	callErr := fmt.Errorf("model down")
	err = telemetry.InstrumentLLMCall(context.Background(), "llama3.2", func(ctx context.Context) (int, int, error) {
		return 0, 0, callErr
	})
	assert.ErrorIs(t, err, callErr)
}

func TestInstrumentRetrieval(t *testing.T) {
	telemetry := newDisabledTelemetry(t)

	err := telemetry.InstrumentRetrieval(context.Background(), "temporal graphs", func(ctx context.Context) (int, error) {
		return 3, nil
	})
	assert.NoError(t, err)

	searchErr := fmt.Errorf("backend down")
	err = telemetry.InstrumentRetrieval(context.Background(), "temporal graphs", func(ctx context.Context) (int, error) {
		return 0, searchErr
	})
	assert.ErrorIs(t, err, searchErr)
}

func TestStartJobSpan(t *testing.T) {
	telemetry := newDisabledTelemetry(t)

	ctx, span := telemetry.StartJobSpan(context.Background(), "job-1", "query", "simple")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}
