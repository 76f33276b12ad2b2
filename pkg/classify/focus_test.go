package classify_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagehive/sagehive/internal/testutil"
	"github.com/sagehive/sagehive/pkg/classify"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

type recordingObserver struct {
	observations []string
}

func (r *recordingObserver) RecordObservation(_ context.Context, observation string) {
	r.observations = append(r.observations, observation)
}

func newSelector(mock *testutil.MockCompleter, recorder classify.ObservationRecorder) *classify.FocusSelector {
	observability.SetLogOutput(io.Discard)
	logger := observability.NewStructuredLogger("focus-test")
	return classify.NewFocusSelector(mock, logger, recorder)
}

func TestSelectSimpleQuery(t *testing.T) {
	mock := testutil.NewMockCompleter()
	mock.Responses["default"] = `{"focus_areas": ["general", "overview"]}`
	selector := newSelector(mock, nil)

	areas := selector.Select(context.Background(), "What is a temporal knowledge graph?", domain.ComplexitySimple)

	// One pattern match (conceptual via "what is"), fallback consulted for
	// the rest, truncated to the SIMPLE fan-out of 2.
	assert.Equal(t, []domain.FocusArea{domain.FocusConceptual, domain.FocusGeneral}, areas)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestSelectComparativeQuery(t *testing.T) {
	mock := testutil.NewMockCompleter()
	selector := newSelector(mock, nil)

	areas := selector.Select(context.Background(), "Compare Zep vs MemGPT for production chatbots", domain.ComplexityComplex)

	assert.Contains(t, areas, domain.FocusComparative)
	assert.Contains(t, areas, domain.FocusApplications)
	// Two or more pattern matches: the model is never consulted.
	assert.Equal(t, 0, mock.GetCallCount())
}

func TestSelectFallbackFailureDegrades(t *testing.T) {
	mock := testutil.NewMockCompleter()
	mock.ShouldError = true
	mock.ErrorMessage = "timeout"
	recorder := &recordingObserver{}
	selector := newSelector(mock, recorder)

	areas := selector.Select(context.Background(), "agent memory systems", domain.ComplexityModerate)

	assert.Equal(t, []domain.FocusArea{domain.FocusOverview, domain.FocusGeneral}, areas)
	require.NotEmpty(t, recorder.observations)
	assert.Contains(t, recorder.observations[0], "fallback call failed")
}

func TestSelectFallbackMalformedOutputDegrades(t *testing.T) {
	mock := testutil.NewMockCompleter()
	mock.Responses["default"] = "plain text, not json"
	selector := newSelector(mock, nil)

	areas := selector.Select(context.Background(), "agent memory systems", domain.ComplexityModerate)

	assert.Equal(t, []domain.FocusArea{domain.FocusOverview, domain.FocusGeneral}, areas)
}

func TestSelectFallbackUnknownAreasDropped(t *testing.T) {
	mock := testutil.NewMockCompleter()
	mock.Responses["default"] = `{"focus_areas": ["philosophical", "technical"]}`
	selector := newSelector(mock, nil)

	areas := selector.Select(context.Background(), "agent memory systems", domain.ComplexityModerate)

	assert.Equal(t, []domain.FocusArea{domain.FocusTechnical}, areas)
}

func TestSelectTruncatesToFanOut(t *testing.T) {
	mock := testutil.NewMockCompleter()
	selector := newSelector(mock, nil)

	// Cues for conceptual, technical, comparative, and applications.
	query := "What is the definition, the technical architecture, a comparison, and the production use case?"
	areas := selector.Select(context.Background(), query, domain.ComplexitySimple)

	assert.Len(t, areas, domain.ComplexitySimple.FanOut())
}

func TestSelectNoDuplicates(t *testing.T) {
	mock := testutil.NewMockCompleter()
	mock.Responses["default"] = `{"focus_areas": ["technical", "technical", "general"]}`
	selector := newSelector(mock, nil)

	areas := selector.Select(context.Background(), "How does the algorithm work?", domain.ComplexityVeryComplex)

	seen := make(map[domain.FocusArea]int)
	for _, a := range areas {
		seen[a]++
		assert.Equal(t, 1, seen[a], "duplicate focus area %s", a)
	}
}
