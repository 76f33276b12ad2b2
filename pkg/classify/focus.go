package classify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// focusKeywords maps each focus area to the lexical cues that select it.
// GENERAL has no cues; it only enters through the fallback path.
var focusKeywords = map[domain.FocusArea][]string{
	domain.FocusConceptual: {
		"what is", "what are", "concept", "definition", "define", "meaning", "theory",
	},
	domain.FocusTechnical: {
		"how does", "how do", "implementation", "architecture", "technical", "algorithm", "internals", "protocol",
	},
	domain.FocusComparative: {
		" vs ", " vs. ", "versus", "compare", "comparison", "difference", "better than", "contrast",
	},
	domain.FocusExamples: {
		"example", "sample", "demonstration", "show me", "walkthrough",
	},
	domain.FocusOverview: {
		"overview", "summary", "introduction", "landscape", "state of the art",
	},
	domain.FocusApplications: {
		"use case", "application", "production", "real-world", "practical", "deploy",
	},
}

// ObservationRecorder receives side notes for the reasoning trace, such as a
// focus-selection fallback being taken.
type ObservationRecorder interface {
	RecordObservation(ctx context.Context, observation string)
}

// FocusSelector maps a query and complexity tier to an ordered list of focus
// areas, capped at the tier's fan-out.
//
// The deterministic keyword scan wins outright when it yields two or more
// areas. The model-assisted fallback is consulted only below that threshold,
// and its suggestions are appended after any scan matches; scan matches are
// never discarded.
type FocusSelector struct {
	completer domain.Completer
	logger    observability.Logger
	recorder  ObservationRecorder
}

// NewFocusSelector creates a focus selector. The recorder may be nil.
func NewFocusSelector(completer domain.Completer, logger observability.Logger, recorder ObservationRecorder) *FocusSelector {
	return &FocusSelector{
		completer: completer,
		logger:    logger,
		recorder:  recorder,
	}
}

// focusResponse is the structured contract for the fallback call.
type focusResponse struct {
	FocusAreas []string `json:"focus_areas"`
}

// Select returns focus areas for the query, in first-seen order, truncated to
// the tier's fan-out. Never fails: a broken fallback call degrades to
// ["overview", "general"].
func (s *FocusSelector) Select(ctx context.Context, query string, tier domain.ComplexityTier) []domain.FocusArea {
	q := strings.ToLower(query)

	var selected []domain.FocusArea
	seen := make(map[domain.FocusArea]bool)

	add := func(f domain.FocusArea) {
		if !seen[f] && f.Valid() {
			seen[f] = true
			selected = append(selected, f)
		}
	}

	for _, area := range domain.AllFocusAreas() {
		if matchesAny(q, focusKeywords[area]) {
			add(area)
		}
	}

	if len(selected) < 2 {
		for _, f := range s.fallback(ctx, query) {
			add(f)
		}
	}

	fanOut := tier.FanOut()
	if len(selected) > fanOut {
		selected = selected[:fanOut]
	}

	return selected
}

// fallback asks the model for 2-3 complementary focus areas. Any failure
// degrades to ["overview", "general"] with no error surfaced.
func (s *FocusSelector) fallback(ctx context.Context, query string) []domain.FocusArea {
	degraded := []domain.FocusArea{domain.FocusOverview, domain.FocusGeneral}

	resp, err := s.completer.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: "You are selecting research focus areas for a query. " +
			"Respond with JSON: {\"focus_areas\": [...]}, choosing 2-3 complementary values from: " +
			"conceptual, technical, comparative, examples, overview, applications, general.",
		UserPrompt: query,
		JSONMode:   true,
	})
	if err != nil {
		s.record(ctx, "focus selection fallback call failed, defaulting to overview+general")
		return degraded
	}

	var parsed focusResponse
	if jsonErr := json.Unmarshal([]byte(resp.Content), &parsed); jsonErr != nil || len(parsed.FocusAreas) == 0 {
		s.record(ctx, "focus selection fallback output malformed, defaulting to overview+general")
		return degraded
	}

	var areas []domain.FocusArea
	for _, raw := range parsed.FocusAreas {
		f := domain.FocusArea(strings.ToLower(strings.TrimSpace(raw)))
		if f.Valid() {
			areas = append(areas, f)
		}
	}
	if len(areas) == 0 {
		s.record(ctx, "focus selection fallback returned no known areas, defaulting to overview+general")
		return degraded
	}

	s.record(ctx, "focus areas chosen via model-assisted fallback")
	return areas
}

func (s *FocusSelector) record(ctx context.Context, observation string) {
	s.logger.Debug(ctx, observation)
	if s.recorder != nil {
		s.recorder.RecordObservation(ctx, observation)
	}
}
