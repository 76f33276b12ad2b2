package decompose

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// queryPrefixes bias the raw query toward each focus area. GENERAL keeps the
// query unmodified.
var queryPrefixes = map[domain.FocusArea]string{
	domain.FocusConceptual:   "conceptual foundations definition",
	domain.FocusTechnical:    "technical implementation architecture",
	domain.FocusComparative:  "comparison differences trade-offs",
	domain.FocusExamples:     "examples demonstrations case studies",
	domain.FocusOverview:     "overview summary landscape",
	domain.FocusApplications: "practical applications use cases",
}

// FocusSelector yields focus areas for a query; satisfied by
// classify.FocusSelector.
type FocusSelector interface {
	Select(ctx context.Context, query string, tier domain.ComplexityTier) []domain.FocusArea
}

// Decomposer turns a query into a list of specialist sub-agent tasks. It
// always produces at least one task: any selection failure falls back to a
// single GENERAL task over the unmodified query.
type Decomposer struct {
	selector    FocusSelector
	logger      observability.Logger
	taskTimeout time.Duration
}

// NewDecomposer creates a task decomposer. taskTimeout is the fixed
// per-deployment timeout stamped on every task.
func NewDecomposer(selector FocusSelector, logger observability.Logger, taskTimeout time.Duration) *Decomposer {
	return &Decomposer{
		selector:    selector,
		logger:      logger,
		taskTimeout: taskTimeout,
	}
}

// Decompose builds one task per selected focus area, capped at the tier's
// fan-out and the caller's MaxSpecialists override when given. Caller-supplied
// focus areas bypass selection; unknown values among them are dropped.
func (d *Decomposer) Decompose(ctx context.Context, query string, tier domain.ComplexityTier, opts domain.SubmitOptions) []domain.SubagentTask {
	var areas []domain.FocusArea

	if len(opts.FocusAreas) > 0 {
		seen := make(map[domain.FocusArea]bool)
		for _, f := range opts.FocusAreas {
			if f.Valid() && !seen[f] {
				seen[f] = true
				areas = append(areas, f)
			}
		}
	} else {
		areas = d.selector.Select(ctx, query, tier)
	}

	limit := tier.FanOut()
	if opts.MaxSpecialists > 0 && opts.MaxSpecialists < limit {
		limit = opts.MaxSpecialists
	}
	if len(areas) > limit {
		areas = areas[:limit]
	}

	if len(areas) == 0 {
		d.logger.Warn(ctx, "No focus areas selected, falling back to a single general task")
		areas = []domain.FocusArea{domain.FocusGeneral}
	}

	tasks := make([]domain.SubagentTask, 0, len(areas))
	for _, area := range areas {
		tasks = append(tasks, domain.SubagentTask{
			ID:            uuid.NewString(),
			FocusArea:     area,
			AdjustedQuery: adjustQuery(query, area),
			Specialist:    area.Specialist(),
			Timeout:       d.taskTimeout,
		})
	}

	d.logger.Debug(ctx, "Decomposed query into specialist tasks", map[string]interface{}{
		"task_count": len(tasks),
		"tier":       string(tier),
	})

	return tasks
}

// FallbackTask returns the single GENERAL task used when decomposition
// produced nothing usable.
func (d *Decomposer) FallbackTask(query string) domain.SubagentTask {
	return domain.SubagentTask{
		ID:            uuid.NewString(),
		FocusArea:     domain.FocusGeneral,
		AdjustedQuery: query,
		Specialist:    domain.SpecialistGeneral,
		Timeout:       d.taskTimeout,
	}
}

func adjustQuery(query string, area domain.FocusArea) string {
	prefix, ok := queryPrefixes[area]
	if !ok {
		return query
	}
	return fmt.Sprintf("%s %s", prefix, query)
}
