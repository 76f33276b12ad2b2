package subagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// specialistPrompts holds the system prompt for each specialist role.
var specialistPrompts = map[domain.SpecialistType]string{
	domain.SpecialistConceptual: "You are a conceptual research specialist. Explain the core concepts, " +
		"definitions, and theory behind the question using the provided documents. Cite which document " +
		"each claim comes from.",
	domain.SpecialistTechnical: "You are a technical research specialist. Focus on implementation details, " +
		"architecture, and algorithms found in the provided documents. Cite which document each claim " +
		"comes from.",
	domain.SpecialistComparative: "You are a comparative analysis specialist. Lay out similarities, " +
		"differences, and trade-offs between the alternatives discussed, grounded in the provided " +
		"documents. Cite which document each claim comes from.",
	domain.SpecialistExamples: "You are an examples and applications specialist. Surface concrete examples, " +
		"case studies, and practical uses from the provided documents. Cite which document each claim " +
		"comes from.",
	domain.SpecialistGeneral: "You are a general research specialist. Give a balanced, well-organized answer " +
		"to the question using the provided documents. Cite which document each claim comes from.",
}

// queryRefinements sharpen the retrieval query per specialist role, on top of
// the focus-area adjustment done at decomposition.
var queryRefinements = map[domain.SpecialistType]string{
	domain.SpecialistConceptual:  "definition theory",
	domain.SpecialistTechnical:   "design internals",
	domain.SpecialistComparative: "strengths weaknesses",
	domain.SpecialistExamples:    "real deployments",
}

// Specialist executes one sub-agent task: retrieve documents for the task's
// adjusted query, then produce a focused answer from them. Dispatch over the
// five roles is by switch on the task's specialist type, not by separate
// implementations.
type Specialist struct {
	completer     domain.Completer
	retriever     domain.Retriever
	logger        observability.Logger
	maxCandidates int
}

// NewSpecialist creates a specialist runner shared by all roles.
func NewSpecialist(completer domain.Completer, retriever domain.Retriever, logger observability.Logger, maxCandidates int) *Specialist {
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	return &Specialist{
		completer:     completer,
		retriever:     retriever,
		logger:        logger,
		maxCandidates: maxCandidates,
	}
}

// Run performs the retrieve-then-answer pipeline for one task. The threshold
// is the similarity cutoff derived from the job's complexity tier.
func (s *Specialist) Run(ctx context.Context, task domain.SubagentTask, threshold float64) (string, []domain.SourceRef, error) {
	query := rewriteQuery(task)

	docs, err := s.retriever.Search(ctx, query, s.maxCandidates, threshold)
	if err != nil {
		return "", nil, fmt.Errorf("retrieval failed: %w", err)
	}

	systemPrompt, ok := specialistPrompts[task.Specialist]
	if !ok {
		systemPrompt = specialistPrompts[domain.SpecialistGeneral]
	}

	resp, err := s.completer.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(task.AdjustedQuery, docs),
	})
	if err != nil {
		return "", nil, fmt.Errorf("answer generation failed: %w", err)
	}

	sources := make([]domain.SourceRef, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, domain.SourceRef{SourceID: d.SourceID, Score: d.Score})
	}

	return resp.Content, sources, nil
}

func rewriteQuery(task domain.SubagentTask) string {
	refinement, ok := queryRefinements[task.Specialist]
	if !ok {
		return task.AdjustedQuery
	}
	return fmt.Sprintf("%s %s", task.AdjustedQuery, refinement)
}

func buildUserPrompt(query string, docs []domain.RetrievedDocument) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n\n", query)

	if len(docs) == 0 {
		b.WriteString("No documents were retrieved. Answer from general knowledge and say so explicitly.\n")
		return b.String()
	}

	b.WriteString("Retrieved documents:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n[%d] (source: %s, score: %.2f)\n%s\n", i+1, d.SourceID, d.Score, d.Content)
	}

	return b.String()
}
