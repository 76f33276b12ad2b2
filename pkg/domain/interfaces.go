package domain

import (
	"context"
	"time"
)

// Completer is the port for LLM completion. Every component that needs a
// model call takes a Completer so tests can substitute a fake.
type Completer interface {
	// Complete performs a single completion. When the request asks for JSON
	// mode the returned content is expected to be a single JSON value.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt"`
	JSONMode     bool    `json:"json_mode,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// CompletionResponse is the model's answer plus usage accounting.
type CompletionResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Retriever is the port for the external document search backend.
type Retriever interface {
	// Search returns up to maxCandidates documents scoring at or above
	// threshold, best first. Transient backend errors may surface here;
	// callers own their retry policy.
	Search(ctx context.Context, query string, maxCandidates int, threshold float64) ([]RetrievedDocument, error)
}

// RetrievedDocument is one hit from the retrieval backend.
type RetrievedDocument struct {
	Content  string  `json:"content"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// SubmitOptions carries optional caller overrides for a research job.
type SubmitOptions struct {
	Objective      string      `json:"objective,omitempty"`
	FocusAreas     []FocusArea `json:"focus_areas,omitempty"`
	MaxSpecialists int         `json:"max_specialists,omitempty"`
}

// JobService is the job interface consumed by the external API layer.
type JobService interface {
	// Submit creates a job and schedules it; returns the job ID immediately.
	Submit(ctx context.Context, query string, opts SubmitOptions) (string, error)

	// GetStatus returns a snapshot of the job. Reading a COMPLETED job is
	// idempotent: no re-synthesis happens on read.
	GetStatus(ctx context.Context, jobID string) (*ResearchJob, error)

	// Await blocks until the job is terminal or the timeout elapses, in
	// which case it returns ErrAwaitTimeout rather than a partial job.
	Await(ctx context.Context, jobID string, timeout time.Duration) (*ResearchJob, error)
}
