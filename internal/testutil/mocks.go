package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/sagehive/sagehive/pkg/domain"
)

// MockCompleter is a mock implementation of domain.Completer for testing
type MockCompleter struct {
	mu          sync.Mutex
	Responses   map[string]string
	CallCount   int
	LastRequest domain.CompletionRequest
	ShouldError bool
	ErrorMessage string
	// CompleteFunc allows custom completion behavior for tests
	CompleteFunc func(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// NewMockCompleter creates a new mock completer
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		Responses: make(map[string]string),
	}
}

// Complete implements domain.Completer
func (m *MockCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	// If CompleteFunc is provided, use it without lock for concurrency testing
	if m.CompleteFunc != nil {
		m.mu.Lock()
		m.CallCount++
		m.LastRequest = req
		m.mu.Unlock()
		return m.CompleteFunc(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastRequest = req

	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}

	// Return predefined response keyed by prompt, or default
	content := "Mock response"
	if resp, ok := m.Responses[req.UserPrompt]; ok {
		content = resp
	} else if resp, ok := m.Responses["default"]; ok {
		content = resp
	}

	return &domain.CompletionResponse{
		Content: content,
		Usage: domain.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 50,
			TotalTokens:      100,
		},
		FinishReason: "stop",
	}, nil
}

// GetCallCount returns the number of Complete calls made
func (m *MockCompleter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetLastRequest returns the most recent request seen
func (m *MockCompleter) GetLastRequest() domain.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// MockRetriever is a mock implementation of domain.Retriever for testing
type MockRetriever struct {
	mu          sync.Mutex
	Documents   []domain.RetrievedDocument
	CallCount   int
	LastQuery   string
	ShouldError bool
	ErrorMessage string
	// SearchFunc allows custom search behavior for tests
	SearchFunc func(ctx context.Context, query string, maxCandidates int, threshold float64) ([]domain.RetrievedDocument, error)
}

// NewMockRetriever creates a new mock retriever with a default document set
func NewMockRetriever() *MockRetriever {
	return &MockRetriever{
		Documents: []domain.RetrievedDocument{
			{Content: "Mock document content", SourceID: "mock-doc-1", Score: 0.9},
		},
	}
}

// Search implements domain.Retriever
func (m *MockRetriever) Search(ctx context.Context, query string, maxCandidates int, threshold float64) ([]domain.RetrievedDocument, error) {
	if m.SearchFunc != nil {
		m.mu.Lock()
		m.CallCount++
		m.LastQuery = query
		m.mu.Unlock()
		return m.SearchFunc(ctx, query, maxCandidates, threshold)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastQuery = query

	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}

	docs := make([]domain.RetrievedDocument, 0, len(m.Documents))
	for _, d := range m.Documents {
		if d.Score >= threshold {
			docs = append(docs, d)
		}
		if len(docs) == maxCandidates {
			break
		}
	}
	return docs, nil
}

// GetCallCount returns the number of Search calls made
func (m *MockRetriever) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
