package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/observability"
)

// Client implements the domain.Retriever interface against an HTTP search
// backend. Transient failures are retried with exponential backoff; sustained
// failures trip the circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *Breaker
	metrics    *observability.Metrics
	telemetry  *observability.Telemetry
	maxRetries uint64
}

// ClientOption customizes the retrieval client.
type ClientOption func(*Client)

// WithBreaker attaches a circuit breaker.
func WithBreaker(b *Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithMetrics attaches request metrics.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTelemetry attaches span instrumentation around each search.
func WithTelemetry(t *observability.Telemetry) ClientOption {
	return func(c *Client) {
		c.telemetry = t
	}
}

// WithMaxRetries sets the retry count for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a retrieval client for the given backend URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchRequest is the wire format for a search call.
type searchRequest struct {
	Query         string  `json:"query"`
	MaxCandidates int     `json:"max_candidates"`
	Threshold     float64 `json:"threshold"`
}

// searchResponse is the wire format for search results.
type searchResponse struct {
	Results []struct {
		Content  string  `json:"content"`
		SourceID string  `json:"source_id"`
		Score    float64 `json:"score"`
	} `json:"results"`
}

// Search queries the backend for documents scoring at or above threshold,
// best first.
func (c *Client) Search(ctx context.Context, query string, maxCandidates int, threshold float64) ([]domain.RetrievedDocument, error) {
	if c.breaker != nil && !c.breaker.CanExecute() {
		return nil, ErrBreakerOpen
	}

	startTime := time.Now()
	var docs []domain.RetrievedDocument
	var err error
	if c.telemetry != nil {
		err = c.telemetry.InstrumentRetrieval(ctx, query, func(ctx context.Context) (int, error) {
			var searchErr error
			docs, searchErr = c.searchWithRetry(ctx, query, maxCandidates, threshold)
			return len(docs), searchErr
		})
	} else {
		docs, err = c.searchWithRetry(ctx, query, maxCandidates, threshold)
	}
	duration := time.Since(startTime)

	if c.metrics != nil {
		c.metrics.RecordRetrieval(ctx, duration, err == nil)
	}

	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}

	return docs, err
}

func (c *Client) searchWithRetry(ctx context.Context, query string, maxCandidates int, threshold float64) ([]domain.RetrievedDocument, error) {
	var docs []domain.RetrievedDocument

	operation := func() error {
		var err error
		docs, err = c.doSearch(ctx, query, maxCandidates, threshold)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) doSearch(ctx context.Context, query string, maxCandidates int, threshold float64) ([]domain.RetrievedDocument, error) {
	body, err := json.Marshal(searchRequest{
		Query:         query,
		MaxCandidates: maxCandidates,
		Threshold:     threshold,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		fmt.Sprintf("%s/search", c.baseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("search backend returned status %d: %s", resp.StatusCode, string(respBody))
		// Client errors will not heal on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]domain.RetrievedDocument, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		if r.Score < threshold {
			continue
		}
		docs = append(docs, domain.RetrievedDocument{
			Content:  r.Content,
			SourceID: r.SourceID,
			Score:    r.Score,
		})
	}

	return docs, nil
}
