package llm

import (
	"errors"
	"sync"
)

// ErrBudgetExhausted is returned when a completion is refused because the
// process token budget ran out.
var ErrBudgetExhausted = errors.New("llm token budget exhausted")

// TokenBudget tracks and enforces a process-wide LLM token limit.
type TokenBudget struct {
	mu       sync.RWMutex
	limit    int64
	consumed int64
}

// NewTokenBudget creates a budget with the given limit. A limit of zero or
// less means unlimited.
func NewTokenBudget(limit int64) *TokenBudget {
	return &TokenBudget{
		limit: limit,
	}
}

// Exhausted reports whether the budget has been used up.
func (b *TokenBudget) Exhausted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.limit <= 0 {
		return false
	}
	return b.consumed >= b.limit
}

// Consume records token usage against the budget.
func (b *TokenBudget) Consume(tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consumed += tokens
}

// Usage returns consumed tokens and the limit.
func (b *TokenBudget) Usage() (consumed, limit int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.consumed, b.limit
}

// Remaining returns how many tokens are left, or -1 when unlimited.
func (b *TokenBudget) Remaining() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.limit <= 0 {
		return -1
	}
	remaining := b.limit - b.consumed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset clears consumed usage.
func (b *TokenBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumed = 0
}
