package reasoning

import (
	"time"

	"github.com/sagehive/sagehive/pkg/domain"
)

// Log is the append-only record of reasoning steps for one job. It is owned
// by the single Engine instance handling the job; there are no concurrent
// writers, so no locking is needed.
type Log struct {
	steps []domain.ReasoningStep
}

// NewLog creates an empty reasoning log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a step to the log and returns it. Steps are never mutated or
// removed after this point.
func (l *Log) Append(stepType domain.StepType, content, observations, nextAction string) domain.ReasoningStep {
	step := domain.ReasoningStep{
		Type:         stepType,
		Timestamp:    time.Now(),
		Content:      content,
		Observations: observations,
		NextAction:   nextAction,
	}
	l.steps = append(l.steps, step)
	return step
}

// Steps returns a copy of the recorded steps in order.
func (l *Log) Steps() []domain.ReasoningStep {
	out := make([]domain.ReasoningStep, len(l.steps))
	copy(out, l.steps)
	return out
}

// LastN returns up to the last n steps in order.
func (l *Log) LastN(n int) []domain.ReasoningStep {
	if n > len(l.steps) {
		n = len(l.steps)
	}
	out := make([]domain.ReasoningStep, n)
	copy(out, l.steps[len(l.steps)-n:])
	return out
}

// Len returns the number of recorded steps.
func (l *Log) Len() int {
	return len(l.steps)
}

// CountByType returns how many steps of the given type have been recorded.
func (l *Log) CountByType(stepType domain.StepType) int {
	count := 0
	for _, s := range l.steps {
		if s.Type == stepType {
			count++
		}
	}
	return count
}
