package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sagehive/sagehive/pkg/domain"
)

// JobStore holds research jobs for status reads. Jobs are stored and returned
// by value copy, so a snapshot handed to a caller never changes under them.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.ResearchJob
	order   []string
	maxJobs int
}

// NewJobStore creates an in-memory job store. maxJobs bounds retained jobs;
// zero or less means unbounded.
func NewJobStore(maxJobs int) *JobStore {
	return &JobStore{
		jobs:    make(map[string]*domain.ResearchJob),
		maxJobs: maxJobs,
	}
}

// Save stores a snapshot of the job, evicting the oldest terminal job if the
// store is full.
func (s *JobStore) Save(ctx context.Context, job *domain.ResearchJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.jobs[job.ID]

	snapshot := cloneJob(job)
	snapshot.UpdatedAt = time.Now()
	s.jobs[job.ID] = snapshot

	if !exists {
		s.order = append(s.order, job.ID)
		s.evictLocked(job.ID)
	}

	return nil
}

// Load returns a copy of the stored job, or ErrJobNotFound.
func (s *JobStore) Load(ctx context.Context, jobID string) (*domain.ResearchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	return cloneJob(job), nil
}

// Delete removes a job from the store.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of all jobs matching the given status; an empty status
// matches everything. Insertion order is preserved.
func (s *JobStore) List(ctx context.Context, status domain.JobStatus) []*domain.ResearchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ResearchJob
	for _, id := range s.order {
		job, exists := s.jobs[id]
		if !exists {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, cloneJob(job))
	}
	return out
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// evictLocked drops the oldest terminal job while over capacity. Non-terminal
// jobs and the job just saved are never evicted.
func (s *JobStore) evictLocked(keepID string) {
	if s.maxJobs <= 0 {
		return
	}
	for len(s.jobs) > s.maxJobs {
		evicted := false
		for i, id := range s.order {
			if id == keepID {
				continue
			}
			job, exists := s.jobs[id]
			if !exists {
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
			if job.Status.Terminal() {
				delete(s.jobs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func cloneJob(job *domain.ResearchJob) *domain.ResearchJob {
	clone := *job

	if job.Plan != nil {
		plan := *job.Plan
		plan.Steps = append([]string(nil), job.Plan.Steps...)
		plan.Resources = append([]string(nil), job.Plan.Resources...)
		clone.Plan = &plan
	}

	clone.Tasks = append([]domain.SubagentTask(nil), job.Tasks...)
	clone.Trace = append([]domain.ReasoningStep(nil), job.Trace...)

	clone.Results = make([]domain.SubagentResult, len(job.Results))
	for i, r := range job.Results {
		r.Sources = append([]domain.SourceRef(nil), r.Sources...)
		clone.Results[i] = r
	}

	return &clone
}
