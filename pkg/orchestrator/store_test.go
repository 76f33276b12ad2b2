package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagehive/sagehive/pkg/domain"
)

func storedJob(id string, status domain.JobStatus) *domain.ResearchJob {
	return &domain.ResearchJob{
		ID:     id,
		Query:  "query for " + id,
		Status: status,
		Tasks: []domain.SubagentTask{
			{ID: id + "-t1", FocusArea: domain.FocusGeneral, Specialist: domain.SpecialistGeneral},
		},
		Results: []domain.SubagentResult{
			{TaskID: id + "-t1", Status: domain.ResultCompleted, Content: "content",
				Sources: []domain.SourceRef{{SourceID: "doc-1", Score: 0.9}}},
		},
	}
}

func TestJobStoreSaveLoad(t *testing.T) {
	store := NewJobStore(10)
	ctx := context.Background()

	job := storedJob("job-1", domain.JobCompleted)
	require.NoError(t, store.Save(ctx, job))

	loaded, err := store.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", loaded.ID)
	assert.Len(t, loaded.Tasks, 1)
	assert.Len(t, loaded.Results, 1)
}

func TestJobStoreLoadNotFound(t *testing.T) {
	store := NewJobStore(10)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobStoreRequiresID(t *testing.T) {
	store := NewJobStore(10)
	assert.Error(t, store.Save(context.Background(), &domain.ResearchJob{}))
}

func TestJobStoreReturnsCopies(t *testing.T) {
	store := NewJobStore(10)
	ctx := context.Background()

	job := storedJob("job-1", domain.JobCompleted)
	require.NoError(t, store.Save(ctx, job))

	// Mutating the original after save changes nothing.
	job.Results[0].Content = "mutated"
	loaded, err := store.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "content", loaded.Results[0].Content)

	// Mutating a loaded copy changes nothing either.
	loaded.Tasks[0].FocusArea = domain.FocusTechnical
	again, err := store.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FocusGeneral, again.Tasks[0].FocusArea)
}

func TestJobStoreEvictsOldestTerminal(t *testing.T) {
	store := NewJobStore(2)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedJob("job-1", domain.JobCompleted)))
	require.NoError(t, store.Save(ctx, storedJob("job-2", domain.JobRunning)))
	require.NoError(t, store.Save(ctx, storedJob("job-3", domain.JobCompleted)))

	assert.Equal(t, 2, store.Len())

	// The oldest terminal job went; the running one is untouchable.
	_, err := store.Load(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	_, err = store.Load(ctx, "job-2")
	assert.NoError(t, err)
	_, err = store.Load(ctx, "job-3")
	assert.NoError(t, err)
}

func TestJobStoreNeverEvictsRunning(t *testing.T) {
	store := NewJobStore(2)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Save(ctx, storedJob(fmt.Sprintf("job-%d", i), domain.JobRunning)))
	}

	// Over capacity, but nothing is evictable.
	assert.Equal(t, 4, store.Len())
}

func TestJobStoreList(t *testing.T) {
	store := NewJobStore(10)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedJob("job-1", domain.JobCompleted)))
	require.NoError(t, store.Save(ctx, storedJob("job-2", domain.JobRunning)))
	require.NoError(t, store.Save(ctx, storedJob("job-3", domain.JobCompleted)))

	completed := store.List(ctx, domain.JobCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, "job-1", completed[0].ID)
	assert.Equal(t, "job-3", completed[1].ID)

	all := store.List(ctx, "")
	assert.Len(t, all, 3)
}

func TestJobStoreDelete(t *testing.T) {
	store := NewJobStore(10)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedJob("job-1", domain.JobCompleted)))
	require.NoError(t, store.Delete(ctx, "job-1"))

	_, err := store.Load(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.Empty(t, store.List(ctx, ""))
}
