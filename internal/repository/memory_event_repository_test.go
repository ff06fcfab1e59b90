package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

func TestSaveIsIdempotentPerKey(t *testing.T) {
	t.Parallel()

	repo := NewMemorySubmissionEventRepository()
	event := &models.SubmissionDeliveredEvent{
		AssignmentID: "A1",
		StudentID:    "s-1",
		SubmissionID: "SUB-1",
	}

	created, err := repo.Save(context.Background(), event, []byte(`{"assignmentId":"A1"}`))
	require.NoError(t, err)
	require.True(t, created)

	// redelivery of the same logical event
	created, err = repo.Save(context.Background(), event, []byte(`{"assignmentId":"A1"}`))
	require.NoError(t, err)
	require.False(t, created)

	subs, err := repo.ListDelivered(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestSaveOverwritesOnNewerEvent(t *testing.T) {
	t.Parallel()

	repo := NewMemorySubmissionEventRepository()

	_, err := repo.Save(context.Background(), &models.SubmissionDeliveredEvent{
		AssignmentID: "A1", StudentID: "s-1", SubmissionID: "SUB-1",
	}, nil)
	require.NoError(t, err)

	created, err := repo.Save(context.Background(), &models.SubmissionDeliveredEvent{
		AssignmentID: "A1", StudentID: "s-1", SubmissionID: "SUB-1b",
	}, nil)
	require.NoError(t, err)
	require.False(t, created)

	subs, err := repo.ListDelivered(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "SUB-1b", subs[0].SubmissionID)
}

func TestSaveRequiresKeyFields(t *testing.T) {
	t.Parallel()

	repo := NewMemorySubmissionEventRepository()

	_, err := repo.Save(context.Background(), &models.SubmissionDeliveredEvent{
		StudentID: "s-1", SubmissionID: "SUB-1",
	}, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = repo.Save(context.Background(), &models.SubmissionDeliveredEvent{
		AssignmentID: "A1", SubmissionID: "SUB-1",
	}, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestListDeliveredSkipsPartialRecords(t *testing.T) {
	t.Parallel()

	repo := NewMemorySubmissionEventRepository()

	// a delivery fact without a submission id is storable but must not
	// surface to the distributor
	_, err := repo.Save(context.Background(), &models.SubmissionDeliveredEvent{
		AssignmentID: "A1", StudentID: "s-1",
	}, nil)
	require.NoError(t, err)

	_, err = repo.Save(context.Background(), &models.SubmissionDeliveredEvent{
		AssignmentID: "A1", StudentID: "s-2", SubmissionID: "SUB-2",
	}, nil)
	require.NoError(t, err)

	subs, err := repo.ListDelivered(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "s-2", subs[0].StudentID)
}

func TestListDeliveredScopedToAssignment(t *testing.T) {
	t.Parallel()

	repo := NewMemorySubmissionEventRepository()

	for _, ev := range []models.SubmissionDeliveredEvent{
		{AssignmentID: "A1", StudentID: "s-1", SubmissionID: "SUB-1"},
		{AssignmentID: "A1", StudentID: "s-2", SubmissionID: "SUB-2"},
		{AssignmentID: "A2", StudentID: "s-1", SubmissionID: "SUB-9"},
	} {
		ev := ev
		_, err := repo.Save(context.Background(), &ev, nil)
		require.NoError(t, err)
	}

	subs, err := repo.ListDelivered(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "s-1", subs[0].StudentID)
	require.Equal(t, "s-2", subs[1].StudentID)
}

func TestSaveConcurrentSameKey(t *testing.T) {
	t.Parallel()

	repo := NewMemorySubmissionEventRepository()
	event := &models.SubmissionDeliveredEvent{
		AssignmentID: "A1", StudentID: "s-1", SubmissionID: "SUB-1",
	}

	const workers = 16
	results := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.Save(context.Background(), event, nil)
			if err != nil {
				t.Error(err)
				return
			}
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	createdCount := 0
	for created := range results {
		if created {
			createdCount++
		}
	}

	require.Equal(t, 1, createdCount, "exactly one concurrent save observes the insert")

	subs, err := repo.ListDelivered(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
}
