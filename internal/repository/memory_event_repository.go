package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

type eventKey struct {
	assignmentID string
	studentID    string
}

type storedEvent struct {
	sub     models.DeliveredSubmission
	payload []byte
}

// MemorySubmissionEventRepository is an in-process adapter with the
// same upsert semantics as the Postgres one. Used for tests and local
// runs without a database.
type MemorySubmissionEventRepository struct {
	mu     sync.Mutex
	events map[eventKey]storedEvent
}

func NewMemorySubmissionEventRepository() *MemorySubmissionEventRepository {
	return &MemorySubmissionEventRepository{
		events: make(map[eventKey]storedEvent),
	}
}

func (r *MemorySubmissionEventRepository) Save(ctx context.Context, event *models.SubmissionDeliveredEvent, payload []byte) (bool, error) {
	if event.AssignmentID == "" {
		return false, fmt.Errorf("%w: assignmentId is required", ErrValidation)
	}
	if event.StudentID == "" {
		return false, fmt.Errorf("%w: studentId is required", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := eventKey{assignmentID: event.AssignmentID, studentID: event.StudentID}
	_, exists := r.events[key]

	r.events[key] = storedEvent{
		sub: models.DeliveredSubmission{
			AssignmentID: event.AssignmentID,
			SubmissionID: event.SubmissionID,
			StudentID:    event.StudentID,
			ReceivedAt:   time.Now().UTC(),
		},
		payload: append([]byte(nil), payload...),
	}

	return !exists, nil
}

func (r *MemorySubmissionEventRepository) ListDelivered(ctx context.Context, assignmentID string) ([]models.DeliveredSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var subs []models.DeliveredSubmission
	for key, ev := range r.events {
		if key.assignmentID != assignmentID {
			continue
		}
		// partial writes are skipped, same as the SQL adapter
		if ev.sub.SubmissionID == "" || ev.sub.StudentID == "" {
			continue
		}
		subs = append(subs, ev.sub)
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].StudentID < subs[j].StudentID
	})

	return subs, nil
}
