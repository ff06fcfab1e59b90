package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

// MemoryReviewRepository is the in-process counterpart of the Postgres
// review adapter.
type MemoryReviewRepository struct {
	mu      sync.Mutex
	reviews map[string]models.Review
}

func NewMemoryReviewRepository() *MemoryReviewRepository {
	return &MemoryReviewRepository{
		reviews: make(map[string]models.Review),
	}
}

func (r *MemoryReviewRepository) BulkCreate(ctx context.Context, drafts []models.Review) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		review := draft
		review.ReviewID = uuid.New().String()
		review.Scores = append([]models.ScoreEntry(nil), draft.Scores...)
		r.reviews[review.ReviewID] = review
		ids = append(ids, review.ReviewID)
	}

	return ids, nil
}

func (r *MemoryReviewRepository) ForStudent(ctx context.Context, studentID, status string) ([]models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Review
	for _, review := range r.reviews {
		if review.ReviewerID != studentID {
			continue
		}
		if status != "" && string(review.Status) != status {
			continue
		}
		out = append(out, review)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ReviewID < out[j].ReviewID
	})

	return out, nil
}

func (r *MemoryReviewRepository) ByIDForStudent(ctx context.Context, reviewID, studentID string) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[reviewID]
	if !ok || review.ReviewerID != studentID {
		return nil, nil
	}

	out := review
	out.Scores = append([]models.ScoreEntry(nil), review.Scores...)
	return &out, nil
}

func (r *MemoryReviewRepository) UpdateScores(ctx context.Context, reviewID string, scores []models.ScoreEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[reviewID]
	if !ok {
		return false, nil
	}

	now := time.Now().UTC()
	review.Scores = append([]models.ScoreEntry(nil), scores...)
	review.Status = models.ReviewStatusComplete
	review.UpdatedAt = &now
	r.reviews[reviewID] = review

	return true, nil
}

func (r *MemoryReviewRepository) ByAssignment(ctx context.Context, assignmentID string) ([]models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Review
	for _, review := range r.reviews {
		if review.AssignmentID == assignmentID {
			out = append(out, review)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ReviewID < out[j].ReviewID
	})

	return out, nil
}
