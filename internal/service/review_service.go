package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/internal/repository"
)

// ReviewService drives the review lifecycle: bulk creation at process
// start, role-scoped reads, and the single pending -> complete
// transition per review.
type ReviewService interface {
	// StartProcess materializes one pending review per validated pair
	// and returns the assignment identifier. Teacher only.
	StartProcess(ctx context.Context, user models.UserContext, data models.ReviewProcessCreate) (string, error)
	// ListMine returns the caller's reviews, optionally filtered by
	// status. Student only.
	ListMine(ctx context.Context, user models.UserContext, status string) ([]models.Review, error)
	// GetMine returns the caller's review or (nil, nil) when it does
	// not exist or is not owned by the caller. Student only.
	GetMine(ctx context.Context, user models.UserContext, reviewID string) (*models.Review, error)
	// Submit overwrites the evaluation and completes the review.
	// Returns false when no review with that id is owned by the caller.
	// Student only.
	Submit(ctx context.Context, user models.UserContext, reviewID string, scores []models.ScoreEntry) (bool, error)
	// ListForAssignment returns every review of the assignment. Teacher
	// only.
	ListForAssignment(ctx context.Context, user models.UserContext, assignmentID string) ([]models.Review, error)
}

type reviewService struct {
	reviewRepo repository.ReviewRepository
	logger     zerolog.Logger
}

func NewReviewService(reviewRepo repository.ReviewRepository, logger zerolog.Logger) ReviewService {
	return &reviewService{
		reviewRepo: reviewRepo,
		logger:     logger,
	}
}

func (s *reviewService) StartProcess(ctx context.Context, user models.UserContext, data models.ReviewProcessCreate) (string, error) {
	if !user.IsTeacher() {
		return "", newPermissionError("only teachers can start a review process")
	}

	scoreTemplate := make([]models.ScoreEntry, len(data.Rubric))
	for i, item := range data.Rubric {
		scoreTemplate[i] = models.ScoreEntry{Criterion: item.Criterion, Score: models.ScoreNotGraded}
	}

	processID := uuid.New().String()
	now := time.Now().UTC()

	drafts := make([]models.Review, len(data.Assignments))
	for i, pair := range data.Assignments {
		drafts[i] = models.Review{
			ProcessID:    processID,
			AssignmentID: data.AssignmentID,
			SubmissionID: pair.SubmissionID,
			ReviewerID:   pair.Reviewer,
			CreatedAt:    now,
			Deadline:     data.Deadline,
			Status:       models.ReviewStatusPending,
			Scores:       append([]models.ScoreEntry(nil), scoreTemplate...),
		}
	}

	ids, err := s.reviewRepo.BulkCreate(ctx, drafts)
	if err != nil {
		return "", fmt.Errorf("failed to create reviews: %w", err)
	}

	s.logger.Info().
		Str("assignment_id", data.AssignmentID).
		Str("process_id", processID).
		Int("reviews", len(ids)).
		Msg("Review process started")

	return data.AssignmentID, nil
}

func (s *reviewService) ListMine(ctx context.Context, user models.UserContext, status string) ([]models.Review, error) {
	if !user.IsStudent() {
		return nil, newPermissionError("only students can list their reviews")
	}

	return s.reviewRepo.ForStudent(ctx, user.UserID, status)
}

func (s *reviewService) GetMine(ctx context.Context, user models.UserContext, reviewID string) (*models.Review, error) {
	if !user.IsStudent() {
		return nil, newPermissionError("only students can read their reviews")
	}

	return s.reviewRepo.ByIDForStudent(ctx, reviewID, user.UserID)
}

func (s *reviewService) Submit(ctx context.Context, user models.UserContext, reviewID string, scores []models.ScoreEntry) (bool, error) {
	if !user.IsStudent() {
		return false, newPermissionError("only students can submit a review")
	}

	// Ownership check first: a review that exists but belongs to
	// another student is indistinguishable from a missing one.
	owned, err := s.reviewRepo.ByIDForStudent(ctx, reviewID, user.UserID)
	if err != nil {
		return false, err
	}
	if owned == nil {
		return false, nil
	}

	ok, err := s.reviewRepo.UpdateScores(ctx, reviewID, scores)
	if err != nil {
		return false, err
	}

	if ok {
		s.logger.Info().
			Str("review_id", reviewID).
			Str("reviewer_id", user.UserID).
			Msg("Review submitted")
	}

	return ok, nil
}

func (s *reviewService) ListForAssignment(ctx context.Context, user models.UserContext, assignmentID string) ([]models.Review, error) {
	if !user.IsTeacher() {
		return nil, newPermissionError("only teachers can list reviews for an assignment")
	}

	return s.reviewRepo.ByAssignment(ctx, assignmentID)
}
