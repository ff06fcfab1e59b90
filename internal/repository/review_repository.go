package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

// ReviewRepository persists review tasks. Application identifiers
// (reviewId, processId) are UUID strings; adapters never expose
// storage-internal keys.
type ReviewRepository interface {
	// BulkCreate inserts one review per draft, generating a reviewId
	// for each. Returns the generated ids in draft order.
	BulkCreate(ctx context.Context, drafts []models.Review) ([]string, error)
	// ForStudent lists reviews assigned to a student, optionally
	// filtered by status ("" means all).
	ForStudent(ctx context.Context, studentID, status string) ([]models.Review, error)
	// ByIDForStudent returns the review only if it exists and belongs
	// to the student; (nil, nil) otherwise.
	ByIDForStudent(ctx context.Context, reviewID, studentID string) (*models.Review, error)
	// UpdateScores overwrites the evaluation, flips the status to
	// complete and records updatedAt. Returns true when exactly one
	// review was matched.
	UpdateScores(ctx context.Context, reviewID string, scores []models.ScoreEntry) (bool, error)
	// ByAssignment lists every review of the assignment regardless of
	// reviewer.
	ByAssignment(ctx context.Context, assignmentID string) ([]models.Review, error)
}

type reviewRepository struct {
	*PostgresRepository
}

func NewReviewRepository(db *sql.DB, logger zerolog.Logger) ReviewRepository {
	return &reviewRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *reviewRepository) BulkCreate(ctx context.Context, drafts []models.Review) ([]string, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reviews (review_id, process_id, assignment_id, submission_id, reviewer_id, deadline, stato, valutazione, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	ids := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		reviewID := uuid.New().String()

		scores, err := json.Marshal(draft.Scores)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal scores: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			reviewID,
			draft.ProcessID,
			draft.AssignmentID,
			draft.SubmissionID,
			draft.ReviewerID,
			draft.Deadline,
			draft.Status,
			scores,
			draft.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert review: %w", err)
		}

		ids = append(ids, reviewID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk create: %w", err)
	}

	r.logger.Info().
		Int("count", len(ids)).
		Str("process_id", drafts[0].ProcessID).
		Msg("Reviews created in bulk")

	return ids, nil
}

const reviewColumns = `review_id, process_id, assignment_id, submission_id, reviewer_id, deadline, stato, valutazione, created_at, updated_at`

func scanReview(scanner interface{ Scan(...interface{}) error }) (*models.Review, error) {
	var review models.Review
	var scores []byte

	err := scanner.Scan(
		&review.ReviewID,
		&review.ProcessID,
		&review.AssignmentID,
		&review.SubmissionID,
		&review.ReviewerID,
		&review.Deadline,
		&review.Status,
		&scores,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scores, &review.Scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
	}

	return &review, nil
}

func (r *reviewRepository) ForStudent(ctx context.Context, studentID, status string) ([]models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE reviewer_id = $1
	`
	args := []interface{}{studentID}

	if status != "" {
		query += ` AND stato = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	return r.queryReviews(ctx, query, args...)
}

func (r *reviewRepository) ByIDForStudent(ctx context.Context, reviewID, studentID string) (*models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE review_id = $1 AND reviewer_id = $2
	`

	review, err := scanReview(r.db.QueryRowContext(ctx, query, reviewID, studentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return review, err
}

func (r *reviewRepository) UpdateScores(ctx context.Context, reviewID string, scores []models.ScoreEntry) (bool, error) {
	payload, err := json.Marshal(scores)
	if err != nil {
		return false, fmt.Errorf("failed to marshal scores: %w", err)
	}

	query := `
		UPDATE reviews
		SET valutazione = $2, stato = $3, updated_at = $4
		WHERE review_id = $1
	`

	res, err := r.db.ExecContext(ctx, query, reviewID, payload, models.ReviewStatusComplete, time.Now().UTC())
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *reviewRepository) ByAssignment(ctx context.Context, assignmentID string) ([]models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE assignment_id = $1
		ORDER BY created_at DESC
	`

	return r.queryReviews(ctx, query, assignmentID)
}

func (r *reviewRepository) queryReviews(ctx context.Context, query string, args ...interface{}) ([]models.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}

	return reviews, rows.Err()
}
