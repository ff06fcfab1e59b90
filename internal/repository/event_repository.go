package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

// SubmissionEventRepository persists "submission delivered" facts with
// exactly-once-per-student semantics under at-least-once delivery.
type SubmissionEventRepository interface {
	// Save upserts the event keyed by (assignmentId, studentId) and
	// stores the full inbound payload verbatim. Returns true when a new
	// record was created, false when an existing one was overwritten.
	Save(ctx context.Context, event *models.SubmissionDeliveredEvent, payload []byte) (bool, error)
	// ListDelivered returns all current facts for the assignment,
	// ordered by student id. Records missing a submission or student id
	// are excluded.
	ListDelivered(ctx context.Context, assignmentID string) ([]models.DeliveredSubmission, error)
}

type submissionEventRepository struct {
	*PostgresRepository
}

func NewSubmissionEventRepository(db *sql.DB, logger zerolog.Logger) SubmissionEventRepository {
	return &submissionEventRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *submissionEventRepository) Save(ctx context.Context, event *models.SubmissionDeliveredEvent, payload []byte) (bool, error) {
	if event.AssignmentID == "" {
		return false, fmt.Errorf("%w: assignmentId is required", ErrValidation)
	}
	if event.StudentID == "" {
		return false, fmt.Errorf("%w: studentId is required", ErrValidation)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	// Единственный атомарный upsert: гонка двух воркеров по одному
	// ключу сводится к обычной перезаписи, а не к ошибке уникальности.
	// (xmax = 0) верно только для свежевставленной строки.
	query := `
		INSERT INTO submission_events (assignment_id, student_id, submission_id, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (assignment_id, student_id)
		DO UPDATE SET
			submission_id = EXCLUDED.submission_id,
			payload = EXCLUDED.payload,
			received_at = EXCLUDED.received_at
		RETURNING (xmax = 0) AS created
	`

	var created bool
	err := r.db.QueryRowContext(ctx, query,
		event.AssignmentID,
		event.StudentID,
		event.SubmissionID,
		payload,
		time.Now().UTC(),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert submission event: %w", err)
	}

	return created, nil
}

func (r *submissionEventRepository) ListDelivered(ctx context.Context, assignmentID string) ([]models.DeliveredSubmission, error) {
	query := `
		SELECT assignment_id, submission_id, student_id, received_at
		FROM submission_events
		WHERE assignment_id = $1
		  AND submission_id <> ''
		  AND student_id <> ''
		ORDER BY student_id
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.DeliveredSubmission
	for rows.Next() {
		var sub models.DeliveredSubmission
		err := rows.Scan(
			&sub.AssignmentID,
			&sub.SubmissionID,
			&sub.StudentID,
			&sub.ReceivedAt,
		)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}
