package models

import (
	"time"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusComplete ReviewStatus = "complete"
)

func (rs ReviewStatus) String() string {
	return string(rs)
}

func IsValidReviewStatus(status string) bool {
	switch status {
	case "pending", "complete":
		return true
	default:
		return false
	}
}

// ScoreNotGraded is the sentinel score a criterion carries until the
// reviewer submits the evaluation.
const ScoreNotGraded = -1

// RubricItem is a named evaluation criterion supplied at process start.
type RubricItem struct {
	Criterion string `json:"criterio" db:"criterio"`
}

// ScoreEntry is one graded criterion of a review's evaluation.
type ScoreEntry struct {
	Criterion string `json:"criterio" db:"criterio"`
	Score     int    `json:"punteggio" db:"punteggio"`
}

// AssignmentPair maps a reviewer to the submission they must review.
type AssignmentPair struct {
	Reviewer     string `json:"reviewer" db:"reviewer"`
	SubmissionID string `json:"submissionId" db:"submission_id"`
}

// Review is a single reviewer's task to score one submission against a
// fixed rubric. Writable only by its reviewer; readable by the reviewer
// and by teachers of the assignment.
type Review struct {
	ReviewID     string       `json:"reviewId" db:"review_id"`
	ProcessID    string       `json:"processId" db:"process_id"`
	AssignmentID string       `json:"assignmentId" db:"assignment_id"`
	SubmissionID string       `json:"submissionId" db:"submission_id"`
	ReviewerID   string       `json:"reviewerId" db:"reviewer_id"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    *time.Time   `json:"updatedAt,omitempty" db:"updated_at"`
	Deadline     time.Time    `json:"deadline" db:"deadline"`
	Status       ReviewStatus `json:"stato" db:"stato"`
	Scores       []ScoreEntry `json:"valutazione" db:"valutazione"`
}

// ReviewProcessCreate carries everything needed to start one review
// process for an assignment.
type ReviewProcessCreate struct {
	AssignmentID  string           `json:"assignmentId"`
	AutomaticMode bool             `json:"automatic_mode"`
	Deadline      time.Time        `json:"deadline"`
	Assignments   []AssignmentPair `json:"lista_assegnazioni"`
	Rubric        []RubricItem     `json:"rubrica"`
}
