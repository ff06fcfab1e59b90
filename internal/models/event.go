package models

import (
	"time"
)

// SubmissionDeliveredEvent is the inbound broker message recording that
// a student delivered a submission for an assignment. Extra payload
// fields are carried through to storage verbatim as raw JSON.
type SubmissionDeliveredEvent struct {
	AssignmentID string `json:"assignmentId"`
	StudentID    string `json:"studentId"`
	SubmissionID string `json:"submissionId"`
}

// DeliveredSubmission is the stored fact, identified by
// (AssignmentID, StudentID): at most one current submission per student
// per assignment.
type DeliveredSubmission struct {
	AssignmentID string    `json:"assignmentId" db:"assignment_id"`
	SubmissionID string    `json:"submissionId" db:"submission_id"`
	StudentID    string    `json:"studentId" db:"student_id"`
	ReceivedAt   time.Time `json:"receivedAt" db:"received_at"`
}

// ReviewReportEvent is published downstream when a review is completed.
// DeliveredAt is serialized as RFC 3339 with offset.
type ReviewReportEvent struct {
	SubmissionID string    `json:"submissionId"`
	ReviewID     string    `json:"reviewId"`
	Score        float64   `json:"punteggio"`
	DeliveredAt  time.Time `json:"deliveredAt"`
}
