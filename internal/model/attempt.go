package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the backend-reported status of a student's
// attempt on one exam.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// AttemptRecord is the durable client-side session record for one exam,
// keyed in the store by exam id. UserID is captured when the attempt starts
// and is the source of truth for the identity reported on finish.
type AttemptRecord struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	ExamID    uuid.UUID `json:"exam_id"`
	UserID    int       `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

// ExamStatusResponse is the backend's answer to a status query.
type ExamStatusResponse struct {
	Status AttemptStatus `json:"status"`
	// AttemptID is the currently open attempt, present only when
	// status is in_progress.
	AttemptID *uuid.UUID `json:"attempt_id,omitempty"`
}

// StartAttemptResponse is returned when a new attempt is created.
type StartAttemptResponse struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	StartedAt time.Time `json:"started_at"`
}

// SubmitAnswerRequest is the payload for submitting one answer.
type SubmitAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
	OptionID   string    `json:"option_id" validate:"required,max=10"`
}

// FinishAttemptRequest is the payload for finishing an attempt. UserID must
// be the identity recorded at session start, not the ambient token subject.
type FinishAttemptRequest struct {
	UserID int       `json:"user_id" validate:"required"`
	ExamID uuid.UUID `json:"exam_id" validate:"required"`
}
