package model

import (
	"time"

	"github.com/google/uuid"
)

// Kriteria is one SAW criterion with its weight, managed by admins.
type Kriteria struct {
	ID     int     `json:"id"`
	Code   string  `json:"code"` // C1..C4
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// CreateKriteriaRequest is the payload for creating a criterion.
type CreateKriteriaRequest struct {
	Code   string  `json:"code" validate:"required,max=5"`
	Name   string  `json:"name" validate:"required,min=2,max=100"`
	Weight float64 `json:"weight" validate:"required,gt=0,lte=1"`
}

// UpdateKriteriaRequest is the payload for updating a criterion.
type UpdateKriteriaRequest struct {
	Name   string  `json:"name" validate:"omitempty,min=2,max=100"`
	Weight float64 `json:"weight" validate:"omitempty,gt=0,lte=1"`
}

// CriteriaScores holds the four SAW criterion values for one attempt:
// C1 accuracy, C2 difficulty-weighted correctness, C3 pair-group
// consistency, C4 time utilization. All are normalized to [0,1].
type CriteriaScores struct {
	C1 float64 `json:"c1"`
	C2 float64 `json:"c2"`
	C3 float64 `json:"c3"`
	C4 float64 `json:"c4"`
}

// AnswerReview reports per-question correctness in a finished attempt.
type AnswerReview struct {
	QuestionID uuid.UUID `json:"question_id"`
	OptionID   string    `json:"option_id"`
	Correct    bool      `json:"correct"`
}

// Result is the scoring payload returned when an attempt finishes.
// All values are computed server-side; the client only displays them.
type Result struct {
	AttemptID       uuid.UUID      `json:"attempt_id"`
	ExamID          uuid.UUID      `json:"exam_id"`
	UserID          int            `json:"user_id"`
	CorrectCount    int            `json:"correct_count"`
	WrongCount      int            `json:"wrong_count"`
	UnansweredCount int            `json:"unanswered_count"`
	Criteria        CriteriaScores `json:"criteria"`
	// PreferenceScore is the raw SAW weighted sum in [0,1].
	PreferenceScore float64 `json:"preference_score"`
	// FinalScore is the preference score converted to the 0-100 scale.
	FinalScore  float64        `json:"final_score"`
	StatusLabel string         `json:"status_label"`
	Answers     []AnswerReview `json:"answers"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// RankingEntry is one row of the per-exam scoring report.
type RankingEntry struct {
	Rank        int     `json:"rank"`
	UserID      int     `json:"user_id"`
	Name        string  `json:"name"`
	FinalScore  float64 `json:"final_score"`
	StatusLabel string  `json:"status_label"`
}
