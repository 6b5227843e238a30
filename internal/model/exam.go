package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject"`
	AuthorID        int        `json:"author_id"`
	DurationMinutes int        `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the exam duration as a time.Duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string     `json:"title" validate:"required,min=3,max=255"`
	Subject         string     `json:"subject" validate:"required,min=2,max=100"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=1,max=480"`
	ScheduledStart  *time.Time `json:"scheduled_start" validate:"omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end" validate:"omitempty,gtfield=ScheduledStart"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title           string     `json:"title" validate:"omitempty,min=3,max=255"`
	Subject         string     `json:"subject" validate:"omitempty,min=2,max=100"`
	DurationMinutes int        `json:"duration_minutes" validate:"omitempty,min=1,max=480"`
	ScheduledStart  *time.Time `json:"scheduled_start" validate:"omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end" validate:"omitempty,gtfield=ScheduledStart"`
	Status          ExamStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
}
