package model

import (
	"github.com/google/uuid"
)

// Option is one selectable answer of a multiple-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question represents a single exam question as served to a student:
// no correct option is present.
type Question struct {
	ID       uuid.UUID `json:"id"`
	ExamID   uuid.UUID `json:"exam_id"`
	Text     string    `json:"text"`
	Options  []Option  `json:"options"`
	OrderNum int       `json:"order_num"`
	// PairGroup links questions that share context (e.g. a reading
	// passage). Questions in one group feed the consistency criterion.
	PairGroup string `json:"pair_group,omitempty"`
	// Difficulty weights the question in the difficulty criterion (1-5).
	Difficulty int `json:"difficulty"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Text          string   `json:"text" validate:"required,min=1,max=2000"`
	Options       []Option `json:"options" validate:"required,min=2,max=6,dive"`
	CorrectOption string   `json:"correct_option" validate:"required,max=10"`
	OrderNum      int      `json:"order_num" validate:"min=0"`
	PairGroup     string   `json:"pair_group" validate:"omitempty,max=50"`
	Difficulty    int      `json:"difficulty" validate:"required,min=1,max=5"`
}

// UpdateQuestionRequest is the payload for updating an existing question.
type UpdateQuestionRequest struct {
	Text          string   `json:"text" validate:"omitempty,min=1,max=2000"`
	Options       []Option `json:"options" validate:"omitempty,min=2,max=6,dive"`
	CorrectOption string   `json:"correct_option" validate:"omitempty,max=10"`
	OrderNum      int      `json:"order_num" validate:"min=0"`
	PairGroup     string   `json:"pair_group" validate:"omitempty,max=50"`
	Difficulty    int      `json:"difficulty" validate:"omitempty,min=1,max=5"`
}
