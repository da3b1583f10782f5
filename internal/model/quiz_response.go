package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord is one recorded answer: the chosen option and the points it
// carried when selected. Keyed by question id in QuizResponse.Answers, so a
// question contributes at most once.
type AnswerRecord struct {
	OptionID string `json:"optionId"`
	Points   int    `json:"points"`
}

// QuizResponse is the persisted record of one completed play session.
type QuizResponse struct {
	ID          uuid.UUID               `json:"id"`
	QuizID      uuid.UUID               `json:"quiz_id"`
	Answers     map[string]AnswerRecord `json:"answers"`
	ResultID    *string                 `json:"result_id,omitempty"`
	ResultTitle *string                 `json:"result_title,omitempty"`
	Score       int                     `json:"score"`
	LeadName    *string                 `json:"lead_name,omitempty"`
	LeadEmail   *string                 `json:"lead_email,omitempty"`
	LeadPhone   *string                 `json:"lead_phone,omitempty"`
	Completed   bool                    `json:"completed"`
	CreatedAt   time.Time               `json:"created_at"`
}

// SelectOptionRequest is the payload for answering the current question.
type SelectOptionRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	OptionID   string `json:"option_id" binding:"required,max=64"`
}

// SubmitLeadRequest is the payload for the lead capture step.
type SubmitLeadRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}
