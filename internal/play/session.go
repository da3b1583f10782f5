package play

import (
	"time"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/google/uuid"
)

// Step enumerates the playback flow states.
type Step string

const (
	StepPlaying     Step = "playing"
	StepLeadCapture Step = "lead_capture"
	StepResult      Step = "result"
)

// Session is one player's traversal of a published quiz. It is the unit of
// exclusive ownership: each user action runs to completion against it before
// the next is accepted. The struct is JSON-serializable so the service layer
// can park it in Redis between events; the quiz definition itself is not
// embedded and is passed into each transition.
type Session struct {
	ID           uuid.UUID                     `json:"id"`
	QuizID       uuid.UUID                     `json:"quiz_id"`
	Step         Step                          `json:"step"`
	CurrentIndex int                           `json:"current_index"`
	Answers      map[string]model.AnswerRecord `json:"answers"`
	LeadEmail    *string                       `json:"lead_email,omitempty"`
	StartedAt    time.Time                     `json:"started_at"`
}

// NewSession starts a session at the first question. A definition with zero
// questions has no valid entry point and is rejected here even if the
// builder somehow let it through (fail closed, never crash mid-play).
func NewSession(quizID uuid.UUID, cfg *model.QuizConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:           uuid.New(),
		QuizID:       quizID,
		Step:         StepPlaying,
		CurrentIndex: 0,
		Answers:      make(map[string]model.AnswerRecord),
		StartedAt:    time.Now().UTC(),
	}, nil
}

// CurrentQuestion returns the question at the cursor, or nil once the
// session has left Playing.
func (s *Session) CurrentQuestion(cfg *model.QuizConfig) *model.Question {
	if s.Step != StepPlaying || s.CurrentIndex >= len(cfg.Questions) {
		return nil
	}
	return &cfg.Questions[s.CurrentIndex]
}

// SelectOption records the player's choice for the current question. The
// point weight is resolved from the definition, never trusted from the
// client. Re-selecting before advancing overwrites the previous choice and
// does not move the cursor.
func (s *Session) SelectOption(cfg *model.QuizConfig, questionID, optionID string) error {
	if s.Step != StepPlaying {
		return ErrNotPlaying
	}
	current := s.CurrentQuestion(cfg)
	if current == nil || current.ID != questionID {
		return ErrWrongQuestion
	}
	opt := current.OptionByID(optionID)
	if opt == nil {
		return ErrUnknownOption
	}
	s.Answers[questionID] = model.AnswerRecord{OptionID: optionID, Points: opt.Points}
	return nil
}

// Advance moves the flow forward after a selection has rendered. On a
// non-final question it bumps the cursor. On the final question it either
// enters lead capture or goes straight to Result; the returned flag tells
// the caller to finalize now. The player client fires this after its short
// selection delay — the machine itself has no timing.
func (s *Session) Advance(cfg *model.QuizConfig, settings model.QuizSettings) (finalize bool, err error) {
	if s.Step != StepPlaying {
		return false, ErrNotPlaying
	}
	current := s.CurrentQuestion(cfg)
	if current == nil {
		return false, ErrNotPlaying
	}
	if _, answered := s.Answers[current.ID]; !answered {
		return false, ErrNothingSelected
	}

	if s.CurrentIndex < len(cfg.Questions)-1 {
		s.CurrentIndex++
		return false, nil
	}

	// Last question answered.
	if settings.CollectLeadBeforeResult {
		s.Step = StepLeadCapture
		return false, nil
	}
	s.Step = StepResult
	return true, nil
}

// SubmitLead records the captured email and reveals the result. Valid only
// in LeadCapture; Result is terminal.
func (s *Session) SubmitLead(email string) (finalize bool, err error) {
	if s.Step != StepLeadCapture {
		return false, ErrNotLeadCapture
	}
	s.LeadEmail = &email
	s.Step = StepResult
	return true, nil
}

// Progress reports the answered share as an integer percentage, pinned to
// 100 once the session reached Result.
func (s *Session) Progress(cfg *model.QuizConfig) int {
	if s.Step == StepResult {
		return 100
	}
	return ProgressPercent(len(s.Answers), len(cfg.Questions))
}

// Outcome is the computed terminal state of a session. Result is nil when
// the quiz has no buckets configured; the score alone is then displayable.
type Outcome struct {
	Score  int                 `json:"score"`
	Result *model.ResultBucket `json:"result,omitempty"`
}

// Finalize computes the total score and the matched bucket. Pure; persisting
// the response is the caller's concern and must not gate the Result step.
func (s *Session) Finalize(cfg *model.QuizConfig) Outcome {
	score := TotalScore(s.Answers)
	return Outcome{
		Score:  score,
		Result: MatchResult(score, cfg.Results),
	}
}

// BuildResponse assembles the persisted record for a finalized session.
func (s *Session) BuildResponse(out Outcome) model.QuizResponse {
	resp := model.QuizResponse{
		QuizID:    s.QuizID,
		Answers:   s.Answers,
		Score:     out.Score,
		LeadEmail: s.LeadEmail,
		Completed: true,
	}
	if out.Result != nil {
		id := out.Result.ID
		title := out.Result.Title
		resp.ResultID = &id
		resp.ResultTitle = &title
	}
	return resp
}
