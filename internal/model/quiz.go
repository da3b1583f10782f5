package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuizStatus enumerates the lifecycle states of a quiz.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
)

// QuestionType tags the question variant. Only single-choice is handled by
// playback today; the other tags are accepted by the builder schema but a
// quiz containing them cannot be published or played (fail closed, never
// mis-score).
type QuestionType string

const (
	QuestionTypeSingle      QuestionType = "single"
	QuestionTypeMultiple    QuestionType = "multiple"
	QuestionTypeImageChoice QuestionType = "image_choice"
)

// Quiz represents an authored quiz entity.
type Quiz struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"user_id"`
	Title          string       `json:"title"`
	Description    *string      `json:"description,omitempty"`
	Slug           string       `json:"slug"`
	Config         QuizConfig   `json:"config"`
	Settings       QuizSettings `json:"settings"`
	Status         QuizStatus   `json:"status"`
	TotalResponses int          `json:"total_responses"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// QuizConfig is the authored definition: ordered questions and result buckets.
// Stored as a single JSONB document.
type QuizConfig struct {
	Questions []Question     `json:"questions"`
	Results   []ResultBucket `json:"results"`
}

// Question is one weighted-choice question.
type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
}

// Option is one selectable answer carrying a point weight.
type Option struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	ImageURL *string `json:"imageUrl,omitempty"`
	Points   int     `json:"points"`
}

// ResultBucket maps an inclusive score range to a displayable outcome.
type ResultBucket struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	ScoreMin    int     `json:"scoreMin"`
	ScoreMax    int     `json:"scoreMax"`
	CTAText     string  `json:"ctaText"`
	CTAUrl      string  `json:"ctaUrl"`
}

// LeadFields flags which contact fields the lead form shows.
type LeadFields struct {
	Name  bool `json:"name"`
	Email bool `json:"email"`
	Phone bool `json:"phone"`
}

// QuizSettings controls the playback presentation and flow.
// TimerPerQuestion and WebhookURL are stored verbatim but have no effect on
// playback; they are reserved for the builder.
type QuizSettings struct {
	CollectLeadBeforeResult bool       `json:"collectLeadBeforeResult"`
	LeadFields              LeadFields `json:"leadFields"`
	LeadFormTitle           string     `json:"leadFormTitle"`
	ShowProgressBar         bool       `json:"showProgressBar"`
	TimerPerQuestion        *int       `json:"timerPerQuestion"`
	WebhookURL              *string    `json:"webhookUrl"`
	PrimaryColor            string     `json:"primaryColor"`
	BackgroundImage         *string    `json:"backgroundImage"`
}

// Configuration errors. Playback refuses to start on any of these; the
// builder rejects them at save time.
var (
	ErrConfigNoQuestions    = errors.New("quiz config has no questions")
	ErrConfigTooFewOptions  = errors.New("question has fewer than two options")
	ErrConfigUnhandledType  = errors.New("question type is not supported by playback")
	ErrConfigBadResultRange = errors.New("result bucket has scoreMin greater than scoreMax")
)

// Validate checks the structural invariants of a quiz definition.
// It does not check that result ranges are disjoint or exhaustive —
// overlaps resolve to first-match-wins at play time, as authored.
func (c *QuizConfig) Validate() error {
	if len(c.Questions) == 0 {
		return ErrConfigNoQuestions
	}
	for i, q := range c.Questions {
		if q.Type != QuestionTypeSingle {
			return fmt.Errorf("question %d (%s): %w: %q", i, q.ID, ErrConfigUnhandledType, q.Type)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d (%s): %w", i, q.ID, ErrConfigTooFewOptions)
		}
	}
	for i, r := range c.Results {
		if r.ScoreMin > r.ScoreMax {
			return fmt.Errorf("result %d (%s): %w", i, r.ID, ErrConfigBadResultRange)
		}
	}
	return nil
}

// QuestionByID returns the question with the given id, or nil.
func (c *QuizConfig) QuestionByID(id string) *Question {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return &c.Questions[i]
		}
	}
	return nil
}

// OptionByID returns the option with the given id, or nil.
func (q *Question) OptionByID(id string) *Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

// CreateQuizRequest is the payload for creating a new quiz.
type CreateQuizRequest struct {
	Title       string       `json:"title" binding:"required,min=3,max=255"`
	Description *string      `json:"description" binding:"omitempty,max=2000"`
	Config      QuizConfig   `json:"config" binding:"required"`
	Settings    QuizSettings `json:"settings"`
}

// UpdateQuizRequest is the payload for updating an existing quiz.
type UpdateQuizRequest struct {
	Title       string       `json:"title" binding:"required,min=3,max=255"`
	Description *string      `json:"description" binding:"omitempty,max=2000"`
	Config      QuizConfig   `json:"config" binding:"required"`
	Settings    QuizSettings `json:"settings"`
}

// ────────────────────────────────────────────────────────────────────────────
// Public playback payload
// ────────────────────────────────────────────────────────────────────────────

// QuizPayload is the Redis-cached payload sent to players. Option point
// weights and result buckets stay server-side so a player cannot derive the
// scoring from the wire format.
type QuizPayload struct {
	QuizID        uuid.UUID        `json:"quiz_id"`
	Title         string           `json:"title"`
	Description   *string          `json:"description,omitempty"`
	Slug          string           `json:"slug"`
	QuestionCount int              `json:"question_count"`
	Questions     []PublicQuestion `json:"questions"`
	Settings      QuizSettings     `json:"settings"`
}

// PublicQuestion is a question without point weights, sent to players.
type PublicQuestion struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Options []PublicOption `json:"options"`
}

// PublicOption is an option without its point weight.
type PublicOption struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// PublicPayload converts a quiz into its sanitized player-facing form.
func (q *Quiz) PublicPayload() QuizPayload {
	questions := make([]PublicQuestion, len(q.Config.Questions))
	for i, question := range q.Config.Questions {
		options := make([]PublicOption, len(question.Options))
		for j, opt := range question.Options {
			options[j] = PublicOption{ID: opt.ID, Text: opt.Text, ImageURL: opt.ImageURL}
		}
		questions[i] = PublicQuestion{ID: question.ID, Text: question.Text, Options: options}
	}
	return QuizPayload{
		QuizID:        q.ID,
		Title:         q.Title,
		Description:   q.Description,
		Slug:          q.Slug,
		QuestionCount: len(questions),
		Questions:     questions,
		Settings:      q.Settings,
	}
}
