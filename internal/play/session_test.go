package play_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/play"
	"github.com/google/uuid"
)

// threeQuestionConfig builds the canonical fixture: three questions whose
// options score 10/5/3/0, with a low and a high result bucket.
func threeQuestionConfig() *model.QuizConfig {
	questions := make([]model.Question, 3)
	for i := range questions {
		questions[i] = model.Question{
			ID:   fmt.Sprintf("q%d", i+1),
			Text: fmt.Sprintf("Question %d", i+1),
			Type: model.QuestionTypeSingle,
			Options: []model.Option{
				{ID: "a", Text: "Always", Points: 10},
				{ID: "b", Text: "Often", Points: 5},
				{ID: "c", Text: "Sometimes", Points: 3},
				{ID: "d", Text: "Never", Points: 0},
			},
		}
	}
	return &model.QuizConfig{
		Questions: questions,
		Results: []model.ResultBucket{
			{ID: "beginner", Title: "Beginner", ScoreMin: 0, ScoreMax: 20},
			{ID: "expert", Title: "Expert", ScoreMin: 21, ScoreMax: 50},
		},
	}
}

func mustSession(t *testing.T, cfg *model.QuizConfig) *play.Session {
	t.Helper()
	s, err := play.NewSession(uuid.New(), cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func answerAndAdvance(t *testing.T, s *play.Session, cfg *model.QuizConfig, settings model.QuizSettings, optionID string) bool {
	t.Helper()
	q := s.CurrentQuestion(cfg)
	if q == nil {
		t.Fatalf("no current question in step %s", s.Step)
	}
	if err := s.SelectOption(cfg, q.ID, optionID); err != nil {
		t.Fatalf("select option: %v", err)
	}
	finalize, err := s.Advance(cfg, settings)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return finalize
}

func TestHighestOptionsMatchExpertBucket(t *testing.T) {
	cfg := threeQuestionConfig()
	s := mustSession(t, cfg)
	settings := model.QuizSettings{}

	var finalize bool
	for i := 0; i < 3; i++ {
		finalize = answerAndAdvance(t, s, cfg, settings, "a")
	}
	if !finalize {
		t.Fatal("expected finalize after last question with lead capture off")
	}
	if s.Step != play.StepResult {
		t.Fatalf("expected result step, got %s", s.Step)
	}

	out := s.Finalize(cfg)
	if out.Score != 30 {
		t.Fatalf("expected score 30, got %d", out.Score)
	}
	if out.Result == nil || out.Result.ID != "expert" {
		t.Fatalf("expected expert bucket (21-50) over beginner (0-20), got %+v", out.Result)
	}
}

func TestLeadCaptureGatesResult(t *testing.T) {
	cfg := threeQuestionConfig()
	s := mustSession(t, cfg)
	settings := model.QuizSettings{CollectLeadBeforeResult: true}

	for i := 0; i < 2; i++ {
		if finalize := answerAndAdvance(t, s, cfg, settings, "b"); finalize {
			t.Fatal("finalize before last question")
		}
	}
	if finalize := answerAndAdvance(t, s, cfg, settings, "b"); finalize {
		t.Fatal("expected lead capture, not finalization")
	}
	if s.Step != play.StepLeadCapture {
		t.Fatalf("expected lead_capture step, got %s", s.Step)
	}

	// Answer events are rejected while capturing the lead.
	if err := s.SelectOption(cfg, "q3", "a"); !errors.Is(err, play.ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying, got %v", err)
	}

	finalize, err := s.SubmitLead("jane@example.com")
	if err != nil || !finalize {
		t.Fatalf("submit lead: finalize=%v err=%v", finalize, err)
	}
	if s.Step != play.StepResult {
		t.Fatalf("expected result step, got %s", s.Step)
	}

	resp := s.BuildResponse(s.Finalize(cfg))
	if resp.LeadEmail == nil || *resp.LeadEmail != "jane@example.com" {
		t.Fatalf("expected captured lead email, got %+v", resp.LeadEmail)
	}
	if !resp.Completed {
		t.Fatal("expected completed response")
	}
}

func TestDirectFinalizationWithoutLeadCapture(t *testing.T) {
	cfg := threeQuestionConfig()
	s := mustSession(t, cfg)
	settings := model.QuizSettings{CollectLeadBeforeResult: false}

	for i := 0; i < 3; i++ {
		answerAndAdvance(t, s, cfg, settings, "d")
	}
	if s.Step != play.StepResult {
		t.Fatalf("expected result step, got %s", s.Step)
	}

	resp := s.BuildResponse(s.Finalize(cfg))
	if resp.LeadEmail != nil {
		t.Fatalf("expected nil lead email, got %q", *resp.LeadEmail)
	}
	if resp.Score != 0 {
		t.Fatalf("expected score 0, got %d", resp.Score)
	}
	if resp.ResultID == nil || *resp.ResultID != "beginner" {
		t.Fatalf("expected beginner bucket, got %+v", resp.ResultID)
	}
}

func TestNoResultsConfiguredYieldsBareScore(t *testing.T) {
	cfg := threeQuestionConfig()
	cfg.Results = nil
	s := mustSession(t, cfg)

	for i := 0; i < 3; i++ {
		answerAndAdvance(t, s, cfg, model.QuizSettings{}, "c")
	}

	out := s.Finalize(cfg)
	if out.Result != nil {
		t.Fatalf("expected nil result, got %+v", out.Result)
	}
	if out.Score != 9 {
		t.Fatalf("expected score 9, got %d", out.Score)
	}

	resp := s.BuildResponse(out)
	if resp.ResultID != nil || resp.ResultTitle != nil {
		t.Fatal("expected nil result fields on the persisted record")
	}
}

func TestReselectionOverwritesWithoutAdvancing(t *testing.T) {
	cfg := threeQuestionConfig()
	s := mustSession(t, cfg)

	if err := s.SelectOption(cfg, "q1", "a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.SelectOption(cfg, "q1", "d"); err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if s.CurrentIndex != 0 {
		t.Fatalf("cursor moved on re-selection: %d", s.CurrentIndex)
	}
	if got := s.Answers["q1"]; got.OptionID != "d" || got.Points != 0 {
		t.Fatalf("expected final choice d/0, got %+v", got)
	}
	if got := play.TotalScore(s.Answers); got != 0 {
		t.Fatalf("expected only final choice to count, got %d", got)
	}
}

func TestFlowIsStrictlyForward(t *testing.T) {
	cfg := threeQuestionConfig()
	s := mustSession(t, cfg)

	// Cannot answer a question other than the current one.
	if err := s.SelectOption(cfg, "q2", "a"); !errors.Is(err, play.ErrWrongQuestion) {
		t.Fatalf("expected ErrWrongQuestion, got %v", err)
	}
	// Unknown option on the current question.
	if err := s.SelectOption(cfg, "q1", "zzz"); !errors.Is(err, play.ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	// Cannot advance without a selection.
	if _, err := s.Advance(cfg, model.QuizSettings{}); !errors.Is(err, play.ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}
	// Lead submit is invalid while playing.
	if _, err := s.SubmitLead("x@example.com"); !errors.Is(err, play.ErrNotLeadCapture) {
		t.Fatalf("expected ErrNotLeadCapture, got %v", err)
	}

	answerAndAdvance(t, s, cfg, model.QuizSettings{}, "a")
	// The previous question is closed after advancing.
	if err := s.SelectOption(cfg, "q1", "b"); !errors.Is(err, play.ErrWrongQuestion) {
		t.Fatalf("expected ErrWrongQuestion for past question, got %v", err)
	}
}

func TestResultIsTerminal(t *testing.T) {
	cfg := threeQuestionConfig()
	s := mustSession(t, cfg)
	for i := 0; i < 3; i++ {
		answerAndAdvance(t, s, cfg, model.QuizSettings{}, "a")
	}

	if err := s.SelectOption(cfg, "q3", "b"); !errors.Is(err, play.ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying after result, got %v", err)
	}
	if _, err := s.Advance(cfg, model.QuizSettings{}); !errors.Is(err, play.ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying after result, got %v", err)
	}
	if _, err := s.SubmitLead("x@example.com"); !errors.Is(err, play.ErrNotLeadCapture) {
		t.Fatalf("expected ErrNotLeadCapture after result, got %v", err)
	}
}

func TestProgressTracksAnswersAndPinsAtResult(t *testing.T) {
	questions := make([]model.Question, 4)
	for i := range questions {
		questions[i] = model.Question{
			ID:   fmt.Sprintf("q%d", i+1),
			Type: model.QuestionTypeSingle,
			Options: []model.Option{
				{ID: "a", Points: 1},
				{ID: "b", Points: 0},
			},
		}
	}
	cfg := &model.QuizConfig{Questions: questions}
	s := mustSession(t, cfg)

	answerAndAdvance(t, s, cfg, model.QuizSettings{}, "a")
	answerAndAdvance(t, s, cfg, model.QuizSettings{}, "a")
	if got := s.Progress(cfg); got != 50 {
		t.Fatalf("expected 50%% with 2 of 4 answered, got %d", got)
	}

	answerAndAdvance(t, s, cfg, model.QuizSettings{}, "a")
	answerAndAdvance(t, s, cfg, model.QuizSettings{}, "a")
	if got := s.Progress(cfg); got != 100 {
		t.Fatalf("expected 100%% at result, got %d", got)
	}
}

func TestMalformedDefinitionsFailClosed(t *testing.T) {
	// Zero questions: no valid entry point.
	if _, err := play.NewSession(uuid.New(), &model.QuizConfig{}); !errors.Is(err, model.ErrConfigNoQuestions) {
		t.Fatalf("expected ErrConfigNoQuestions, got %v", err)
	}

	// A question with a single option.
	cfg := &model.QuizConfig{Questions: []model.Question{{
		ID:      "q1",
		Type:    model.QuestionTypeSingle,
		Options: []model.Option{{ID: "a"}},
	}}}
	if _, err := play.NewSession(uuid.New(), cfg); !errors.Is(err, model.ErrConfigTooFewOptions) {
		t.Fatalf("expected ErrConfigTooFewOptions, got %v", err)
	}

	// Reserved question variants are refused, not mis-scored.
	cfg = &model.QuizConfig{Questions: []model.Question{{
		ID:      "q1",
		Type:    model.QuestionTypeMultiple,
		Options: []model.Option{{ID: "a"}, {ID: "b"}},
	}}}
	if _, err := play.NewSession(uuid.New(), cfg); !errors.Is(err, model.ErrConfigUnhandledType) {
		t.Fatalf("expected ErrConfigUnhandledType, got %v", err)
	}
}
