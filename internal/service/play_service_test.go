package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aimstudio/aims-backend/internal/config"
	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/play"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// newPlayFixture wires a PlayService against miniredis with a published quiz
// already warmed into the cache, so no PostgreSQL is touched.
func newPlayFixture(t *testing.T, quiz *model.Quiz) (*PlayService, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := newClient(mr)
	log := zerolog.Nop()

	quizService := NewQuizService(nil, nil, nil, rdb, log)
	if err := quizService.WarmQuizCache(context.Background(), quiz); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	playService := NewPlayService(quizService, rdb, time.Hour, log)
	return playService, mr, rdb
}

func publishedQuiz(collectLead bool) *model.Quiz {
	desc := "find your level"
	return &model.Quiz{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Title:  "Marketing Maturity",
		Slug:   "marketing-maturity-a1b2c",
		Status: model.QuizStatusPublished,
		Config: model.QuizConfig{
			Questions: []model.Question{
				{
					ID:   "q1",
					Text: "How often do you post?",
					Type: model.QuestionTypeSingle,
					Options: []model.Option{
						{ID: "q1a", Text: "Daily", Points: 10},
						{ID: "q1b", Text: "Never", Points: 0},
					},
				},
				{
					ID:   "q2",
					Text: "Do you track conversions?",
					Type: model.QuestionTypeSingle,
					Options: []model.Option{
						{ID: "q2a", Text: "Yes", Points: 10},
						{ID: "q2b", Text: "No", Points: 0},
					},
				},
			},
			Results: []model.ResultBucket{
				{ID: "r1", Title: "Beginner", ScoreMin: 0, ScoreMax: 10},
				{ID: "r2", Title: "Pro", ScoreMin: 11, ScoreMax: 20},
			},
		},
		Settings: model.QuizSettings{
			CollectLeadBeforeResult: collectLead,
			LeadFormTitle:           "Where do we send your result?",
		},
		Description: &desc,
	}
}

func TestPlayFlowStraightToResult(t *testing.T) {
	quiz := publishedQuiz(false)
	svc, _, rdb := newPlayFixture(t, quiz)
	ctx := context.Background()

	state, err := svc.StartSession(ctx, quiz.Slug)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if state.Step != play.StepPlaying {
		t.Fatalf("expected playing, got %s", state.Step)
	}
	if state.CurrentQuestion == nil || state.CurrentQuestion.ID != "q1" {
		t.Fatalf("expected q1 as current question, got %+v", state.CurrentQuestion)
	}

	// Answer both questions with the top option.
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q1", OptionID: "q1a"}); err != nil {
		t.Fatalf("select q1: %v", err)
	}
	state, err = svc.Advance(ctx, state.SessionID)
	if err != nil {
		t.Fatalf("advance q1: %v", err)
	}
	if state.CurrentQuestion == nil || state.CurrentQuestion.ID != "q2" {
		t.Fatalf("expected q2 after advance, got %+v", state.CurrentQuestion)
	}

	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q2", OptionID: "q2a"}); err != nil {
		t.Fatalf("select q2: %v", err)
	}
	state, err = svc.Advance(ctx, state.SessionID)
	if err != nil {
		t.Fatalf("advance q2: %v", err)
	}

	if state.Step != play.StepResult {
		t.Fatalf("expected result, got %s", state.Step)
	}
	if state.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", state.Progress)
	}
	if state.Outcome == nil || state.Outcome.Score != 20 {
		t.Fatalf("expected score 20, got %+v", state.Outcome)
	}
	if state.Outcome.Result == nil || state.Outcome.Result.ID != "r2" {
		t.Fatalf("expected Pro bucket, got %+v", state.Outcome.Result)
	}

	// Finalization is fire-and-forget onto the persistence queue.
	items, err := rdb.LRange(ctx, config.WorkerKey.PersistResponsesQueue, 0, -1).Result()
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queued response, got %d", len(items))
	}
	var resp model.QuizResponse
	if err := json.Unmarshal([]byte(items[0]), &resp); err != nil {
		t.Fatalf("unmarshal queued response: %v", err)
	}
	if resp.QuizID != quiz.ID || resp.Score != 20 || !resp.Completed {
		t.Fatalf("unexpected queued response: %+v", resp)
	}
	if resp.LeadEmail != nil {
		t.Fatalf("expected nil lead email, got %v", *resp.LeadEmail)
	}
}

func TestPlayFlowLeadCaptureGatesResult(t *testing.T) {
	quiz := publishedQuiz(true)
	svc, _, rdb := newPlayFixture(t, quiz)
	ctx := context.Background()

	state, err := svc.StartSession(ctx, quiz.Slug)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	for _, step := range []struct{ q, o string }{{"q1", "q1b"}, {"q2", "q2a"}} {
		if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: step.q, OptionID: step.o}); err != nil {
			t.Fatalf("select %s: %v", step.q, err)
		}
		if state, err = svc.Advance(ctx, state.SessionID); err != nil {
			t.Fatalf("advance %s: %v", step.q, err)
		}
	}

	if state.Step != play.StepLeadCapture {
		t.Fatalf("expected lead capture, got %s", state.Step)
	}
	if state.Outcome != nil {
		t.Fatal("outcome must stay hidden during lead capture")
	}
	if state.LeadFormTitle != quiz.Settings.LeadFormTitle {
		t.Fatalf("expected lead form title, got %q", state.LeadFormTitle)
	}

	// Nothing should be queued before the lead is captured.
	if n := rdb.LLen(ctx, config.WorkerKey.PersistResponsesQueue).Val(); n != 0 {
		t.Fatalf("expected empty queue during lead capture, got %d", n)
	}

	state, err = svc.SubmitLead(ctx, state.SessionID, &model.SubmitLeadRequest{Email: "lead@example.com"})
	if err != nil {
		t.Fatalf("submit lead: %v", err)
	}
	if state.Step != play.StepResult {
		t.Fatalf("expected result after lead, got %s", state.Step)
	}
	if state.Outcome == nil || state.Outcome.Score != 10 || state.Outcome.Result.ID != "r1" {
		t.Fatalf("unexpected outcome: %+v", state.Outcome)
	}

	items, _ := rdb.LRange(ctx, config.WorkerKey.PersistResponsesQueue, 0, -1).Result()
	if len(items) != 1 {
		t.Fatalf("expected 1 queued response, got %d", len(items))
	}
	var resp model.QuizResponse
	if err := json.Unmarshal([]byte(items[0]), &resp); err != nil {
		t.Fatalf("unmarshal queued response: %v", err)
	}
	if resp.LeadEmail == nil || *resp.LeadEmail != "lead@example.com" {
		t.Fatalf("expected captured lead email, got %+v", resp.LeadEmail)
	}
}

func TestPlayReselectionBeforeAdvance(t *testing.T) {
	quiz := publishedQuiz(false)
	svc, _, _ := newPlayFixture(t, quiz)
	ctx := context.Background()

	state, err := svc.StartSession(ctx, quiz.Slug)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Pick the high option, change mind to the low one.
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q1", OptionID: "q1a"}); err != nil {
		t.Fatalf("first select: %v", err)
	}
	state, err = svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q1", OptionID: "q1b"})
	if err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if state.CurrentQuestion.ID != "q1" {
		t.Fatal("re-selection must not advance the cursor")
	}

	if _, err := svc.Advance(ctx, state.SessionID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q2", OptionID: "q2b"}); err != nil {
		t.Fatalf("select q2: %v", err)
	}
	state, err = svc.Advance(ctx, state.SessionID)
	if err != nil {
		t.Fatalf("final advance: %v", err)
	}

	// q1b (0) + q2b (0): the replacement, not the first pick, must count.
	if state.Outcome.Score != 0 {
		t.Fatalf("expected score 0 after re-selection, got %d", state.Outcome.Score)
	}
}

func TestPlaySessionExpiry(t *testing.T) {
	quiz := publishedQuiz(false)
	svc, mr, _ := newPlayFixture(t, quiz)
	ctx := context.Background()

	state, err := svc.StartSession(ctx, quiz.Slug)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := svc.GetState(ctx, state.SessionID); err != ErrPlaySessionExpired {
		t.Fatalf("expected ErrPlaySessionExpired, got %v", err)
	}
}

func TestPlayConcurrentAdvanceFinalizesOnce(t *testing.T) {
	quiz := publishedQuiz(false)
	svc, _, rdb := newPlayFixture(t, quiz)
	ctx := context.Background()

	state, err := svc.StartSession(ctx, quiz.Slug)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q1", OptionID: "q1a"}); err != nil {
		t.Fatalf("select q1: %v", err)
	}
	if _, err := svc.Advance(ctx, state.SessionID); err != nil {
		t.Fatalf("advance q1: %v", err)
	}
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q2", OptionID: "q2a"}); err != nil {
		t.Fatalf("select q2: %v", err)
	}

	// A double-click (or a hostile client) fires the final advance many
	// times at once. Exactly one transition may win; the rest must fail the
	// step guard after losing the compare-and-set.
	const racers = 16
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Advance(ctx, state.SessionID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, play.ErrNotPlaying) {
			t.Errorf("unexpected advance error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly 1 winning advance, got %d", succeeded)
	}

	if n := rdb.LLen(ctx, config.WorkerKey.PersistResponsesQueue).Val(); n != 1 {
		t.Fatalf("expected exactly 1 queued response, got %d", n)
	}
}

func TestPlayGuardsAgainstOutOfOrderActions(t *testing.T) {
	quiz := publishedQuiz(false)
	svc, _, _ := newPlayFixture(t, quiz)
	ctx := context.Background()

	state, err := svc.StartSession(ctx, quiz.Slug)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Advancing before answering.
	if _, err := svc.Advance(ctx, state.SessionID); err != play.ErrNothingSelected {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}

	// Answering a question that is not current.
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q2", OptionID: "q2a"}); err != play.ErrWrongQuestion {
		t.Fatalf("expected ErrWrongQuestion, got %v", err)
	}

	// An option from another question.
	if _, err := svc.SelectOption(ctx, state.SessionID, &model.SelectOptionRequest{QuestionID: "q1", OptionID: "q2a"}); err != play.ErrUnknownOption {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}

	// Lead submission while still playing.
	if _, err := svc.SubmitLead(ctx, state.SessionID, &model.SubmitLeadRequest{Email: "x@y.com"}); err != play.ErrNotLeadCapture {
		t.Fatalf("expected ErrNotLeadCapture, got %v", err)
	}
}
