package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aimstudio/aims-backend/internal/config"
	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/play"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrPlaySessionExpired marks a session that is gone from Redis, either by
// TTL or because it never existed.
var ErrPlaySessionExpired = errors.New("play session expired or not found")

// PlayService drives anonymous playback sessions. The session document lives
// in Redis under a TTL; every action loads it, applies one transition from
// the play package, and writes it back.
type PlayService struct {
	quizService *QuizService
	rdb         *redis.Client
	sessionTTL  time.Duration
	log         zerolog.Logger
}

// NewPlayService creates a new PlayService.
func NewPlayService(quizService *QuizService, rdb *redis.Client, sessionTTL time.Duration, log zerolog.Logger) *PlayService {
	return &PlayService{
		quizService: quizService,
		rdb:         rdb,
		sessionTTL:  sessionTTL,
		log:         log.With().Str("component", "play_service").Logger(),
	}
}

// PlayState is the player-facing view of a session. The current question is
// sanitized; the outcome appears only once the session reached Result.
type PlayState struct {
	SessionID       uuid.UUID             `json:"session_id"`
	QuizID          uuid.UUID             `json:"quiz_id"`
	Step            play.Step             `json:"step"`
	CurrentIndex    int                   `json:"current_index"`
	CurrentQuestion *model.PublicQuestion `json:"current_question,omitempty"`
	Progress        int                   `json:"progress"`
	LeadFormTitle   string                `json:"lead_form_title,omitempty"`
	Outcome         *play.Outcome         `json:"outcome,omitempty"`
}

// StartSession opens a new session against a published quiz.
func (s *PlayService) StartSession(ctx context.Context, slug string) (*PlayState, error) {
	payload, err := s.quizService.GetPublicPayload(ctx, slug)
	if err != nil {
		return nil, err
	}

	quiz, err := s.quizService.GetDefinition(ctx, payload.QuizID)
	if err != nil {
		return nil, err
	}

	session, err := play.NewSession(quiz.ID, &quiz.Config)
	if err != nil {
		return nil, err
	}

	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("session_id", session.ID.String()).
		Str("quiz_id", quiz.ID.String()).
		Msg("Play session started")
	return s.buildState(session, quiz), nil
}

// GetState returns the current view of a session.
func (s *PlayService) GetState(ctx context.Context, sessionID uuid.UUID) (*PlayState, error) {
	session, quiz, err := s.loadSessionAndQuiz(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.buildState(session, quiz), nil
}

// SelectOption records an answer for the current question. Re-selecting
// before advancing replaces the previous choice.
func (s *PlayService) SelectOption(ctx context.Context, sessionID uuid.UUID, req *model.SelectOptionRequest) (*PlayState, error) {
	session, quiz, _, err := s.transact(ctx, sessionID, func(session *play.Session, quiz *model.Quiz) (bool, error) {
		return false, session.SelectOption(&quiz.Config, req.QuestionID, req.OptionID)
	})
	if err != nil {
		return nil, err
	}
	return s.buildState(session, quiz), nil
}

// Advance moves the session past the current question. On the last question
// it either enters lead capture or finalizes straight to Result.
func (s *PlayService) Advance(ctx context.Context, sessionID uuid.UUID) (*PlayState, error) {
	session, quiz, finalized, err := s.transact(ctx, sessionID, func(session *play.Session, quiz *model.Quiz) (bool, error) {
		return session.Advance(&quiz.Config, quiz.Settings)
	})
	if err != nil {
		return nil, err
	}
	if finalized {
		s.finalize(ctx, session, quiz)
	}
	return s.buildState(session, quiz), nil
}

// SubmitLead records the captured email and reveals the result.
func (s *PlayService) SubmitLead(ctx context.Context, sessionID uuid.UUID, req *model.SubmitLeadRequest) (*PlayState, error) {
	session, quiz, finalized, err := s.transact(ctx, sessionID, func(session *play.Session, quiz *model.Quiz) (bool, error) {
		return session.SubmitLead(req.Email)
	})
	if err != nil {
		return nil, err
	}
	if finalized {
		s.finalize(ctx, session, quiz)
	}
	return s.buildState(session, quiz), nil
}

// maxTransitionRetries bounds the optimistic-lock retry loop on one session.
const maxTransitionRetries = 5

// transact applies one transition to a session under an optimistic lock on
// the session key (WATCH / MULTI / EXEC). Racing actions cannot both commit:
// the loser's EXEC fails, it reloads the stored document and re-runs the
// transition, where the step guard rejects a second finalization. Each
// completed session produces exactly one QuizResponse, double-clicks and
// replayed requests included.
func (s *PlayService) transact(
	ctx context.Context,
	sessionID uuid.UUID,
	mutate func(session *play.Session, quiz *model.Quiz) (bool, error),
) (*play.Session, *model.Quiz, bool, error) {
	key := config.CacheKey.PlaySessionKey(sessionID.String())

	var (
		session  *play.Session
		quiz     *model.Quiz
		finalize bool
	)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrPlaySessionExpired
			}
			return fmt.Errorf("load session: %w", err)
		}

		var loaded play.Session
		if err := json.Unmarshal(raw, &loaded); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		q, err := s.quizService.GetDefinition(ctx, loaded.QuizID)
		if err != nil {
			return err
		}

		fin, err := mutate(&loaded, q)
		if err != nil {
			return err
		}

		out, err := json.Marshal(&loaded)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.sessionTTL)
			return nil
		}); err != nil {
			return err
		}

		session, quiz, finalize = &loaded, q, fin
		return nil
	}

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == nil {
			return session, quiz, finalize, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // Lost the race; reload and re-run the transition.
		}
		return nil, nil, false, err
	}
	return nil, nil, false, fmt.Errorf("session update conflict: %w", redis.TxFailedErr)
}

// finalize computes the outcome and hands the response to the persistence
// queue. It runs only after the winning transition committed. Queue failures
// are logged and swallowed: the player still gets their result even if the
// write path is down.
func (s *PlayService) finalize(ctx context.Context, session *play.Session, quiz *model.Quiz) {
	outcome := session.Finalize(&quiz.Config)
	resp := session.BuildResponse(outcome)

	raw, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to marshal response")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistResponsesQueue, raw)
	pipe.Publish(ctx, config.CacheKey.QuizResponsesChannel(quiz.ID.String()), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Str("quiz_id", quiz.ID.String()).
			Msg("Failed to enqueue response for persistence")
	}
}

// ─── Session storage ────────────────────────────────────────────────

func (s *PlayService) saveSession(ctx context.Context, session *play.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := config.CacheKey.PlaySessionKey(session.ID.String())
	if err := s.rdb.Set(ctx, key, raw, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *PlayService) loadSessionAndQuiz(ctx context.Context, sessionID uuid.UUID) (*play.Session, *model.Quiz, error) {
	key := config.CacheKey.PlaySessionKey(sessionID.String())
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrPlaySessionExpired
		}
		return nil, nil, fmt.Errorf("load session: %w", err)
	}

	var session play.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil, fmt.Errorf("unmarshal session: %w", err)
	}

	quiz, err := s.quizService.GetDefinition(ctx, session.QuizID)
	if err != nil {
		return nil, nil, err
	}
	return &session, quiz, nil
}

// ─── View building ──────────────────────────────────────────────────

func (s *PlayService) buildState(session *play.Session, quiz *model.Quiz) *PlayState {
	state := &PlayState{
		SessionID:    session.ID,
		QuizID:       session.QuizID,
		Step:         session.Step,
		CurrentIndex: session.CurrentIndex,
		Progress:     session.Progress(&quiz.Config),
	}

	switch session.Step {
	case play.StepPlaying:
		if q := session.CurrentQuestion(&quiz.Config); q != nil {
			options := make([]model.PublicOption, len(q.Options))
			for i, opt := range q.Options {
				options[i] = model.PublicOption{ID: opt.ID, Text: opt.Text, ImageURL: opt.ImageURL}
			}
			state.CurrentQuestion = &model.PublicQuestion{ID: q.ID, Text: q.Text, Options: options}
		}
	case play.StepLeadCapture:
		state.LeadFormTitle = quiz.Settings.LeadFormTitle
	case play.StepResult:
		outcome := session.Finalize(&quiz.Config)
		state.Outcome = &outcome
	}
	return state
}
