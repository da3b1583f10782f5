package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/aimstudio/aims-backend/internal/config"
	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/repository"
	"github.com/aimstudio/aims-backend/internal/response"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

// Domain Errors
var (
	ErrNotQuizOwner     = errors.New("not the owner of this quiz")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNotPublished = errors.New("quiz is not published")
	ErrNoQuizCredits    = errors.New("no quiz credits remaining")
)

// QuizService handles quiz authoring, lifecycle, and Redis caching.
type QuizService struct {
	quizRepo     *repository.QuizRepository
	responseRepo *repository.ResponseRepository
	userRepo     *repository.UserRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	responseRepo *repository.ResponseRepository,
	userRepo *repository.UserRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		responseRepo: responseRepo,
		userRepo:     userRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetOwned retrieves a quiz and checks ownership.
func (s *QuizService) GetOwned(ctx context.Context, quizID uuid.UUID, ownerID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	if quiz.UserID != ownerID {
		return nil, ErrNotQuizOwner
	}
	return quiz, nil
}

// ListByOwner retrieves an owner's quizzes with pagination.
func (s *QuizService) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, perPage int) ([]model.Quiz, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	quizzes, total, err := s.quizRepo.ListByOwnerPaginated(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if quizzes == nil {
		quizzes = []model.Quiz{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return quizzes, pagination, nil
}

// Create inserts a new draft quiz, consuming one quiz credit.
func (s *QuizService) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateQuizRequest) (*model.Quiz, error) {
	remaining, consumed, err := s.userRepo.ConsumeQuizCredit(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("consume credit: %w", err)
	}
	if !consumed {
		return nil, ErrNoQuizCredits
	}

	quiz := &model.Quiz{
		UserID:      ownerID,
		Title:       req.Title,
		Description: req.Description,
		Slug:        GenerateSlug(req.Title),
		Config:      req.Config,
		Settings:    req.Settings,
		Status:      model.QuizStatusDraft,
	}
	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().
		Str("quiz_id", quiz.ID.String()).
		Str("slug", quiz.Slug).
		Int("credits_remaining", remaining).
		Msg("Quiz created")
	return quiz, nil
}

// Update replaces the authored content of a quiz. Published quizzes get their
// cache rewarmed so players see the new content on the next load.
func (s *QuizService) Update(ctx context.Context, quizID uuid.UUID, ownerID uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.GetOwned(ctx, quizID, ownerID)
	if err != nil {
		return nil, err
	}

	quiz.Title = req.Title
	quiz.Description = req.Description
	quiz.Config = req.Config
	quiz.Settings = req.Settings

	if err := s.quizRepo.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}

	if quiz.Status == model.QuizStatusPublished {
		if err := s.WarmQuizCache(ctx, quiz); err != nil {
			return nil, err
		}
	}
	return quiz, nil
}

// Publish validates the config, warms the cache, and flips status to published.
func (s *QuizService) Publish(ctx context.Context, quizID uuid.UUID, ownerID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.GetOwned(ctx, quizID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := quiz.Config.Validate(); err != nil {
		return nil, err
	}

	// Prewarm cache before the status flip so the first player hits Redis.
	if err := s.WarmQuizCache(ctx, quiz); err != nil {
		return nil, err
	}

	if err := s.quizRepo.UpdateStatus(ctx, quizID, model.QuizStatusPublished); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	quiz.Status = model.QuizStatusPublished

	s.log.Info().Str("quiz_id", quizID.String()).Str("slug", quiz.Slug).Msg("Quiz published")
	return quiz, nil
}

// Unpublish flips status back to draft and evicts the cache.
func (s *QuizService) Unpublish(ctx context.Context, quizID uuid.UUID, ownerID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.GetOwned(ctx, quizID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.quizRepo.UpdateStatus(ctx, quizID, model.QuizStatusDraft); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	quiz.Status = model.QuizStatusDraft

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.QuizPayloadKey(quiz.Slug))
	pipe.Del(ctx, config.CacheKey.QuizDefinitionKey(quiz.ID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Failed to evict quiz cache")
	}

	s.log.Info().Str("quiz_id", quizID.String()).Msg("Quiz unpublished")
	return quiz, nil
}

// Delete removes a quiz and evicts its cache. Responses go with it (FK cascade).
func (s *QuizService) Delete(ctx context.Context, quizID uuid.UUID, ownerID uuid.UUID) error {
	quiz, err := s.GetOwned(ctx, quizID, ownerID)
	if err != nil {
		return err
	}

	if err := s.quizRepo.Delete(ctx, quizID); err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.QuizPayloadKey(quiz.Slug))
	pipe.Del(ctx, config.CacheKey.QuizDefinitionKey(quiz.ID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Failed to evict quiz cache")
	}
	return nil
}

// ListResponses retrieves a quiz's responses with pagination, owner-scoped.
func (s *QuizService) ListResponses(ctx context.Context, quizID uuid.UUID, ownerID uuid.UUID, page, perPage int) ([]model.QuizResponse, *response.Pagination, error) {
	if _, err := s.GetOwned(ctx, quizID, ownerID); err != nil {
		return nil, nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	responses, total, err := s.responseRepo.ListByQuizPaginated(ctx, quizID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if responses == nil {
		responses = []model.QuizResponse{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return responses, pagination, nil
}

// WarmQuizCache loads a quiz's public payload and full definition into Redis.
// The payload is what players download; the definition is what the play
// session reads to resolve points. Both are cached via one pipeline.
func (s *QuizService) WarmQuizCache(ctx context.Context, quiz *model.Quiz) error {
	payloadJSON, err := json.Marshal(quiz.PublicPayload())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	definitionJSON, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.QuizPayloadKey(quiz.Slug), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.QuizDefinitionKey(quiz.ID.String()), definitionJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("quiz_id", quiz.ID.String()).
		Int("questions", len(quiz.Config.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published quizzes into Redis on application
// startup, so traffic never lazy-loads against a cold cache.
func (s *QuizService) PrewarmAllCaches(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published quizzes: %w", err)
	}

	if len(quizzes) == 0 {
		s.log.Info().Msg("No published quizzes to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(quizzes)).Msg("Prewarming published quizzes...")

	warmed := 0
	for i := range quizzes {
		if err := s.WarmQuizCache(ctx, &quizzes[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("quiz_id", quizzes[i].ID.String()).
				Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(quizzes)).
		Msg("Prewarming complete")
	return nil
}

// GetPublicPayload retrieves the player-facing payload for a published quiz.
// Redis is the fast lane; PostgreSQL is the fallback, which also rewarms.
func (s *QuizService) GetPublicPayload(ctx context.Context, slug string) (*model.QuizPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(slug)).Bytes()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	quiz, err := s.quizRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	if quiz.Status != model.QuizStatusPublished {
		return nil, ErrQuizNotPublished
	}

	if err := s.WarmQuizCache(ctx, quiz); err != nil {
		s.log.Warn().Err(err).Str("slug", slug).Msg("Failed to rewarm quiz cache")
	}

	payload := quiz.PublicPayload()
	return &payload, nil
}

// GetDefinition retrieves the full quiz definition (points included) used by
// play sessions. Cache first, PostgreSQL fallback.
func (s *QuizService) GetDefinition(ctx context.Context, quizID uuid.UUID) (*model.Quiz, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizDefinitionKey(quizID.String())).Bytes()
	if err == nil {
		var quiz model.Quiz
		if err := json.Unmarshal(data, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		return &quiz, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get definition: %w", err)
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

// ─── Slug generation ────────────────────────────────────────────────

const slugSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSlug builds a URL identifier from a quiz title: accents folded,
// non-alphanumerics collapsed to dashes, plus a random 5-char suffix so
// titles never collide.
func GenerateSlug(title string) string {
	folded := make([]rune, 0, len(title))
	for _, r := range norm.NFD.String(strings.ToLower(title)) {
		if unicode.Is(unicode.Mn, r) {
			continue // Drop combining marks left over from accent folding
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			folded = append(folded, r)
		} else {
			folded = append(folded, '-')
		}
	}

	base := strings.Trim(collapseDashes(string(folded)), "-")

	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = slugSuffixAlphabet[rand.IntN(len(slugSuffixAlphabet))]
	}

	if base == "" {
		return string(suffix)
	}
	return base + "-" + string(suffix)
}

func collapseDashes(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		if r == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
