package repository

import (
	"context"
	"fmt"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizRepository handles quiz data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `id, user_id, title, description, slug, config, settings, status, total_responses, created_at, updated_at`

func scanQuiz(row interface{ Scan(...any) error }) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := row.Scan(&q.ID, &q.UserID, &q.Title, &q.Description, &q.Slug,
		&q.Config, &q.Settings, &q.Status, &q.TotalResponses, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetByID retrieves a quiz by its UUID.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
}

// GetBySlug retrieves a quiz by its public slug.
func (r *QuizRepository) GetBySlug(ctx context.Context, slug string) (*model.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE slug = $1`, slug))
}

// ListByOwnerPaginated retrieves an owner's quizzes, newest first.
func (r *QuizRepository) ListByOwnerPaginated(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Quiz, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quizzes WHERE user_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, 0, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, total, rows.Err()
}

// ListPublished returns all published quizzes.
// Used for cache prewarming on application startup.
func (r *QuizRepository) ListPublished(ctx context.Context) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE status = $1
		 ORDER BY created_at DESC`, model.QuizStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// Create inserts a new quiz as draft.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (user_id, title, description, slug, config, settings, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, total_responses, created_at, updated_at`,
		q.UserID, q.Title, q.Description, q.Slug, q.Config, q.Settings, q.Status,
	).Scan(&q.ID, &q.TotalResponses, &q.CreatedAt, &q.UpdatedAt)
}

// Update replaces the authored content of a quiz.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quizzes
		 SET title = $1, description = $2, config = $3, settings = $4, updated_at = NOW()
		 WHERE id = $5`,
		q.Title, q.Description, q.Config, q.Settings, q.ID)
	return err
}

// UpdateStatus updates a quiz's lifecycle status.
func (r *QuizRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.QuizStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a quiz and its responses (FK cascade handles responses).
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quiz %s: no rows deleted", id)
	}
	return nil
}

// IncrementResponses bumps the denormalized response counter.
func (r *QuizRepository) IncrementResponses(ctx context.Context, id uuid.UUID, by int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET total_responses = total_responses + $1 WHERE id = $2`,
		by, id)
	return err
}
