package repository

import (
	"context"
	"errors"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles user account data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user by its UUID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, avatar_url, plan, credits_quiz, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.AvatarURL, &u.Plan,
		&u.CreditsQuiz, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, avatar_url, plan, credits_quiz, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.AvatarURL, &u.Plan,
		&u.CreditsQuiz, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user account.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, plan, credits_quiz)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		u.Email, u.Name, u.PasswordHash, u.Plan, u.CreditsQuiz,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// UpdateProfile updates mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name string, avatarURL *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $1, avatar_url = $2, updated_at = NOW() WHERE id = $3`,
		name, avatarURL, id)
	return err
}

// ConsumeQuizCredit atomically decrements the quiz credit balance.
// The consumed flag is false when the balance was already empty.
func (r *UserRepository) ConsumeQuizCredit(ctx context.Context, id uuid.UUID) (remaining int, consumed bool, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE users SET credits_quiz = credits_quiz - 1, updated_at = NOW()
		 WHERE id = $1 AND credits_quiz > 0
		 RETURNING credits_quiz`, id,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}
