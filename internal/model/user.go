package model

import (
	"time"

	"github.com/google/uuid"
)

// Plan enumerates subscription tiers.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanAgency  Plan = "agency"
)

// User represents a marketer account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	Plan         Plan      `json:"plan"`
	CreditsQuiz  int       `json:"credits_quiz"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SignupRequest is the payload for account creation.
type SignupRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=120"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after successful login or signup.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UpdateProfileRequest is the payload for profile updates.
type UpdateProfileRequest struct {
	Name      string  `json:"name" binding:"omitempty,min=2,max=120"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,url,max=2048"`
}
