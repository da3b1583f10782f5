package repository

import (
	"context"
	"time"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository handles owner dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts retrieves the high-level metrics for one owner's dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context, ownerID uuid.UUID) (totalQuizzes, publishedQuizzes, totalResponses, totalLeads int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM quizzes WHERE user_id = $1),
			(SELECT COUNT(*) FROM quizzes WHERE user_id = $1 AND status = $2),
			(SELECT COUNT(*) FROM quiz_responses qr JOIN quizzes q ON qr.quiz_id = q.id WHERE q.user_id = $1),
			(SELECT COUNT(*) FROM quiz_responses qr JOIN quizzes q ON qr.quiz_id = q.id WHERE q.user_id = $1 AND qr.lead_email IS NOT NULL)`,
		ownerID, model.QuizStatusPublished,
	).Scan(&totalQuizzes, &publishedQuizzes, &totalResponses, &totalLeads)
	return
}

// DashboardRecentResponse is the trimmed response row shown on the dashboard.
type DashboardRecentResponse struct {
	QuizID      uuid.UUID `json:"quiz_id"`
	QuizTitle   string    `json:"quiz_title"`
	ResultTitle *string   `json:"result_title"`
	Score       int       `json:"score"`
	LeadEmail   *string   `json:"lead_email"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetRecentResponses retrieves the last N responses across an owner's quizzes.
func (r *DashboardRepository) GetRecentResponses(ctx context.Context, ownerID uuid.UUID, limit int) ([]DashboardRecentResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.title, qr.result_title, qr.score, qr.lead_email, qr.created_at
		 FROM quiz_responses qr
		 JOIN quizzes q ON qr.quiz_id = q.id
		 WHERE q.user_id = $1
		 ORDER BY qr.created_at DESC
		 LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recent []DashboardRecentResponse
	for rows.Next() {
		var resp DashboardRecentResponse
		if err := rows.Scan(&resp.QuizID, &resp.QuizTitle, &resp.ResultTitle,
			&resp.Score, &resp.LeadEmail, &resp.CreatedAt); err != nil {
			return nil, err
		}
		recent = append(recent, resp)
	}
	if recent == nil {
		recent = []DashboardRecentResponse{}
	}
	return recent, rows.Err()
}
