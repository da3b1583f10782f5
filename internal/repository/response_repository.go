package repository

import (
	"context"
	"encoding/json"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResponseRepository handles quiz response data access.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

// Insert stores a single completed response.
func (r *ResponseRepository) Insert(ctx context.Context, resp *model.QuizResponse) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_responses
		   (quiz_id, answers, result_id, result_title, score, lead_name, lead_email, lead_phone, completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		resp.QuizID, resp.Answers, resp.ResultID, resp.ResultTitle, resp.Score,
		resp.LeadName, resp.LeadEmail, resp.LeadPhone, resp.Completed,
	).Scan(&resp.ID, &resp.CreatedAt)
}

// BulkInsert stores a batch of responses with UNNEST arrays, mirroring the
// write path of the background worker.
func (r *ResponseRepository) BulkInsert(ctx context.Context, batch []*model.QuizResponse) error {
	if len(batch) == 0 {
		return nil
	}

	n := len(batch)
	quizIDs := make([]uuid.UUID, n)
	answers := make([]string, n)
	resultIDs := make([]*string, n)
	resultTitles := make([]*string, n)
	scores := make([]int, n)
	leadEmails := make([]*string, n)
	completed := make([]bool, n)

	for i, resp := range batch {
		raw, err := json.Marshal(resp.Answers)
		if err != nil {
			return err
		}
		quizIDs[i] = resp.QuizID
		answers[i] = string(raw)
		resultIDs[i] = resp.ResultID
		resultTitles[i] = resp.ResultTitle
		scores[i] = resp.Score
		leadEmails[i] = resp.LeadEmail
		completed[i] = resp.Completed
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_responses
		   (quiz_id, answers, result_id, result_title, score, lead_email, completed)
		 SELECT * FROM UNNEST(
		   $1::uuid[], $2::jsonb[], $3::text[], $4::text[], $5::int[], $6::text[], $7::bool[]
		 )`,
		quizIDs, answers, resultIDs, resultTitles, scores, leadEmails, completed,
	)
	return err
}

// ListByQuizPaginated retrieves responses for a quiz, newest first.
func (r *ResponseRepository) ListByQuizPaginated(ctx context.Context, quizID uuid.UUID, limit, offset int) ([]model.QuizResponse, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_responses WHERE quiz_id = $1`, quizID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, answers, result_id, result_title, score,
		        lead_name, lead_email, lead_phone, completed, created_at
		 FROM quiz_responses
		 WHERE quiz_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, quizID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var responses []model.QuizResponse
	for rows.Next() {
		var resp model.QuizResponse
		if err := rows.Scan(&resp.ID, &resp.QuizID, &resp.Answers, &resp.ResultID,
			&resp.ResultTitle, &resp.Score, &resp.LeadName, &resp.LeadEmail,
			&resp.LeadPhone, &resp.Completed, &resp.CreatedAt); err != nil {
			return nil, 0, err
		}
		responses = append(responses, resp)
	}
	return responses, total, rows.Err()
}
