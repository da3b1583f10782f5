package service

import (
	"context"

	"github.com/aimstudio/aims-backend/internal/repository"
	"github.com/google/uuid"
)

// DashboardData consolidates all metrics for one owner's dashboard.
type DashboardData struct {
	TotalQuizzes     int                                  `json:"total_quizzes"`
	PublishedQuizzes int                                  `json:"published_quizzes"`
	TotalResponses   int                                  `json:"total_responses"`
	TotalLeads       int                                  `json:"total_leads"`
	RecentResponses  []repository.DashboardRecentResponse `json:"recent_responses"`
}

// DashboardService handles owner dashboard business logic.
type DashboardService struct {
	repo *repository.DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData fetches all dashboard metrics for an owner.
func (s *DashboardService) GetDashboardData(ctx context.Context, ownerID uuid.UUID) (*DashboardData, error) {
	totalQuizzes, publishedQuizzes, totalResponses, totalLeads, err := s.repo.GetSummaryCounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.GetRecentResponses(ctx, ownerID, 5)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		TotalQuizzes:     totalQuizzes,
		PublishedQuizzes: publishedQuizzes,
		TotalResponses:   totalResponses,
		TotalLeads:       totalLeads,
		RecentResponses:  recent,
	}, nil
}
