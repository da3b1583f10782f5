package handler

import (
	"net/http"

	"github.com/aimstudio/aims-backend/internal/middleware"
	"github.com/aimstudio/aims-backend/internal/response"
	"github.com/aimstudio/aims-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler handles the owner dashboard endpoint.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard godoc
// GET /api/v1/dashboard
// Returns summary metrics and recent responses for the authenticated owner.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	data, err := h.dashboardService.GetDashboardData(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, data)
}
