package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aimstudio/aims-backend/internal/middleware"
	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/response"
	"github.com/aimstudio/aims-backend/internal/service"
	"github.com/aimstudio/aims-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QuizHandler handles quiz management endpoints.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// failQuiz maps quiz domain errors onto HTTP status + error codes.
func failQuiz(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotQuizOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotQuizOwner)
	case errors.Is(err, service.ErrNoQuizCredits):
		response.Fail(c, http.StatusPaymentRequired, response.ErrNoQuizCredits)
	case errors.Is(err, model.ErrConfigNoQuestions),
		errors.Is(err, model.ErrConfigTooFewOptions),
		errors.Is(err, model.ErrConfigUnhandledType),
		errors.Is(err, model.ErrConfigBadResultRange):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrQuizConfigInvalid)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListQuizzes godoc
// GET /api/v1/quizzes
// Lists the authenticated owner's quizzes with pagination.
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	quizzes, pagination, err := h.quizService.ListByOwner(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// GetQuiz godoc
// GET /api/v1/quizzes/:quiz_id
// Returns one quiz with its full config, owner only.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quiz, err := h.quizService.GetOwned(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// CreateQuiz godoc
// POST /api/v1/quizzes
// Creates a new draft quiz, consuming one quiz credit.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// UpdateQuiz godoc
// PUT /api/v1/quizzes/:quiz_id
// Replaces the authored content of a quiz.
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), quizID, claims.UserID, &req)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// PublishQuiz godoc
// POST /api/v1/quizzes/:quiz_id/publish
// Validates the config, warms the Redis cache, flips status to published.
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quiz, err := h.quizService.Publish(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UnpublishQuiz godoc
// POST /api/v1/quizzes/:quiz_id/unpublish
// Flips status back to draft and evicts the cache.
func (h *QuizHandler) UnpublishQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quiz, err := h.quizService.Unpublish(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuiz godoc
// DELETE /api/v1/quizzes/:quiz_id
// Removes a quiz and its responses.
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), quizID, claims.UserID); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListResponses godoc
// GET /api/v1/quizzes/:quiz_id/responses
// Lists a quiz's responses with pagination, owner only.
func (h *QuizHandler) ListResponses(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	responses, pagination, err := h.quizService.ListResponses(c.Request.Context(), quizID, claims.UserID, page, perPage)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"responses": responses}, pagination)
}
