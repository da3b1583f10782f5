package handler

import (
	"errors"
	"net/http"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/play"
	"github.com/aimstudio/aims-backend/internal/response"
	"github.com/aimstudio/aims-backend/internal/service"
	"github.com/aimstudio/aims-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PlayHandler handles the anonymous playback endpoints.
type PlayHandler struct {
	quizService *service.QuizService
	playService *service.PlayService
}

// NewPlayHandler creates a new PlayHandler.
func NewPlayHandler(quizService *service.QuizService, playService *service.PlayService) *PlayHandler {
	return &PlayHandler{quizService: quizService, playService: playService}
}

// failPlay maps play domain errors onto HTTP status + error codes.
func failPlay(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlaySessionExpired):
		response.Fail(c, http.StatusNotFound, response.ErrPlaySessionExpired)
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrQuizNotPublished):
		response.Fail(c, http.StatusForbidden, response.ErrQuizNotPublished)
	case errors.Is(err, play.ErrWrongQuestion):
		response.Fail(c, http.StatusConflict, response.ErrQuestionMismatch)
	case errors.Is(err, play.ErrUnknownOption):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrUnknownOption)
	case errors.Is(err, play.ErrNothingSelected):
		response.Fail(c, http.StatusConflict, response.ErrNothingSelected)
	case errors.Is(err, play.ErrNotPlaying), errors.Is(err, play.ErrNotLeadCapture):
		response.Fail(c, http.StatusConflict, response.ErrStepMismatch)
	case errors.Is(err, model.ErrConfigNoQuestions),
		errors.Is(err, model.ErrConfigTooFewOptions),
		errors.Is(err, model.ErrConfigUnhandledType),
		errors.Is(err, model.ErrConfigBadResultRange):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrQuizConfigInvalid)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// GetQuizPayload godoc
// GET /api/v1/public/quizzes/:slug
// Returns the sanitized player payload for a published quiz. Redis fast lane.
func (h *PlayHandler) GetQuizPayload(c *gin.Context) {
	payload, err := h.quizService.GetPublicPayload(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failPlay(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": payload})
}

// StartSession godoc
// POST /api/v1/public/quizzes/:slug/sessions
// Opens a play session at the first question.
func (h *PlayHandler) StartSession(c *gin.Context) {
	state, err := h.playService.StartSession(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failPlay(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"state": state})
}

// GetState godoc
// GET /api/v1/public/sessions/:session_id
// Returns the current view of a play session.
func (h *PlayHandler) GetState(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.playService.GetState(c.Request.Context(), sessionID)
	if err != nil {
		failPlay(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SelectOption godoc
// POST /api/v1/public/sessions/:session_id/answer
// Records the player's choice for the current question. Re-selecting before
// advancing replaces the previous choice.
func (h *PlayHandler) SelectOption(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SelectOptionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.playService.SelectOption(c.Request.Context(), sessionID, &req)
	if err != nil {
		failPlay(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// Advance godoc
// POST /api/v1/public/sessions/:session_id/advance
// Moves past the current question, possibly into lead capture or Result.
func (h *PlayHandler) Advance(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.playService.Advance(c.Request.Context(), sessionID)
	if err != nil {
		failPlay(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SubmitLead godoc
// POST /api/v1/public/sessions/:session_id/lead
// Captures the lead email and reveals the result.
func (h *PlayHandler) SubmitLead(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitLeadRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.playService.SubmitLead(c.Request.Context(), sessionID, &req)
	if err != nil {
		failPlay(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}
