package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klasio/lms-backend/internal/middleware"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/response"
	"github.com/klasio/lms-backend/internal/service"
	"github.com/klasio/lms-backend/internal/validator"
)

// AttemptHandler exposes quiz attempt submission and results over HTTP. The
// submit endpoint serves both direct clients and peer nodes configured to
// grade remotely.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// SubmitAttempt godoc
// POST /api/v1/student/quizzes/:quiz_id/attempts
// Grades a full answer payload against the cached answer key and records the
// attempt. The response nests the result under data.attempt.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), quizID, claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrSubmissionFailed)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": result})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
// Returns one graded attempt, scoped to the requesting student.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": result})
}
