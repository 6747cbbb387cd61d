package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/klasio/lms-backend/internal/middleware"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/repository"
	"github.com/klasio/lms-backend/internal/response"
	"github.com/klasio/lms-backend/internal/service"
	"github.com/klasio/lms-backend/internal/validator"
)

// QuizHandler handles the teacher-facing quiz authoring endpoints.
type QuizHandler struct {
	quizService  *service.QuizService
	questionRepo *repository.QuestionRepository
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, questionRepo *repository.QuestionRepository) *QuizHandler {
	return &QuizHandler{quizService: quizService, questionRepo: questionRepo}
}

// failQuiz maps quiz domain errors onto response codes.
func failQuiz(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotQuizAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotQuizAuthor)
	case errors.Is(err, service.ErrQuizNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrQuizNotDraft)
	case errors.Is(err, service.ErrQuizNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrQuizNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// List godoc
// GET /api/v1/teacher/quizzes?page=1&per_page=10
// Lists the authenticated teacher's quizzes.
func (h *QuizHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	quizzes, pagination, err := h.quizService.ListByAuthor(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// Get godoc
// GET /api/v1/teacher/quizzes/:quiz_id
// Returns one quiz with its questions, answer key included.
func (h *QuizHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	quiz, err := h.quizService.GetByID(c.Request.Context(), quizID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if quiz.AuthorID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotQuizAuthor)
		return
	}

	questions, err := h.questionRepo.ListByQuiz(c.Request.Context(), quizID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"quiz":      quiz,
		"questions": questions,
	})
}

// Create godoc
// POST /api/v1/teacher/quizzes
// Creates a new quiz in DRAFT status.
func (h *QuizHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz := &model.Quiz{
		Title:           req.Title,
		AuthorID:        claims.UserID,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.quizService.Create(c.Request.Context(), quiz); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// Update godoc
// PUT /api/v1/teacher/quizzes/:quiz_id
// Updates a draft quiz's title or duration.
func (h *QuizHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.GetByID(c.Request.Context(), quizID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if req.Title != "" {
		quiz.Title = req.Title
	}
	if req.DurationMinutes > 0 {
		quiz.DurationMinutes = req.DurationMinutes
	}

	if err := h.quizService.Update(c.Request.Context(), claims.UserID, quiz); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Delete godoc
// DELETE /api/v1/teacher/quizzes/:quiz_id
// Removes a draft quiz.
func (h *QuizHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), quizID, claims.UserID); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/quizzes/:quiz_id/questions
// Replaces the whole question set of a draft quiz.
func (h *QuizHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// Each question's correct answer must point at one of its own options.
	for i, q := range req.Questions {
		found := false
		for _, opt := range q.Options {
			if opt.Order == q.CorrectOrder {
				found = true
				break
			}
		}
		if !found {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"questions[" + strconv.Itoa(i) + "].correct_order": "must match one of the option order values",
			})
			return
		}
	}

	if err := h.quizService.ReplaceQuestions(c.Request.Context(), quizID, claims.UserID, req.Questions); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Publish godoc
// POST /api/v1/teacher/quizzes/:quiz_id/publish
// Publishes a draft quiz and warms the Redis cache.
func (h *QuizHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	if err := h.quizService.Publish(c.Request.Context(), quizID, claims.UserID); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": string(model.QuizStatusPublished)})
}

// Archive godoc
// POST /api/v1/teacher/quizzes/:quiz_id/archive
// Archives a published quiz and drops its cache.
func (h *QuizHandler) Archive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	if err := h.quizService.Archive(c.Request.Context(), quizID, claims.UserID); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": string(model.QuizStatusArchived)})
}
