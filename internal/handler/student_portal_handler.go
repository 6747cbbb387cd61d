package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/middleware"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/response"
	"github.com/klasio/lms-backend/internal/service"
	"github.com/klasio/lms-backend/internal/session"
)

// StudentPortalHandler handles student-facing endpoints: the lobby, the quiz
// paper, session state over plain HTTP, and attempt history. The live session
// itself runs over WebSocket; these endpoints cover page loads and clients
// without a socket.
type StudentPortalHandler struct {
	store          session.Store
	quizService    *service.QuizService
	attemptService *service.AttemptService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	store session.Store,
	quizService *service.QuizService,
	attemptService *service.AttemptService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		store:          store,
		quizService:    quizService,
		attemptService: attemptService,
	}
}

// LobbyQuiz is a published quiz as displayed in the student lobby, overlaid
// with that student's progress.
type LobbyQuiz struct {
	model.Quiz
	InProgress bool     `json:"in_progress"`
	LastScore  *float64 `json:"last_score,omitempty"`
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Returns all published quizzes with the student's progress overlay.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	ctx := c.Request.Context()

	quizzes, err := h.quizService.ListPublished(ctx)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	attempts, err := h.attemptService.ListByStudent(ctx, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	lastScores := make(map[int64]float64, len(attempts))
	for i := len(attempts) - 1; i >= 0; i-- {
		// attempts are newest first; iterating backwards leaves the newest in.
		lastScores[attempts[i].QuizID] = attempts[i].Score
	}

	lobby := make([]LobbyQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		entry := LobbyQuiz{Quiz: q}
		key := config.CacheKey.QuizSessionKey(q.ID, claims.UserID)
		if _, err := h.store.Load(ctx, key); err == nil {
			entry.InProgress = true
		}
		if score, ok := lastScores[q.ID]; ok {
			s := score
			entry.LastScore = &s
		}
		lobby = append(lobby, entry)
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": lobby})
}

// GetQuizPaper godoc
// GET /api/v1/student/quizzes/:quiz_id/paper?autostart=1
// Returns the quiz in the student's shuffled order together with the session
// state. Without a resumable session, ?autostart=1 creates one (the entry
// instruction a lobby link carries); otherwise 404s until an explicit start.
func (h *StudentPortalHandler) GetQuizPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	quiz, err := h.quizService.GetQuizPayload(ctx, quizID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotPublished)
		return
	}

	autoStart := c.Query("autostart") == "1"
	key := config.CacheKey.QuizSessionKey(quizID, claims.UserID)
	state, created, err := session.Hydrate(ctx, h.store, key, autoStart, time.Now())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"quiz": gin.H{
			"id":               quiz.QuizID,
			"title":            quiz.Title,
			"duration_minutes": quiz.DurationMinutes,
		},
		"questions":         session.OrderedQuestions(quiz, claims.UserID),
		"answers":           state.Answers,
		"current_index":     state.CurrentQuestion,
		"remaining_seconds": remainingSeconds(quiz, state),
		"resumed":           !created,
	})
}

// remainingSeconds recomputes time left from the immutable start timestamp.
func remainingSeconds(quiz *model.QuizPayload, state *session.State) int {
	duration := time.Duration(quiz.DurationMinutes) * time.Minute
	return session.NewClock(state.StartedAt(), duration).Remaining()
}

// GetSessionState godoc
// GET /api/v1/student/quizzes/:quiz_id/session
// Returns the bare session state (no questions) for lightweight polling.
func (h *StudentPortalHandler) GetSessionState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	quiz, err := h.quizService.GetQuizPayload(ctx, quizID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotPublished)
		return
	}

	key := config.CacheKey.QuizSessionKey(quizID, claims.UserID)
	state, err := h.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"answers":           state.Answers,
		"current_index":     state.CurrentQuestion,
		"remaining_seconds": remainingSeconds(quiz, state),
	})
}

// CancelSession godoc
// DELETE /api/v1/student/quizzes/:quiz_id/session
// Explicitly discards an in-progress session. The next paper load starts a
// brand-new one with a fresh clock.
func (h *StudentPortalHandler) CancelSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	quizID, ok := parseIDParam(c, "quiz_id")
	if !ok {
		return
	}

	key := config.CacheKey.QuizSessionKey(quizID, claims.UserID)
	if err := h.store.Clear(c.Request.Context(), key); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListAttempts godoc
// GET /api/v1/student/attempts
// Returns the student's attempt history, newest first.
func (h *StudentPortalHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attempts, err := h.attemptService.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
