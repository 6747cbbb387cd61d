package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/handler"
	"github.com/klasio/lms-backend/internal/middleware"
	"github.com/klasio/lms-backend/internal/response"
	"github.com/klasio/lms-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	Quiz          *handler.QuizHandler
	StudentPortal *handler.StudentPortalHandler
	Attempt       *handler.AttemptHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.GetLobby)
		studentAPI.GET("/quizzes/:quiz_id/paper", handlers.StudentPortal.GetQuizPaper)
		studentAPI.GET("/quizzes/:quiz_id/session", handlers.StudentPortal.GetSessionState)
		studentAPI.DELETE("/quizzes/:quiz_id/session", handlers.StudentPortal.CancelSession)
		studentAPI.POST("/quizzes/:quiz_id/attempts", handlers.Attempt.SubmitAttempt)
		studentAPI.GET("/attempts", handlers.StudentPortal.ListAttempts)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/quizzes/:quiz_id/session", handlers.WS.QuizSessionStream)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.GET("/quizzes", handlers.Quiz.List)
		teacherAPI.POST("/quizzes", handlers.Quiz.Create)
		teacherAPI.GET("/quizzes/:quiz_id", handlers.Quiz.Get)
		teacherAPI.PUT("/quizzes/:quiz_id", handlers.Quiz.Update)
		teacherAPI.DELETE("/quizzes/:quiz_id", handlers.Quiz.Delete)
		teacherAPI.PUT("/quizzes/:quiz_id/questions", handlers.Quiz.ReplaceQuestions)
		teacherAPI.POST("/quizzes/:quiz_id/publish", handlers.Quiz.Publish)
		teacherAPI.POST("/quizzes/:quiz_id/archive", handlers.Quiz.Archive)
		teacherAPI.POST("/students/:student_id/reset-login", handlers.Auth.ResetStudentLogin)
	}

	return router
}
