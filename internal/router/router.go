package router

import (
	"net/http"
	"time"

	"github.com/aimstudio/aims-backend/internal/config"
	"github.com/aimstudio/aims-backend/internal/handler"
	"github.com/aimstudio/aims-backend/internal/middleware"
	"github.com/aimstudio/aims-backend/internal/response"
	"github.com/aimstudio/aims-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Quiz      *handler.QuizHandler
	Play      *handler.PlayHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
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

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the anonymous play routes (60 requests per minute per IP).
	playLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Public Play Group (No Auth, Rate Limited) ──────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(playLimiter.Middleware())
	{
		// The payload is immutable between publishes; let browsers hold it briefly.
		publicAPI.GET("/quizzes/:slug", middleware.CacheControl(60), handlers.Play.GetQuizPayload)
		publicAPI.POST("/quizzes/:slug/sessions", handlers.Play.StartSession)

		publicAPI.GET("/sessions/:session_id", handlers.Play.GetState)
		publicAPI.POST("/sessions/:session_id/answer", handlers.Play.SelectOption)
		publicAPI.POST("/sessions/:session_id/advance", handlers.Play.Advance)
		publicAPI.POST("/sessions/:session_id/lead", handlers.Play.SubmitLead)
	}

	// ─── 2. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/signup", handlers.Auth.Signup)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireUserJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireUserJWT(authService), handlers.Auth.GetProfile)
		auth.PATCH("/me", middleware.RequireUserJWT(authService), handlers.Auth.UpdateProfile)
	}

	// ─── 3. Owner API Group (JWT) ──────────────────────────────────────
	ownerAPI := router.Group("/api/v1")
	ownerAPI.Use(middleware.RequireUserJWT(authService))
	{
		ownerAPI.GET("/quizzes", handlers.Quiz.ListQuizzes)
		ownerAPI.POST("/quizzes", handlers.Quiz.CreateQuiz)
		ownerAPI.GET("/quizzes/:quiz_id", handlers.Quiz.GetQuiz)
		ownerAPI.PUT("/quizzes/:quiz_id", handlers.Quiz.UpdateQuiz)
		ownerAPI.DELETE("/quizzes/:quiz_id", handlers.Quiz.DeleteQuiz)
		ownerAPI.POST("/quizzes/:quiz_id/publish", handlers.Quiz.PublishQuiz)
		ownerAPI.POST("/quizzes/:quiz_id/unpublish", handlers.Quiz.UnpublishQuiz)
		ownerAPI.GET("/quizzes/:quiz_id/responses", handlers.Quiz.ListResponses)

		ownerAPI.GET("/dashboard", handlers.Dashboard.GetDashboard)
	}

	// ─── 4. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(authService))
	{
		ws.GET("/quizzes/:quiz_id/responses/stream", handlers.WS.ResponseStream)
	}

	return router
}
