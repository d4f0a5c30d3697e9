package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/handler"
	"github.com/certlab/examd/internal/middleware"
	"github.com/certlab/examd/internal/response"
	"github.com/certlab/examd/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
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

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireCandidateJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Exam Catalog (JWT) ─────────────────────────────────────────
	examAPI := router.Group("/api/v1/exams")
	examAPI.Use(middleware.RequireCandidateJWT(authService))
	{
		// Catalog pages are safe to cache briefly on the client.
		examAPI.GET("", middleware.CacheControl(60), handlers.Exam.ListCatalog)
		examAPI.GET("/:exam_id", handlers.Exam.GetPayload)
	}

	// ─── 3. Sessions (JWT) ─────────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/sessions")
	sessionAPI.Use(middleware.RequireCandidateJWT(authService))
	{
		sessionAPI.POST("", handlers.Session.Start)
		sessionAPI.GET("", handlers.Session.History)
		sessionAPI.GET("/:session_id", handlers.Session.State)
		sessionAPI.DELETE("/:session_id", handlers.Session.Close)

		sessionAPI.POST("/:session_id/answers", handlers.Session.SubmitAnswer)
		sessionAPI.POST("/:session_id/advance", handlers.Session.Advance)
		sessionAPI.POST("/:session_id/flag", handlers.Session.Flag)
		sessionAPI.POST("/:session_id/pause", handlers.Session.Pause)
		sessionAPI.POST("/:session_id/resume", handlers.Session.Resume)
		sessionAPI.POST("/:session_id/finish", handlers.Session.Finish)
		sessionAPI.POST("/:session_id/violations", handlers.Session.RecordViolation)

		sessionAPI.GET("/:session_id/result", handlers.Session.Result)
		sessionAPI.POST("/:session_id/review", handlers.Session.EnterReview)
		sessionAPI.GET("/:session_id/review/:position", handlers.Session.ReviewEntry)
	}

	// ─── 4. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
