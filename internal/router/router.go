package router

import (
	"net/http"

	"unicast/internal/common"
	"unicast/internal/config"
	"unicast/internal/domain/messaging"
	"unicast/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New creates and configures the Gin router with all middleware and routes.
func New(
	cfg *config.Config,
	messagingHandler *messaging.Handler,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)
	r.Use(rateLimiter.Middleware())

	r.Use(gin.Logger())

	// Public routes
	r.GET("/health", healthCheck)

	api := r.Group("/api")

	// Provider callbacks come in with provider-signed payloads, verified
	// at the gateway, not with our API keys.
	messagingHandler.RegisterWebhookRoutes(api)

	// Protected API routes (API key + requester identity required)
	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	{
		messagingHandler.RegisterRoutes(protected)
	}

	return r
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "unicast",
	})
}
