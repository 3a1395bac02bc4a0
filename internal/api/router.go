// Package api wires together all HTTP routes for the component request tracker.
//
// Route grouping:
//   - /api/requests is open so the dashboard works without a key. Creation accepts an
//     optional bearer key; when it validates, the requester fields default to the
//     key owner.
//   - /api/auth/login and POST /api/api-keys capture an email and are rate limited
//     more tightly than the rest of the API.
//   - GET and DELETE /api/api-keys require a valid bearer key.
//
// Prometheus metrics are served on a separate listener by cmd/server, never here.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/component-request-system/crs/internal/api/accounts"
	"github.com/component-request-system/crs/internal/api/requests"
	"github.com/component-request-system/crs/internal/config"
	"github.com/component-request-system/crs/internal/jobs"
	"github.com/component-request-system/crs/internal/middleware"
	"github.com/component-request-system/crs/internal/safego"
	"github.com/component-request-system/crs/internal/services"
	"github.com/component-request-system/crs/internal/validation"
)

// Version is reported by /version and overridden at build time with -ldflags
var Version = "dev"

// Pinger reports backing store reachability for /health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Store is everything the router needs from persistence. Both the postgres
// repositories (via Repositories) and the in-memory store satisfy it.
type Store interface {
	services.UserStore
	services.APIKeyStore
	services.RequestStore
	middleware.AuditRecorder
	jobs.ExpiredKeyDeactivator
}

// Dependencies are the collaborators assembled by cmd/server
type Dependencies struct {
	Store    Store
	Sequence services.SequenceAllocator
	// DB is pinged by /health; nil means the in-memory driver
	DB Pinger
	// Redis, when set, backs the rate limiters so limits hold across replicas
	Redis *redis.Client
	// Background tracks fire-and-forget writes (last_used_at, audit) for shutdown
	Background *safego.Group
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	expirySweeper *jobs.APIKeyExpirySweeper
	rateLimiters  []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.expirySweeper != nil {
		bg.expirySweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices, error) {
	if err := validation.RegisterWithGin(); err != nil {
		return nil, nil, err
	}
	if deps.Background == nil {
		deps.Background = &safego.Group{}
	}

	bg := &BackgroundServices{}

	directory := services.NewDirectory(deps.Store)
	credentials := services.NewCredentials(directory, deps.Store, deps.Background)
	requestService := services.NewRequests(deps.Store, services.NewRequestIDGenerator(deps.Sequence), directory)

	accountHandlers := accounts.NewHandlers(directory, credentials)
	requestHandlers := requests.NewHandlers(requestService)

	if cfg.Jobs.APIKeyExpiryInterval > 0 {
		bg.expirySweeper = jobs.NewAPIKeyExpirySweeper(deps.Store)
		bg.expirySweeper.Start(context.Background(), cfg.Jobs.APIKeyExpiryInterval)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.Security.CORS.AllowedOrigins)))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	if cfg.Server.MaxBodyBytes > 0 {
		router.Use(middleware.MaxBodyBytes(cfg.Server.MaxBodyBytes))
	}

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/version", versionHandler())

	apiGroup := router.Group("/api")

	var credentialLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Security.RateLimiting.Enabled {
		rl := cfg.Security.RateLimiting
		general := middleware.RateLimitConfig{
			RequestsPerMinute: rl.RequestsPerMinute,
			BurstSize:         rl.Burst,
			CleanupInterval:   middleware.DefaultRateLimitConfig().CleanupInterval,
		}
		strict := middleware.RateLimitConfig{
			RequestsPerMinute: rl.CredentialRequestsPerMinute,
			BurstSize:         rl.CredentialBurst,
			CleanupInterval:   middleware.CredentialRateLimitConfig().CleanupInterval,
		}
		apiGroup.Use(middleware.RateLimitMiddleware(bg.limiter(deps.Redis, general, "crs:ratelimit:api:")))
		credentialLimit = middleware.RateLimitMiddleware(bg.limiter(deps.Redis, strict, "crs:ratelimit:credentials:"))
	}

	if cfg.Audit.Enabled {
		apiGroup.Use(middleware.AuditMiddleware(deps.Store, deps.Background, middleware.AuditConfig{
			LogFailedRequests: cfg.Audit.LogFailedRequests,
		}))
	}

	apiGroup.POST("/auth/login", credentialLimit, accountHandlers.LoginHandler())

	apiKeys := apiGroup.Group("/api-keys")
	{
		apiKeys.POST("", credentialLimit, accountHandlers.IssueKeyHandler())
		apiKeys.GET("", middleware.RequireAPIKey(credentials), accountHandlers.WhoAmIHandler())
		apiKeys.DELETE("/:id", middleware.RequireAPIKey(credentials), accountHandlers.RevokeKeyHandler())
	}

	requestRoutes := apiGroup.Group("/requests")
	{
		requestRoutes.GET("", requestHandlers.ListHandler())
		requestRoutes.POST("", middleware.OptionalAPIKey(credentials), requestHandlers.CreateHandler())
		requestRoutes.GET("/:id", requestHandlers.GetHandler())
		requestRoutes.PUT("/:id", requestHandlers.UpdateStatusHandler())
		requestRoutes.PATCH("/:id", requestHandlers.UpdateFieldsHandler())
		requestRoutes.DELETE("/:id", requestHandlers.DeleteHandler())
	}

	return router, bg, nil
}

// limiter builds a Redis-backed limiter when a client is available, falling back
// to an in-process token bucket that Shutdown stops.
func (bg *BackgroundServices) limiter(rdb *redis.Client, cfg middleware.RateLimitConfig, prefix string) middleware.Limiter {
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, cfg, prefix)
	}
	rl := middleware.NewRateLimiter(cfg)
	bg.rateLimiters = append(bg.rateLimiters, rl)
	return rl
}

// @Summary      Health check
// @Description  Returns service liveness. Checks database connectivity when a database is configured.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy"
// @Router       /health [get]
func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("health check: database ping failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
