// Package api wires together all HTTP routes for the templates hub.
//
// Route grouping philosophy:
//   - Catalog reads (/api/v1/templates) are intentionally unauthenticated so
//     project generators can browse and resolve templates without
//     credentials.
//   - Rating requires a verified bearer token so each caller holds at most
//     one score per template.
//   - The sync trigger is gated by the admin shared secret; it mutates the
//     whole catalog and must never be publicly reachable.
package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/api/admin"
	"github.com/templates-hub/templates-hub/internal/api/templates"
	"github.com/templates-hub/templates-hub/internal/auth"
	"github.com/templates-hub/templates-hub/internal/catalog"
	"github.com/templates-hub/templates-hub/internal/config"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
	"github.com/templates-hub/templates-hub/internal/descriptors"
	"github.com/templates-hub/templates-hub/internal/jobs"
	"github.com/templates-hub/templates-hub/internal/middleware"
	"github.com/templates-hub/templates-hub/internal/notifications"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	syncJob      *jobs.CatalogSyncJob
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained
// first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.syncJob != nil {
		bg.syncJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}

	// Initialize repositories
	templateRepo := repositories.NewTemplateRepository(db)
	tagRepo := repositories.NewTagRepository(db)

	// Wrap *sql.DB with sqlx for the score and user repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	userRepo := repositories.NewUserRepository(sqlxDB)

	// Descriptor repository client and reconciliation engine
	repoClient := descriptors.NewRepoClient(cfg.Repository.ContentsURL, cfg.Repository.Ref, cfg.Repository.Token)

	var notifier catalog.Notifier
	if mailer := notifications.NewMailer(&cfg.Notifications); mailer != nil {
		notifier = mailer
	}

	syncer := catalog.NewSyncer(db, repoClient, templateRepo, tagRepo, userRepo, notifier)

	if cfg.Sync.Enabled {
		bg.syncJob = jobs.NewCatalogSyncJob(syncer, cfg.Sync.Interval())
		bg.syncJob.Start(context.Background())
	}

	// Token verifier: OIDC in production, static shared secret otherwise
	var verifier auth.TokenVerifier
	if cfg.Auth.OIDC.Enabled {
		v, err := auth.NewOIDCVerifier(&cfg.Auth.OIDC)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC verifier: %v", err)
		}
		verifier = v
	} else {
		v, err := auth.NewStaticVerifier(cfg.Auth.StaticJWTSecret)
		if err != nil {
			log.Fatalf("Failed to initialize static token verifier: %v", err)
		}
		verifier = v
	}

	adminChecker := auth.NewAdminSecretChecker(cfg.Auth.AdminSecret)

	// Global middleware. Order matters; see the middleware package doc.
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	if cfg.Security.RateLimiting.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
			BurstSize:         cfg.Security.RateLimiting.Burst,
			CleanupInterval:   5 * time.Minute,
		})
		bg.rateLimiters = append(bg.rateLimiters, limiter)
		router.Use(middleware.RateLimitMiddleware(limiter))
	}
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))

	// Liveness and readiness probes
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db))

	apiV1 := router.Group("/api/v1")
	{
		// Public catalog reads
		apiV1.GET("/templates", templates.ListHandler(db))
		apiV1.GET("/templates/:id", templates.GetHandler(db))

		// Rating requires a verified identity
		ratingGroup := apiV1.Group("")
		ratingGroup.Use(middleware.AuthMiddleware(verifier, userRepo))
		{
			ratingGroup.PUT("/templates/:id/score", templates.RateHandler(db))
		}

		// Admin-secret gated sync trigger
		adminGroup := apiV1.Group("/catalog")
		adminGroup.Use(middleware.AdminSecretMiddleware(adminChecker))
		{
			adminGroup.POST("/sync", admin.SyncHandler(syncer))
		}
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. The catalog
// is served entirely from the database, so readiness is database readiness;
// the descriptor repository is only needed during sync and does not gate
// serving traffic.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready": false,
				"error": "database not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ready": true,
			"time":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LoggerMiddleware provides structured request logging via the global slog
// handler configured in telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString(middleware.RequestIDKey)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", requestID),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
