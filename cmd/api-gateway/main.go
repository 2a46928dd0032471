package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/orphanbars/orphanbars-api/api/swagger"
	"github.com/orphanbars/orphanbars-api/internal/handler"
	"github.com/orphanbars/orphanbars-api/internal/middleware"
	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/moderation"
	"github.com/orphanbars/orphanbars-api/internal/moderator"
	"github.com/orphanbars/orphanbars-api/internal/repository"
	"github.com/orphanbars/orphanbars-api/internal/service"
	"github.com/orphanbars/orphanbars-api/pkg/cache"
	"github.com/orphanbars/orphanbars-api/pkg/config"
	"github.com/orphanbars/orphanbars-api/pkg/database"
	"github.com/orphanbars/orphanbars-api/pkg/export"
	"github.com/orphanbars/orphanbars-api/pkg/jobs"
	"github.com/orphanbars/orphanbars-api/pkg/logger"
	corsmiddleware "github.com/orphanbars/orphanbars-api/pkg/middleware/cors"
	reqidmiddleware "github.com/orphanbars/orphanbars-api/pkg/middleware/requestid"
	"github.com/orphanbars/orphanbars-api/pkg/storage"
)

// @title Orphan Bars API
// @version 1.0.0
// @description Lyric sharing platform with moderation and authorship certificates
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, feed caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	phraseRuleRepo := repository.NewPhraseRuleRepository(db)
	protectedRepo := repository.NewProtectedEntryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var oracle moderator.Moderator
	if cfg.Moderator.Enabled {
		oracle = moderator.NewClient(cfg.Moderator, logr)
	}

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	moderationSvc := service.NewModerationService(
		phraseRuleRepo,
		submissionRepo,
		protectedRepo,
		moderation.NewTermScreener(),
		oracle,
		logr,
		service.ModerationOptions{
			DuplicateThreshold: cfg.Moderation.DuplicateThreshold,
			MaxContentLength:   cfg.Moderation.MaxContentLength,
		},
	)
	moderationSvc.SetMetrics(metricsSvc)

	submissionSvc := service.NewSubmissionService(submissionRepo, userRepo, moderationSvc, cacheRepo, validate, logr, cfg.Feed.CacheTTL)
	submissionSvc.SetMetrics(metricsSvc)

	exportStore, err := storage.NewLocalStorage(cfg.Certificates.ExportStorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	certSvc := service.NewCertificateService(
		submissionRepo,
		userRepo,
		export.NewCertificatePDFExporter(),
		exportStore,
		signer,
		logr,
		service.CertificateConfig{Prefix: cfg.Certificates.Prefix},
	)
	certSvc.SetMetrics(metricsSvc)

	exportQueue := jobs.NewQueue("certificate_pdf", certSvc.HandleExportJob, jobs.QueueConfig{
		Workers:    cfg.Certificates.WorkerConcurrency,
		MaxRetries: cfg.Certificates.WorkerRetries,
		Logger:     logr,
	})
	certSvc.AttachQueue(exportQueue)
	exportQueue.Start(context.Background())
	defer exportQueue.Stop()

	// Exported PDFs are unreachable once their download token expires.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			removed, err := exportStore.CleanupOlderThan(cfg.Certificates.SignedURLTTL)
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("stale exports removed", "count", len(removed))
			}
		}
	}()

	phraseRuleSvc := service.NewPhraseRuleService(phraseRuleRepo, userRepo, validate, logr)
	protectedSvc := service.NewProtectedEntryService(protectedRepo, userRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	certHandler := handler.NewCertificateHandler(certSvc)
	phraseRuleHandler := handler.NewPhraseRuleHandler(phraseRuleSvc)
	protectedHandler := handler.NewProtectedEntryHandler(protectedSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	api.GET("/submissions", middleware.OptionalJWT(authSvc), submissionHandler.List)
	api.GET("/submissions/user/:userId", middleware.OptionalJWT(authSvc), submissionHandler.ListByUser)
	api.GET("/submissions/:id", submissionHandler.Get)
	api.GET("/submissions/:id/certificate", certHandler.Certificate)
	api.GET("/submissions/:id/certificate/verify", certHandler.Verify)
	api.GET("/certificates/download", certHandler.Download)

	authed := api.Group("", middleware.JWT(authSvc))
	{
		authed.POST("/submissions", submissionHandler.Create)
		authed.POST("/submissions/check", submissionHandler.Check)
		authed.PUT("/submissions/:id", submissionHandler.Update)
		authed.DELETE("/submissions/:id", submissionHandler.Delete)
		authed.POST("/submissions/:id/lock", certHandler.Lock)
		authed.POST("/submissions/:id/certificate/export", certHandler.Export)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/phrase-rules", middleware.Audit(userRepo, models.AuditActionPhraseRuleWrite, "phrase_rule"), phraseRuleHandler.Create)
		admin.GET("/phrase-rules", phraseRuleHandler.List)
		admin.PUT("/phrase-rules/:id", middleware.Audit(userRepo, models.AuditActionPhraseRuleWrite, "phrase_rule"), phraseRuleHandler.Update)
		admin.DELETE("/phrase-rules/:id", middleware.Audit(userRepo, models.AuditActionPhraseRuleWrite, "phrase_rule"), phraseRuleHandler.Delete)
	}

	protected := api.Group("/admin/protected-entries", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		protected.POST("", middleware.Audit(userRepo, models.AuditActionProtectedEntryWrite, "protected_entry"), protectedHandler.Create)
		protected.GET("", protectedHandler.List)
		protected.PUT("/:id", middleware.Audit(userRepo, models.AuditActionProtectedEntryWrite, "protected_entry"), protectedHandler.Update)
		protected.DELETE("/:id", middleware.Audit(userRepo, models.AuditActionProtectedEntryWrite, "protected_entry"), protectedHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
