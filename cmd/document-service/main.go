package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/policy-docs-api/api/swagger"
	"github.com/noah-isme/policy-docs-api/internal/client"
	"github.com/noah-isme/policy-docs-api/internal/handler"
	"github.com/noah-isme/policy-docs-api/internal/notify"
	"github.com/noah-isme/policy-docs-api/internal/repository"
	"github.com/noah-isme/policy-docs-api/internal/server"
	"github.com/noah-isme/policy-docs-api/internal/service"
	"github.com/noah-isme/policy-docs-api/pkg/cache"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/database"
	"github.com/noah-isme/policy-docs-api/pkg/logger"
	"github.com/noah-isme/policy-docs-api/pkg/storage"
)

// @title Policy Docs Document Service
// @version 1.0.0
// @description Document registry and change review workflow.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "document-service")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.DocumentDB)
	if err != nil {
		logr.Fatal("connect document database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("document cache disabled, redis unavailable", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, redisClient) }
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("init upload storage", zap.Error(err))
	}

	// Change notifications resolve HODs and implementors through the auth service.
	directory := client.NewAuthClient(client.Config{
		BaseURL:       cfg.Upstreams.AuthURL,
		APIPrefix:     cfg.APIPrefix,
		Timeout:       cfg.Upstreams.Timeout,
		InternalToken: cfg.Upstreams.InternalToken,
		Observer:      metrics,
	})
	dispatcher := notify.NewDispatcher(notify.NewMailer(cfg.Mail, logr), directory, cfg.Mail.PublicBaseURL, logr)
	notifier, closeOutbox, err := notify.NewOutbox(ctx, cfg.Notify, cfg.Redis, dispatcher, metrics, logr)
	if err != nil {
		logr.Fatal("init notification outbox", zap.Error(err))
	}
	defer closeOutbox()

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	validate := validator.New()
	documentRepo := repository.NewDocumentRepository(db)
	changeRepo := repository.NewChangeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	exporter := service.NewExportService(logr, nil, nil)

	documentSvc := service.NewDocumentService(documentRepo, changeRepo, fileStorage,
		storage.NewLinkSigner(cfg.JWT.Secret, cfg.Uploads.ContentLinkTTL),
		cacheSvc, exporter, auditRepo, validate, logr,
		service.DocumentServiceConfig{
			MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
			CacheTTL:     cfg.Cache.TTL,
		})
	changeSvc := service.NewChangeService(changeRepo, documentRepo, exporter, notifier, metrics, auditRepo, validate, logr)

	engine, api := handler.NewEngine(handler.EngineParams{
		Config:  cfg,
		Logger:  logr,
		Metrics: metrics,
		Checks:  checks,
	})
	// Allow the multipart envelope around the largest accepted file.
	engine.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes + 1<<20
	handler.DocumentRoutes{
		Documents: handler.NewDocumentHandler(documentSvc),
		Changes:   handler.NewChangeHandler(changeSvc),
		Tokens:    tokens,
		Audit:     auditRepo,
		Logger:    logr,
	}.Register(api)

	if err := server.Run(ctx, cfg.Ports.Document, engine, logr); err != nil {
		logr.Error("server failed", zap.Error(err))
	}
}

func pingRedis(ctx context.Context, c *redis.Client) error {
	return c.Ping(ctx).Err()
}
