package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/policy-docs-api/api/swagger"
	"github.com/noah-isme/policy-docs-api/internal/handler"
	"github.com/noah-isme/policy-docs-api/internal/notify"
	"github.com/noah-isme/policy-docs-api/internal/repository"
	"github.com/noah-isme/policy-docs-api/internal/server"
	"github.com/noah-isme/policy-docs-api/internal/service"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/database"
	"github.com/noah-isme/policy-docs-api/pkg/logger"
)

// @title Policy Docs Auth Service
// @version 1.0.0
// @description Credential store: registration, login, email verification and password reset.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "auth-service")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.AuthDB)
	if err != nil {
		logr.Fatal("connect auth database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	// Verification and reset mails carry their own recipients, so no directory is needed.
	dispatcher := notify.NewDispatcher(notify.NewMailer(cfg.Mail, logr), nil, cfg.Mail.PublicBaseURL, logr)
	notifier, closeOutbox, err := notify.NewOutbox(ctx, cfg.Notify, cfg.Redis, dispatcher, metrics, logr)
	if err != nil {
		logr.Fatal("init notification outbox", zap.Error(err))
	}
	defer closeOutbox()

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	authSvc := service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewInstitutionRepository(db),
		repository.NewAuditRepository(db),
		tokens,
		notifier,
		validator.New(),
		logr,
		service.AuthConfig{
			PasswordResetTTL: cfg.Credentials.PasswordResetTTL,
			BcryptCost:       cfg.Credentials.BcryptCost,
			PublicBaseURL:    cfg.Mail.PublicBaseURL,
		},
	)

	engine, api := handler.NewEngine(handler.EngineParams{
		Config:  cfg,
		Logger:  logr,
		Metrics: metrics,
		Checks:  map[string]handler.ReadinessCheck{"postgres": db.PingContext},
	})
	handler.AuthRoutes{
		Handler:       handler.NewAuthHandler(authSvc),
		Tokens:        tokens,
		InternalToken: cfg.Upstreams.InternalToken,
		RateLimit:     cfg.RateLimit,
	}.Register(api)

	if err := server.Run(ctx, cfg.Ports.Auth, engine, logr); err != nil {
		logr.Error("server failed", zap.Error(err))
	}
}
