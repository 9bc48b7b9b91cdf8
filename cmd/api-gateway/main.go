package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/policy-docs-api/api/swagger"
	"github.com/noah-isme/policy-docs-api/internal/client"
	"github.com/noah-isme/policy-docs-api/internal/handler"
	"github.com/noah-isme/policy-docs-api/internal/server"
	"github.com/noah-isme/policy-docs-api/internal/service"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/logger"
)

// @title Policy Docs API Gateway
// @version 1.0.0
// @description Frontend aggregation over the auth and document services.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	upstream := func(baseURL string) client.Config {
		return client.Config{
			BaseURL:   baseURL,
			APIPrefix: cfg.APIPrefix,
			Timeout:   cfg.Upstreams.Timeout,
			Observer:  metrics,
		}
	}
	authClient := client.NewAuthClient(upstream(cfg.Upstreams.AuthURL))
	documentClient := client.NewDocumentClient(upstream(cfg.Upstreams.DocumentURL))

	// The gateway holds the JWT secret so it can reject bad tokens before fanning out.
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	gateway := service.NewGatewayService(authClient, documentClient, validator.New(), logr)

	engine, api := handler.NewEngine(handler.EngineParams{
		Config:  cfg,
		Logger:  logr,
		Metrics: metrics,
	})
	handler.GatewayRoutes{
		Handler: handler.NewGatewayHandler(gateway),
		Tokens:  tokens,
	}.Register(api)

	if err := server.Run(ctx, cfg.Ports.Gateway, engine, logr); err != nil {
		logr.Error("server failed", zap.Error(err))
	}
}
