package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/client"
	"github.com/noah-isme/policy-docs-api/internal/handler"
	"github.com/noah-isme/policy-docs-api/internal/notify"
	"github.com/noah-isme/policy-docs-api/internal/server"
	"github.com/noah-isme/policy-docs-api/internal/service"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "notify-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	directory := client.NewAuthClient(client.Config{
		BaseURL:       cfg.Upstreams.AuthURL,
		APIPrefix:     cfg.APIPrefix,
		Timeout:       cfg.Upstreams.Timeout,
		InternalToken: cfg.Upstreams.InternalToken,
	})
	dispatcher := notify.NewDispatcher(notify.NewMailer(cfg.Mail, logr), directory, cfg.Mail.PublicBaseURL, logr)
	metrics := service.NewMetricsService()

	concurrency := cfg.Notify.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(notify.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: concurrency,
		Logger:      logr.Sugar(),
	})

	logr.Info("notify worker starting", zap.Int("concurrency", concurrency), zap.String("redis", notify.RedisOpt(cfg.Redis).Addr))
	if err := srv.Start(notify.NewServeMux(dispatcher, metrics)); err != nil {
		logr.Fatal("notify worker failed to start", zap.Error(err))
	}

	// Health and delivery metrics only; the worker takes no API traffic.
	engine, _ := handler.NewEngine(handler.EngineParams{Config: cfg, Logger: logr, Metrics: metrics})
	if err := server.Run(ctx, cfg.Ports.Worker, engine, logr); err != nil {
		logr.Error("metrics server failed", zap.Error(err))
		<-ctx.Done()
	}

	logr.Info("notify worker shutting down")
	srv.Shutdown()
}
