package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/api/handler"
	"github.com/wagate/wagate/internal/api/middleware"
	"github.com/wagate/wagate/internal/app"
	"github.com/wagate/wagate/internal/config"
	enginewhatsmeow "github.com/wagate/wagate/internal/engine/whatsmeow"
	"github.com/wagate/wagate/internal/logger"
	"github.com/wagate/wagate/internal/media"
	"github.com/wagate/wagate/internal/server"
	"github.com/wagate/wagate/internal/service/messaging"
	"github.com/wagate/wagate/internal/session"
	storeredis "github.com/wagate/wagate/internal/storage/redis"
	"github.com/wagate/wagate/internal/webhook"
)

func main() {
	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	logr.Info("starting wagate",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Storage.Driver),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	repos, err := app.NewRepositories(cfg, logr)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	pgConnString := ""
	if cfg.Storage.Driver == "postgres" {
		pgConnString = cfg.DB.DSN()
	}
	sessionDir := filepath.Join(cfg.Storage.DataDir, "sessions")
	eng := enginewhatsmeow.NewEngine(logr, cfg.Storage.Driver, sessionDir, pgConnString, repos.Client, repos.Message)

	manager := session.NewManager(repos.Client, repos.Message, eng, logr)
	if repos.RedisClient != nil {
		manager.SetRestoreLock(storeredis.NewLock(repos.RedisClient, "session:restore", 2*time.Minute))
	}

	dispatcher := webhook.NewDispatcher(repos.Client, logr, cfg.Webhook.MaxAttempts, cfg.Webhook.RetryInterval())
	pool := webhook.NewPool(repos.WebhookQueue, dispatcher, cfg.Webhook.Workers, logr)
	pool.Start()

	manager.SetNotifier(webhook.NewEventHandler(repos.WebhookQueue, logr))

	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	if err := manager.Initialize(restoreCtx); err != nil {
		logr.Error("session restore failed", zap.Error(err))
	}
	restoreCancel()

	watchdogCtx, watchdogCancel := context.WithCancel(context.Background())
	watchdog := session.NewWatchdog(manager, logr, 30*time.Second)
	go watchdog.Start(watchdogCtx)

	transcoder := media.NewTranscoder(cfg.Media.FFmpegBin, logr)
	messagingSvc := messaging.NewService(manager, transcoder, logr)

	router := server.NewRouter(server.Options{
		Env:            cfg.App.Env,
		AuthSecret:     cfg.JWT.Secret,
		HealthHandler:  handler.NewHealthHandler(),
		SessionHandler: handler.NewSessionHandler(manager, logr),
		MessageHandler: handler.NewMessageHandler(messagingSvc, logr),
		RateLimit: middleware.RateLimitOption{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			Prefix:   cfg.RateLimit.Prefix,
			Limiter:  repos.RateLimiter,
			Logger:   logr,
		},
	})

	application := app.New(cfg, logr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logr.Error("server stopped with error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown failed", zap.Error(err))
	}

	watchdogCancel()
	pool.Stop()
	manager.Shutdown()
	repos.WebhookQueue.Close()

	if repos.RedisClient != nil {
		if err := repos.RedisClient.Close(); err != nil {
			logr.Warn("redis close failed", zap.Error(err))
		}
	}

	logr.Info("shutdown complete")
}
