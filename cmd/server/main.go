package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/app"
	"github.com/mamadbah2/pantry/internal/config"
	"github.com/mamadbah2/pantry/internal/scheduler"
	"github.com/mamadbah2/pantry/internal/server/handlers"
	"github.com/mamadbah2/pantry/internal/server/router"
	commandsvc "github.com/mamadbah2/pantry/internal/service/commands"
	whatsappsvc "github.com/mamadbah2/pantry/internal/service/whatsapp"
	"github.com/mamadbah2/pantry/pkg/clients/anthropic"
	"github.com/mamadbah2/pantry/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	services, err := app.Build(bootCtx, cfg, baseLogger)
	if err != nil {
		cancelBoot()
		baseLogger.Fatal("failed to initialise services", zap.Error(err))
	}
	if cfg.Tracking.MigrateLegacyIDs {
		migrated, err := services.MigrateLegacyIDs(bootCtx)
		if err != nil {
			baseLogger.Error("legacy id migration failed", zap.Error(err))
		}
		baseLogger.Info("legacy ids migrated", zap.Any("documents", migrated))
	}
	cancelBoot()
	defer func() {
		if err := services.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	h := router.Handlers{
		Auth:          handlers.NewAuthHandler(services.Auth, baseLogger.Named("handlers.auth")),
		Products:      handlers.NewProductHandler(services.Inventory, services.Reporting, baseLogger.Named("handlers.products")),
		Notifications: handlers.NewNotificationHandler(services.Notifier, baseLogger.Named("handlers.notifications")),
	}

	if services.WhatsApp != nil {
		var aiClient anthropic.Client
		if cfg.AI.AnthropicKey != "" {
			aiClient = anthropic.NewClient(cfg.AI.AnthropicKey)
			baseLogger.Info("anthropic ai client enabled")
		} else {
			baseLogger.Warn("anthropic api key missing, natural language processing disabled")
		}

		commandDispatcher := commandsvc.NewService(services.Inventory, services.Repo, baseLogger.Named("svc.commands"))
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, services.WhatsApp, aiClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))
		h.Webhook = handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
	} else {
		baseLogger.Warn("whatsapp not configured, chat commands disabled")
	}

	engine := router.New(h, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Tracking, services.Inventory, services.Reporting, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
