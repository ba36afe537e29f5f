package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/config"
	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/repository/mongodb"
	"github.com/mamadbah2/pantry/internal/repository/sheets"
	"github.com/mamadbah2/pantry/internal/service/alerts"
	"github.com/mamadbah2/pantry/internal/service/auth"
	"github.com/mamadbah2/pantry/internal/service/inventory"
	"github.com/mamadbah2/pantry/internal/service/notifications"
	"github.com/mamadbah2/pantry/internal/service/reporting"
	whatsappclient "github.com/mamadbah2/pantry/pkg/clients/whatsapp"
)

// App holds the services shared by the HTTP server and the operator CLI.
type App struct {
	Config    *config.Config
	Repo      *mongodb.MongoDBRepository
	Auth      *auth.Service
	Notifier  *notifications.Scheduler
	Inventory *inventory.Service
	Reporting *reporting.Service
	WhatsApp  *whatsappclient.APIClient

	unsubscribe func()
}

// Build connects to the stores and wires the domain services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	policy, err := alerts.ParsePolicy(cfg.Tracking.AlertPolicy)
	if err != nil {
		return nil, err
	}

	repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		return nil, fmt.Errorf("init mongodb repository: %w", err)
	}
	if err := repo.EnsureIndexes(ctx, models.Collections()); err != nil {
		logger.Warn("failed to ensure indexes", zap.Error(err))
	}

	a := &App{Config: cfg, Repo: repo}

	var senders []notifications.Sender
	if cfg.WhatsApp.Enabled() {
		a.WhatsApp = whatsappclient.NewClient(cfg.WhatsApp)
		senders = append(senders, notifications.NewWhatsAppSender(a.WhatsApp))
	}
	if cfg.Email.Enabled() {
		senders = append(senders, notifications.NewEmailSender(cfg.Email))
	}
	if len(senders) == 0 {
		logger.Warn("no notification channel configured, alerts will only be logged")
	}
	a.Notifier = notifications.NewScheduler(repo, logger.Named("svc.notifications"), senders...)

	a.Auth = auth.NewService(repo, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), logger.Named("svc.auth"))

	a.Inventory = inventory.NewService(repo, a.Auth, repo, a.Notifier,
		alerts.NewEvaluator(policy, cfg.Tracking.LowStockDays),
		logger.Named("svc.inventory"),
		inventory.Options{
			SurfaceRemoteErrors: cfg.Tracking.SurfaceRemoteErrors,
			NotificationDelay:   5 * time.Second,
		})
	a.unsubscribe = a.Auth.Subscribe(a.Inventory.HandleAuthEvent)

	var sheetRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		gs, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named("repo.sheets"))
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("init sheets repository: %w", err)
		}
		sheetRepo = gs
	}
	a.Reporting = reporting.NewService(sheetRepo, a.Inventory, repo, a.Notifier, cfg.Sheets.SheetName, logger.Named("svc.reporting"))

	return a, nil
}

// MigrateLegacyIDs rewrites string ids in every product collection.
func (a *App) MigrateLegacyIDs(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, collection := range models.Collections() {
		n, err := a.Repo.MigrateLegacyIDs(ctx, collection)
		out[collection] = n
		if err != nil {
			return out, fmt.Errorf("migrate %s: %w", collection, err)
		}
	}
	return out, nil
}

// Close stops pending notifications and disconnects from MongoDB.
func (a *App) Close(ctx context.Context) error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.Notifier != nil {
		a.Notifier.Stop()
	}
	return a.Repo.Close(ctx)
}
