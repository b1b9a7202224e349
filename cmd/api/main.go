package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sponzahq/sponza-backend/api/routes"
	"github.com/sponzahq/sponza-backend/internal/applications"
	"github.com/sponzahq/sponza-backend/internal/auth"
	"github.com/sponzahq/sponza-backend/internal/campaigns"
	"github.com/sponzahq/sponza-backend/internal/ledger"
	"github.com/sponzahq/sponza-backend/internal/notifications"
	"github.com/sponzahq/sponza-backend/internal/settings"
	"github.com/sponzahq/sponza-backend/internal/subscriptions"
	"github.com/sponzahq/sponza-backend/internal/webhooks"
	"github.com/sponzahq/sponza-backend/pkg/config"
	"github.com/sponzahq/sponza-backend/pkg/db"
	"github.com/sponzahq/sponza-backend/pkg/gateway"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/migrate"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
	"github.com/sponzahq/sponza-backend/pkg/outbox/idempotency"
	"github.com/sponzahq/sponza-backend/pkg/redis"
)

const webhookDedupeTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(gateway.ClientParams{
		Config: cfg.Gateway,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo: settings.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledger.NewRepository(dbClient.DB()),
		Settings:          settingsService,
		Gateway:           gatewayClient,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptions.NewRepository(dbClient.DB()),
		Gateway:           gatewayClient,
		Ledger:            ledgerService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
		Currency:          cfg.Gateway.Currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	campaignService, err := campaigns.NewService(campaigns.ServiceParams{
		Repo:              campaigns.NewRepository(dbClient.DB()),
		Subscriptions:     subscriptionService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign service", err)
		os.Exit(1)
	}

	applicationService, err := applications.NewService(applications.ServiceParams{
		Repo:              applications.NewRepository(dbClient.DB()),
		Campaigns:         campaignService,
		Ledger:            ledgerService,
		Notifications:     notificationService,
		Settings:          settingsService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create application service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Repo:              auth.NewRepository(dbClient.DB()),
		Ledger:            ledgerService,
		Subscriptions:     subscriptionService,
		TransactionRunner: dbClient,
		Logger:            logg,
		JWT:               cfg.JWT,
		Password:          cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	webhookDedupe, err := idempotency.NewManager(redisClient, webhookDedupeTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedupe", err)
		os.Exit(1)
	}

	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Gateway:       gatewayClient,
		Idempotency:   webhookDedupe,
		Ledger:        ledgerService,
		Subscriptions: subscriptionService,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Auth:          authService,
			Campaigns:     campaignService,
			Applications:  applicationService,
			Ledger:        ledgerService,
			Subscriptions: subscriptionService,
			Notifications: notificationService,
			Settings:      settingsService,
			Webhooks:      webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
