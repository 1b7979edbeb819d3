package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridelinkhq/ridelink-backend/api/routes"
	"github.com/ridelinkhq/ridelink-backend/internal/bookings"
	"github.com/ridelinkhq/ridelink-backend/internal/ledger"
	"github.com/ridelinkhq/ridelink-backend/internal/negotiations"
	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
	"github.com/ridelinkhq/ridelink-backend/internal/profiles"
	"github.com/ridelinkhq/ridelink-backend/internal/settlement"
	"github.com/ridelinkhq/ridelink-backend/internal/trips"
	"github.com/ridelinkhq/ridelink-backend/internal/wallets"
	paylinkwebhook "github.com/ridelinkhq/ridelink-backend/internal/webhooks/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/metrics"
	"github.com/ridelinkhq/ridelink-backend/pkg/migrate"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/redis"
)

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

	gateway, err := paylink.NewClient(context.Background(), cfg.Paylink, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment link client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	profileRepo := profiles.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	walletRepo := wallets.NewRepository(gormDB)

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	walletService, err := wallets.NewService(walletRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	notifyService, err := notifications.NewService(
		notifications.NewRepository(gormDB),
		profileRepo,
		notifications.LogSender{Logger: logg},
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(
		dbClient,
		ledgerRepo,
		walletRepo,
		cfg.Platform,
		logg,
		metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		notifyService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	negotiationService, err := negotiations.NewService(
		dbClient,
		negotiations.NewRepository(gormDB),
		profileRepo,
		gateway,
		settlementService,
		notifyService,
		cfg.Platform,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create negotiations service", err)
		os.Exit(1)
	}

	bookingService, err := bookings.NewService(
		dbClient,
		bookings.NewRepository(gormDB),
		profileRepo,
		gateway,
		settlementService,
		notifyService,
		cfg.Platform,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	tripService, err := trips.NewService(
		dbClient,
		trips.NewRepository(gormDB),
		gateway,
		settlementService,
		notifyService,
		cfg.Platform,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create trips service", err)
		os.Exit(1)
	}

	webhookService, err := paylinkwebhook.NewService(paylinkwebhook.ServiceParams{
		Negotiations: negotiationService,
		Bookings:     bookingService,
		TripBookings: tripService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paylinkwebhook.NewIdempotencyGuard(redisClient, cfg.Paylink.EventDedupTTL, "paylink")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
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
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:           cfg,
			Logger:           logg,
			DBPinger:         dbClient,
			RedisPinger:      redisClient,
			IdempotencyStore: redisClient,
			Gateway:          gateway,
			Negotiations:     negotiationService,
			Bookings:         bookingService,
			Trips:            tripService,
			Wallets:          walletService,
			Ledger:           ledgerService,
			Notifications:    notifyService,
			Webhook:          webhookService,
			WebhookGuard:     webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
