package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridelinkhq/ridelink-backend/internal/bookings"
	"github.com/ridelinkhq/ridelink-backend/internal/cron"
	"github.com/ridelinkhq/ridelink-backend/internal/ledger"
	"github.com/ridelinkhq/ridelink-backend/internal/negotiations"
	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
	"github.com/ridelinkhq/ridelink-backend/internal/profiles"
	"github.com/ridelinkhq/ridelink-backend/internal/settlement"
	"github.com/ridelinkhq/ridelink-backend/internal/trips"
	"github.com/ridelinkhq/ridelink-backend/internal/wallets"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/metrics"
	"github.com/ridelinkhq/ridelink-backend/pkg/migrate"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/redis"
)

const lockKeyFormat = "rl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	negotiationRepo := negotiations.NewRepository(gormDB)
	bookingRepo := bookings.NewRepository(gormDB)
	tripRepo := trips.NewRepository(gormDB)

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
		dbClient, negotiationRepo, profileRepo, gateway, settlementService, notifyService, cfg.Platform, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create negotiations service", err)
		os.Exit(1)
	}

	bookingService, err := bookings.NewService(
		dbClient, bookingRepo, profileRepo, gateway, settlementService, notifyService, cfg.Platform, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	tripService, err := trips.NewService(
		dbClient, tripRepo, gateway, settlementService, notifyService, cfg.Platform, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create trips service", err)
		os.Exit(1)
	}

	sources := []cron.PaymentSource{
		cron.NegotiationSource{Repo: negotiationRepo, Service: negotiationService},
		cron.BookingSource{Repo: bookingRepo, Service: bookingService},
		cron.TripBookingSource{Repo: tripRepo, Service: tripService},
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()

	if cfg.Cron.ReconcileEnabled {
		reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
			Logger:  logg,
			Gateway: gateway,
			Sources: sources,
			Batch:   cfg.Cron.ReconcileBatch,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create payment reconcile job", err)
			os.Exit(1)
		}
		registry.Register(reconcileJob)
	}

	staleLinkJob, err := cron.NewStaleLinkJob(cron.StaleLinkJobParams{
		Logger:  logg,
		Gateway: gateway,
		Sources: sources,
		MaxAge:  cfg.Cron.StaleLinkMaxAge,
		Batch:   cfg.Cron.ReconcileBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale link job", err)
		os.Exit(1)
	}
	registry.Register(staleLinkJob)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
