package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	"dispatch/internal/jobs"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	checks := []app.HealthCheck{
		{Name: "postgres", Critical: true, Check: db.PingContext},
		{Name: "redis", Critical: true, Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}

	var publisher service.EventPublisher
	if p, err := app.NewPublisher(cfg.RabbitMQ, logger); err != nil {
		logger.Warn("rabbitmq unavailable, notifications will only be logged", "error", err)
	} else if p != nil {
		defer p.Close()
		publisher = p
		checks = append(checks, app.BrokerHealthCheck(p))
		logger.Info("connected to RabbitMQ", "exchange", cfg.RabbitMQ.Exchange)
	}

	server, quoteService, lockStore := wireServer(db, redisClient, publisher, nrApp, cfg, checks, logger)

	if cfg.Quote.SweepEnabled {
		job := jobs.NewQuoteExpiryJob(quoteService, lockStore, cfg.Quote.SweepSchedule, logger)
		if err := job.Start(); err != nil {
			logger.Error("failed to start quote expiry job", "error", err)
			os.Exit(1)
		}
		defer job.Stop()
	}

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sqlx.DB,
	redisClient *redis.Client,
	publisher service.EventPublisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	checks []app.HealthCheck,
	logger *slog.Logger,
) (*http.Server, *service.QuoteService, *internalRedis.LockStore) {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	quoteRepo := postgres.NewQuoteRepository(db)
	sequenceRepo := postgres.NewSequenceRepository(db)
	txManager := postgres.NewTxManager(db)

	// Initialize services.
	minter := service.NewIdentifierMinter(sequenceRepo)
	notificationService := service.NewNotificationService(publisher, logger)
	receiptService := service.NewReceiptService(cfg.Dispatch.PlatformCommission, cfg.Dispatch.Currency)
	matchingService := service.NewMatchingService(locationStore, cacheStore, driverRepo, cfg.Dispatch.MatchRadiusKm)
	deliveryService := service.NewDeliveryService(
		deliveryRepo, txManager, minter, matchingService,
		notificationService, receiptService, cacheStore, logger,
	)
	quoteService := service.NewQuoteService(
		quoteRepo, userRepo, driverRepo, txManager, minter,
		notificationService, cfg.Dispatch.Currency, cfg.Quote.Validity(), logger,
	)
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo)
	userService := service.NewUserService(userRepo, txManager, logger)

	router := app.NewRouter(app.RouterDeps{
		DeliveryHandler: handler.NewDeliveryHandler(deliveryService),
		QuoteHandler:    handler.NewQuoteHandler(quoteService),
		DriverHandler:   handler.NewDriverHandler(driverService),
		UserHandler:     handler.NewUserHandler(userService),
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		JWTSecret:       cfg.Auth.JWTSecret,
		HealthChecks:    checks,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, quoteService, lockStore
}
