package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"fleet/internal/app"
	"fleet/internal/broker"
	"fleet/internal/config"
	"fleet/internal/handler"
	internalRedis "fleet/internal/redis"
	"fleet/internal/repository/postgres"
	"fleet/internal/service"
	"fleet/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log.Service, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
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
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()
	if err := app.Migrate(ctx, db); err != nil {
		fatal(logger, "failed to migrate database", err)
	}
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		fatal(logger, "failed to connect to redis", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	srv, err := wireServer(db, redisClient, nrApp, cfg, logger)
	if err != nil {
		fatal(logger, "failed to wire server", err)
	}
	defer srv.close()

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server error", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// server bundles the HTTP server with the background components it owns.
type server struct {
	http    *http.Server
	sweeper *worker.ExpirySweeper
	rabbit  *broker.Rabbit
	logger  *slog.Logger
}

func (s *server) close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.rabbit != nil {
		if err := s.rabbit.Close(); err != nil {
			s.logger.Warn("failed to close rabbitmq", "error", err)
		}
	}
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) (*server, error) {
	// Initialize Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient)
	otpStore := internalRedis.NewOTPStore(redisClient)
	bayStore := internalRedis.NewBayStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)

	// Initialize repositories.
	tripRepo := postgres.NewTripRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	expenseRepo := postgres.NewExpenseRepository(db)

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		logger.Warn("JWT_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	// The notification service publishes through the broker once it is up.
	publisher := &deferredPublisher{}
	notificationService := service.NewNotificationService(publisher, logger)

	sessionService := service.NewSessionService(sessionStore, service.NewTokenIssuer(secret), accountRepo, cfg.Auth.SessionTTL, logger)
	documentService := service.NewDocumentService(documentRepo, accountRepo)
	expenseService := service.NewExpenseService(expenseRepo, accountRepo, notificationService, logger)
	tripService := service.NewTripService(tripRepo, lockStore, otpStore, bayStore, notificationService, service.TripConfig{
		OTPTTL:               cfg.Verification.OTPTTL,
		OTPMaxAttempts:       cfg.Verification.OTPMaxAttempts,
		GeofenceRadiusMeters: cfg.Verification.GeofenceRadiusMeters,
		GeofenceTimeout:      cfg.Verification.GeofenceTimeout,
		GeofenceRetries:      cfg.Verification.GeofenceRetries,
		GeofenceRetryDelay:   cfg.Verification.GeofenceRetryDelay,
		VerificationTTL:      cfg.Verification.SessionTTL,
		LockTTL:              cfg.Verification.LockTTL,
	}, logger)

	// Logout discards the driver's open verification sessions.
	sessionService.AddListener(tripService)

	srv := &server{logger: logger}

	if cfg.Broker.Enabled {
		signals := broker.NewSignalHandler(tripService, logger.With("component", "broker"))
		rabbit, err := broker.NewRabbit(cfg.Broker, signals, logger.With("component", "broker"))
		if err != nil {
			return nil, err
		}
		publisher.set(rabbit)
		srv.rabbit = rabbit
	}

	if cfg.Worker.Enabled {
		sweeper, err := worker.NewExpirySweeper(cfg.Worker.ExpirySweepSchedule, documentRepo, notificationService, logger.With("component", "expiry-sweeper"))
		if err != nil {
			srv.close()
			return nil, err
		}
		sweeper.Start()
		srv.sweeper = sweeper
	}

	router := app.NewRouter(app.RouterDeps{
		SessionService:  sessionService,
		SessionHandler:  handler.NewSessionHandler(sessionService),
		DocumentHandler: handler.NewDocumentHandler(documentService),
		TripHandler:     handler.NewTripHandler(tripService),
		BayHandler:      handler.NewBayHandler(tripService),
		ExpenseHandler:  handler.NewExpenseHandler(expenseService),
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		Logger:          logger,
	})

	srv.http = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return srv, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
