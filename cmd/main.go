package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/piggybanx/auction-service/internal/config"
	"github.com/piggybanx/auction-service/internal/db"
	"github.com/piggybanx/auction-service/internal/events"
	"github.com/piggybanx/auction-service/internal/handlers"
	"github.com/piggybanx/auction-service/internal/repository"
	"github.com/piggybanx/auction-service/internal/router"
	"github.com/piggybanx/auction-service/internal/scheduler"
	"github.com/piggybanx/auction-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	handlerTimeout    = 5 * time.Second
	schedulerRetry    = 15 * time.Second
	schedulerAttempts = 3
)

func main() {
	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("error closing redis client: %v", err)
		}
	}()

	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		// The event fan-out is best-effort; the service still runs without it.
		logger.Printf("could not connect to NATS at %s: %v", cfg.NatsURL, err)
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	auctionRepo := repository.NewPostgresAuctionRepository(dbPool)
	bidRepo := repository.NewPostgresBidRepository(dbPool)
	requestRepo := repository.NewPostgresRequestRepository(dbPool)
	notificationRepo := repository.NewPostgresNotificationRepository(dbPool)
	blacklistRepo := repository.NewPostgresBlacklistRepository(dbPool)
	transactionRepo := repository.NewPostgresTransactionRepository(dbPool)

	publisher := events.NewPublisher(redisClient, natsConn, logger)
	timerScheduler := scheduler.NewTimerScheduler(logger, schedulerRetry, schedulerAttempts)

	biddingService := services.NewBiddingService(auctionRepo, blacklistRepo, publisher, logger)
	lifecycleService := services.NewLifecycleService(auctionRepo, requestRepo, timerScheduler, publisher, logger)
	timerScheduler.Bind(lifecycleService.HandleScheduled)

	auctionHandler := handlers.NewAuctionHandler(
		lifecycleService, auctionRepo, transactionRepo, requestRepo, logger, handlerTimeout, dbPool)
	bidHandler := handlers.NewBidHandler(biddingService, bidRepo, logger, handlerTimeout)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, logger, handlerTimeout)

	routes := router.InitRoutes(auctionHandler, bidHandler, notificationHandler)

	shutdownChan := make(chan struct{})
	sweepDone := make(chan struct{})
	go runSweepLoop(lifecycleService, cfg.SweepInterval, logger, shutdownChan, sweepDone)

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      routes,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errChan := make(chan error)
	go func() {
		logger.Printf("server is listening on %s...", cfg.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("server failed: %v", err)
	case sig := <-quit:
		logger.Printf("received signal %s, shutting down...", sig)
	}

	close(shutdownChan)
	select {
	case <-sweepDone:
		logger.Println("sweep loop stopped")
	case <-time.After(10 * time.Second):
		logger.Println("sweep loop did not stop in time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("graceful server shutdown failed: %v", err)
	} else {
		logger.Println("server gracefully stopped")
	}
}

// runSweepLoop runs the reconciliation sweep on a fixed interval. It is the
// backstop for lost or late scheduler callbacks.
func runSweepLoop(lifecycle *services.LifecycleService, interval time.Duration, logger *log.Logger, shutdownChan <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if interval <= 0 {
		interval = time.Minute
	}

	if processed, err := lifecycle.RunSweep(context.Background()); err != nil {
		logger.Printf("initial sweep failed: %v", err)
	} else if processed > 0 {
		logger.Printf("initial sweep processed %d auctions", processed)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Printf("sweep loop started, running every %s", interval)
	for {
		select {
		case <-ticker.C:
			if processed, err := lifecycle.RunSweep(context.Background()); err != nil {
				logger.Printf("sweep failed: %v", err)
			} else if processed > 0 {
				logger.Printf("sweep processed %d auctions", processed)
			}
		case <-shutdownChan:
			return
		}
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
