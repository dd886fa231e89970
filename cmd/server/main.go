package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wordforge/challenge-service/internal/config"
	"github.com/wordforge/challenge-service/internal/grid"
	"github.com/wordforge/challenge-service/internal/handler"
	"github.com/wordforge/challenge-service/internal/kafka"
	"github.com/wordforge/challenge-service/internal/notifier"
	"github.com/wordforge/challenge-service/internal/postgres"
	"github.com/wordforge/challenge-service/internal/redis"
	"github.com/wordforge/challenge-service/internal/rollover"
	"github.com/wordforge/challenge-service/internal/scheduler"
	"github.com/wordforge/challenge-service/internal/service"
	"github.com/wordforge/challenge-service/internal/telegram"
	"github.com/wordforge/challenge-service/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	cache, err := redis.NewCache(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	dailyService := service.NewDailyService(postgresRepo, cache, &cfg.Daily, logger)
	dailyService.SetHub(wsHub)

	// Initialize the challenge lifecycle engine
	grids := grid.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	controller := rollover.NewController(postgresRepo, grids, logger)
	controller.SetAnnouncer(dailyService)

	telegramClient := telegram.NewClient(&cfg.Telegram, logger)
	dispatcher := notifier.NewDispatcher(postgresRepo, telegramClient, cfg.Telegram.SendDelay, logger)

	schedulerWorker := scheduler.NewWorker(controller, dispatcher, &cfg.Scheduler, logger)

	// Catch up on any rollover or dispatch missed while the process was
	// down, and warm the Redis board from the durable score table.
	if cfg.Scheduler.RunOnStart {
		schedulerWorker.RunStartupChecks(ctx)
	}
	warmActiveBoard(ctx, postgresRepo, cache, logger)

	if cfg.Scheduler.Enabled {
		if err := schedulerWorker.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, dailyService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(dailyService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop scheduler
	if err := schedulerWorker.Stop(); err != nil {
		logger.Error("failed to stop scheduler", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

// warmActiveBoard rebuilds the live leaderboard cache from PostgreSQL so a
// restart does not present an empty board.
func warmActiveBoard(ctx context.Context, repo *postgres.Repository, cache *redis.Cache, logger *slog.Logger) {
	challenge, err := repo.GetLatestChallenge(ctx)
	if err != nil {
		logger.Warn("no challenge to warm board for", "error", err)
		return
	}
	if err := cache.SetActiveChallenge(ctx, challenge); err != nil {
		logger.Warn("failed to cache active challenge", "error", err)
	}
	scores, err := repo.GetScores(ctx, challenge.ID)
	if err != nil {
		logger.Warn("failed to read scores for warm-up", "error", err)
		return
	}
	if err := cache.WarmScores(ctx, challenge.ID, scores); err != nil {
		logger.Warn("failed to warm score cache", "error", err)
		return
	}
	logger.Info("warmed daily board", "challenge_id", challenge.ID, "players", len(scores))
}
