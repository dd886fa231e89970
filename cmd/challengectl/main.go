// challengectl runs a single lifecycle step and exits, for cron-driven
// deployments that do not keep the in-process scheduler enabled. Both
// steps are idempotent, so overlapping the server's own scheduler is
// harmless.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/wordforge/challenge-service/internal/config"
	"github.com/wordforge/challenge-service/internal/grid"
	"github.com/wordforge/challenge-service/internal/notifier"
	"github.com/wordforge/challenge-service/internal/postgres"
	"github.com/wordforge/challenge-service/internal/rollover"
	"github.com/wordforge/challenge-service/internal/telegram"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	mode := flag.String("mode", "rollover", "Lifecycle step to run: rollover, notify, or all")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	exitCode := 0
	switch *mode {
	case "rollover":
		exitCode = runRollover(ctx, cfg, repo, logger)
	case "notify":
		exitCode = runNotify(ctx, cfg, repo, logger)
	case "all":
		exitCode = runRollover(ctx, cfg, repo, logger)
		if code := runNotify(ctx, cfg, repo, logger); code != 0 {
			exitCode = code
		}
	default:
		logger.Error("unknown mode", "mode", *mode)
		exitCode = 2
	}
	os.Exit(exitCode)
}

func runRollover(ctx context.Context, cfg *config.Config, repo *postgres.Repository, logger *slog.Logger) int {
	grids := grid.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	controller := rollover.NewController(repo, grids, logger)

	summary, err := controller.RunRolloverCheck(ctx)
	if err != nil {
		logger.Error("rollover check failed", "error", err)
		return 1
	}
	if summary.Processed {
		logger.Info("rollover completed",
			"challenge_id", summary.ChallengeID,
			"rewarded", summary.Rewarded,
			"new_challenge_id", summary.NewChallengeID,
		)
	} else {
		logger.Info("nothing to roll over", "challenge_id", summary.ChallengeID)
	}
	return 0
}

func runNotify(ctx context.Context, cfg *config.Config, repo *postgres.Repository, logger *slog.Logger) int {
	messenger := telegram.NewClient(&cfg.Telegram, logger)
	dispatcher := notifier.NewDispatcher(repo, messenger, cfg.Telegram.SendDelay, logger)

	summary, err := dispatcher.RunNotificationDispatch(ctx)
	if err != nil {
		logger.Error("notification dispatch failed", "error", err)
		return 1
	}
	if summary.Processed {
		logger.Info("results dispatched",
			"challenge_id", summary.ChallengeID,
			"sent", summary.Sent,
			"failed", summary.Failed,
		)
	} else {
		logger.Info("no settled challenge awaiting dispatch")
	}
	return 0
}
