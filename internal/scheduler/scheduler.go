// Package scheduler drives the periodic lifecycle triggers. Both jobs are
// idempotent database-guarded operations, so external cron invocations of
// the same entry points can overlap this worker freely.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wordforge/challenge-service/internal/config"
	"github.com/wordforge/challenge-service/internal/notifier"
	"github.com/wordforge/challenge-service/internal/rollover"
)

// Worker periodically runs the rollover check and the notification
// dispatch on independent intervals.
type Worker struct {
	controller *rollover.Controller
	dispatcher *notifier.Dispatcher
	config     *config.SchedulerConfig
	logger     *slog.Logger
	stopCh     chan struct{}
	doneCh     chan struct{}
	mu         sync.Mutex
	running    bool
}

// NewWorker creates a scheduler worker
func NewWorker(
	controller *rollover.Controller,
	dispatcher *notifier.Dispatcher,
	cfg *config.SchedulerConfig,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		controller: controller,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background trigger loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("scheduler started",
		"rollover_interval", w.config.RolloverInterval,
		"dispatch_interval", w.config.DispatchInterval,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background trigger loop
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("scheduler stopped")
	return nil
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	rolloverTicker := time.NewTicker(w.config.RolloverInterval)
	defer rolloverTicker.Stop()
	dispatchTicker := time.NewTicker(w.config.DispatchInterval)
	defer dispatchTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-rolloverTicker.C:
			w.runRollover(ctx)
		case <-dispatchTicker.C:
			w.runDispatch(ctx)
		}
	}
}

func (w *Worker) runRollover(ctx context.Context) {
	summary, err := w.controller.RunRolloverCheck(ctx)
	if err != nil {
		w.logger.Error("rollover check failed", "error", err)
		return
	}
	if summary.Processed {
		w.logger.Info("rollover check processed",
			"challenge_id", summary.ChallengeID,
			"rewarded", summary.Rewarded,
			"new_challenge_id", summary.NewChallengeID,
		)
	}
}

func (w *Worker) runDispatch(ctx context.Context) {
	summary, err := w.dispatcher.RunNotificationDispatch(ctx)
	if err != nil {
		w.logger.Error("notification dispatch failed", "error", err)
		return
	}
	if summary.Processed {
		w.logger.Info("notification dispatch processed",
			"challenge_id", summary.ChallengeID,
			"sent", summary.Sent,
			"failed", summary.Failed,
		)
	}
}

// RunStartupChecks catches up on work missed while the process was down:
// an overdue rollover first, then any settled-but-unsent results. Both
// calls are no-ops when nothing is pending.
func (w *Worker) RunStartupChecks(ctx context.Context) {
	w.logger.Info("running startup checks for missed tasks")
	w.runRollover(ctx)
	w.runDispatch(ctx)
}

// IsRunning returns whether the worker is currently running
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
