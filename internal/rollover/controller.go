// Package rollover runs the daily challenge lifecycle: it detects expiry,
// settles the finished board, and creates the next challenge. Every entry
// point is safe under redundant and concurrent invocation; the database
// sentinel rows carry all the coordination.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordforge/challenge-service/internal/domain"
	"github.com/wordforge/challenge-service/internal/grid"
	"github.com/wordforge/challenge-service/internal/ranking"
)

// Controller is the challenge lifecycle state machine.
type Controller struct {
	store       Store
	grids       *grid.Generator
	distributor *Distributor
	logger      *slog.Logger
	announcer   Announcer

	// now is swapped out by tests
	now func() time.Time
}

// NewController creates a rollover controller
func NewController(store Store, grids *grid.Generator, logger *slog.Logger) *Controller {
	return &Controller{
		store:       store,
		grids:       grids,
		distributor: NewDistributor(store, logger),
		logger:      logger,
		now:         time.Now,
	}
}

// SetAnnouncer registers the hook invoked after a new challenge is
// created.
func (c *Controller) SetAnnouncer(a Announcer) {
	c.announcer = a
}

// RunRolloverCheck advances the challenge lifecycle as far as the current
// state allows. It is a no-op while the active challenge has time left;
// once it expires, the board is settled (at most once, across any number
// of concurrent callers) and the next challenge is created. Expected
// states — still active, already settled — never surface as errors.
func (c *Controller) RunRolloverCheck(ctx context.Context) (domain.RolloverSummary, error) {
	var summary domain.RolloverSummary
	now := c.now()

	latest, err := c.store.GetLatestChallenge(ctx)
	if err != nil && !errors.Is(err, domain.ErrChallengeNotFound) {
		return summary, fmt.Errorf("reading latest challenge: %w", err)
	}

	if latest != nil {
		summary.ChallengeID = latest.ID

		if !latest.Expired(now) {
			c.logger.Debug("challenge still active",
				"challenge_id", latest.ID,
				"ends_at", latest.EndTime,
			)
			return summary, nil
		}

		// A settlement failure must not wedge the game: log it and keep
		// going so the next challenge is still created.
		rewarded, performed, err := c.settle(ctx, latest)
		if err != nil {
			c.logger.Error("settlement failed, continuing to challenge creation",
				"challenge_id", latest.ID,
				"error", err,
			)
		} else if performed {
			summary.Processed = true
			summary.Rewarded = rewarded
		}
	}

	created, err := c.createIfNeeded(ctx)
	if err != nil {
		return summary, err
	}
	if created != nil {
		summary.Processed = true
		summary.NewChallengeID = created.ID
	}
	return summary, nil
}

// settle ranks the finished board and distributes rewards. The sentinel
// check inside Distribute makes the whole step at-most-once.
func (c *Controller) settle(ctx context.Context, challenge *domain.Challenge) (int, bool, error) {
	scores, err := c.store.GetScores(ctx, challenge.ID)
	if err != nil {
		return 0, false, fmt.Errorf("reading scores: %w", err)
	}

	c.logger.Info("finishing challenge",
		"challenge_id", challenge.ID,
		"entries", len(scores),
	)

	// Zero entries is a valid state: settle with no rewards so the
	// sentinel still gets written and dispatch can close the batch.
	ranked := ranking.Rank(scores)
	return c.distributor.Distribute(ctx, challenge, ranked)
}

// createIfNeeded inserts the next challenge unless a live one already
// exists. The expiry re-check narrows the duplicate-creation window to
// the gap between read and insert; the worst case of two overlapping
// invocations is one extra challenge, not corrupted state.
func (c *Controller) createIfNeeded(ctx context.Context) (*domain.Challenge, error) {
	latest, err := c.store.GetLatestChallenge(ctx)
	if err != nil && !errors.Is(err, domain.ErrChallengeNotFound) {
		return nil, fmt.Errorf("re-reading latest challenge: %w", err)
	}
	if latest != nil && !latest.Expired(c.now()) {
		return nil, nil
	}

	letters, err := c.grids.GenerateAll()
	if err != nil {
		return nil, fmt.Errorf("generating grids: %w", err)
	}

	endTime := domain.NextMidnightUTC(c.now())
	created, err := c.store.CreateChallenge(ctx, letters, endTime)
	if err != nil {
		// Fatal for this invocation; the next trigger retries.
		return nil, fmt.Errorf("creating challenge: %w", err)
	}

	c.logger.Info("new challenge created",
		"challenge_id", created.ID,
		"ends_at", created.EndTime,
	)

	if c.announcer != nil {
		c.announcer.AnnounceChallenge(ctx, created)
	}
	return created, nil
}
