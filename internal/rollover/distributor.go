package rollover

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wordforge/challenge-service/internal/domain"
)

// BonusForRank returns the reward amount for a final placement: 3/2/1 for
// the podium, nothing below it.
func BonusForRank(rank int) int {
	switch rank {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	default:
		return 0
	}
}

// Distributor applies rewards to player balances and queues the in-game
// win notifications. Distribution runs at most once per challenge: the
// settlement sentinel is claimed before any balance is touched, and losing
// the claim turns the whole call into a no-op.
type Distributor struct {
	store  Store
	logger *slog.Logger
}

// NewDistributor creates a reward distributor
func NewDistributor(store Store, logger *slog.Logger) *Distributor {
	return &Distributor{
		store:  store,
		logger: logger,
	}
}

// Distribute credits the top three of a ranked board and enqueues their
// daily_win notifications. It returns the number of rewarded players and
// whether this call performed the distribution. A concurrent or earlier
// settlement of the same challenge is reported as (0, false, nil).
func (d *Distributor) Distribute(ctx context.Context, challenge *domain.Challenge, ranked []domain.RankedEntry) (int, bool, error) {
	acquired, err := d.store.TryAcquireSentinel(ctx, domain.SettlementSentinel(challenge.ID))
	if err != nil {
		return 0, false, fmt.Errorf("acquiring settlement sentinel: %w", err)
	}
	if !acquired {
		d.logger.Info("challenge already settled, skipping distribution",
			"challenge_id", challenge.ID,
		)
		return 0, false, nil
	}

	gameDate := challenge.GameDate()
	rewarded := 0

	for _, entry := range ranked {
		bonus := BonusForRank(entry.Rank)
		if bonus == 0 {
			// Ranks only grow down the board; nobody below gets a reward.
			break
		}

		credited, err := d.store.IncrementBonuses(ctx, entry.PlayerID, bonus)
		if err != nil {
			d.logger.Error("failed to credit bonuses",
				"player_id", entry.PlayerID,
				"challenge_id", challenge.ID,
				"error", err,
			)
			continue
		}
		if !credited {
			d.logger.Warn("winner has no account row, skipping reward",
				"player_id", entry.PlayerID,
				"challenge_id", challenge.ID,
			)
			continue
		}

		if err := d.store.IncrementPlacement(ctx, entry.PlayerID, entry.Rank); err != nil {
			d.logger.Error("failed to increment placement counter",
				"player_id", entry.PlayerID,
				"rank", entry.Rank,
				"error", err,
			)
		}

		payload := domain.DailyWinPayload(entry.Rank, entry.Score, bonus, gameDate)
		if err := d.store.EnqueueNotification(ctx, entry.PlayerID, domain.NotificationTypeDailyWin, payload); err != nil {
			d.logger.Error("failed to enqueue win notification",
				"player_id", entry.PlayerID,
				"error", err,
			)
		}

		rewarded++
	}

	d.logger.Info("rewards distributed",
		"challenge_id", challenge.ID,
		"players", len(ranked),
		"rewarded", rewarded,
	)
	return rewarded, true, nil
}
