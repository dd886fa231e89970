// Package notifier delivers challenge results to players over the
// external messaging channel.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordforge/challenge-service/internal/domain"
	"github.com/wordforge/challenge-service/internal/ranking"
)

// Store is the durable state the dispatcher reads and marks.
type Store interface {
	FindUnsentSettledChallenge(ctx context.Context) (*domain.Challenge, error)
	GetScores(ctx context.Context, challengeID int64) ([]domain.ScoreEntry, error)
	MarkResultsSent(ctx context.Context, challengeID int64, sentCount int) error
}

// Messenger is the external rate-limited channel. Sends are best-effort;
// a failure only affects that recipient.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Dispatcher sends result messages for settled challenges. Batch selection
// is driven entirely by sentinel rows, so redundant invocations find
// nothing to do and a crash mid-batch is retried in full on the next run.
type Dispatcher struct {
	store     Store
	messenger Messenger
	sendDelay time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a notification dispatcher. sendDelay paces
// consecutive sends to respect the channel's rate limit; tests pass zero.
func NewDispatcher(store Store, messenger Messenger, sendDelay time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		messenger: messenger,
		sendDelay: sendDelay,
		logger:    logger,
	}
}

// RunNotificationDispatch finds the oldest settled challenge whose results
// have not gone out and messages every participant: a reward confirmation
// for the podium, encouragement for everyone else. The results sentinel is
// written after the batch with the count of successful sends, even when
// some recipients failed.
func (d *Dispatcher) RunNotificationDispatch(ctx context.Context) (domain.DispatchSummary, error) {
	var summary domain.DispatchSummary

	challenge, err := d.store.FindUnsentSettledChallenge(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			d.logger.Debug("no pending results to dispatch")
			return summary, nil
		}
		return summary, fmt.Errorf("finding pending results: %w", err)
	}
	summary.ChallengeID = challenge.ID

	scores, err := d.store.GetScores(ctx, challenge.ID)
	if err != nil {
		return summary, fmt.Errorf("reading scores: %w", err)
	}

	d.logger.Info("dispatching challenge results",
		"challenge_id", challenge.ID,
		"recipients", len(scores),
	)

	gameDate := challenge.GameDate()
	for i, entry := range ranking.Rank(scores) {
		text := resultMessage(gameDate, entry.Rank, entry.Score)
		if err := d.messenger.SendText(ctx, entry.PlayerID, text); err != nil {
			summary.Failed++
			d.logger.Warn("failed to send result message",
				"player_id", entry.PlayerID,
				"challenge_id", challenge.ID,
				"error", err,
			)
		} else {
			summary.Sent++
		}

		if d.sendDelay > 0 && i < len(scores)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(d.sendDelay):
			}
		}
	}

	if err := d.store.MarkResultsSent(ctx, challenge.ID, summary.Sent); err != nil {
		return summary, fmt.Errorf("marking results sent: %w", err)
	}

	summary.Processed = true
	d.logger.Info("result dispatch complete",
		"challenge_id", challenge.ID,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return summary, nil
}

func resultMessage(gameDate string, rank, score int) string {
	msg := fmt.Sprintf(
		"🏁 <b>Итоги Дневного испытания (%s)</b>\n\nВы заняли <b>%d-е место</b> с результатом %d очков!",
		gameDate, rank, score,
	)
	if rank <= 3 {
		msg += "\n\n🎉 ПОЗДРАВЛЯЕМ!\n🎁 Награда уже начислена!\n\n👏 Ждем вас в новом испытании!"
	} else {
		msg += "\n\n💥 Попробуйте свои силы сегодня!\n👏 Ждем вас в новом испытании!"
	}
	return msg
}
