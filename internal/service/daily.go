package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordforge/challenge-service/internal/config"
	"github.com/wordforge/challenge-service/internal/domain"
	"github.com/wordforge/challenge-service/internal/postgres"
	"github.com/wordforge/challenge-service/internal/ranking"
	"github.com/wordforge/challenge-service/internal/redis"
	"github.com/wordforge/challenge-service/internal/websocket"
)

// timeNow is swapped in tests
var timeNow = time.Now

// DailyService provides business logic for daily challenge operations.
// Writes go to PostgreSQL first, then to the Redis board; reads prefer
// Redis and fall back to PostgreSQL when the cache is cold.
type DailyService struct {
	postgres *postgres.Repository
	cache    *redis.Cache
	config   *config.DailyConfig
	logger   *slog.Logger
	hub      *websocket.Hub
}

// NewDailyService creates a new daily challenge service
func NewDailyService(
	pg *postgres.Repository,
	cache *redis.Cache,
	cfg *config.DailyConfig,
	logger *slog.Logger,
) *DailyService {
	return &DailyService{
		postgres: pg,
		cache:    cache,
		config:   cfg,
		logger:   logger,
	}
}

// SetHub attaches a websocket hub for live leaderboard broadcasts
func (s *DailyService) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// SubmitScore records a player's score for the active challenge. A zero
// ChallengeID resolves to the current challenge; submissions against an
// ended challenge are rejected.
func (s *DailyService) SubmitScore(ctx context.Context, submission domain.ScoreSubmission) error {
	if submission.PlayerID == 0 {
		return domain.ErrInvalidRequest
	}
	if submission.Score < 0 {
		return domain.ErrInvalidScore
	}

	challenge, err := s.resolveChallenge(ctx, submission.ChallengeID)
	if err != nil {
		return err
	}
	submission.ChallengeID = challenge.ID

	if err := s.postgres.EnsurePlayer(ctx, submission.PlayerID, submission.Username); err != nil {
		return fmt.Errorf("ensuring player: %w", err)
	}
	if err := s.postgres.UpsertScore(ctx, submission); err != nil {
		return fmt.Errorf("upserting score: %w", err)
	}

	// The durable write succeeded; cache and broadcast failures only
	// delay what readers see.
	if err := s.cache.SetScore(ctx, challenge.ID, submission.PlayerID, submission.Score, submission.Username); err != nil {
		s.logger.Warn("failed to update score in redis", "error", err)
	}

	s.broadcastUpdate(ctx, challenge.ID)
	return nil
}

// SubmitScoreBatch submits multiple scores, continuing past individual
// failures. The Kafka consumer delivers batches through here.
func (s *DailyService) SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) error {
	for _, submission := range batch.Scores {
		if err := s.SubmitScore(ctx, submission); err != nil {
			s.logger.Error("failed to submit score in batch",
				"player_id", submission.PlayerID,
				"challenge_id", submission.ChallengeID,
				"error", err,
			)
			// Continue processing other scores
		}
	}
	return nil
}

// resolveChallenge maps a submission's challenge id onto a live challenge
func (s *DailyService) resolveChallenge(ctx context.Context, challengeID int64) (*domain.Challenge, error) {
	challenge, err := s.GetActiveChallenge(ctx)
	if err != nil {
		return nil, err
	}
	if challengeID != 0 && challengeID != challenge.ID {
		// The referenced challenge is not the live one; it either never
		// existed or already ended.
		if _, err := s.postgres.GetChallenge(ctx, challengeID); err != nil {
			return nil, err
		}
		return nil, domain.ErrChallengeClosed
	}
	if challenge.Expired(timeNow()) {
		return nil, domain.ErrChallengeClosed
	}
	return challenge, nil
}

// GetActiveChallenge returns the latest challenge, reading through the
// cache and repopulating it on a miss.
func (s *DailyService) GetActiveChallenge(ctx context.Context) (*domain.Challenge, error) {
	challenge, err := s.cache.GetActiveChallenge(ctx)
	if err == nil {
		return challenge, nil
	}
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		s.logger.Warn("failed to read active challenge from redis", "error", err)
	}

	challenge, err = s.postgres.GetLatestChallenge(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetActiveChallenge(ctx, challenge); err != nil {
		s.logger.Warn("failed to cache active challenge", "error", err)
	}
	return challenge, nil
}

// GetLeaderboard returns the top entries and total player count for a
// challenge. A zero challengeID resolves to the latest challenge.
func (s *DailyService) GetLeaderboard(ctx context.Context, challengeID int64, limit int) ([]domain.RankedEntry, int64, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	if challengeID == 0 {
		challenge, err := s.GetActiveChallenge(ctx)
		if err != nil {
			return nil, 0, err
		}
		challengeID = challenge.ID
	}

	entries, err := s.cache.GetTopN(ctx, challengeID, limit)
	if err != nil {
		s.logger.Warn("failed to read leaderboard from redis", "error", err)
	}
	if len(entries) > 0 {
		count, err := s.cache.GetCount(ctx, challengeID)
		if err != nil {
			count = int64(len(entries))
		}
		return entries, count, nil
	}

	// Cold cache: rank from the durable table and rebuild the board
	scores, err := s.postgres.GetScores(ctx, challengeID)
	if err != nil {
		return nil, 0, fmt.Errorf("reading scores: %w", err)
	}
	if len(scores) == 0 {
		return nil, 0, nil
	}
	if err := s.cache.WarmScores(ctx, challengeID, scores); err != nil {
		s.logger.Warn("failed to warm score cache", "error", err)
	}

	ranked := ranking.Rank(scores)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, int64(len(scores)), nil
}

// GetPlayerScore returns a player's durable entry for a challenge
func (s *DailyService) GetPlayerScore(ctx context.Context, playerID, challengeID int64) (*domain.ScoreEntry, error) {
	if challengeID == 0 {
		challenge, err := s.GetActiveChallenge(ctx)
		if err != nil {
			return nil, err
		}
		challengeID = challenge.ID
	}
	return s.postgres.GetScore(ctx, playerID, challengeID)
}

// GetAccount returns a player's bonus balances and placement counters
func (s *DailyService) GetAccount(ctx context.Context, playerID int64) (*domain.PlayerAccount, error) {
	return s.postgres.GetAccount(ctx, playerID)
}

// GetNotifications returns a player's pending notifications
func (s *DailyService) GetNotifications(ctx context.Context, playerID int64) ([]domain.Notification, error) {
	return s.postgres.GetNotifications(ctx, playerID)
}

// AckNotification removes a delivered notification
func (s *DailyService) AckNotification(ctx context.Context, id, playerID int64) error {
	return s.postgres.DeleteNotification(ctx, id, playerID)
}

// AnnounceChallenge refreshes the cached active challenge and notifies
// connected clients. The rollover controller calls this after creating
// the next challenge; readers fall back to PostgreSQL if the cache
// refresh fails.
func (s *DailyService) AnnounceChallenge(ctx context.Context, challenge *domain.Challenge) {
	if err := s.cache.SetActiveChallenge(ctx, challenge); err != nil {
		s.logger.Warn("failed to cache new challenge", "error", err)
	}
	if s.hub != nil {
		s.hub.BroadcastChallengeCreated(challenge)
	}
}

// broadcastUpdate pushes the current top of the board to subscribers
func (s *DailyService) broadcastUpdate(ctx context.Context, challengeID int64) {
	if s.hub == nil {
		return
	}
	entries, err := s.cache.GetTopN(ctx, challengeID, 10)
	if err != nil {
		s.logger.Warn("failed to read leaderboard for broadcast", "error", err)
		return
	}
	count, err := s.cache.GetCount(ctx, challengeID)
	if err != nil {
		count = int64(len(entries))
	}
	s.hub.BroadcastLeaderboardUpdate(challengeID, entries, count)
}
