// Package redis caches the live daily leaderboard and the active challenge
// so reads never touch PostgreSQL. Postgres stays the source of truth;
// settlement always ranks from the durable score table.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wordforge/challenge-service/internal/config"
	"github.com/wordforge/challenge-service/internal/domain"
)

// Keys live for two days: a challenge's board is only read while it is
// active or freshly settled.
const keyTTL = 48 * time.Hour

const activeChallengeKey = "challenge:active"

// Cache provides Redis-based daily leaderboard operations
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *Cache) Client() *redis.Client {
	return c.client
}

// scoresKey returns the sorted-set key for a challenge's scores
func (c *Cache) scoresKey(challengeID int64) string {
	return fmt.Sprintf("daily:%d:scores", challengeID)
}

// namesKey returns the hash key mapping player ids to usernames
func (c *Cache) namesKey(challengeID int64) string {
	return fmt.Sprintf("daily:%d:names", challengeID)
}

// SetScore records a player's current score for the active challenge
func (c *Cache) SetScore(ctx context.Context, challengeID, playerID int64, score int, username string) error {
	member := strconv.FormatInt(playerID, 10)
	scoresKey := c.scoresKey(challengeID)
	namesKey := c.namesKey(challengeID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, scoresKey, redis.Z{Score: float64(score), Member: member})
	pipe.HSet(ctx, namesKey, member, username)
	pipe.Expire(ctx, scoresKey, keyTTL)
	pipe.Expire(ctx, namesKey, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting score: %w", err)
	}
	return nil
}

// GetTopN returns the top n entries for a challenge, ranked competitively:
// tied scores share a rank and the next lower score takes its positional
// rank, matching how settlement ranks the same board.
func (c *Cache) GetTopN(ctx context.Context, challengeID int64, n int) ([]domain.RankedEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.scoresKey(challengeID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	members := make([]string, len(results))
	for i, z := range results {
		members[i] = z.Member.(string)
	}
	names, err := c.client.HMGet(ctx, c.namesKey(challengeID), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("getting usernames: %w", err)
	}

	entries := make([]domain.RankedEntry, len(results))
	currentRank := 1
	for i, z := range results {
		if i > 0 && z.Score < results[i-1].Score {
			currentRank = i + 1
		}
		playerID, _ := strconv.ParseInt(members[i], 10, 64)
		username := ""
		if s, ok := names[i].(string); ok {
			username = s
		}
		entries[i] = domain.RankedEntry{
			PlayerID: playerID,
			Username: username,
			Score:    int(z.Score),
			Rank:     currentRank,
		}
	}
	return entries, nil
}

// GetCount returns the number of players on a challenge's board
func (c *Cache) GetCount(ctx context.Context, challengeID int64) (int64, error) {
	count, err := c.client.ZCard(ctx, c.scoresKey(challengeID)).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// SetActiveChallenge caches the active challenge document
func (c *Cache) SetActiveChallenge(ctx context.Context, challenge *domain.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshaling challenge: %w", err)
	}
	if err := c.client.Set(ctx, activeChallengeKey, data, keyTTL).Err(); err != nil {
		return fmt.Errorf("caching active challenge: %w", err)
	}
	return nil
}

// GetActiveChallenge returns the cached active challenge, or
// domain.ErrChallengeNotFound on a cache miss.
func (c *Cache) GetActiveChallenge(ctx context.Context) (*domain.Challenge, error) {
	data, err := c.client.Get(ctx, activeChallengeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("getting active challenge: %w", err)
	}
	var challenge domain.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("unmarshaling challenge: %w", err)
	}
	return &challenge, nil
}

// WarmScores rebuilds a challenge board from durable entries, used on
// startup recovery.
func (c *Cache) WarmScores(ctx context.Context, challengeID int64, entries []domain.ScoreEntry) error {
	if len(entries) == 0 {
		return nil
	}

	scoresKey := c.scoresKey(challengeID)
	namesKey := c.namesKey(challengeID)

	pipe := c.client.Pipeline()
	for _, e := range entries {
		member := strconv.FormatInt(e.PlayerID, 10)
		pipe.ZAdd(ctx, scoresKey, redis.Z{Score: float64(e.Score), Member: member})
		pipe.HSet(ctx, namesKey, member, e.Username)
	}
	pipe.Expire(ctx, scoresKey, keyTTL)
	pipe.Expire(ctx, namesKey, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warming scores: %w", err)
	}
	return nil
}
