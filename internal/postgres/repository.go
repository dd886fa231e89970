package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wordforge/challenge-service/internal/config"
	"github.com/wordforge/challenge-service/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS challenges (
			id BIGSERIAL PRIMARY KEY,
			letters JSONB NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS daily_scores (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL,
			challenge_id BIGINT NOT NULL REFERENCES challenges(id),
			score INT NOT NULL DEFAULT 0,
			username TEXT,
			level_scores JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(player_id, challenge_id)
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			player_id BIGINT PRIMARY KEY,
			username TEXT,
			bonus_time INT NOT NULL DEFAULT 2,
			bonus_hint INT NOT NULL DEFAULT 2,
			bonus_swap INT NOT NULL DEFAULT 2,
			bonus_wildcard INT NOT NULL DEFAULT 2,
			daily_1_place INT NOT NULL DEFAULT 0,
			daily_2_place INT NOT NULL DEFAULT 0,
			daily_3_place INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sentinels (
			key TEXT PRIMARY KEY,
			sent_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_scores_challenge ON daily_scores(challenge_id, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_player ON notifications(player_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetLatestChallenge returns the challenge with the largest id, which is
// the active one by definition.
func (r *Repository) GetLatestChallenge(ctx context.Context) (*domain.Challenge, error) {
	query := `
		SELECT id, letters, end_time, created_at
		FROM challenges
		ORDER BY id DESC
		LIMIT 1
	`
	var c domain.Challenge
	err := r.pool.QueryRow(ctx, query).Scan(&c.ID, &c.Letters, &c.EndTime, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("getting latest challenge: %w", err)
	}
	return &c, nil
}

// GetChallenge retrieves a challenge by id
func (r *Repository) GetChallenge(ctx context.Context, challengeID int64) (*domain.Challenge, error) {
	query := `SELECT id, letters, end_time, created_at FROM challenges WHERE id = $1`
	var c domain.Challenge
	err := r.pool.QueryRow(ctx, query, challengeID).Scan(&c.ID, &c.Letters, &c.EndTime, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("getting challenge: %w", err)
	}
	return &c, nil
}

// CreateChallenge inserts a new challenge row and returns it with the
// assigned id. The insert is a single statement, so readers never observe
// a challenge without its letters.
func (r *Repository) CreateChallenge(ctx context.Context, letters domain.Letters, endTime time.Time) (*domain.Challenge, error) {
	query := `
		INSERT INTO challenges (letters, end_time)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	c := domain.Challenge{
		Letters: letters,
		EndTime: endTime,
	}
	err := r.pool.QueryRow(ctx, query, letters, endTime).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	return &c, nil
}

// GetScores returns all score entries for a challenge ordered by score
// descending. Ties keep insertion order (id ascending).
func (r *Repository) GetScores(ctx context.Context, challengeID int64) ([]domain.ScoreEntry, error) {
	query := `
		SELECT id, player_id, challenge_id, score, COALESCE(username, ''), level_scores, created_at
		FROM daily_scores
		WHERE challenge_id = $1
		ORDER BY score DESC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("getting scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.ScoreEntry
	for rows.Next() {
		var e domain.ScoreEntry
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.ChallengeID, &e.Score, &e.Username, &e.LevelScores, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning score entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetScore returns a single player's entry for a challenge
func (r *Repository) GetScore(ctx context.Context, playerID, challengeID int64) (*domain.ScoreEntry, error) {
	query := `
		SELECT id, player_id, challenge_id, score, COALESCE(username, ''), level_scores, created_at
		FROM daily_scores
		WHERE player_id = $1 AND challenge_id = $2
	`
	var e domain.ScoreEntry
	err := r.pool.QueryRow(ctx, query, playerID, challengeID).Scan(
		&e.ID, &e.PlayerID, &e.ChallengeID, &e.Score, &e.Username, &e.LevelScores, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("getting score: %w", err)
	}
	return &e, nil
}

// UpsertScore inserts or replaces a player's score for a challenge
func (r *Repository) UpsertScore(ctx context.Context, sub domain.ScoreSubmission) error {
	query := `
		INSERT INTO daily_scores (player_id, challenge_id, score, username, level_scores)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, challenge_id)
		DO UPDATE SET score = $3, username = $4, level_scores = COALESCE($5, daily_scores.level_scores)
	`
	_, err := r.pool.Exec(ctx, query, sub.PlayerID, sub.ChallengeID, sub.Score, sub.Username, sub.LevelScores)
	if err != nil {
		return fmt.Errorf("upserting score: %w", err)
	}
	return nil
}

// CountScores returns the number of entries for a challenge
func (r *Repository) CountScores(ctx context.Context, challengeID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_scores WHERE challenge_id = $1`, challengeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting scores: %w", err)
	}
	return count, nil
}

// EnsurePlayer creates the player row if it does not exist and refreshes
// the username.
func (r *Repository) EnsurePlayer(ctx context.Context, playerID int64, username string) error {
	query := `
		INSERT INTO players (player_id, username)
		VALUES ($1, $2)
		ON CONFLICT (player_id)
		DO UPDATE SET username = COALESCE(NULLIF($2, ''), players.username), updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.pool.Exec(ctx, query, playerID, username)
	if err != nil {
		return fmt.Errorf("ensuring player: %w", err)
	}
	return nil
}

// GetAccount retrieves a player's bonus balances and placement counters
func (r *Repository) GetAccount(ctx context.Context, playerID int64) (*domain.PlayerAccount, error) {
	query := `
		SELECT player_id, COALESCE(username, ''), bonus_time, bonus_hint, bonus_swap, bonus_wildcard,
		       daily_1_place, daily_2_place, daily_3_place, updated_at
		FROM players
		WHERE player_id = $1
	`
	var a domain.PlayerAccount
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&a.PlayerID, &a.Username, &a.BonusTime, &a.BonusHint, &a.BonusSwap, &a.BonusWildcard,
		&a.Daily1Place, &a.Daily2Place, &a.Daily3Place, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return &a, nil
}

// IncrementBonuses adds amount to all four bonus balances in one atomic
// update. Returns false if the player has no account row.
func (r *Repository) IncrementBonuses(ctx context.Context, playerID int64, amount int) (bool, error) {
	query := `
		UPDATE players
		SET bonus_time = bonus_time + $2,
		    bonus_hint = bonus_hint + $2,
		    bonus_swap = bonus_swap + $2,
		    bonus_wildcard = bonus_wildcard + $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE player_id = $1
	`
	tag, err := r.pool.Exec(ctx, query, playerID, amount)
	if err != nil {
		return false, fmt.Errorf("incrementing bonuses: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementPlacement bumps the win counter matching rank 1, 2 or 3
func (r *Repository) IncrementPlacement(ctx context.Context, playerID int64, rank int) error {
	var column string
	switch rank {
	case 1:
		column = "daily_1_place"
	case 2:
		column = "daily_2_place"
	case 3:
		column = "daily_3_place"
	default:
		return nil
	}
	query := fmt.Sprintf(
		`UPDATE players SET %s = %s + 1, updated_at = CURRENT_TIMESTAMP WHERE player_id = $1`,
		column, column,
	)
	if _, err := r.pool.Exec(ctx, query, playerID); err != nil {
		return fmt.Errorf("incrementing placement: %w", err)
	}
	return nil
}

// TryAcquireSentinel inserts the sentinel key, ignoring conflicts. Exactly
// one of any number of concurrent callers sees true: the unique constraint
// is the lock.
func (r *Repository) TryAcquireSentinel(ctx context.Context, key string) (bool, error) {
	query := `INSERT INTO sentinels (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return false, fmt.Errorf("acquiring sentinel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SentinelExists checks whether a sentinel key has been written
func (r *Repository) SentinelExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sentinels WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking sentinel: %w", err)
	}
	return exists, nil
}

// MarkResultsSent records that result messages for a challenge went out,
// with the number of successful sends. Idempotent on replay.
func (r *Repository) MarkResultsSent(ctx context.Context, challengeID int64, sentCount int) error {
	query := `
		INSERT INTO sentinels (key, sent_count, processed_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, domain.ResultsSentinel(challengeID), sentCount)
	if err != nil {
		return fmt.Errorf("marking results sent: %w", err)
	}
	return nil
}

// FindUnsentSettledChallenge returns the oldest challenge whose settlement
// sentinel exists but whose results sentinel does not.
func (r *Repository) FindUnsentSettledChallenge(ctx context.Context) (*domain.Challenge, error) {
	query := `
		SELECT c.id, c.letters, c.end_time, c.created_at
		FROM challenges c
		JOIN sentinels s ON s.key = 'settlement:' || c.id
		LEFT JOIN sentinels res ON res.key = 'results:' || c.id
		WHERE res.key IS NULL
		ORDER BY c.id ASC
		LIMIT 1
	`
	var c domain.Challenge
	err := r.pool.QueryRow(ctx, query).Scan(&c.ID, &c.Letters, &c.EndTime, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("finding unsent challenge: %w", err)
	}
	return &c, nil
}

// EnqueueNotification stores an in-game notification for a player
func (r *Repository) EnqueueNotification(ctx context.Context, playerID int64, notifType string, payload map[string]any) error {
	query := `INSERT INTO notifications (player_id, type, payload) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, playerID, notifType, payload)
	if err != nil {
		return fmt.Errorf("enqueueing notification: %w", err)
	}
	return nil
}

// GetNotifications returns all queued notifications for a player
func (r *Repository) GetNotifications(ctx context.Context, playerID int64) ([]domain.Notification, error) {
	query := `
		SELECT id, player_id, type, payload, created_at
		FROM notifications
		WHERE player_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("getting notifications: %w", err)
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.PlayerID, &n.Type, &n.Payload, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// DeleteNotification removes a consumed notification. Scoped to the player
// so one client cannot ack another's messages.
func (r *Repository) DeleteNotification(ctx context.Context, id, playerID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND player_id = $2`, id, playerID)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidRequest
	}
	return nil
}
