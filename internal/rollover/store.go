package rollover

import (
	"context"
	"time"

	"github.com/wordforge/challenge-service/internal/domain"
)

// Store is the durable state the rollover needs. *postgres.Repository
// implements it; tests use an in-memory fake. All idempotency guarantees
// come from the store: sentinel insertion is the only lock in the system.
type Store interface {
	GetLatestChallenge(ctx context.Context) (*domain.Challenge, error)
	CreateChallenge(ctx context.Context, letters domain.Letters, endTime time.Time) (*domain.Challenge, error)
	GetScores(ctx context.Context, challengeID int64) ([]domain.ScoreEntry, error)
	IncrementBonuses(ctx context.Context, playerID int64, amount int) (bool, error)
	IncrementPlacement(ctx context.Context, playerID int64, rank int) error
	EnqueueNotification(ctx context.Context, playerID int64, notifType string, payload map[string]any) error
	TryAcquireSentinel(ctx context.Context, key string) (bool, error)
}

// Announcer is notified after a new challenge becomes active, so caches
// and connected clients can pick it up. Failures are the implementation's
// problem; announcements are best-effort.
type Announcer interface {
	AnnounceChallenge(ctx context.Context, challenge *domain.Challenge)
}
