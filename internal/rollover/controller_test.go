package rollover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wordforge/challenge-service/internal/domain"
	"github.com/wordforge/challenge-service/internal/grid"
)

// fakeStore is an in-memory Store. Sentinel insertion is guarded by the
// same mutex as the rest of the state, mirroring the uniqueness guarantee
// the database gives.
type fakeStore struct {
	mu            sync.Mutex
	challenges    []*domain.Challenge
	scores        map[int64][]domain.ScoreEntry
	accounts      map[int64]*domain.PlayerAccount
	sentinels     map[string]bool
	notifications []domain.Notification
	nextID        int64
	sentinelErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scores:    make(map[int64][]domain.ScoreEntry),
		accounts:  make(map[int64]*domain.PlayerAccount),
		sentinels: make(map[string]bool),
	}
}

func (f *fakeStore) GetLatestChallenge(ctx context.Context) (*domain.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.challenges) == 0 {
		return nil, domain.ErrChallengeNotFound
	}
	c := *f.challenges[len(f.challenges)-1]
	return &c, nil
}

func (f *fakeStore) CreateChallenge(ctx context.Context, letters domain.Letters, endTime time.Time) (*domain.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &domain.Challenge{
		ID:        f.nextID,
		Letters:   letters,
		EndTime:   endTime,
		CreatedAt: time.Now(),
	}
	f.challenges = append(f.challenges, c)
	return c, nil
}

func (f *fakeStore) GetScores(ctx context.Context, challengeID int64) ([]domain.ScoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[challengeID], nil
}

func (f *fakeStore) IncrementBonuses(ctx context.Context, playerID int64, amount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[playerID]
	if !ok {
		return false, nil
	}
	acct.BonusTime += amount
	acct.BonusHint += amount
	acct.BonusSwap += amount
	acct.BonusWildcard += amount
	return true, nil
}

func (f *fakeStore) IncrementPlacement(ctx context.Context, playerID int64, rank int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[playerID]
	if !ok {
		return nil
	}
	switch rank {
	case 1:
		acct.Daily1Place++
	case 2:
		acct.Daily2Place++
	case 3:
		acct.Daily3Place++
	}
	return nil
}

func (f *fakeStore) EnqueueNotification(ctx context.Context, playerID int64, notifType string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, domain.Notification{
		PlayerID: playerID,
		Type:     notifType,
		Payload:  payload,
	})
	return nil
}

func (f *fakeStore) TryAcquireSentinel(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sentinelErr != nil {
		return false, f.sentinelErr
	}
	if f.sentinels[key] {
		return false, nil
	}
	f.sentinels[key] = true
	return true, nil
}

func (f *fakeStore) addPlayer(id int64) {
	f.accounts[id] = &domain.PlayerAccount{PlayerID: id}
}

func (f *fakeStore) addScore(challengeID, playerID int64, score int) {
	f.scores[challengeID] = append(f.scores[challengeID], domain.ScoreEntry{
		PlayerID:    playerID,
		ChallengeID: challengeID,
		Score:       score,
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(store Store, now time.Time) *Controller {
	c := NewController(store, grid.NewGenerator(rand.New(rand.NewSource(1))), testLogger())
	c.now = func() time.Time { return now }
	return c
}

func TestRolloverCreatesFirstChallenge(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	c := newTestController(store, now)

	summary, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Processed)
	require.Equal(t, int64(1), summary.NewChallengeID)

	created, err := store.GetLatestChallenge(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), created.EndTime)
	require.Len(t, created.Letters, 3)
	require.Len(t, created.Letters["6"], 6)
	require.Len(t, created.Letters["8"], 8)
	require.Len(t, created.Letters["10"], 10)
}

func TestRolloverNoopWhileActive(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	c := newTestController(store, now)

	_, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)

	summary, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.False(t, summary.Processed)
	require.Zero(t, summary.NewChallengeID)
	require.Len(t, store.challenges, 1)
	require.Empty(t, store.sentinels)
}

func TestRolloverSettlesAndCreatesNext(t *testing.T) {
	store := newFakeStore()
	endTime := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	challenge, err := store.CreateChallenge(context.Background(), domain.Letters{}, endTime)
	require.NoError(t, err)

	for _, p := range []struct {
		id    int64
		score int
	}{{1, 100}, {2, 100}, {3, 80}, {4, 10}} {
		store.addPlayer(p.id)
		store.addScore(challenge.ID, p.id, p.score)
	}

	now := endTime.Add(5 * time.Minute)
	c := newTestController(store, now)

	summary, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Processed)
	require.Equal(t, challenge.ID, summary.ChallengeID)
	require.Equal(t, 3, summary.Rewarded)
	require.NotZero(t, summary.NewChallengeID)

	// Tied winners both take rank 1 bonuses; the next player is rank 3
	require.Equal(t, 3, store.accounts[1].BonusTime)
	require.Equal(t, 3, store.accounts[1].BonusHint)
	require.Equal(t, 3, store.accounts[1].BonusSwap)
	require.Equal(t, 3, store.accounts[1].BonusWildcard)
	require.Equal(t, 1, store.accounts[1].Daily1Place)
	require.Equal(t, 3, store.accounts[2].BonusTime)
	require.Equal(t, 1, store.accounts[2].Daily1Place)
	require.Equal(t, 1, store.accounts[3].BonusTime)
	require.Equal(t, 1, store.accounts[3].Daily3Place)
	require.Zero(t, store.accounts[4].BonusTime)

	require.Len(t, store.notifications, 3)
	for _, n := range store.notifications {
		require.Equal(t, domain.NotificationTypeDailyWin, n.Type)
		require.Equal(t, "10.03.2026", n.Payload["date"])
	}

	require.True(t, store.sentinels[domain.SettlementSentinel(challenge.ID)])

	next, err := store.GetLatestChallenge(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), next.EndTime)
}

func TestRolloverSecondRunIsNoop(t *testing.T) {
	store := newFakeStore()
	endTime := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	challenge, err := store.CreateChallenge(context.Background(), domain.Letters{}, endTime)
	require.NoError(t, err)
	store.addPlayer(1)
	store.addScore(challenge.ID, 1, 50)

	now := endTime.Add(time.Minute)
	c := newTestController(store, now)

	first, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.True(t, first.Processed)

	second, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.False(t, second.Processed)
	require.Len(t, store.challenges, 2)
	require.Equal(t, 3, store.accounts[1].BonusTime)
}

func TestRolloverSettlesEmptyBoard(t *testing.T) {
	store := newFakeStore()
	endTime := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	challenge, err := store.CreateChallenge(context.Background(), domain.Letters{}, endTime)
	require.NoError(t, err)

	c := newTestController(store, endTime.Add(time.Minute))

	summary, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Processed)
	require.Zero(t, summary.Rewarded)
	require.True(t, store.sentinels[domain.SettlementSentinel(challenge.ID)])
	require.Empty(t, store.notifications)
	require.Len(t, store.challenges, 2)
}

func TestRolloverSkipsWinnerWithoutAccount(t *testing.T) {
	store := newFakeStore()
	endTime := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	challenge, err := store.CreateChallenge(context.Background(), domain.Letters{}, endTime)
	require.NoError(t, err)

	// Player 1 has a score but no account row
	store.addScore(challenge.ID, 1, 90)
	store.addPlayer(2)
	store.addScore(challenge.ID, 2, 70)

	c := newTestController(store, endTime.Add(time.Minute))

	summary, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Rewarded)
	require.Equal(t, 2, store.accounts[2].BonusTime)
	require.Equal(t, 1, store.accounts[2].Daily2Place)
	require.Len(t, store.notifications, 1)
	require.Equal(t, int64(2), store.notifications[0].PlayerID)
}

func TestRolloverSettlementFailureStillCreatesNext(t *testing.T) {
	store := newFakeStore()
	endTime := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	challenge, err := store.CreateChallenge(context.Background(), domain.Letters{}, endTime)
	require.NoError(t, err)
	store.addPlayer(1)
	store.addScore(challenge.ID, 1, 50)
	store.sentinelErr = errors.New("connection lost")

	c := newTestController(store, endTime.Add(time.Minute))

	summary, err := c.RunRolloverCheck(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.Rewarded)
	require.NotZero(t, summary.NewChallengeID, "creation must survive a settlement failure")
	require.Len(t, store.challenges, 2)
	require.Zero(t, store.accounts[1].BonusTime)

	// No settlement sentinel was written, so dispatch never picks up the
	// unsettled board
	require.Empty(t, store.sentinels)
}

func TestConcurrentRolloverSettlesOnce(t *testing.T) {
	store := newFakeStore()
	endTime := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	challenge, err := store.CreateChallenge(context.Background(), domain.Letters{}, endTime)
	require.NoError(t, err)
	store.addPlayer(1)
	store.addScore(challenge.ID, 1, 50)

	now := endTime.Add(time.Minute)

	var wg sync.WaitGroup
	performed := make([]bool, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newTestController(store, now)
			summary, err := c.RunRolloverCheck(context.Background())
			errs[i] = err
			performed[i] = summary.Rewarded > 0
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	settled := 0
	for _, p := range performed {
		if p {
			settled++
		}
	}
	require.Equal(t, 1, settled, "exactly one invocation must distribute rewards")
	require.Equal(t, 3, store.accounts[1].BonusTime, "bonuses credited exactly once")
	require.Len(t, store.notifications, 1)
}

func TestDistributeAlreadySettled(t *testing.T) {
	store := newFakeStore()
	challenge := &domain.Challenge{ID: 5, EndTime: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)}
	store.sentinels[domain.SettlementSentinel(challenge.ID)] = true
	store.addPlayer(1)

	d := NewDistributor(store, testLogger())
	rewarded, performed, err := d.Distribute(context.Background(), challenge, []domain.RankedEntry{
		{PlayerID: 1, Score: 10, Rank: 1},
	})
	require.NoError(t, err)
	require.False(t, performed)
	require.Zero(t, rewarded)
	require.Zero(t, store.accounts[1].BonusTime)
}

func TestBonusForRank(t *testing.T) {
	require.Equal(t, 3, BonusForRank(1))
	require.Equal(t, 2, BonusForRank(2))
	require.Equal(t, 1, BonusForRank(3))
	require.Zero(t, BonusForRank(4))
	require.Zero(t, BonusForRank(100))
}
