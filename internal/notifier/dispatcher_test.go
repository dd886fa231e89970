package notifier_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wordforge/challenge-service/internal/domain"
	"github.com/wordforge/challenge-service/internal/notifier"
)

type fakeStore struct {
	pending    *domain.Challenge
	scores     []domain.ScoreEntry
	marked     []int64
	markedSent int
	findErr    error
	markErr    error
}

func (f *fakeStore) FindUnsentSettledChallenge(ctx context.Context) (*domain.Challenge, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.pending == nil {
		return nil, domain.ErrChallengeNotFound
	}
	return f.pending, nil
}

func (f *fakeStore) GetScores(ctx context.Context, challengeID int64) ([]domain.ScoreEntry, error) {
	return f.scores, nil
}

func (f *fakeStore) MarkResultsSent(ctx context.Context, challengeID int64, sentCount int) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, challengeID)
	f.markedSent = sentCount
	return nil
}

type fakeMessenger struct {
	sent   []sentMessage
	failed map[int64]error
}

type sentMessage struct {
	chatID int64
	text   string
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	if err, ok := f.failed[chatID]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingChallenge() *domain.Challenge {
	return &domain.Challenge{
		ID:      3,
		EndTime: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	}
}

func TestDispatchNothingPending(t *testing.T) {
	store := &fakeStore{}
	messenger := &fakeMessenger{}
	d := notifier.NewDispatcher(store, messenger, 0, testLogger())

	summary, err := d.RunNotificationDispatch(context.Background())
	require.NoError(t, err)
	require.False(t, summary.Processed)
	require.Empty(t, messenger.sent)
	require.Empty(t, store.marked)
}

func TestDispatchSendsRankedResults(t *testing.T) {
	store := &fakeStore{
		pending: pendingChallenge(),
		scores: []domain.ScoreEntry{
			{PlayerID: 10, Score: 120},
			{PlayerID: 20, Score: 90},
			{PlayerID: 30, Score: 90},
			{PlayerID: 40, Score: 15},
		},
	}
	messenger := &fakeMessenger{}
	d := notifier.NewDispatcher(store, messenger, 0, testLogger())

	summary, err := d.RunNotificationDispatch(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Processed)
	require.Equal(t, int64(3), summary.ChallengeID)
	require.Equal(t, 4, summary.Sent)
	require.Zero(t, summary.Failed)

	require.Len(t, messenger.sent, 4)
	require.Equal(t, int64(10), messenger.sent[0].chatID)
	require.Contains(t, messenger.sent[0].text, "10.03.2026")
	require.Contains(t, messenger.sent[0].text, "1-е место")
	require.Contains(t, messenger.sent[0].text, "120 очков")
	require.Contains(t, messenger.sent[0].text, "ПОЗДРАВЛЯЕМ")

	// Tied players share second place and both get the podium message
	require.Contains(t, messenger.sent[1].text, "2-е место")
	require.Contains(t, messenger.sent[2].text, "2-е место")
	require.Contains(t, messenger.sent[2].text, "ПОЗДРАВЛЯЕМ")

	// Fourth place gets encouragement, not a reward confirmation
	require.Contains(t, messenger.sent[3].text, "4-е место")
	require.False(t, strings.Contains(messenger.sent[3].text, "ПОЗДРАВЛЯЕМ"))

	require.Equal(t, []int64{3}, store.marked)
	require.Equal(t, 4, store.markedSent)
}

func TestDispatchBestEffortPerRecipient(t *testing.T) {
	store := &fakeStore{
		pending: pendingChallenge(),
		scores: []domain.ScoreEntry{
			{PlayerID: 10, Score: 50},
			{PlayerID: 20, Score: 40},
			{PlayerID: 30, Score: 30},
		},
	}
	messenger := &fakeMessenger{
		failed: map[int64]error{20: errors.New("blocked by user")},
	}
	d := notifier.NewDispatcher(store, messenger, 0, testLogger())

	summary, err := d.RunNotificationDispatch(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Processed)
	require.Equal(t, 2, summary.Sent)
	require.Equal(t, 1, summary.Failed)

	// The batch still closes, recording only the successful sends
	require.Equal(t, []int64{3}, store.marked)
	require.Equal(t, 2, store.markedSent)
}

func TestDispatchMarkFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		pending: pendingChallenge(),
		scores:  []domain.ScoreEntry{{PlayerID: 10, Score: 50}},
		markErr: errors.New("connection lost"),
	}
	messenger := &fakeMessenger{}
	d := notifier.NewDispatcher(store, messenger, 0, testLogger())

	summary, err := d.RunNotificationDispatch(context.Background())
	require.Error(t, err)
	require.False(t, summary.Processed)
}

func TestDispatchStoreError(t *testing.T) {
	store := &fakeStore{findErr: errors.New("connection lost")}
	d := notifier.NewDispatcher(store, &fakeMessenger{}, 0, testLogger())

	_, err := d.RunNotificationDispatch(context.Background())
	require.Error(t, err)
}

func TestDispatchEmptyBoardClosesBatch(t *testing.T) {
	store := &fakeStore{pending: pendingChallenge()}
	messenger := &fakeMessenger{}
	d := notifier.NewDispatcher(store, messenger, 0, testLogger())

	summary, err := d.RunNotificationDispatch(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Processed)
	require.Zero(t, summary.Sent)
	require.Empty(t, messenger.sent)
	require.Equal(t, []int64{3}, store.marked)
}
