package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wordforge/challenge-service/internal/domain"
)

func TestChallengeExpired(t *testing.T) {
	end := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	c := &domain.Challenge{EndTime: end}

	require.False(t, c.Expired(end.Add(-time.Second)))
	require.True(t, c.Expired(end), "end time itself counts as expired")
	require.True(t, c.Expired(end.Add(time.Second)))
}

func TestGameDate(t *testing.T) {
	c := &domain.Challenge{EndTime: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, "10.03.2026", c.GameDate())

	// Month boundary
	c = &domain.Challenge{EndTime: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, "28.02.2026", c.GameDate())

	// Year boundary
	c = &domain.Challenge{EndTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, "31.12.2025", c.GameDate())
}

func TestNextMidnightUTC(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{
			now:  time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			// Exactly midnight rolls to the next day
			now:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			// Non-UTC input normalizes to UTC midnights
			now:  time.Date(2026, 3, 10, 23, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			now:  time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		got := domain.NextMidnightUTC(tt.now)
		require.True(t, tt.want.Equal(got), "now=%v got=%v", tt.now, got)
		require.True(t, got.After(tt.now), "next midnight must be strictly in the future")
	}
}

func TestSentinelKeys(t *testing.T) {
	require.Equal(t, "settlement:42", domain.SettlementSentinel(42))
	require.Equal(t, "results:42", domain.ResultsSentinel(42))
}

func TestDailyWinPayload(t *testing.T) {
	p := domain.DailyWinPayload(2, 85, 2, "10.03.2026")
	require.Equal(t, 2, p["rank"])
	require.Equal(t, 85, p["score"])
	require.Equal(t, 2, p["bonus_amount"])
	require.Equal(t, "10.03.2026", p["date"])
}
