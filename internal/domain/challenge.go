package domain

import (
	"fmt"
	"time"
)

// GridSizes are the three puzzle sizes generated for every challenge.
var GridSizes = []int{6, 8, 10}

// Letters maps a grid size (as a string key, matching the stored JSON)
// to the ordered sequence of letters for that grid.
type Letters map[string][]string

// Challenge represents one day's instance of the word game. Exactly one
// challenge is active at any time: the one with the largest ID. Challenges
// are created by the rollover controller and immutable afterwards.
type Challenge struct {
	ID        int64     `json:"id"`
	Letters   Letters   `json:"letters"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the challenge has ended as of now.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.EndTime.After(now)
}

// GameDate returns the calendar date the challenge was played on,
// formatted dd.mm.yyyy. The end time is the UTC midnight after the game
// day, so the game date is one day earlier.
func (c *Challenge) GameDate() string {
	return c.EndTime.AddDate(0, 0, -1).UTC().Format("02.01.2006")
}

// NextMidnightUTC returns the first UTC midnight strictly after t.
func NextMidnightUTC(t time.Time) time.Time {
	u := t.UTC().AddDate(0, 0, 1)
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SettlementSentinel is the idempotency key recording that rewards for a
// challenge have been distributed.
func SettlementSentinel(challengeID int64) string {
	return fmt.Sprintf("settlement:%d", challengeID)
}

// ResultsSentinel is the idempotency key recording that result messages
// for a challenge have been dispatched.
func ResultsSentinel(challengeID int64) string {
	return fmt.Sprintf("results:%d", challengeID)
}

// RolloverSummary describes what a single rollover invocation did. Expected
// no-op conditions (challenge still active, already settled) are reported
// here, never as errors.
type RolloverSummary struct {
	Processed      bool  `json:"processed"`
	ChallengeID    int64 `json:"challenge_id,omitempty"`
	Rewarded       int   `json:"rewarded"`
	NewChallengeID int64 `json:"new_challenge_id,omitempty"`
}

// DispatchSummary describes what a single notification dispatch did.
type DispatchSummary struct {
	Processed   bool  `json:"processed"`
	ChallengeID int64 `json:"challenge_id,omitempty"`
	Sent        int   `json:"sent"`
	Failed      int   `json:"failed"`
}
