package domain

import "time"

// Notification types stored for the game client.
const (
	NotificationTypeDailyWin = "daily_win"
)

// Notification is an in-game message queued for a player. The reward
// distributor produces them; the client-facing API reads and deletes them.
type Notification struct {
	ID        int64          `json:"id"`
	PlayerID  int64          `json:"player_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DailyWinPayload builds the payload for a daily_win notification.
func DailyWinPayload(rank, score, bonusAmount int, date string) map[string]any {
	return map[string]any{
		"rank":         rank,
		"score":        score,
		"bonus_amount": bonusAmount,
		"date":         date,
	}
}
