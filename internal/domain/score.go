package domain

import "time"

// ScoreEntry is a player's result for one challenge. Entries are written by
// the game-play API while the challenge is active and become read-only input
// to settlement once it ends. Unique per (player_id, challenge_id).
type ScoreEntry struct {
	ID          int64          `json:"id"`
	PlayerID    int64          `json:"player_id"`
	ChallengeID int64          `json:"challenge_id"`
	Score       int            `json:"score"`
	Username    string         `json:"username"`
	LevelScores map[string]int `json:"level_scores,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RankedEntry is a score entry with its competitive rank assigned.
type RankedEntry struct {
	PlayerID int64  `json:"player_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// ScoreSubmission is a request to record a player's score for a challenge.
type ScoreSubmission struct {
	PlayerID    int64          `json:"player_id"`
	ChallengeID int64          `json:"challenge_id"`
	Score       int            `json:"score"`
	Username    string         `json:"username"`
	LevelScores map[string]int `json:"level_scores,omitempty"`
	GameID      string         `json:"game_id,omitempty"`
}

// BatchScoreSubmission represents multiple score submissions.
type BatchScoreSubmission struct {
	Scores []ScoreSubmission `json:"scores"`
}
