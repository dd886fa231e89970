package domain

import "time"

// PlayerAccount holds a player's bonus balances and daily-placement
// counters. The profile API owns the rest of the account; the reward
// distributor only ever increments these fields.
type PlayerAccount struct {
	PlayerID      int64     `json:"player_id"`
	Username      string    `json:"username"`
	BonusTime     int       `json:"bonus_time"`
	BonusHint     int       `json:"bonus_hint"`
	BonusSwap     int       `json:"bonus_swap"`
	BonusWildcard int       `json:"bonus_wildcard"`
	Daily1Place   int       `json:"daily_1_place"`
	Daily2Place   int       `json:"daily_2_place"`
	Daily3Place   int       `json:"daily_3_place"`
	UpdatedAt     time.Time `json:"updated_at"`
}
