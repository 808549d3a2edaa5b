package models

// PlayerProfile tracks cumulative duel results for one player (denormalized
// for cheap leaderboard reads). Mutated only inside the scoring transaction
// or the forfeit path.
type PlayerProfile struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID string `gorm:"uniqueIndex;not null" json:"player_id"` // links to profile service

	GamesPlayed int64 `json:"games_played" gorm:"default:0"`
	Wins        int64 `json:"wins" gorm:"default:0"`
	Losses      int64 `json:"losses" gorm:"default:0"`

	// WinStreak resets to zero on any loss or draw.
	WinStreak int64 `json:"win_streak" gorm:"default:0"`

	// PeriodWins is the ranking counter scoped to PeriodKey (ISO week); it
	// rolls over lazily whenever a result lands in a new period.
	PeriodKey  string `gorm:"type:varchar(16)" json:"period_key"`
	PeriodWins int64  `json:"period_wins" gorm:"default:0"`

	Timestamps
}

// RollPeriod resets the period win counter when the result being recorded
// falls in a different period than the last one seen.
func (p *PlayerProfile) RollPeriod(key string) {
	if p.PeriodKey != key {
		p.PeriodKey = key
		p.PeriodWins = 0
	}
}
