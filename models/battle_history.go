package models

// BattleHistory accumulates head-to-head results for one unordered pair of
// players. The row is keyed by the canonical pair key so both clients upsert
// the same record; it is created lazily on the first completed match between
// a pair.
type BattleHistory struct {
	PairKey string `gorm:"primaryKey;type:varchar(128)" json:"pair_key"`

	// PlayerAID is the lexicographically smaller of the pair.
	PlayerAID string `gorm:"index;not null" json:"player_a_id"`
	PlayerBID string `gorm:"index;not null" json:"player_b_id"`

	AWins        int64 `json:"a_wins" gorm:"default:0"`
	BWins        int64 `json:"b_wins" gorm:"default:0"`
	TotalMatches int64 `json:"total_matches" gorm:"default:0"`

	Timestamps
}

// PairKey returns the canonical key for an unordered player pair: the
// lexicographically smaller ID first, so both clients compute the same key.
func PairKey(p1, p2 string) (key, a, b string) {
	if p2 < p1 {
		p1, p2 = p2, p1
	}
	return p1 + "|" + p2, p1, p2
}

// RecordResult applies one completed match. An empty winnerID records a draw
// (total only).
func (h *BattleHistory) RecordResult(winnerID string) {
	h.TotalMatches++
	switch winnerID {
	case h.PlayerAID:
		h.AWins++
	case h.PlayerBID:
		h.BWins++
	}
}

// WinsOf returns the stored win count attributed to the given player.
func (h *BattleHistory) WinsOf(playerID string) int64 {
	switch playerID {
	case h.PlayerAID:
		return h.AWins
	case h.PlayerBID:
		return h.BWins
	}
	return 0
}
