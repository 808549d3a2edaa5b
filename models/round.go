package models

import "time"

// SkipSentinel is the reserved guess value recorded when a player skips
// instead of answering. It always scores as neutral (0).
const SkipSentinel = "__skipped__"

// Round records a single guessing contest inside a room. Exactly one row
// exists per (room, number); the round initializer transaction enforces that
// against racing peers.
type Round struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	RoomID string `gorm:"not null;uniqueIndex:idx_rounds_room_number" json:"room_id"`
	Number int    `gorm:"not null;uniqueIndex:idx_rounds_room_number" json:"number"`

	// SubjectID never changes once the round record exists.
	SubjectID string `gorm:"not null" json:"subject_id"`

	// Cosmetic rarity tags, rolled independently per player at creation.
	HostRarity  string `gorm:"type:varchar(16)" json:"host_rarity"`
	GuestRarity string `gorm:"type:varchar(16)" json:"guest_rarity"`

	// Raw guess text per player; nil means not yet submitted, SkipSentinel
	// means the player explicitly skipped.
	HostGuess    *string `gorm:"type:varchar(280)" json:"host_guess,omitempty"`
	GuestGuess   *string `gorm:"type:varchar(280)" json:"guest_guess,omitempty"`
	HostCorrect  bool    `json:"host_correct"`
	GuestCorrect bool    `json:"guest_correct"`

	HostScore  int `json:"host_score"`
	GuestScore int `json:"guest_score"`

	// ReplyTimerStartedAt is set by whichever player guesses first; both
	// peers derive the same remaining reply time from this shared anchor.
	ReplyTimerStartedAt *time.Time `json:"reply_timer_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	// ResultsProcessed guards the scoring transaction: it transitions
	// false -> true exactly once per round.
	ResultsProcessed bool `gorm:"default:false" json:"results_processed"`

	Timestamps
}

// GuessOf returns the stored guess for the given seat.
func (r *Round) GuessOf(isHost bool) *string {
	if isHost {
		return r.HostGuess
	}
	return r.GuestGuess
}

// BothSubmitted reports whether both players have a recorded guess,
// counting an explicit skip as submitted.
func (r *Round) BothSubmitted() bool {
	return r.HostGuess != nil && r.GuestGuess != nil
}

// IsSkip reports whether a recorded guess is the skip sentinel.
func IsSkip(guess *string) bool {
	return guess != nil && *guess == SkipSentinel
}
