package models

import (
	"encoding/json"
	"time"
)

// RoomStatus is the lifecycle stage of a duel room.
type RoomStatus string

const (
	RoomStatusLobby      RoomStatus = "lobby"
	RoomStatusInProgress RoomStatus = "in_progress"
	RoomStatusCompleted  RoomStatus = "completed"
)

// DrawReasonInactivity tags a room completed by the inactivity watchdog.
const DrawReasonInactivity = "inactivity"

// Room is the top-level record for one duel between two players.
// Both clients own it jointly; every mutation after creation goes through a
// store transaction.
type Room struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	HostID string `gorm:"index;not null" json:"host_id"`
	// GuestID stays nil until the second player joins the lobby.
	GuestID *string    `gorm:"index" json:"guest_id,omitempty"`
	Status  RoomStatus `gorm:"type:varchar(16);not null;default:'lobby'" json:"status"`

	StartingHealth int `gorm:"not null" json:"starting_health"`
	HostHealth     int `json:"host_health"`
	GuestHealth    int `json:"guest_health"`

	// CurrentRound starts at 1 and only ever advances by the guarded
	// round-advance transaction.
	CurrentRound int `gorm:"default:1" json:"current_round"`

	// UsedSubjectsJSON is a JSON array of subject IDs already played in this
	// match, so a subject never repeats within a match.
	UsedSubjectsJSON string `gorm:"type:text;default:'[]'" json:"-"`

	// LastActionAt is the anchor the inactivity watchdog compares against.
	LastActionAt time.Time  `json:"last_action_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`

	// Terminal fields, written once on completion. A nil WinnerID with
	// status completed signifies a draw.
	WinnerID    *string    `json:"winner_id,omitempty"`
	LoserID     *string    `json:"loser_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DrawReason  *string    `gorm:"type:varchar(32)" json:"draw_reason,omitempty"`

	Timestamps
}

// UsedSubjects decodes the used-subject set.
func (r *Room) UsedSubjects() []string {
	var ids []string
	if r.UsedSubjectsJSON == "" {
		return ids
	}
	_ = json.Unmarshal([]byte(r.UsedSubjectsJSON), &ids)
	return ids
}

// AddUsedSubject appends a subject ID to the used-subject set.
func (r *Room) AddUsedSubject(id string) {
	ids := append(r.UsedSubjects(), id)
	raw, _ := json.Marshal(ids)
	r.UsedSubjectsJSON = string(raw)
}

// IsPlayer reports whether the given player occupies a seat in this room.
func (r *Room) IsPlayer(playerID string) bool {
	if playerID == "" {
		return false
	}
	return playerID == r.HostID || (r.GuestID != nil && playerID == *r.GuestID)
}

// IsHost reports whether the given player is the host seat.
func (r *Room) IsHost(playerID string) bool {
	return playerID == r.HostID
}

// OpponentOf returns the other seat's player ID ("" if the seat is empty).
func (r *Room) OpponentOf(playerID string) string {
	if playerID == r.HostID {
		if r.GuestID != nil {
			return *r.GuestID
		}
		return ""
	}
	return r.HostID
}
