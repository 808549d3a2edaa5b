// clue-duel-system/services/match_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"clue-duel-system/models"
	"clue-duel-system/store"
)

const (
	DefaultStartingHealth = 100

	// A room with no guess, skip, or round change for this long is
	// considered abandoned by both players.
	InactivityTimeout = 5 * time.Minute
)

var (
	ErrRoomNotJoinable = errors.New("room is not open for joining")
	ErrRoomNotReady    = errors.New("room does not have two players yet")
	ErrMatchNotLive    = errors.New("match is not in progress")
	ErrSelfJoin        = errors.New("cannot join your own room")
)

// MatchService owns the room lifecycle: create, join, start, forfeit, and
// inactivity expiry.
type MatchService struct {
	Store  store.Store
	Rounds *RoundService
	Scores *ScoreService
	Clock  clockwork.Clock
}

func NewMatchService(s store.Store, rounds *RoundService, scores *ScoreService, clock clockwork.Clock) *MatchService {
	return &MatchService{Store: s, Rounds: rounds, Scores: scores, Clock: clock}
}

// CreateRoom opens a lobby with the caller as host. startingHealth <= 0
// falls back to the default.
func (s *MatchService) CreateRoom(ctx context.Context, hostID string, startingHealth int) (*models.Room, error) {
	if startingHealth <= 0 {
		startingHealth = DefaultStartingHealth
	}
	room := &models.Room{
		ID:             uuid.NewString(),
		HostID:         hostID,
		Status:         models.RoomStatusLobby,
		StartingHealth: startingHealth,
		LastActionAt:   s.Clock.Now(),
	}
	if err := s.Store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	log.Printf("🏟️ Room %s created by %s (starting health %d)", room.ID, hostID, startingHealth)
	return room, nil
}

// JoinRoom seats the caller as guest. Only one guest can win the seat; the
// transaction re-checks that it is still empty.
func (s *MatchService) JoinRoom(ctx context.Context, roomID, playerID string) error {
	return s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusLobby || room.GuestID != nil {
			return ErrRoomNotJoinable
		}
		if room.HostID == playerID {
			return ErrSelfJoin
		}
		guest := playerID
		room.GuestID = &guest
		room.LastActionAt = s.Clock.Now()
		return tx.SaveRoom(room)
	})
}

// StartMatch moves a full lobby into play and creates round 1. Either player
// may start; a second call is a no-op error caught by the status check.
func (s *MatchService) StartMatch(ctx context.Context, roomID, playerID string) error {
	now := s.Clock.Now()
	err := s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if !room.IsPlayer(playerID) {
			return ErrNotInRoom
		}
		if room.Status != models.RoomStatusLobby {
			return ErrRoomNotJoinable
		}
		if room.GuestID == nil {
			return ErrRoomNotReady
		}
		room.Status = models.RoomStatusInProgress
		room.HostHealth = room.StartingHealth
		room.GuestHealth = room.StartingHealth
		room.CurrentRound = 1
		room.StartedAt = &now
		room.LastActionAt = now
		return tx.SaveRoom(room)
	})
	if err != nil {
		return err
	}
	return s.Rounds.EnsureRound(ctx, roomID, 1)
}

// Forfeit ends the match immediately with the opponent as winner. Health
// totals do not matter on this path.
func (s *MatchService) Forfeit(ctx context.Context, roomID, playerID string) error {
	now := s.Clock.Now()
	return s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if !room.IsPlayer(playerID) {
			return ErrNotInRoom
		}
		if room.Status != models.RoomStatusInProgress {
			return ErrMatchNotLive
		}
		winner := room.OpponentOf(playerID)
		loser := playerID
		log.Printf("🏳️ Room %s: %s forfeits, %s wins", roomID, loser, winner)
		if err := s.Scores.RecordMatchEnd(tx, room, &winner, &loser, now); err != nil {
			return err
		}
		room.LastActionAt = now
		return tx.SaveRoom(room)
	})
}

// ExpireIfInactive closes the room as a draw when neither player has acted
// within the timeout. No profile or history counters move on this path, so
// a repeat write of the same terminal fields is harmless and the check does
// not need a processed flag.
func (s *MatchService) ExpireIfInactive(ctx context.Context, roomID string) (bool, error) {
	now := s.Clock.Now()
	expired := false
	err := s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusInProgress {
			return nil
		}
		if now.Sub(room.LastActionAt) < InactivityTimeout {
			return nil
		}
		reason := models.DrawReasonInactivity
		room.Status = models.RoomStatusCompleted
		room.WinnerID = nil
		room.LoserID = nil
		room.DrawReason = &reason
		room.CompletedAt = &now
		expired = true
		log.Printf("💤 Room %s: expired for inactivity", roomID)
		return tx.SaveRoom(room)
	})
	return expired, err
}
