// clue-duel-system/services/round_service.go
package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"clue-duel-system/catalog"
	"clue-duel-system/models"
	"clue-duel-system/store"
)

// RoundService creates and advances rounds. Both peers call these entry
// points when their local flow reaches the matching step; the transactions
// are written so the second caller always lands on a no-op.
type RoundService struct {
	Store   store.Store
	Catalog *catalog.Catalog
	Clock   clockwork.Clock
}

func NewRoundService(s store.Store, c *catalog.Catalog, clock clockwork.Clock) *RoundService {
	return &RoundService{Store: s, Catalog: c, Clock: clock}
}

// EnsureRound creates round `number` for the room if it does not exist yet:
// picks a subject not used earlier in this match, rolls one rarity per seat,
// and appends the subject to the room's used list. Idempotent under races —
// the existence check and the unique (room, number) index both stop a
// second creation, so the subject picked first wins and never changes.
func (s *RoundService) EnsureRound(ctx context.Context, roomID string, number int) error {
	return s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		if _, err := tx.Round(roomID, number); err == nil {
			return nil // peer already created it
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusInProgress {
			return nil
		}

		exclude := make(map[string]bool)
		for _, id := range room.UsedSubjects() {
			exclude[id] = true
		}
		subject := s.Catalog.PickWeightedRandom(exclude)

		round := &models.Round{
			ID:          uuid.NewString(),
			RoomID:      roomID,
			Number:      number,
			SubjectID:   subject.ID,
			HostRarity:  s.Catalog.PickRarity(),
			GuestRarity: s.Catalog.PickRarity(),
		}
		if err := tx.CreateRound(round); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return nil
			}
			return err
		}

		log.Printf("🎲 Room %s: round %d started with subject %s", roomID, number, subject.ID)

		room.AddUsedSubject(subject.ID)
		room.LastActionAt = s.Clock.Now()
		return tx.SaveRoom(room)
	})
}

// AdvanceRound moves the room from round `completed` to the next one.
// Only fires when the room is still on that round and its results are
// settled, so two peers advancing together bump the counter exactly once.
func (s *RoundService) AdvanceRound(ctx context.Context, roomID string, completed int) error {
	return s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusInProgress {
			return nil
		}
		if room.CurrentRound != completed {
			return nil // already advanced by the other peer
		}

		round, err := tx.Round(roomID, completed)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if !round.ResultsProcessed {
			return nil // never advance past an unsettled round
		}

		room.CurrentRound = completed + 1
		room.LastActionAt = s.Clock.Now()
		return tx.SaveRoom(room)
	})
}
