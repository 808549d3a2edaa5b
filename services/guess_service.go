// clue-duel-system/services/guess_service.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"clue-duel-system/catalog"
	"clue-duel-system/models"
	"clue-duel-system/store"
	"clue-duel-system/utils"
)

const maxGuessLength = 120

var (
	ErrNotInRoom        = errors.New("player is not part of this room")
	ErrRoundNotPlayable = errors.New("round is not accepting guesses")
	ErrAlreadySubmitted = errors.New("guess already submitted for this round")
	ErrEmptyGuess       = errors.New("guess text is empty")
)

// GuessService records each player's one guess (or skip) per round. The
// correctness call to the judgment service happens outside the room
// transaction; only the write is transactional.
type GuessService struct {
	Store   store.Store
	Catalog *catalog.Catalog
	Judge   Judge
	Clock   clockwork.Clock
}

func NewGuessService(s store.Store, c *catalog.Catalog, judge Judge, clock clockwork.Clock) *GuessService {
	return &GuessService{Store: s, Catalog: c, Judge: judge, Clock: clock}
}

// SubmitGuess records a player's guess for the room's current round and
// judges it. Exact and token matches against the normalized subject name are
// accepted locally; anything else is deferred to the judgment service, whose
// failures count as incorrect rather than blocking the round.
func (s *GuessService) SubmitGuess(ctx context.Context, roomID, playerID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyGuess
	}
	if len(text) > maxGuessLength {
		text = text[:maxGuessLength]
	}

	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsPlayer(playerID) {
		return ErrNotInRoom
	}
	if room.Status != models.RoomStatusInProgress {
		return ErrRoundNotPlayable
	}

	round, err := s.Store.GetRound(ctx, roomID, room.CurrentRound)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoundNotPlayable
		}
		return err
	}
	if round.ResultsProcessed {
		return ErrRoundNotPlayable
	}
	if round.GuessOf(room.IsHost(playerID)) != nil {
		return ErrAlreadySubmitted
	}

	subject, ok := s.Catalog.Get(round.SubjectID)
	if !ok {
		return errors.New("round subject missing from catalog")
	}

	correct := utils.IsNameMatch(subject.Name, text)
	if !correct {
		verdict, err := s.Judge.Judge(ctx, subject.Name, text)
		if err != nil {
			log.Printf("⚠️ Room %s round %d: judgment unavailable, counting guess as incorrect: %v",
				roomID, round.Number, err)
		} else {
			correct = verdict
		}
	}

	return s.record(ctx, roomID, round.Number, playerID, &text, correct)
}

// SubmitSkip records a pass for the current round. Skips score zero and
// anchor the shared reply timer like a real guess does.
func (s *GuessService) SubmitSkip(ctx context.Context, roomID, playerID string) error {
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsPlayer(playerID) {
		return ErrNotInRoom
	}
	if room.Status != models.RoomStatusInProgress {
		return ErrRoundNotPlayable
	}
	sentinel := models.SkipSentinel
	return s.record(ctx, roomID, room.CurrentRound, playerID, &sentinel, false)
}

// record writes the guess inside the room transaction, re-checking the
// one-guess precondition against current state. The first submission of the
// round anchors the shared 15-second reply window.
func (s *GuessService) record(ctx context.Context, roomID string, number int, playerID string, guess *string, correct bool) error {
	now := s.Clock.Now()
	return s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		round, err := tx.Round(roomID, number)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoundNotPlayable
			}
			return err
		}
		if round.ResultsProcessed {
			return ErrRoundNotPlayable
		}

		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusInProgress || room.CurrentRound != number {
			return ErrRoundNotPlayable
		}

		isHost := room.IsHost(playerID)
		if round.GuessOf(isHost) != nil {
			return ErrAlreadySubmitted
		}

		if isHost {
			round.HostGuess = guess
			round.HostCorrect = correct
		} else {
			round.GuestGuess = guess
			round.GuestCorrect = correct
		}
		if round.ReplyTimerStartedAt == nil {
			anchor := now
			round.ReplyTimerStartedAt = &anchor
		}

		room.LastActionAt = now
		if err := tx.SaveRound(round); err != nil {
			return err
		}
		return tx.SaveRoom(room)
	})
}

// ReplyDeadline is when the opponent's reply window closes, or nil while no
// one has guessed yet.
func ReplyDeadline(round *models.Round) *time.Time {
	if round == nil || round.ReplyTimerStartedAt == nil {
		return nil
	}
	d := round.ReplyTimerStartedAt.Add(ReplyWindow)
	return &d
}
