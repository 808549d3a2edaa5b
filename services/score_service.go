// clue-duel-system/services/score_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"clue-duel-system/models"
	"clue-duel-system/store"
)

const (
	PointsCorrect   = 10
	PointsIncorrect = -10
)

// GuessScore is the per-player score law. A skipped or never-submitted
// guess is worth zero, never a penalty.
func GuessScore(guess *string, correct bool) int {
	if guess == nil || models.IsSkip(guess) {
		return 0
	}
	if correct {
		return PointsCorrect
	}
	return PointsIncorrect
}

// RoundOutcome is the result of applying both scores to the room's health.
type RoundOutcome struct {
	HostScore   int
	GuestScore  int
	HostHealth  int
	GuestHealth int
	MatchOver   bool
	WinnerID    *string
	LoserID     *string
	Draw        bool
}

// ApplyScores computes new health values from a settled round. Only the
// lower-scoring player loses health, by the score difference, floored at 0.
func ApplyScores(room *models.Room, hostScore, guestScore int) RoundOutcome {
	out := RoundOutcome{
		HostScore:   hostScore,
		GuestScore:  guestScore,
		HostHealth:  room.HostHealth,
		GuestHealth: room.GuestHealth,
	}

	diff := hostScore - guestScore
	if diff > 0 {
		out.GuestHealth -= diff
	} else if diff < 0 {
		out.HostHealth += diff
	}
	if out.HostHealth < 0 {
		out.HostHealth = 0
	}
	if out.GuestHealth < 0 {
		out.GuestHealth = 0
	}

	if out.HostHealth > 0 && out.GuestHealth > 0 {
		return out
	}

	out.MatchOver = true
	switch {
	case out.HostHealth <= 0 && out.GuestHealth <= 0:
		out.Draw = true
	case out.GuestHealth <= 0:
		host := room.HostID
		out.WinnerID = &host
		out.LoserID = room.GuestID
	default:
		out.WinnerID = room.GuestID
		host := room.HostID
		out.LoserID = &host
	}
	return out
}

// PeriodKey identifies the weekly ranking window a timestamp falls in.
func PeriodKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// ScoreService settles rounds and records match results. All writes happen
// inside a single room transaction so that two peers racing to settle the
// same round produce exactly one state change.
type ScoreService struct {
	Store store.Store
	Clock clockwork.Clock
}

func NewScoreService(s store.Store, clock clockwork.Clock) *ScoreService {
	return &ScoreService{Store: s, Clock: clock}
}

// ResolveRound settles round `number` of the room: computes both scores,
// applies the health change, and finishes the match when a side hits zero.
// Safe to call from both peers; the processed flag makes repeats a no-op.
func (s *ScoreService) ResolveRound(ctx context.Context, roomID string, number int) error {
	now := s.Clock.Now()
	return s.Store.Transact(ctx, roomID, func(tx store.Tx) error {
		round, err := tx.Round(roomID, number)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if round.ResultsProcessed {
			return nil // other peer got here first
		}

		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusInProgress {
			return nil
		}

		hostScore := GuessScore(round.HostGuess, round.HostCorrect)
		guestScore := GuessScore(round.GuestGuess, round.GuestCorrect)
		out := ApplyScores(room, hostScore, guestScore)

		round.HostScore = out.HostScore
		round.GuestScore = out.GuestScore
		round.ResultsProcessed = true
		round.CompletedAt = &now

		room.HostHealth = out.HostHealth
		room.GuestHealth = out.GuestHealth
		room.LastActionAt = now

		if out.MatchOver {
			log.Printf("⚔️ Room %s: match over at round %d (host %d / guest %d hp)",
				roomID, number, out.HostHealth, out.GuestHealth)
			if err := s.RecordMatchEnd(tx, room, out.WinnerID, out.LoserID, now); err != nil {
				return err
			}
		}

		if err := tx.SaveRound(round); err != nil {
			return err
		}
		return tx.SaveRoom(room)
	})
}

// RecordMatchEnd moves the room to its terminal state and updates both
// players' profiles and the pair's head-to-head record. A nil winner means
// a draw: both players take a loss and lose their streak. Must run inside
// the caller's room transaction.
func (s *ScoreService) RecordMatchEnd(tx store.Tx, room *models.Room, winnerID, loserID *string, now time.Time) error {
	room.Status = models.RoomStatusCompleted
	room.WinnerID = winnerID
	room.LoserID = loserID
	room.CompletedAt = &now

	if room.GuestID == nil {
		return nil // never had an opponent, nothing to record
	}

	period := PeriodKey(now)
	for _, playerID := range []string{room.HostID, *room.GuestID} {
		profile, err := s.profileFor(tx, playerID)
		if err != nil {
			return err
		}
		profile.RollPeriod(period)
		profile.GamesPlayed++
		if winnerID != nil && *winnerID == playerID {
			profile.Wins++
			profile.WinStreak++
			profile.PeriodWins++
		} else {
			profile.Losses++
			profile.WinStreak = 0
		}
		if err := tx.SaveProfile(profile); err != nil {
			return err
		}
	}

	key, a, b := models.PairKey(room.HostID, *room.GuestID)
	history, err := tx.History(key)
	if errors.Is(err, store.ErrNotFound) {
		history = &models.BattleHistory{PairKey: key, PlayerAID: a, PlayerBID: b}
	} else if err != nil {
		return err
	}
	winner := ""
	if winnerID != nil {
		winner = *winnerID
	}
	history.RecordResult(winner)
	return tx.SaveHistory(history)
}

func (s *ScoreService) profileFor(tx store.Tx, playerID string) (*models.PlayerProfile, error) {
	profile, err := tx.Profile(playerID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.PlayerProfile{
			ID:       uuid.NewString(),
			PlayerID: playerID,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}
