// clue-duel-system/services/helpers_test.go
package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/jonboulle/clockwork"

	"clue-duel-system/catalog"
	"clue-duel-system/models"
	"clue-duel-system/store"
)

type stubJudge struct {
	verdict bool
	err     error
	calls   int
}

func (j *stubJudge) Judge(ctx context.Context, correctName, userGuess string) (bool, error) {
	j.calls++
	return j.verdict, j.err
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

type fixture struct {
	store   *store.MemoryStore
	catalog *catalog.Catalog
	clock   *clockwork.FakeClock
	judge   *stubJudge
	rounds  *RoundService
	scores  *ScoreService
	guesses *GuessService
	match   *MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemoryStore(),
		catalog: testCatalog(t),
		clock:   clockwork.NewFakeClock(),
		judge:   &stubJudge{},
	}
	f.rounds = NewRoundService(f.store, f.catalog, f.clock)
	f.scores = NewScoreService(f.store, f.clock)
	f.guesses = NewGuessService(f.store, f.catalog, f.judge, f.clock)
	f.match = NewMatchService(f.store, f.rounds, f.scores, f.clock)
	return f
}

// liveRoom creates a room with host/guest seated and the match started, so
// round 1 exists.
func (f *fixture) liveRoom(t *testing.T, hostID, guestID string) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := f.match.CreateRoom(ctx, hostID, 0)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := f.match.JoinRoom(ctx, room.ID, guestID); err != nil {
		t.Fatalf("join room: %v", err)
	}
	if err := f.match.StartMatch(ctx, room.ID, hostID); err != nil {
		t.Fatalf("start match: %v", err)
	}
	room, err = f.store.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("reload room: %v", err)
	}
	return room
}

// seedGuesses writes both players' guesses onto a round directly, bypassing
// the guess service, so settlement tests control the inputs exactly.
func seedGuesses(t *testing.T, f *fixture, roomID string, number int,
	hostGuess *string, hostCorrect bool, guestGuess *string, guestCorrect bool) {
	t.Helper()
	err := f.store.Transact(context.Background(), roomID, func(tx store.Tx) error {
		round, err := tx.Round(roomID, number)
		if err != nil {
			return err
		}
		round.HostGuess = hostGuess
		round.HostCorrect = hostCorrect
		round.GuestGuess = guestGuess
		round.GuestCorrect = guestCorrect
		return tx.SaveRound(round)
	})
	if err != nil {
		t.Fatalf("seed guesses: %v", err)
	}
}

func setHealth(t *testing.T, f *fixture, roomID string, host, guest int) {
	t.Helper()
	err := f.store.Transact(context.Background(), roomID, func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		room.HostHealth = host
		room.GuestHealth = guest
		return tx.SaveRoom(room)
	})
	if err != nil {
		t.Fatalf("set health: %v", err)
	}
}

// currentSubjectName resolves the answer for the room's current round.
func (f *fixture) currentSubjectName(t *testing.T, roomID string, number int) string {
	t.Helper()
	round, err := f.store.GetRound(context.Background(), roomID, number)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	subject, ok := f.catalog.Get(round.SubjectID)
	if !ok {
		t.Fatalf("subject %s not in catalog", round.SubjectID)
	}
	return subject.Name
}
