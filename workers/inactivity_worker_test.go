// workers/inactivity_worker_test.go
package workers

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"clue-duel-system/models"
	"clue-duel-system/services"
	"clue-duel-system/store"
)

func TestSweepExpiresOnlyStaleRooms(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	scores := services.NewScoreService(s, clock)
	match := services.NewMatchService(s, nil, scores, clock)
	worker := NewInactivityWorker(s, match, clock)

	guest := "guest"
	stale := &models.Room{
		ID: "stale", HostID: "host", GuestID: &guest,
		Status: models.RoomStatusInProgress, CurrentRound: 1,
		HostHealth: 50, GuestHealth: 50,
		LastActionAt: clock.Now(),
	}
	if err := s.CreateRoom(ctx, stale); err != nil {
		t.Fatal(err)
	}

	clock.Advance(services.InactivityTimeout + time.Minute)

	fresh := &models.Room{
		ID: "fresh", HostID: "host2", GuestID: &guest,
		Status: models.RoomStatusInProgress, CurrentRound: 1,
		HostHealth: 50, GuestHealth: 50,
		LastActionAt: clock.Now(),
	}
	if err := s.CreateRoom(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	worker.Sweep(ctx)

	got, _ := s.GetRoom(ctx, "stale")
	if got.Status != models.RoomStatusCompleted || got.DrawReason == nil {
		t.Fatalf("stale room = %+v, want completed inactivity draw", got)
	}

	got, _ = s.GetRoom(ctx, "fresh")
	if got.Status != models.RoomStatusInProgress {
		t.Fatalf("fresh room expired: %+v", got)
	}
}
