// clue-duel-system/services/round_service_test.go
package services

import (
	"context"
	"sync"
	"testing"
)

func TestEnsureRoundCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.liveRoom(t, "host", "guest")

	round, err := f.store.GetRound(ctx, room.ID, 1)
	if err != nil {
		t.Fatalf("round 1 should exist after start: %v", err)
	}
	if round.SubjectID == "" {
		t.Fatal("round needs a subject")
	}
	if round.HostRarity == "" || round.GuestRarity == "" {
		t.Fatal("both seats need a rarity roll")
	}
	if round.ResultsProcessed {
		t.Fatal("fresh round must not be processed")
	}
	firstSubject := round.SubjectID

	// Second call (the other peer arriving) must not reroll the subject.
	if err := f.rounds.EnsureRound(ctx, room.ID, 1); err != nil {
		t.Fatal(err)
	}
	round, _ = f.store.GetRound(ctx, room.ID, 1)
	if round.SubjectID != firstSubject {
		t.Fatalf("subject changed from %s to %s on repeat call", firstSubject, round.SubjectID)
	}

	got, _ := f.store.GetRoom(ctx, room.ID)
	if used := got.UsedSubjects(); len(used) != 1 || used[0] != firstSubject {
		t.Fatalf("used subjects = %v, want exactly [%s]", used, firstSubject)
	}
}

func TestEnsureRoundConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.liveRoom(t, "host", "guest")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.rounds.EnsureRound(ctx, room.ID, 2); err != nil {
				t.Errorf("ensure: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := f.store.GetRoom(ctx, room.ID)
	if used := got.UsedSubjects(); len(used) != 2 {
		t.Fatalf("used subjects = %v, want 2 entries after 2 rounds", used)
	}
}

func TestEnsureRoundExcludesUsedSubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.liveRoom(t, "host", "guest")

	seen := map[string]bool{}
	for n := 1; n <= 10; n++ {
		if err := f.rounds.EnsureRound(ctx, room.ID, n); err != nil {
			t.Fatal(err)
		}
		round, err := f.store.GetRound(ctx, room.ID, n)
		if err != nil {
			t.Fatal(err)
		}
		if seen[round.SubjectID] {
			t.Fatalf("subject %s repeated at round %d", round.SubjectID, n)
		}
		seen[round.SubjectID] = true
	}
}

func TestAdvanceRoundRequiresSettledRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.liveRoom(t, "host", "guest")

	if err := f.rounds.AdvanceRound(ctx, room.ID, 1); err != nil {
		t.Fatal(err)
	}
	got, _ := f.store.GetRoom(ctx, room.ID)
	if got.CurrentRound != 1 {
		t.Fatalf("advanced past unsettled round: current = %d", got.CurrentRound)
	}

	seedGuesses(t, f, room.ID, 1, strPtr("a"), true, strPtr("b"), true)
	if err := f.scores.ResolveRound(ctx, room.ID, 1); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.rounds.AdvanceRound(ctx, room.ID, 1); err != nil {
				t.Errorf("advance: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ = f.store.GetRoom(ctx, room.ID)
	if got.CurrentRound != 2 {
		t.Fatalf("current round = %d, want exactly 2 after racing advances", got.CurrentRound)
	}
}
