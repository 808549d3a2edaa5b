// clue-duel-system/services/profile_service_test.go
package services

import (
	"context"
	"testing"
)

func TestProfileZeroValueForNewPlayer(t *testing.T) {
	f := newFixture(t)
	profiles := NewProfileService(f.store)

	p, err := profiles.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if p.PlayerID != "nobody" || p.GamesPlayed != 0 {
		t.Fatalf("profile = %+v, want empty stats", p)
	}
}

func TestHeadToHeadSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profiles := NewProfileService(f.store)

	// Two matches: host wins one, then forfeits one.
	room := f.liveRoom(t, "host", "guest")
	setHealth(t, f, room.ID, 100, 5)
	seedGuesses(t, f, room.ID, 1, strPtr("right"), true, strPtr("wrong"), false)
	if err := f.scores.ResolveRound(ctx, room.ID, 1); err != nil {
		t.Fatal(err)
	}

	room2 := f.liveRoom(t, "host", "guest")
	if err := f.match.Forfeit(ctx, room2.ID, "host"); err != nil {
		t.Fatal(err)
	}

	h2h, err := profiles.HeadToHead(ctx, "guest", "host")
	if err != nil {
		t.Fatal(err)
	}
	if h2h.TotalMatches != 2 || h2h.Wins != 1 || h2h.OpponentWins != 1 {
		t.Fatalf("head-to-head = %+v, want 1-1 of 2", h2h)
	}

	// Both orderings resolve to the same record.
	flipped, err := profiles.HeadToHead(ctx, "host", "guest")
	if err != nil {
		t.Fatal(err)
	}
	if flipped.Wins != 1 || flipped.OpponentWins != 1 {
		t.Fatalf("flipped head-to-head = %+v", flipped)
	}
}

func TestHeadToHeadUnplayedPair(t *testing.T) {
	f := newFixture(t)
	profiles := NewProfileService(f.store)

	h2h, err := profiles.HeadToHead(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if h2h.TotalMatches != 0 {
		t.Fatalf("head-to-head = %+v, want zeroed", h2h)
	}
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profiles := NewProfileService(f.store)

	// guest beats host twice, host beats guest once.
	for _, winner := range []string{"guest", "guest", "host"} {
		room := f.liveRoom(t, "host", "guest")
		loser := "host"
		if winner == "host" {
			loser = "guest"
		}
		if err := f.match.Forfeit(ctx, room.ID, loser); err != nil {
			t.Fatal(err)
		}
	}

	top, err := profiles.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("leaderboard size = %d, want 2", len(top))
	}
	if top[0].PlayerID != "guest" || top[0].Wins != 2 {
		t.Fatalf("top entry = %+v, want guest with 2 wins", top[0])
	}
}
