// clue-duel-system/services/flow_test.go
package services

import (
	"context"
	"testing"
	"time"

	"clue-duel-system/models"
	"clue-duel-system/store"
)

func (f *fixture) newFlow(roomID, playerID string) *RoundFlow {
	flow := NewRoundFlow(f.store, f.rounds, f.scores, f.match, f.catalog, nil, f.clock, roomID, playerID)
	flow.ctx = context.Background()
	return flow
}

// snapshotOf builds the snapshot a watch stream would deliver right now.
func (f *fixture) snapshotOf(t *testing.T, roomID string) store.Snapshot {
	t.Helper()
	room, err := f.store.GetRoom(context.Background(), roomID)
	if err != nil {
		t.Fatal(err)
	}
	snap := store.Snapshot{Room: *room}
	round, err := f.store.GetRound(context.Background(), roomID, room.CurrentRound)
	if err == nil {
		snap.Round = round
	}
	return snap
}

func drainEvents(flow *RoundFlow) []FlowEvent {
	var out []FlowEvent
	for {
		select {
		case ev := <-flow.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func hasState(events []FlowEvent, state FlowState) bool {
	for _, ev := range events {
		if ev.Type == "state" && ev.State == state {
			return true
		}
	}
	return false
}

func TestRoundSettleDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	early := now.Add(-5 * time.Second)
	old := now.Add(-ReplyWindow - time.Second)
	g := "guess"

	tests := []struct {
		name  string
		round *models.Round
		want  bool
	}{
		{"no round yet", nil, false},
		{"no guesses", &models.Round{}, false},
		{"one guess inside window", &models.Round{HostGuess: &g, ReplyTimerStartedAt: &early}, false},
		{"one guess window expired", &models.Round{HostGuess: &g, ReplyTimerStartedAt: &old}, true},
		{"both submitted", &models.Round{HostGuess: &g, GuestGuess: &g, ReplyTimerStartedAt: &early}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundSettleDue(tt.round, now); got != tt.want {
				t.Errorf("RoundSettleDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := "guess"
	live := models.Room{Status: models.RoomStatusInProgress}
	both := &models.Round{HostGuess: &g, GuestGuess: &g}

	if got := Transition(FlowPlaying, store.Snapshot{Room: live, Round: both}, now); got != FlowFinalizing {
		t.Fatalf("Transition = %s, want finalizing", got)
	}
	if got := Transition(FlowPlaying, store.Snapshot{Room: live}, now); got != FlowPlaying {
		t.Fatalf("Transition = %s, want playing to hold", got)
	}
	if got := Transition(FlowReveal, store.Snapshot{Room: live, Round: both}, now); got != FlowReveal {
		t.Fatalf("Transition = %s, reveal is timer-driven and must hold", got)
	}
	done := models.Room{Status: models.RoomStatusCompleted}
	if got := Transition(FlowPlaying, store.Snapshot{Room: done, Round: both}, now); got != FlowPlaying {
		t.Fatalf("Transition = %s, completed rooms are handled by the runner", got)
	}
}

func TestReplyDeadline(t *testing.T) {
	if d := ReplyDeadline(nil); d != nil {
		t.Fatal("nil round has no deadline")
	}
	if d := ReplyDeadline(&models.Round{}); d != nil {
		t.Fatal("unanchored round has no deadline")
	}
	anchor := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := ReplyDeadline(&models.Round{ReplyTimerStartedAt: &anchor})
	if d == nil || !d.Equal(anchor.Add(ReplyWindow)) {
		t.Fatalf("deadline = %v, want anchor+%v", d, ReplyWindow)
	}
}

func TestFlowCountdownIntoPlaying(t *testing.T) {
	f := newFixture(t)
	room := f.liveRoom(t, "host", "guest")
	flow := f.newFlow(room.ID, "host")

	// First snapshot before the round record exists: round 1 countdown.
	snap := f.snapshotOf(t, room.ID)
	snap.Round = nil
	if flow.onSnapshot(snap) {
		t.Fatal("flow ended prematurely")
	}
	if !hasState(drainEvents(flow), FlowCountdown) {
		t.Fatal("expected countdown state on first snapshot")
	}

	f.clock.Advance(CountdownDelay)
	awaitState(t, flow, FlowPlaying)
}

func TestFlowHintsKeepPace(t *testing.T) {
	f := newFixture(t)
	room := f.liveRoom(t, "host", "guest")
	flow := f.newFlow(room.ID, "host")

	flow.onSnapshot(f.snapshotOf(t, room.ID))
	events := drainEvents(flow)
	if !hasState(events, FlowPlaying) {
		t.Fatal("flow attaching mid-round goes straight to playing")
	}
	hints := countType(events, "hint")
	if hints != 1 {
		t.Fatalf("hints at start = %d, want the first one immediately", hints)
	}

	f.clock.Advance(HintInterval)
	awaitType(t, flow, "hint", 1)
}

func TestFlowRevealAndResult(t *testing.T) {
	f := newFixture(t)
	room := f.liveRoom(t, "host", "guest")
	flow := f.newFlow(room.ID, "host")

	seedGuesses(t, f, room.ID, 1, strPtr("a"), true, strPtr("b"), true)

	// Snapshot with both guesses in: playing collapses into finalizing.
	if flow.onSnapshot(f.snapshotOf(t, room.ID)) {
		t.Fatal("flow ended prematurely")
	}
	if !hasState(drainEvents(flow), FlowFinalizing) {
		t.Fatal("expected finalizing once both guesses are in")
	}

	f.clock.Advance(FinalizeDelay)
	events := awaitState(t, flow, FlowReveal)
	events = append(events, awaitType(t, flow, "reveal_step", 1)...)
	if countType(events, "reveal_step") != 1 {
		t.Fatal("first reveal step fires with the state change")
	}

	f.clock.Advance(3 * RevealStepDelay)
	awaitType(t, flow, "reveal_step", 3)

	f.clock.Advance(RevealStepDelay)
	awaitState(t, flow, FlowResult)

	// Settlement runs off the state machine goroutine; wait for it.
	waitFor(t, func() bool {
		round, err := f.store.GetRound(context.Background(), room.ID, 1)
		return err == nil && round.ResultsProcessed
	})

	f.clock.Advance(ResultCountdown)
	waitFor(t, func() bool {
		got, err := f.store.GetRoom(context.Background(), room.ID)
		return err == nil && got.CurrentRound == 2
	})
}

func TestFlowMatchOver(t *testing.T) {
	f := newFixture(t)
	room := f.liveRoom(t, "host", "guest")
	flow := f.newFlow(room.ID, "host")

	if err := f.match.Forfeit(context.Background(), room.ID, "guest"); err != nil {
		t.Fatal(err)
	}
	if done := flow.onSnapshot(f.snapshotOf(t, room.ID)); !done {
		t.Fatal("completed room should end the flow")
	}
	events := drainEvents(flow)
	found := false
	for _, ev := range events {
		if ev.Type == "match_over" {
			found = true
			if ev.Data["winner_id"] != "host" {
				t.Fatalf("match_over winner = %v, want host", ev.Data["winner_id"])
			}
		}
	}
	if !found {
		t.Fatal("expected a match_over event")
	}
}

// awaitState consumes events until the given state change arrives,
// returning everything consumed along the way.
func awaitState(t *testing.T, flow *RoundFlow, state FlowState) []FlowEvent {
	t.Helper()
	var out []FlowEvent
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-flow.Events():
			out = append(out, ev)
			if ev.Type == "state" && ev.State == state {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s (saw %v)", state, out)
		}
	}
}

// awaitType consumes events until n of the given type have arrived.
func awaitType(t *testing.T, flow *RoundFlow, typ string, n int) []FlowEvent {
	t.Helper()
	var out []FlowEvent
	deadline := time.After(2 * time.Second)
	for countType(out, typ) < n {
		select {
		case ev := <-flow.Events():
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %d %q events (saw %v)", n, typ, out)
		}
	}
	return out
}

func countType(events []FlowEvent, typ string) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
