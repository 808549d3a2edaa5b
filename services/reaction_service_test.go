// clue-duel-system/services/reaction_service_test.go
package services

import (
	"context"
	"errors"
	"testing"
)

func TestReactBroadcastsToBothFlows(t *testing.T) {
	f := newFixture(t)
	room := f.liveRoom(t, "host", "guest")

	hub := NewFlowHub()
	hostFlow := f.newFlow(room.ID, "host")
	guestFlow := f.newFlow(room.ID, "guest")
	hub.Attach(hostFlow)
	hub.Attach(guestFlow)

	reactions := NewReactionService(f.store, hub)
	if err := reactions.React(context.Background(), room.ID, "host", "🔥"); err != nil {
		t.Fatal(err)
	}

	for _, flow := range []*RoundFlow{hostFlow, guestFlow} {
		events := drainEvents(flow)
		if countType(events, "reaction") != 1 {
			t.Fatalf("reaction events = %d, want 1", countType(events, "reaction"))
		}
		if events[0].Data["emoji"] != "🔥" || events[0].Data["player_id"] != "host" {
			t.Fatalf("reaction payload = %v", events[0].Data)
		}
	}

	hub.Detach(guestFlow)
	if err := reactions.React(context.Background(), room.ID, "guest", "👏"); err != nil {
		t.Fatal(err)
	}
	if countType(drainEvents(guestFlow), "reaction") != 0 {
		t.Fatal("detached flow must not receive reactions")
	}
	if countType(drainEvents(hostFlow), "reaction") != 1 {
		t.Fatal("attached flow should still receive reactions")
	}
}

func TestReactValidation(t *testing.T) {
	f := newFixture(t)
	room := f.liveRoom(t, "host", "guest")
	reactions := NewReactionService(f.store, NewFlowHub())
	ctx := context.Background()

	if err := reactions.React(ctx, room.ID, "host", "💣"); !errors.Is(err, ErrUnknownReaction) {
		t.Fatalf("err = %v, want ErrUnknownReaction", err)
	}
	if err := reactions.React(ctx, room.ID, "stranger", "🔥"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("err = %v, want ErrNotInRoom", err)
	}
	if err := f.match.Forfeit(ctx, room.ID, "host"); err != nil {
		t.Fatal(err)
	}
	if err := reactions.React(ctx, room.ID, "host", "🔥"); !errors.Is(err, ErrMatchNotLive) {
		t.Fatalf("err = %v, want ErrMatchNotLive", err)
	}
}
