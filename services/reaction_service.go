// clue-duel-system/services/reaction_service.go
package services

import (
	"context"
	"errors"
	"sync"

	"clue-duel-system/models"
	"clue-duel-system/store"
)

// FlowHub tracks the live flow sessions per room so room-scoped events can
// be fanned out to both players' streams.
type FlowHub struct {
	mu    sync.Mutex
	flows map[string]map[*RoundFlow]bool
}

func NewFlowHub() *FlowHub {
	return &FlowHub{flows: make(map[string]map[*RoundFlow]bool)}
}

func (h *FlowHub) Attach(f *RoundFlow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.flows[f.RoomID]
	if !ok {
		set = make(map[*RoundFlow]bool)
		h.flows[f.RoomID] = set
	}
	set[f] = true
}

func (h *FlowHub) Detach(f *RoundFlow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.flows[f.RoomID]
	if !ok {
		return
	}
	delete(set, f)
	if len(set) == 0 {
		delete(h.flows, f.RoomID)
	}
}

func (h *FlowHub) Broadcast(roomID string, ev FlowEvent) {
	h.mu.Lock()
	targets := make([]*RoundFlow, 0, 2)
	for f := range h.flows[roomID] {
		targets = append(targets, f)
	}
	h.mu.Unlock()
	for _, f := range targets {
		f.Deliver(ev)
	}
}

var allowedReactions = map[string]bool{
	"👏": true,
	"😂": true,
	"😮": true,
	"😭": true,
	"🔥": true,
	"🤝": true,
}

var ErrUnknownReaction = errors.New("reaction not in the allowed set")

// ReactionService fans emoji reactions out to both players. Reactions are
// ephemeral: they ride the event streams and are never persisted.
type ReactionService struct {
	Store store.Store
	Hub   *FlowHub
}

func NewReactionService(s store.Store, hub *FlowHub) *ReactionService {
	return &ReactionService{Store: s, Hub: hub}
}

func (s *ReactionService) React(ctx context.Context, roomID, playerID, emoji string) error {
	if !allowedReactions[emoji] {
		return ErrUnknownReaction
	}
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsPlayer(playerID) {
		return ErrNotInRoom
	}
	if room.Status != models.RoomStatusInProgress {
		return ErrMatchNotLive
	}
	s.Hub.Broadcast(roomID, FlowEvent{Type: "reaction", Data: map[string]interface{}{
		"player_id": playerID,
		"emoji":     emoji,
	}})
	return nil
}
