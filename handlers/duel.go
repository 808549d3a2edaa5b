// handlers/duel.go
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"clue-duel-system/catalog"
	"clue-duel-system/middleware"
	"clue-duel-system/models"
	"clue-duel-system/services"
	"clue-duel-system/store"
)

// DuelHandler exposes the room lifecycle and per-player duel streams.
type DuelHandler struct {
	Store     store.Store
	Match     *services.MatchService
	Rounds    *services.RoundService
	Scores    *services.ScoreService
	Guesses   *services.GuessService
	Reactions *services.ReactionService
	Catalog   *catalog.Catalog
	Unlocks   services.UnlockChecker
	Hub       *services.FlowHub
	Clock     clockwork.Clock
}

func SetupDuelRoutes(app *fiber.App, h *DuelHandler, authClient *services.AuthServiceClient) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/duel/rooms", h.CreateRoom)
	secured.Get("/duel/rooms/:id", h.GetRoom)
	secured.Post("/duel/rooms/:id/join", h.JoinRoom)
	secured.Post("/duel/rooms/:id/start", h.StartMatch)
	secured.Post("/duel/rooms/:id/guess", h.SubmitGuess)
	secured.Post("/duel/rooms/:id/skip", h.SubmitSkip)
	secured.Post("/duel/rooms/:id/forfeit", h.Forfeit)
	secured.Post("/duel/rooms/:id/react", h.React)

	// EventSource cannot send headers; the stream authenticates via query token.
	app.Get("/s/duel/rooms/:id/stream", middleware.SSEAuthMiddleware(authClient), h.Stream)
}

type createRoomRequest struct {
	StartingHealth int `json:"starting_health"`
}

func (h *DuelHandler) CreateRoom(c *fiber.Ctx) error {
	playerID := middleware.PlayerID(c)

	var req createRoomRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body", "cause": err.Error(),
			})
		}
	}

	room, err := h.Match.CreateRoom(c.Context(), playerID, req.StartingHealth)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(roomView(room, playerID))
}

func (h *DuelHandler) GetRoom(c *fiber.Ctx) error {
	playerID := middleware.PlayerID(c)
	room, err := h.Store.GetRoom(c.Context(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	view := roomView(room, playerID)
	if room.Status == models.RoomStatusInProgress {
		if round, err := h.Store.GetRound(c.Context(), room.ID, room.CurrentRound); err == nil {
			view["round"] = roundView(round, room.IsHost(playerID))
		}
	}
	return c.JSON(view)
}

func (h *DuelHandler) JoinRoom(c *fiber.Ctx) error {
	if err := h.Match.JoinRoom(c.Context(), c.Params("id"), middleware.PlayerID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"joined": true})
}

func (h *DuelHandler) StartMatch(c *fiber.Ctx) error {
	if err := h.Match.StartMatch(c.Context(), c.Params("id"), middleware.PlayerID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"started": true})
}

type guessRequest struct {
	Text string `json:"text"`
}

func (h *DuelHandler) SubmitGuess(c *fiber.Ctx) error {
	var req guessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body", "cause": err.Error(),
		})
	}
	if err := h.Guesses.SubmitGuess(c.Context(), c.Params("id"), middleware.PlayerID(c), req.Text); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"submitted": true})
}

func (h *DuelHandler) SubmitSkip(c *fiber.Ctx) error {
	if err := h.Guesses.SubmitSkip(c.Context(), c.Params("id"), middleware.PlayerID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"skipped": true})
}

func (h *DuelHandler) Forfeit(c *fiber.Ctx) error {
	if err := h.Match.Forfeit(c.Context(), c.Params("id"), middleware.PlayerID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"forfeited": true})
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

func (h *DuelHandler) React(c *fiber.Ctx) error {
	var req reactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body", "cause": err.Error(),
		})
	}
	if err := h.Reactions.React(c.Context(), c.Params("id"), middleware.PlayerID(c), req.Emoji); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"sent": true})
}

// Stream runs this player's duel flow and forwards its events as SSE.
func (h *DuelHandler) Stream(c *fiber.Ctx) error {
	playerID := middleware.PlayerID(c)
	roomID := c.Params("id")

	room, err := h.Store.GetRoom(c.Context(), roomID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !room.IsPlayer(playerID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not a player in this room",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	flow := services.NewRoundFlow(h.Store, h.Rounds, h.Scores, h.Match,
		h.Catalog, h.Unlocks, h.Clock, roomID, playerID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.Hub.Attach(flow)
		defer h.Hub.Detach(flow)

		go func() {
			if err := flow.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("SSE flow error for player %s room %s: %v", playerID, roomID, err)
			}
		}()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case ev, ok := <-flow.Events():
				if !ok {
					return
				}
				payload, _ := json.Marshal(ev)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-c.Context().Done():
				return
			}
		}
	})
	return nil
}

// roomView is the room as one player sees it: health relabelled into yours
// and the opponent's.
func roomView(room *models.Room, playerID string) fiber.Map {
	view := fiber.Map{
		"id":              room.ID,
		"status":          room.Status,
		"host_id":         room.HostID,
		"starting_health": room.StartingHealth,
		"current_round":   room.CurrentRound,
	}
	if room.GuestID != nil {
		view["guest_id"] = *room.GuestID
	}
	if room.IsPlayer(playerID) {
		yours, theirs := room.GuestHealth, room.HostHealth
		if room.IsHost(playerID) {
			yours, theirs = room.HostHealth, room.GuestHealth
		}
		view["your_health"] = yours
		view["opponent_health"] = theirs
	}
	if room.WinnerID != nil {
		view["winner_id"] = *room.WinnerID
	}
	if room.DrawReason != nil {
		view["draw_reason"] = *room.DrawReason
	}
	return view
}

// roundView deliberately omits the subject: the answer only leaves the
// server through hint and reveal events.
func roundView(round *models.Round, isHost bool) fiber.Map {
	yourGuess := round.GuestGuess
	theirGuess := round.HostGuess
	rarity := round.GuestRarity
	if isHost {
		yourGuess, theirGuess = round.HostGuess, round.GuestGuess
		rarity = round.HostRarity
	}
	view := fiber.Map{
		"number":             round.Number,
		"your_rarity":        rarity,
		"you_submitted":      yourGuess != nil,
		"opponent_submitted": theirGuess != nil,
		"settled":            round.ResultsProcessed,
	}
	if d := services.ReplyDeadline(round); d != nil {
		view["reply_deadline"] = d.UTC().Format(time.RFC3339)
	}
	return view
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrNotInRoom):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrEmptyGuess),
		errors.Is(err, services.ErrUnknownReaction):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrAlreadySubmitted),
		errors.Is(err, services.ErrRoundNotPlayable),
		errors.Is(err, services.ErrRoomNotJoinable),
		errors.Is(err, services.ErrRoomNotReady),
		errors.Is(err, services.ErrSelfJoin),
		errors.Is(err, services.ErrMatchNotLive):
		status = fiber.StatusConflict
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ Unhandled duel error: %v", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
