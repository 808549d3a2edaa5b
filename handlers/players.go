// handlers/players.go
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"clue-duel-system/middleware"
	"clue-duel-system/services"
)

// PlayerHandler serves the read side: profiles, leaderboard, head-to-head.
type PlayerHandler struct {
	Profiles *services.ProfileService
}

func SetupPlayerRoutes(app *fiber.App, h *PlayerHandler) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/players/me/profile", h.MyProfile)
	secured.Get("/players/me/head-to-head/:opponent", h.HeadToHead)
	secured.Get("/players/:id/profile", h.Profile)
	secured.Get("/leaderboard", h.Leaderboard)
}

func (h *PlayerHandler) MyProfile(c *fiber.Ctx) error {
	profile, err := h.Profiles.Profile(c.Context(), middleware.PlayerID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

func (h *PlayerHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.Profiles.Profile(c.Context(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

func (h *PlayerHandler) Leaderboard(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	top, err := h.Profiles.Leaderboard(c.Context(), limit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"entries": top})
}

func (h *PlayerHandler) HeadToHead(c *fiber.Ctx) error {
	h2h, err := h.Profiles.HeadToHead(c.Context(), middleware.PlayerID(c), c.Params("opponent"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(h2h)
}
