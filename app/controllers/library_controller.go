package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/library"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/usercontext"
)

// LibraryController serves the caller's favorites and cart.
type LibraryController struct {
	library *library.Service
}

func NewLibraryController(svc *library.Service) *LibraryController {
	return &LibraryController{library: svc}
}

type cartItemRequest struct {
	GameID uint   `json:"game_id" validate:"required"`
	Kind   string `json:"kind" validate:"required"`
	Weeks  int    `json:"weeks" validate:"min=0"`
}

func (lc *LibraryController) HandleListFavorites(c *fiber.Ctx) error {
	games, err := lc.library.ListFavorites(usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	role := usercontext.GetRole(c)
	out := make([]gameResponse, 0, len(games))
	for _, g := range games {
		out = append(out, toGameResponse(g, role))
	}
	return c.JSON(fiber.Map{"favorites": out})
}

func (lc *LibraryController) HandleAddFavorite(c *fiber.Ctx) error {
	gameID, err := parseIDParam(c, "gameId")
	if err != nil {
		return respondError(c, err)
	}
	created, err := lc.library.AddFavorite(usercontext.GetUserID(c), gameID)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"ok": true, "favorite": true})
}

func (lc *LibraryController) HandleToggleFavorite(c *fiber.Ctx) error {
	gameID, err := parseIDParam(c, "gameId")
	if err != nil {
		return respondError(c, err)
	}
	on, err := lc.library.ToggleFavorite(usercontext.GetUserID(c), gameID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "favorite": on})
}

func (lc *LibraryController) HandleRemoveFavorite(c *fiber.Ctx) error {
	gameID, err := parseIDParam(c, "gameId")
	if err != nil {
		return respondError(c, err)
	}
	if err := lc.library.RemoveFavorite(usercontext.GetUserID(c), gameID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (lc *LibraryController) HandleGetCart(c *fiber.Ctx) error {
	cart, err := lc.library.GetCart(usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cart)
}

func (lc *LibraryController) HandleAddToCart(c *fiber.Ctx) error {
	var req cartItemRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	item, err := lc.library.AddToCart(usercontext.Actor(c), req.GameID, req.Kind, req.Weeks)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (lc *LibraryController) HandleRemoveFromCart(c *fiber.Ctx) error {
	gameID, err := parseIDParam(c, "gameId")
	if err != nil {
		return respondError(c, err)
	}
	if err := lc.library.RemoveFromCart(usercontext.GetUserID(c), gameID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (lc *LibraryController) HandleClearCart(c *fiber.Ctx) error {
	if err := lc.library.ClearCart(usercontext.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
