package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/entitlements"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/usercontext"
)

// ViewRecorder counts a detail view of a game.
type ViewRecorder func(gameID uint) error

type GameController struct {
	catalog    *catalog.Service
	recordView ViewRecorder
}

func NewGameController(svc *catalog.Service, recordView ViewRecorder) *GameController {
	return &GameController{catalog: svc, recordView: recordView}
}

// gameResponse adds the caller specific lock flag to a catalog entry.
type gameResponse struct {
	models.Game
	Locked bool `json:"locked"`
}

func toGameResponse(g models.Game, role string) gameResponse {
	return gameResponse{Game: g, Locked: !entitlements.CanAccessGame(role, g.Plan)}
}

// HandleListGames serves GET /games?plan=&q=&offset=&limit=
func (gc *GameController) HandleListGames(c *fiber.Ctx) error {
	filter := repository.GameFilter{
		Plan:   c.Query("plan"),
		Query:  c.Query("q"),
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", catalog.DefaultPageSize),
	}
	page, err := gc.catalog.ListGames(filter)
	if err != nil {
		return respondError(c, err)
	}

	role := usercontext.GetRole(c)
	games := make([]gameResponse, 0, len(page.Games))
	for _, g := range page.Games {
		games = append(games, toGameResponse(g, role))
	}
	return c.JSON(fiber.Map{"games": games, "total": page.Total})
}

func (gc *GameController) HandleGetGame(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	g, err := gc.catalog.GetGame(id)
	if err != nil {
		return respondError(c, err)
	}

	if gc.recordView != nil {
		if err := gc.recordView(g.ID); err != nil {
			log.Warnf("[API] failed to count view of game %d: %v", g.ID, err)
		}
	}
	return c.JSON(toGameResponse(*g, usercontext.GetRole(c)))
}
