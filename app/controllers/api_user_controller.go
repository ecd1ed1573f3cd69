package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/entitlements"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/usercontext"
)

const maxNotificationPage = 100

// UserController serves the caller's account and notifications.
type UserController struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
}

func NewUserController(users repository.UserRepository, notifications repository.NotificationRepository) *UserController {
	return &UserController{users: users, notifications: notifications}
}

// HandleGetMe returns account and plan information for the authenticated user.
func (uc *UserController) HandleGetMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	account, err := uc.users.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.NotFound("user", userCtx.UserID))
		}
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"id":    account.ID,
		"name":  account.Name,
		"email": account.Email,
		"role":  account.Role,
		"plan": fiber.Map{
			"name":       account.PremiumPlan,
			"auto_renew": account.PremiumAutoRenew,
			"expires_at": formatTimePtr(account.PremiumExpiresAt),
			"lifetime":   account.HasLifetimePlan(),
		},
		"entitlements": fiber.Map{
			"premium_games":    entitlements.CanAccessGame(account.Role, models.GAME_PLAN_PREMIUM),
			"max_rental_weeks": entitlements.MaxRentalWeeks(account.Role),
		},
		"api_key_prefix": account.APIKeyPrefix,
		"last_seen_at":   formatTimePtr(account.LastSeenAt),
		"created_at":     account.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleListNotifications serves GET /me/notifications?unread=true&limit=
func (uc *UserController) HandleListNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	items, err := uc.notifications.ListByUser(usercontext.GetUserID(c), c.QueryBool("unread", false), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": items})
}

func (uc *UserController) HandleMarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ok, err := uc.notifications.MarkRead(usercontext.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return respondError(c, apperr.NotFound("notification", id))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
