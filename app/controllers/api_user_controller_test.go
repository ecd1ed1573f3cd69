package controllers

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository/repositorytest"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestGetMe(t *testing.T) {
	repos, store := repositorytest.New()
	expires := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	id := store.AddUser(models.User{Name: "Player", Email: "player@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_MONTHLY, PremiumAutoRenew: true, PremiumExpiresAt: &expires})
	uc := NewUserController(repos.User, repos.Notification)

	app := fiber.New()
	app.Get("/me", asUser(id, models.ROLE_PREMIUM), uc.HandleGetMe)
	app.Get("/ghost/me", asUser(404, models.ROLE_FREE), uc.HandleGetMe)

	status, body := doJSON(t, app, "GET", "/me", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.ROLE_PREMIUM, body["role"])
	plan := body["plan"].(map[string]interface{})
	assert.Equal(t, models.PLAN_MONTHLY, plan["name"])
	assert.Equal(t, "2026-04-15T12:00:00Z", plan["expires_at"])
	assert.Equal(t, false, plan["lifetime"])
	ent := body["entitlements"].(map[string]interface{})
	assert.Equal(t, true, ent["premium_games"])
	assert.Equal(t, float64(4), ent["max_rental_weeks"])

	status, _ = doJSON(t, app, "GET", "/ghost/me", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestNotifications(t *testing.T) {
	repos, store := repositorytest.New()
	store.AddNotification(models.Notification{UserID: 3, Type: models.NotificationTypePlanExpired, Title: "Premium expired"})
	read := store.AddNotification(models.Notification{UserID: 3, Type: models.NotificationTypeSystem, Title: "Welcome", IsRead: true})
	other := store.AddNotification(models.Notification{UserID: 4, Type: models.NotificationTypeSystem, Title: "Hello"})
	uc := NewUserController(repos.User, repos.Notification)

	app := fiber.New()
	me := app.Group("/me", asUser(3, models.ROLE_FREE))
	me.Get("/notifications", uc.HandleListNotifications)
	me.Post("/notifications/:id/read", uc.HandleMarkNotificationRead)

	status, body := doJSON(t, app, "GET", "/me/notifications", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["notifications"], 2)

	status, body = doJSON(t, app, "GET", "/me/notifications?unread=true", nil)
	require.Equal(t, fiber.StatusOK, status)
	items := body["notifications"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Premium expired", items[0].(map[string]interface{})["title"])

	status, _ = doJSON(t, app, "POST", "/me/notifications/"+itoa(read)+"/read", nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	// another user's notification is invisible
	status, _ = doJSON(t, app, "POST", "/me/notifications/"+itoa(other)+"/read", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
