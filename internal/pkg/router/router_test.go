package router

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository/repositorytest"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/library"
)

func newTestApp(t *testing.T, vars map[string]string) (*fiber.App, map[string]string) {
	t.Helper()
	saved := env.Env
	t.Cleanup(func() { env.Env = saved })
	env.Env = vars

	repos, store := repositorytest.New()
	store.AddGame(models.Game{Title: "Celeste", Plan: models.GAME_PLAN_FREE})

	keys := map[string]string{}
	for _, u := range []models.User{
		{Name: "Player", Email: "player@example.com", Role: models.ROLE_FREE},
		{Name: "Admin", Email: "admin@example.com", Role: models.ROLE_ADMIN},
	} {
		key, err := u.IssueAPIKey()
		require.NoError(t, err)
		store.AddUser(u)
		keys[u.Role] = key
	}

	app := fiber.New()
	InstallRouter(app, Dependencies{
		Repos:      repos,
		Billing:    billing.NewService(billingtest.New(), billing.DefaultConfig()),
		Catalog:    catalog.NewService(repos.Game),
		Library:    library.NewService(repos.Library, repos.Game),
		RecordView: func(uint) error { return nil },
	})
	return app, keys
}

func status(t *testing.T, app *fiber.App, method, path, apiKey string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRoutesAndGuards(t *testing.T) {
	app, keys := newTestApp(t, map[string]string{"API_DOCS_ENABLED": "false"})

	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/health", ""))
	assert.Equal(t, fiber.StatusNotFound, status(t, app, "GET", "/metrics", ""))

	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/games", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/games", keys[models.ROLE_FREE]))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "GET", "/api/v1/games", "pv_unknown"))

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "GET", "/api/v1/me/", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/me/cart", keys[models.ROLE_FREE]))

	assert.Equal(t, fiber.StatusForbidden, status(t, app, "GET", "/api/v1/admin/users", keys[models.ROLE_FREE]))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/admin/users", keys[models.ROLE_ADMIN]))
	assert.Equal(t, fiber.StatusServiceUnavailable, status(t, app, "POST", "/api/v1/admin/jobs/rating-sync", keys[models.ROLE_ADMIN]))
}

func TestMetricsRequireCredentials(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"API_DOCS_ENABLED": "false",
		"METRICS_USER":     "ops",
		"METRICS_PASSWORD": "secret",
	})

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "GET", "/metrics", ""))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.SetBasicAuth("ops", "secret")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPIRateLimit(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"API_DOCS_ENABLED": "false", "API_RATE_LIMIT": "2"})

	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/games", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/games", ""))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, "GET", "/api/v1/games", ""))

	// health is outside the limited group
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/health", ""))
}

func TestOpenAPIDocument(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))

	// every documented path is served below /api/v1
	app, keys := newTestApp(t, map[string]string{"API_DOCS_ENABLED": "false"})
	for path, role := range map[string]string{
		"/games":       models.ROLE_FREE,
		"/me/cart":     models.ROLE_FREE,
		"/admin/users": models.ROLE_ADMIN,
	} {
		require.NotNil(t, doc.Paths.Find(path), path)
		assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1"+path, keys[role]), path)
	}

	errorCodes := doc.Components.Schemas["Error"].Value.Properties["error"].Value.Enum
	for _, code := range []string{"not_found", "validation_failed", "rate_limited"} {
		assert.Contains(t, errorCodes, code)
	}
	assert.True(t, strings.HasPrefix(doc.Servers[0].URL, "/api/v1"))
}
