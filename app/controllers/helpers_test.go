package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/usercontext"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// asUser stands in for the API key middleware.
func asUser(id uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usercontext.Set(c, usercontext.UserContext{
			UserID:     id,
			Username:   "tester",
			Role:       role,
			IsLoggedIn: true,
			IsAdmin:    role == models.ROLE_ADMIN,
		})
		return c.Next()
	}
}

func newBillingService() (*billing.Service, *billingtest.Repository) {
	repo := billingtest.New()
	svc := billing.NewService(repo, billing.DefaultConfig()).WithClock(func() time.Time { return fixedNow })
	return svc, repo
}

// doJSON sends body (nil, []byte or a value to marshal) and decodes a JSON
// object response. Empty responses decode to an empty map.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
