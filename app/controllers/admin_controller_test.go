package controllers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository/repositorytest"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/jobqueue"
)

type fakeEnqueuer struct {
	jobs []jobqueue.Job
	err  error
}

func (f *fakeEnqueuer) EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	job := jobqueue.Job{ID: "job-" + itoa(uint(len(f.jobs)+1)), Type: jobType, Payload: payload}
	f.jobs = append(f.jobs, job)
	return &job, nil
}

func (f *fakeEnqueuer) GetJob(_ context.Context, jobID string) (*jobqueue.Job, error) {
	for i := range f.jobs {
		if f.jobs[i].ID == jobID {
			return &f.jobs[i], nil
		}
	}
	return nil, redis.Nil
}

func (f *fakeEnqueuer) GetJobStats(context.Context) (map[jobqueue.JobStatus]int64, error) {
	return map[jobqueue.JobStatus]int64{jobqueue.JobStatusPending: int64(len(f.jobs))}, nil
}

func (f *fakeEnqueuer) GetQueueSize(context.Context) (int64, error) {
	return int64(len(f.jobs)), nil
}

func (f *fakeEnqueuer) GetProcessingSize(context.Context) (int64, error) {
	return 0, nil
}

type adminFixture struct {
	app     *fiber.App
	billing *billingtest.Repository
	store   *repositorytest.Store
	jobs    *fakeEnqueuer
}

func newAdminFixture(t *testing.T, role string) adminFixture {
	t.Helper()
	svc, billingRepo := newBillingService()
	repos, store := repositorytest.New()
	jobs := &fakeEnqueuer{}
	ac := NewAdminController(svc, catalog.NewService(repos.Game), repos.User, jobs)

	app := fiber.New()
	admin := app.Group("/admin", asUser(1, role))
	admin.Post("/games", ac.HandleCreateGame)
	admin.Patch("/games/:id", ac.HandleUpdateGame)
	admin.Delete("/games/:id", ac.HandleDeleteGame)
	admin.Get("/users", ac.HandleListUsers)
	admin.Put("/users/:id/plan", ac.HandleAssignPlan)
	admin.Get("/users/:id/events", ac.HandleListUpgradeEvents)
	admin.Post("/users/:id/api-key", ac.HandleIssueAPIKey)
	admin.Post("/jobs/sweep", ac.HandleRunSweep)
	admin.Post("/jobs/rating-sync", ac.HandleEnqueueRatingSync)
	admin.Get("/jobs/stats", ac.HandleJobStats)
	admin.Get("/jobs/:jobId", ac.HandleGetJob)

	return adminFixture{app: app, billing: billingRepo, store: store, jobs: jobs}
}

func TestAdminGameCRUD(t *testing.T) {
	f := newAdminFixture(t, models.ROLE_ADMIN)

	status, body := doJSON(t, f.app, "POST", "/admin/games", fiber.Map{"title": "Hades", "plan": "premium", "purchase_price": "24.99", "rental_price": "2.00"})
	require.Equal(t, fiber.StatusCreated, status, body)
	id := uint(body["id"].(float64))
	assert.Equal(t, "24.99", body["purchase_price"])

	status, _ = doJSON(t, f.app, "POST", "/admin/games", fiber.Map{"title": ""})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, body = doJSON(t, f.app, "PATCH", "/admin/games/"+itoa(id), fiber.Map{"plan": "free"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "free", body["plan"])
	assert.Equal(t, models.GAME_PLAN_FREE, f.store.Game(id).Plan)

	status, body = doJSON(t, f.app, "PATCH", "/admin/games/"+itoa(id), fiber.Map{"plan": "free"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, body["message"], "no fields changed")

	status, _ = doJSON(t, f.app, "DELETE", "/admin/games/"+itoa(id), nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = doJSON(t, f.app, "DELETE", "/admin/games/"+itoa(id), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminOperationsRefuseNonAdmins(t *testing.T) {
	f := newAdminFixture(t, models.ROLE_PREMIUM)
	userID := f.billing.AddUser(models.User{Name: "Player", Email: "player@example.com", Role: models.ROLE_FREE})

	status, body := doJSON(t, f.app, "POST", "/admin/games", fiber.Map{"title": "Hades"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	status, _ = doJSON(t, f.app, "PUT", "/admin/users/"+itoa(userID)+"/plan", fiber.Map{"role": "premium", "plan": "monthly"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doJSON(t, f.app, "GET", "/admin/users/"+itoa(userID)+"/events", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, models.ROLE_FREE, f.billing.User(userID).Role)
}

func TestAdminAssignPlanAndEvents(t *testing.T) {
	f := newAdminFixture(t, models.ROLE_ADMIN)
	userID := f.billing.AddUser(models.User{Name: "Player", Email: "player@example.com", Role: models.ROLE_FREE})

	status, _ := doJSON(t, f.app, "PUT", "/admin/users/"+itoa(userID)+"/plan", fiber.Map{"role": "owner"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, body := doJSON(t, f.app, "PUT", "/admin/users/"+itoa(userID)+"/plan", fiber.Map{"role": "premium", "plan": "lifetime"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, models.ROLE_PREMIUM, body["role"])
	assert.Nil(t, body["expires_at"])

	status, body = doJSON(t, f.app, "PUT", "/admin/users/"+itoa(userID)+"/plan", fiber.Map{"role": "premium", "plan": "lifetime"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, body["message"], "plan already assigned")

	status, body = doJSON(t, f.app, "GET", "/admin/users/"+itoa(userID)+"/events?limit=10", nil)
	require.Equal(t, fiber.StatusOK, status)
	events := body["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, models.PLAN_LIFETIME, events[0].(map[string]interface{})["plan"])

	status, _ = doJSON(t, f.app, "GET", "/admin/users/404/events", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminUsersAndAPIKeys(t *testing.T) {
	f := newAdminFixture(t, models.ROLE_ADMIN)
	alice := f.store.AddUser(models.User{Name: "Alice", Email: "alice@example.com", Role: models.ROLE_FREE})
	f.store.AddUser(models.User{Name: "Bob", Email: "bob@example.com", Role: models.ROLE_PREMIUM})

	status, body := doJSON(t, f.app, "GET", "/admin/users?limit=1000", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(maxUserPageSize), body["limit"])
	assert.Len(t, body["users"], 2)

	status, body = doJSON(t, f.app, "GET", "/admin/users?q=alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["users"], 1)

	status, body = doJSON(t, f.app, "POST", "/admin/users/"+itoa(alice)+"/api-key", nil)
	require.Equal(t, fiber.StatusCreated, status)
	rawKey := body["api_key"].(string)
	assert.Contains(t, rawKey, "pv_")

	u := f.store.Users[alice]
	require.NotNil(t, u)
	assert.Equal(t, models.HashAPIKey(rawKey), u.APIKeyHash)

	status, _ = doJSON(t, f.app, "POST", "/admin/users/999/api-key", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminJobs(t *testing.T) {
	f := newAdminFixture(t, models.ROLE_ADMIN)
	lapsed := fixedNow.Add(-time.Hour)
	userID := f.billing.AddUser(models.User{Name: "Player", Email: "player@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_MONTHLY, PremiumExpiresAt: &lapsed})

	status, body := doJSON(t, f.app, "POST", "/admin/jobs/sweep", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["downgraded_count"])
	assert.Equal(t, models.ROLE_FREE, f.billing.User(userID).Role)

	status, body = doJSON(t, f.app, "POST", "/admin/jobs/rating-sync", fiber.Map{"limit": 20})
	require.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "job-1", body["job_id"])
	require.Len(t, f.jobs.jobs, 1)
	assert.Equal(t, jobqueue.JobTypeRatingSync, f.jobs.jobs[0].Type)
	assert.Equal(t, 20, f.jobs.jobs[0].Payload["limit"])
	assert.Equal(t, uint(1), f.jobs.jobs[0].Payload["requested_by"])

	status, _ = doJSON(t, f.app, "POST", "/admin/jobs/rating-sync", fiber.Map{"limit": 5000})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, body = doJSON(t, f.app, "GET", "/admin/jobs/job-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(jobqueue.JobTypeRatingSync), body["type"])

	status, _ = doJSON(t, f.app, "GET", "/admin/jobs/job-9", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = doJSON(t, f.app, "GET", "/admin/jobs/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["pending"])
	assert.Equal(t, float64(0), body["processing"])

	f.jobs.err = errors.New("redis down")
	status, _ = doJSON(t, f.app, "POST", "/admin/jobs/rating-sync", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
