package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/cache"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/usercontext"
)

// ============================================================================
// ADMIN CONTROLLER - Repository Pattern
// ============================================================================

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 200
)

// JobQueue puts background jobs on the queue and reports on them.
type JobQueue interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobqueue.Job, error)
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// AdminController handles catalog maintenance, plan assignment and job triggers
type AdminController struct {
	billing *billing.Service
	catalog *catalog.Service
	users   repository.UserRepository
	jobs    JobQueue
}

// NewAdminController creates a new admin controller with its dependencies
func NewAdminController(billingSvc *billing.Service, catalogSvc *catalog.Service, users repository.UserRepository, jobs JobQueue) *AdminController {
	return &AdminController{
		billing: billingSvc,
		catalog: catalogSvc,
		users:   users,
		jobs:    jobs,
	}
}

type assignPlanRequest struct {
	Role string `json:"role" validate:"required,oneof=free premium admin"`
	Plan string `json:"plan" validate:"omitempty,oneof=monthly quarterly annual lifetime"`
}

type ratingSyncRequest struct {
	Limit int `json:"limit" validate:"min=0,max=500"`
}

// ---------------------------------------------------------------------------
// Games
// ---------------------------------------------------------------------------

func (ac *AdminController) HandleCreateGame(c *fiber.Ctx) error {
	var in catalog.GameInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	g, err := ac.catalog.CreateGame(usercontext.Actor(c), in)
	if err != nil {
		return respondError(c, err)
	}
	log.Infof("[Admin] user %d created game %d (%s)", usercontext.GetUserID(c), g.ID, g.Title)
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (ac *AdminController) HandleUpdateGame(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var patch catalog.GamePatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	g, err := ac.catalog.UpdateGame(usercontext.Actor(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(g)
}

func (ac *AdminController) HandleDeleteGame(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.catalog.DeleteGame(usercontext.Actor(c), id); err != nil {
		return respondError(c, err)
	}
	log.Infof("[Admin] user %d deleted game %d", usercontext.GetUserID(c), id)
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// HandleListUsers serves GET /admin/users?q=&offset=&limit=
func (ac *AdminController) HandleListUsers(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := c.QueryInt("limit", defaultUserPageSize)
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}

	var (
		users []models.User
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		users, err = ac.users.Search(q, offset, limit)
	} else {
		users, err = ac.users.List(offset, limit)
	}
	if err != nil {
		return respondError(c, err)
	}
	total, err := ac.users.Count()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users, "total": total, "offset": offset, "limit": limit})
}

func (ac *AdminController) HandleAssignPlan(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req assignPlanRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := ac.billing.AssignPlan(ctx, usercontext.Actor(c), id, req.Role, req.Plan)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (ac *AdminController) HandleListUpgradeEvents(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	events, err := ac.billing.ListUpgradeEvents(ctx, usercontext.Actor(c), id, c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleIssueAPIKey rotates the API key of a user. The raw key is only
// returned in this response.
func (ac *AdminController) HandleIssueAPIKey(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	user, err := ac.users.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.NotFound("user", id))
		}
		return respondError(c, err)
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.users.SaveAPIKey(user); err != nil {
		return respondError(c, err)
	}
	log.Infof("[Admin] user %d issued api key %s for user %d", usercontext.GetUserID(c), user.APIKeyPrefix, user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     user.APIKeyPrefix,
		"created_at": user.APIKeyCreatedAt,
	})
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

// HandleRunSweep runs the expiration sweep inline and returns its counts.
func (ac *AdminController) HandleRunSweep(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := ac.billing.SweepExpirations(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// HandleEnqueueRatingSync queues an IGDB rating sync batch.
func (ac *AdminController) HandleEnqueueRatingSync(c *fiber.Ctx) error {
	var req ratingSyncRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
	}
	if ac.jobs == nil {
		return ac.queueUnavailable(c)
	}

	job, err := ac.jobs.EnqueueJob(jobqueue.JobTypeRatingSync, jobqueue.RatingSyncJobPayload{
		Limit:       req.Limit,
		RequestedBy: usercontext.GetUserID(c),
	}.ToMap())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "job_id": job.ID})
}

func (ac *AdminController) queueUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "queue_unavailable", "message": "Job queue is not running"})
}

// HandleJobStats reports queue depth and per-status job counters.
func (ac *AdminController) HandleJobStats(c *fiber.Ctx) error {
	if ac.jobs == nil {
		return ac.queueUnavailable(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := ac.jobs.GetJobStats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	pending, err := ac.jobs.GetQueueSize(ctx)
	if err != nil {
		return respondError(c, err)
	}
	processing, err := ac.jobs.GetProcessingSize(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"pending": pending, "processing": processing, "stats": stats})
}

// HandleGetJob returns a job while it is retained in Redis.
func (ac *AdminController) HandleGetJob(c *fiber.Ctx) error {
	if ac.jobs == nil {
		return ac.queueUnavailable(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	jobID := strings.TrimSpace(c.Params("jobId"))
	job, err := ac.jobs.GetJob(ctx, jobID)
	if cache.IsMiss(err) {
		return respondError(c, apperr.NotFound("job", jobID))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(job)
}
