package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/usercontext"
)

const requestTimeout = 15 * time.Second

// PlanController exposes the self-service plan lifecycle of the caller.
type PlanController struct {
	billing *billing.Service
}

func NewPlanController(svc *billing.Service) *PlanController {
	return &PlanController{billing: svc}
}

type upgradeRequest struct {
	Plan      string `json:"plan" validate:"omitempty,oneof=monthly quarterly annual lifetime"`
	Trial     bool   `json:"trial"`
	PaymentID string `json:"payment_id" validate:"required_unless=Trial true,max=100"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew" validate:"required"`
}

// requestContext bounds service calls of one request.
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

// HandleUpgrade moves the caller to premium. Paid plans need the payment id
// of the confirmed checkout, trials do not.
func (pc *PlanController) HandleUpgrade(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsAdmin {
		return respondError(c, apperr.Validation("admin accounts are managed through the admin API"))
	}

	var req upgradeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := pc.billing.Upgrade(ctx, billing.UpgradeRequest{
		UserID:    userCtx.UserID,
		ToRole:    models.ROLE_PREMIUM,
		Plan:      req.Plan,
		Trial:     req.Trial,
		PaymentID: req.PaymentID,
		Reason:    "self-service upgrade",
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// HandleCancel drops the caller back to the free role. Calling it on a free
// account is a no-op.
func (pc *PlanController) HandleCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsAdmin {
		return respondError(c, apperr.Validation("admin accounts are managed through the admin API"))
	}

	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
	}
	if req.Reason == "" {
		req.Reason = "canceled by user"
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := pc.billing.Cancel(ctx, userCtx.UserID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (pc *PlanController) HandleSetAutoRenew(c *fiber.Ctx) error {
	var req autoRenewRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := pc.billing.SetAutoRenew(ctx, usercontext.GetUserID(c), *req.AutoRenew, "changed by user")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
