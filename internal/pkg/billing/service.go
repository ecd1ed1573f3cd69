package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// Service applies plan lifecycle transitions. Each operation issues several
// independent writes; the primary write decides success while audit rows,
// subscription patches and notifications are best-effort.
type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle and the
// environment configuration.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), ConfigFromEnv())
}

// WithClock replaces the time source. Used by tests and the sweeper CLI.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Config() Config {
	return s.cfg
}

// sideWrite is the outcome of an auxiliary write that never blocks the
// primary transition.
type sideWrite struct {
	step string
	err  error
}

func bestEffort(step string, fn func() error) sideWrite {
	err := fn()
	if err != nil {
		log.Warnf("[Billing] %s skipped: %v", step, err)
	}
	return sideWrite{step: step, err: err}
}

func (w sideWrite) appendTo(warnings []string) []string {
	if w.err == nil {
		return warnings
	}
	return append(warnings, w.step)
}

func (s *Service) loadUser(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return u, nil
}

func (s *Service) audit(ctx context.Context, ev models.UpgradeEvent) sideWrite {
	return bestEffort("audit event", func() error {
		return s.repo.CreateUpgradeEvent(ctx, &ev)
	})
}

// Upgrade moves a user to toRole. For premium it resolves the plan, computes
// the billing term, patches the profile and replaces any active subscription
// with a new one.
func (s *Service) Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error) {
	toRole := normalizeRole(req.ToRole)
	if !models.IsKnownRole(toRole) {
		return nil, apperr.Validation("unknown role %q", req.ToRole)
	}

	u, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	fromRole := s.cfg.roleOf(u)
	now := s.now().UTC()

	if toRole != models.ROLE_PREMIUM {
		if toRole != fromRole {
			if err := s.repo.UpdateUser(ctx, u.ID, map[string]interface{}{"role": toRole}); err != nil {
				return nil, fmt.Errorf("update role: %w", err)
			}
		}
		res := &UpgradeResult{OK: true, Role: toRole}
		res.Warnings = s.audit(ctx, models.UpgradeEvent{
			UserID:      u.ID,
			FromRole:    fromRole,
			ToRole:      toRole,
			EffectiveAt: now,
			PaymentID:   req.PaymentID,
			Status:      models.UpgradeStatusCompleted,
			Reason:      req.Reason,
		}).appendTo(res.Warnings)
		return res, nil
	}

	plan, err := s.cfg.resolvePlan(req.Plan)
	if err != nil {
		return nil, err
	}
	t := s.cfg.termFor(plan, now, req.Trial)

	fields := map[string]interface{}{
		"premium_plan":       plan,
		"premium_auto_renew": t.AutoRenew,
		"premium_expires_at": t.ExpiresAt,
	}
	if toRole != fromRole {
		fields["role"] = toRole
	}
	if err := s.repo.UpdateUser(ctx, u.ID, fields); err != nil {
		return nil, fmt.Errorf("update premium profile: %w", err)
	}

	sub := &models.Subscription{
		UserID:    u.ID,
		Plan:      plan,
		Status:    models.SubscriptionStatusActive,
		StartAt:   t.StartAt,
		ExpiresAt: t.ExpiresAt,
		AutoRenew: t.AutoRenew,
		PaymentID: req.PaymentID,
	}
	var warnings []string
	// At most one subscription per user stays active.
	warnings = bestEffort("supersede subscriptions", func() error {
		active, err := s.repo.ListActiveSubscriptions(ctx, u.ID)
		if err != nil {
			return err
		}
		for _, prev := range active {
			if err := s.repo.UpdateSubscription(ctx, prev.ID, map[string]interface{}{
				"status":      models.SubscriptionStatusCanceled,
				"canceled_at": &now,
				"auto_renew":  false,
			}); err != nil {
				return fmt.Errorf("subscription %d: %w", prev.ID, err)
			}
		}
		return nil
	}).appendTo(warnings)
	created := bestEffort("create subscription", func() error {
		return s.repo.CreateSubscription(ctx, sub)
	})
	warnings = created.appendTo(warnings)

	status := models.UpgradeStatusCompleted
	if req.Trial {
		status = models.UpgradeStatusTrial
	}

	start := t.StartAt
	res := &UpgradeResult{
		OK:        true,
		Role:      toRole,
		Plan:      plan,
		StartAt:   &start,
		ExpiresAt: t.ExpiresAt,
		AutoRenew: t.AutoRenew,
		Warnings:  warnings,
	}
	if created.err == nil {
		res.SubscriptionID = sub.ID
	}
	res.Warnings = s.audit(ctx, models.UpgradeEvent{
		UserID:      u.ID,
		FromRole:    fromRole,
		ToRole:      toRole,
		Plan:        plan,
		EffectiveAt: t.StartAt,
		PaymentID:   req.PaymentID,
		Status:      status,
		Reason:      req.Reason,
	}).appendTo(res.Warnings)

	log.Infof("[Billing] user %d upgraded %s -> %s (plan=%s, trial=%t)", u.ID, fromRole, toRole, plan, req.Trial)
	return res, nil
}

// Cancel downgrades a user to free. Calling it for a free user is a no-op
// that reports AlreadyFree. Lifetime plans are cancellable like any other.
func (s *Service) Cancel(ctx context.Context, userID uint, reason string) (*CancelResult, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	prevRole := s.cfg.roleOf(u)
	now := s.now().UTC()
	res := &CancelResult{OK: true, NewRole: models.ROLE_FREE}

	// Runs for free users too: a role-only downgrade can leave an active row.
	res.Warnings = bestEffort("cancel subscription", func() error {
		sub, err := s.repo.LatestSubscription(ctx, u.ID, models.SubscriptionStatusActive)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.repo.UpdateSubscription(ctx, sub.ID, map[string]interface{}{
			"status":      models.SubscriptionStatusCanceled,
			"canceled_at": &now,
			"auto_renew":  false,
		})
	}).appendTo(res.Warnings)

	if prevRole == models.ROLE_FREE {
		res.AlreadyFree = true
		return res, nil
	}

	if err := s.repo.UpdateUser(ctx, u.ID, map[string]interface{}{
		"role":               models.ROLE_FREE,
		"premium_auto_renew": false,
	}); err != nil {
		return nil, fmt.Errorf("downgrade user: %w", err)
	}

	res.Warnings = s.audit(ctx, models.UpgradeEvent{
		UserID:      u.ID,
		FromRole:    prevRole,
		ToRole:      models.ROLE_FREE,
		Plan:        u.PremiumPlan,
		EffectiveAt: now,
		Status:      models.UpgradeStatusCanceled,
		Reason:      reason,
	}).appendTo(res.Warnings)

	log.Infof("[Billing] user %d canceled %s plan", u.ID, prevRole)
	return res, nil
}

// SetAutoRenew toggles renewal of the current plan. Only premium users can
// turn it on and lifetime plans never renew. Turning it off is always allowed.
func (s *Service) SetAutoRenew(ctx context.Context, userID uint, autoRenew bool, reason string) (*AutoRenewResult, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if autoRenew && s.cfg.roleOf(u) != models.ROLE_PREMIUM {
		return nil, apperr.Validation("auto-renew requires a premium plan")
	}
	if autoRenew && normalizePlan(u.PremiumPlan) == models.PLAN_LIFETIME {
		return nil, apperr.Validation("lifetime plan cannot auto-renew")
	}

	if err := s.repo.UpdateUser(ctx, u.ID, map[string]interface{}{"premium_auto_renew": autoRenew}); err != nil {
		return nil, fmt.Errorf("update auto-renew: %w", err)
	}

	res := &AutoRenewResult{OK: true, AutoRenew: autoRenew}
	res.Warnings = bestEffort("subscription auto-renew", func() error {
		sub, err := s.repo.LatestSubscription(ctx, u.ID, models.SubscriptionStatusActive, models.SubscriptionStatusCanceled)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.repo.UpdateSubscription(ctx, sub.ID, map[string]interface{}{"auto_renew": autoRenew})
	}).appendTo(res.Warnings)

	status := models.UpgradeStatusAutoRenewCanceled
	if autoRenew {
		status = models.UpgradeStatusAutoRenewActivated
	}
	role := s.cfg.roleOf(u)
	res.Warnings = s.audit(ctx, models.UpgradeEvent{
		UserID:      u.ID,
		FromRole:    role,
		ToRole:      role,
		Plan:        u.PremiumPlan,
		EffectiveAt: s.now().UTC(),
		Status:      status,
		Reason:      reason,
	}).appendTo(res.Warnings)

	return res, nil
}

// AssignPlan lets an admin put a user on a role/plan directly. Assigning the
// role and plan the user already holds is rejected.
func (s *Service) AssignPlan(ctx context.Context, actor entitlements.Actor, userID uint, role, plan string) (*UpgradeResult, error) {
	if err := entitlements.RequireAdmin(actor, "assign plan"); err != nil {
		return nil, err
	}

	toRole := normalizeRole(role)
	if !models.IsKnownRole(toRole) {
		return nil, apperr.Validation("unknown role %q", role)
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := s.cfg.roleOf(u)
	reason := fmt.Sprintf("assigned by admin %d", actor.UserID)

	switch toRole {
	case models.ROLE_PREMIUM:
		p, err := s.cfg.resolvePlan(plan)
		if err != nil {
			return nil, err
		}
		if current == models.ROLE_PREMIUM && normalizePlan(u.PremiumPlan) == p {
			return nil, apperr.Validation("plan already assigned")
		}
		return s.Upgrade(ctx, UpgradeRequest{UserID: u.ID, ToRole: toRole, Plan: p, Reason: reason})

	case models.ROLE_FREE:
		if current == models.ROLE_FREE {
			return nil, apperr.Validation("plan already assigned")
		}
		cr, err := s.Cancel(ctx, u.ID, reason)
		if err != nil {
			return nil, err
		}
		return &UpgradeResult{OK: cr.OK, Role: cr.NewRole, Warnings: cr.Warnings}, nil

	default:
		if current == toRole {
			return nil, apperr.Validation("plan already assigned")
		}
		if err := s.repo.UpdateUser(ctx, u.ID, map[string]interface{}{"role": toRole}); err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
		res := &UpgradeResult{OK: true, Role: toRole}
		res.Warnings = s.audit(ctx, models.UpgradeEvent{
			UserID:      u.ID,
			FromRole:    current,
			ToRole:      toRole,
			EffectiveAt: s.now().UTC(),
			Status:      models.UpgradeStatusAssigned,
			Reason:      reason,
		}).appendTo(res.Warnings)
		return res, nil
	}
}

// ListUpgradeEvents returns the newest audit rows of a user. Admin only.
func (s *Service) ListUpgradeEvents(ctx context.Context, actor entitlements.Actor, userID uint, limit int) ([]models.UpgradeEvent, error) {
	if err := entitlements.RequireAdmin(actor, "read audit log"); err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return s.repo.ListUpgradeEvents(ctx, userID, limit)
}
