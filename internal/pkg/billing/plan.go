package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
)

// term is the computed billing period of a premium plan.
type term struct {
	StartAt   time.Time
	ExpiresAt *time.Time
	AutoRenew bool
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func normalizePlan(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// resolvePlan applies the configured default and rejects unknown plans.
func (c Config) resolvePlan(plan string) (string, error) {
	p := normalizePlan(plan)
	if p == "" {
		p = c.DefaultPlan
	}
	if !models.IsKnownPlan(p) {
		return "", apperr.Validation("unknown plan %q", plan)
	}
	return p, nil
}

// termFor computes start, expiry and auto-renew for a plan bought at now.
// Lifetime plans neither expire nor renew.
func (c Config) termFor(plan string, now time.Time, trial bool) term {
	start := now
	if trial {
		start = now.Add(c.TrialPeriod)
	}

	months, ok := c.PlanMonths[plan]
	if plan == models.PLAN_LIFETIME || !ok {
		return term{StartAt: start}
	}

	expires := start.AddDate(0, months, 0)
	return term{StartAt: start, ExpiresAt: &expires, AutoRenew: true}
}

// roleOf returns the user's role, falling back to the configured default.
func (c Config) roleOf(u *models.User) string {
	if r := normalizeRole(u.Role); r != "" {
		return r
	}
	return c.DefaultRole
}
