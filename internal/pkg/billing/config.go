package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
)

// Config holds the defaults applied by the plan lifecycle operations.
type Config struct {
	// DefaultRole is assumed for profiles that carry no role.
	DefaultRole string
	// DefaultPlan is used when an upgrade to premium names no plan.
	DefaultPlan string
	// TrialPeriod delays the start of a trial subscription.
	TrialPeriod time.Duration
	// PlanMonths maps every time-bound plan to its length. Plans missing
	// from the map never expire.
	PlanMonths map[string]int
}

func DefaultConfig() Config {
	return Config{
		DefaultRole: models.ROLE_FREE,
		DefaultPlan: models.PLAN_MONTHLY,
		TrialPeriod: 7 * 24 * time.Hour,
		PlanMonths: map[string]int{
			models.PLAN_MONTHLY:   1,
			models.PLAN_QUARTERLY: 3,
			models.PLAN_ANNUAL:    12,
		},
	}
}

// ConfigFromEnv reads BILLING_DEFAULT_PLAN and BILLING_TRIAL_DAYS on top of DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if p := strings.ToLower(strings.TrimSpace(env.GetEnv("BILLING_DEFAULT_PLAN", ""))); models.IsKnownPlan(p) {
		cfg.DefaultPlan = p
	}
	if days := env.GetEnvInt("BILLING_TRIAL_DAYS", -1); days >= 0 {
		cfg.TrialPeriod = time.Duration(days) * 24 * time.Hour
	}
	return cfg
}
