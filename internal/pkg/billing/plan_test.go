package billing

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlan(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: models.PLAN_MONTHLY},
		{in: "  ", want: models.PLAN_MONTHLY},
		{in: "Annual", want: models.PLAN_ANNUAL},
		{in: "quarterly", want: models.PLAN_QUARTERLY},
		{in: "LIFETIME", want: models.PLAN_LIFETIME},
	}
	for _, tt := range tests {
		got, err := cfg.resolvePlan(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := cfg.resolvePlan("weekly")
	assert.True(t, apperr.IsValidation(err))
}

func TestTermFor(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	monthly := cfg.termFor(models.PLAN_MONTHLY, now, false)
	require.NotNil(t, monthly.ExpiresAt)
	assert.Equal(t, now, monthly.StartAt)
	assert.Equal(t, now.AddDate(0, 1, 0), *monthly.ExpiresAt)
	assert.True(t, monthly.AutoRenew)

	quarterly := cfg.termFor(models.PLAN_QUARTERLY, now, false)
	assert.Equal(t, now.AddDate(0, 3, 0), *quarterly.ExpiresAt)

	annual := cfg.termFor(models.PLAN_ANNUAL, now, true)
	assert.Equal(t, now.Add(7*24*time.Hour), annual.StartAt)
	assert.Equal(t, annual.StartAt.AddDate(1, 0, 0), *annual.ExpiresAt)

	lifetime := cfg.termFor(models.PLAN_LIFETIME, now, false)
	assert.Nil(t, lifetime.ExpiresAt)
	assert.False(t, lifetime.AutoRenew)
}

func TestRoleOfDefaultsToConfiguredRole(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, models.ROLE_FREE, cfg.roleOf(&models.User{}))
	assert.Equal(t, models.ROLE_PREMIUM, cfg.roleOf(&models.User{Role: " Premium "}))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("BILLING_DEFAULT_PLAN", "annual")
	t.Setenv("BILLING_TRIAL_DAYS", "14")

	cfg := ConfigFromEnv()
	assert.Equal(t, models.PLAN_ANNUAL, cfg.DefaultPlan)
	assert.Equal(t, 14*24*time.Hour, cfg.TrialPeriod)

	t.Setenv("BILLING_DEFAULT_PLAN", "bogus")
	t.Setenv("BILLING_TRIAL_DAYS", "")
	cfg = ConfigFromEnv()
	assert.Equal(t, models.PLAN_MONTHLY, cfg.DefaultPlan)
	assert.Equal(t, 7*24*time.Hour, cfg.TrialPeriod)
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"payment.succeeded"}`)
	hexSig := hex.EncodeToString(SignPayload(payload, "secret"))

	assert.True(t, VerifyWebhookSignature(payload, hexSig, "secret"))
	assert.True(t, VerifyWebhookSignature(payload, "sha256="+hexSig, "secret"))
	assert.False(t, VerifyWebhookSignature(payload, hexSig, "other"))
	assert.False(t, VerifyWebhookSignature(payload, "zz", "secret"))
	assert.False(t, VerifyWebhookSignature(payload, "", "secret"))
}
