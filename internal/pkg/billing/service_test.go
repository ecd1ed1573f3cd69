package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*billing.Service, *billingtest.Repository) {
	t.Helper()
	repo := billingtest.New()
	svc := billing.NewService(repo, billing.DefaultConfig()).WithClock(func() time.Time { return fixedNow })
	return svc, repo
}

func addFreeUser(repo *billingtest.Repository) uint {
	return repo.AddUser(models.User{Name: "Player", Email: "player@example.com", Role: models.ROLE_FREE})
}

func TestUpgradeLifetimeNeverExpires(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)

	res, err := svc.Upgrade(context.Background(), billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_LIFETIME})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, models.ROLE_PREMIUM, res.Role)
	assert.Nil(t, res.ExpiresAt)
	assert.False(t, res.AutoRenew)

	u := repo.User(id)
	assert.Equal(t, models.ROLE_PREMIUM, u.Role)
	assert.Equal(t, models.PLAN_LIFETIME, u.PremiumPlan)
	assert.Nil(t, u.PremiumExpiresAt)
	assert.False(t, u.PremiumAutoRenew)
	assert.NoError(t, u.ValidatePlanState())
}

func TestUpgradeMonthlyExpiresAfterOneMonth(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)

	res, err := svc.Upgrade(context.Background(), billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_MONTHLY, PaymentID: "pay_1"})
	require.NoError(t, err)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, fixedNow.AddDate(0, 1, 0), *res.ExpiresAt)
	assert.True(t, res.AutoRenew)

	u := repo.User(id)
	require.NotNil(t, u.PremiumExpiresAt)
	assert.Equal(t, fixedNow.AddDate(0, 1, 0), *u.PremiumExpiresAt)
	assert.True(t, u.PremiumAutoRenew)

	subs := repo.SubscriptionsOf(id)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusActive, subs[0].Status)
	assert.Equal(t, "pay_1", subs[0].PaymentID)

	require.Len(t, repo.Events, 1)
	assert.Equal(t, models.ROLE_FREE, repo.Events[0].FromRole)
	assert.Equal(t, models.ROLE_PREMIUM, repo.Events[0].ToRole)
	assert.Equal(t, models.UpgradeStatusCompleted, repo.Events[0].Status)
}

func TestUpgradeDefaultsPlanAndHonorsTrial(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)

	res, err := svc.Upgrade(context.Background(), billing.UpgradeRequest{UserID: id, ToRole: "premium", Trial: true})
	require.NoError(t, err)
	assert.Equal(t, models.PLAN_MONTHLY, res.Plan)

	start := fixedNow.Add(7 * 24 * time.Hour)
	require.NotNil(t, res.StartAt)
	assert.Equal(t, start, *res.StartAt)
	assert.Equal(t, start.AddDate(0, 1, 0), *res.ExpiresAt)
	assert.Equal(t, models.UpgradeStatusTrial, repo.Events[0].Status)
}

func TestUpgradeKeepsSingleActiveSubscription(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	_, err := svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_MONTHLY})
	require.NoError(t, err)
	_, err = svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_ANNUAL})
	require.NoError(t, err)

	subs := repo.SubscriptionsOf(id)
	require.Len(t, subs, 2)
	assert.Equal(t, models.SubscriptionStatusCanceled, subs[0].Status)
	assert.NotNil(t, subs[0].CanceledAt)
	assert.Equal(t, models.SubscriptionStatusActive, subs[1].Status)
	assert.Equal(t, models.PLAN_ANNUAL, subs[1].Plan)
	assert.Equal(t, models.PLAN_ANNUAL, repo.User(id).PremiumPlan)
}

func TestUpgradeRejectsUnknownUserRoleAndPlan(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	_, err := svc.Upgrade(ctx, billing.UpgradeRequest{UserID: 999, ToRole: models.ROLE_PREMIUM})
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: "owner"})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: "weekly"})
	assert.True(t, apperr.IsValidation(err))

	assert.Empty(t, repo.SubscriptionsOf(id))
	assert.Equal(t, models.ROLE_FREE, repo.User(id).Role)
}

func TestUpgradeSucceedsWhenAuditFails(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	repo.FailAudit = true

	res, err := svc.Upgrade(context.Background(), billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"audit event"}, res.Warnings)
	assert.Equal(t, models.ROLE_PREMIUM, repo.User(id).Role)
	assert.Empty(t, repo.Events)
}

func TestUpgradeFailsWhenProfileWriteFails(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	repo.FailUserUpdates = true

	_, err := svc.Upgrade(context.Background(), billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM})
	require.Error(t, err)
	assert.ErrorIs(t, err, billingtest.ErrInjected)
	assert.Empty(t, repo.SubscriptionsOf(id))
}

func TestUpgradeToleratesSubscriptionFailures(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	repo.FailSubscriptionOps = true

	res, err := svc.Upgrade(context.Background(), billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_MONTHLY, PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"supersede subscriptions", "create subscription"}, res.Warnings)
	assert.Zero(t, res.SubscriptionID)

	u := repo.User(id)
	assert.Equal(t, models.ROLE_PREMIUM, u.Role)
	assert.Equal(t, models.PLAN_MONTHLY, u.PremiumPlan)
	assert.Empty(t, repo.SubscriptionsOf(id))
	require.Len(t, repo.Events, 1)
	assert.Equal(t, "pay_1", repo.Events[0].PaymentID)
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	_, err := svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_QUARTERLY})
	require.NoError(t, err)

	first, err := svc.Cancel(ctx, id, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_FREE, first.NewRole)
	assert.False(t, first.AlreadyFree)

	second, err := svc.Cancel(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_FREE, second.NewRole)
	assert.True(t, second.AlreadyFree)

	u := repo.User(id)
	assert.Equal(t, models.ROLE_FREE, u.Role)
	assert.False(t, u.PremiumAutoRenew)

	subs := repo.SubscriptionsOf(id)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusCanceled, subs[0].Status)

	// upgrade + cancel, nothing for the no-op call
	require.Len(t, repo.Events, 2)
	assert.Equal(t, models.UpgradeStatusCanceled, repo.Events[1].Status)
	assert.Equal(t, "too expensive", repo.Events[1].Reason)
}

func TestCancelLatestActiveSubscription(t *testing.T) {
	svc, repo := newService(t)
	id := repo.AddUser(models.User{Name: "Player", Email: "p@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_MONTHLY})
	older := repo.AddSubscription(models.Subscription{UserID: id, Plan: models.PLAN_MONTHLY, Status: models.SubscriptionStatusActive, StartAt: fixedNow.AddDate(0, -2, 0)})
	newer := repo.AddSubscription(models.Subscription{UserID: id, Plan: models.PLAN_MONTHLY, Status: models.SubscriptionStatusActive, StartAt: fixedNow.AddDate(0, -1, 0)})

	_, err := svc.Cancel(context.Background(), id, "")
	require.NoError(t, err)

	byID := map[uint]models.Subscription{}
	for _, s := range repo.SubscriptionsOf(id) {
		byID[s.ID] = s
	}
	assert.Equal(t, models.SubscriptionStatusActive, byID[older].Status)
	assert.Equal(t, models.SubscriptionStatusCanceled, byID[newer].Status)
}

func TestCancelLifetimePlan(t *testing.T) {
	svc, repo := newService(t)
	id := repo.AddUser(models.User{Name: "Player", Email: "p@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_LIFETIME})

	res, err := svc.Cancel(context.Background(), id, "")
	require.NoError(t, err)
	assert.False(t, res.AlreadyFree)
	assert.Equal(t, models.ROLE_FREE, repo.User(id).Role)
}

func TestCancelToleratesSubscriptionFailures(t *testing.T) {
	svc, repo := newService(t)
	id := repo.AddUser(models.User{Name: "Player", Email: "p@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_MONTHLY})
	repo.FailSubscriptionOps = true
	repo.FailAudit = true

	res, err := svc.Cancel(context.Background(), id, "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"cancel subscription", "audit event"}, res.Warnings)
	assert.Equal(t, models.ROLE_FREE, repo.User(id).Role)
}

func TestCancelClosesSubscriptionLeftByRoleDowngrade(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	_, err := svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_MONTHLY})
	require.NoError(t, err)
	_, err = svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_FREE})
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionStatusActive, repo.SubscriptionsOf(id)[0].Status)
	events := len(repo.Events)

	res, err := svc.Cancel(ctx, id, "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyFree)
	assert.Empty(t, res.Warnings)

	subs := repo.SubscriptionsOf(id)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusCanceled, subs[0].Status)
	assert.False(t, subs[0].AutoRenew)
	assert.Equal(t, models.ROLE_FREE, repo.User(id).Role)
	assert.Len(t, repo.Events, events)
}

func TestCancelUnknownUser(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Cancel(context.Background(), 42, "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSetAutoRenew(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	_, err := svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_ANNUAL})
	require.NoError(t, err)

	res, err := svc.SetAutoRenew(ctx, id, false, "user request")
	require.NoError(t, err)
	assert.False(t, res.AutoRenew)
	assert.Empty(t, res.Warnings)
	assert.False(t, repo.User(id).PremiumAutoRenew)
	assert.False(t, repo.SubscriptionsOf(id)[0].AutoRenew)
	assert.Equal(t, models.UpgradeStatusAutoRenewCanceled, repo.Events[len(repo.Events)-1].Status)

	res, err = svc.SetAutoRenew(ctx, id, true, "")
	require.NoError(t, err)
	assert.True(t, res.AutoRenew)
	assert.True(t, repo.SubscriptionsOf(id)[0].AutoRenew)
	assert.Equal(t, models.UpgradeStatusAutoRenewActivated, repo.Events[len(repo.Events)-1].Status)
}

func TestSetAutoRenewWithoutSubscription(t *testing.T) {
	svc, repo := newService(t)
	id := repo.AddUser(models.User{Name: "Player", Email: "p@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_MONTHLY})

	res, err := svc.SetAutoRenew(context.Background(), id, true, "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Warnings)
	assert.True(t, repo.User(id).PremiumAutoRenew)
}

func TestSetAutoRenewRejectsLifetime(t *testing.T) {
	svc, repo := newService(t)
	id := repo.AddUser(models.User{Name: "Player", Email: "p@example.com", Role: models.ROLE_PREMIUM, PremiumPlan: models.PLAN_LIFETIME})

	_, err := svc.SetAutoRenew(context.Background(), id, true, "")
	assert.True(t, apperr.IsValidation(err))
	assert.False(t, repo.User(id).PremiumAutoRenew)

	_, err = svc.SetAutoRenew(context.Background(), id, false, "")
	assert.NoError(t, err)
}

func TestSetAutoRenewRequiresPremium(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	_, err := svc.SetAutoRenew(ctx, id, true, "")
	assert.True(t, apperr.IsValidation(err))
	assert.False(t, repo.User(id).PremiumAutoRenew)

	// a canceled lifetime holder is free and gets the premium error
	_, err = svc.Upgrade(ctx, billing.UpgradeRequest{UserID: id, ToRole: models.ROLE_PREMIUM, Plan: models.PLAN_LIFETIME})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, id, "")
	require.NoError(t, err)
	_, err = svc.SetAutoRenew(ctx, id, true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a premium plan")

	res, err := svc.SetAutoRenew(ctx, id, false, "")
	require.NoError(t, err)
	assert.False(t, res.AutoRenew)
}

func TestAssignPlan(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()
	admin := entitlements.Actor{UserID: 1000, Role: models.ROLE_ADMIN}

	_, err := svc.AssignPlan(ctx, entitlements.Actor{UserID: id, Role: models.ROLE_FREE}, id, models.ROLE_PREMIUM, "")
	assert.True(t, apperr.IsUnauthorized(err))

	res, err := svc.AssignPlan(ctx, admin, id, models.ROLE_PREMIUM, models.PLAN_ANNUAL)
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_PREMIUM, res.Role)
	assert.Equal(t, models.PLAN_ANNUAL, repo.User(id).PremiumPlan)

	_, err = svc.AssignPlan(ctx, admin, id, models.ROLE_PREMIUM, models.PLAN_ANNUAL)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "plan already assigned")

	res, err = svc.AssignPlan(ctx, admin, id, models.ROLE_FREE, "")
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_FREE, res.Role)

	_, err = svc.AssignPlan(ctx, admin, id, models.ROLE_FREE, "")
	assert.True(t, apperr.IsValidation(err))

	res, err = svc.AssignPlan(ctx, admin, id, models.ROLE_ADMIN, "")
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_ADMIN, repo.User(id).Role)
	assert.Equal(t, models.UpgradeStatusAssigned, repo.Events[len(repo.Events)-1].Status)
}

func TestListUpgradeEvents(t *testing.T) {
	svc, repo := newService(t)
	id := addFreeUser(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SetAutoRenew(ctx, id, i%2 == 0, "")
		require.NoError(t, err)
	}

	_, err := svc.ListUpgradeEvents(ctx, entitlements.Actor{UserID: id, Role: models.ROLE_PREMIUM}, id, 10)
	assert.True(t, apperr.IsUnauthorized(err))

	admin := entitlements.Actor{UserID: 1000, Role: models.ROLE_ADMIN}
	events, err := svc.ListUpgradeEvents(ctx, admin, id, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.UpgradeStatusAutoRenewActivated, events[0].Status)

	events, err = svc.ListUpgradeEvents(ctx, admin, id, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = svc.ListUpgradeEvents(ctx, admin, 404, 0)
	assert.True(t, apperr.IsNotFound(err))
}
