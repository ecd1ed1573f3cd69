package billing

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// SweepExpirations reconciles elapsed plans in two passes. First every
// active subscription past its end is expired, then every time-bound premium
// profile past its end with no active subscription left is downgraded.
// Both updates are guarded by their predicates, so re-running the sweep,
// even concurrently, only ever touches each record once.
func (s *Service) SweepExpirations(ctx context.Context) (*SweepResult, error) {
	now := s.now().UTC()
	res := &SweepResult{OK: true}

	subs, err := s.repo.ListExpiredActiveSubscriptions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list expired subscriptions: %w", err)
	}
	for _, sub := range subs {
		expired, err := s.repo.ExpireSubscription(ctx, sub.ID)
		if err != nil {
			log.Errorf("[Billing] failed to expire subscription %d: %v", sub.ID, err)
			res.FailedCount++
			continue
		}
		if expired {
			res.ExpiredCount++
		}
	}

	users, err := s.repo.ListLapsedPremiumUsers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list lapsed users: %w", err)
	}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		active, err := s.repo.CountActiveSubscriptions(ctx, u.ID)
		if err != nil {
			log.Errorf("[Billing] failed to count subscriptions of user %d: %v", u.ID, err)
			res.FailedCount++
			continue
		}
		if active > 0 {
			continue
		}

		downgraded, err := s.repo.DowngradeLapsedUser(ctx, u.ID, now)
		if err != nil {
			log.Errorf("[Billing] failed to downgrade user %d: %v", u.ID, err)
			res.FailedCount++
			continue
		}
		if !downgraded {
			continue
		}
		res.DowngradedCount++

		res.Warnings = bestEffort(fmt.Sprintf("notify user %d", u.ID), func() error {
			return s.repo.CreateNotification(ctx, &models.Notification{
				UserID:  u.ID,
				Type:    models.NotificationTypePlanExpired,
				Title:   "Your premium plan has expired",
				Content: fmt.Sprintf("Your %s plan ended and your account is now on the free tier.", u.PremiumPlan),
			})
		}).appendTo(res.Warnings)

		res.Warnings = s.audit(ctx, models.UpgradeEvent{
			UserID:      u.ID,
			FromRole:    models.ROLE_PREMIUM,
			ToRole:      models.ROLE_FREE,
			Plan:        u.PremiumPlan,
			EffectiveAt: now,
			Status:      models.UpgradeStatusExpired,
			Reason:      "plan expired",
		}).appendTo(res.Warnings)
	}

	if res.ExpiredCount > 0 || res.DowngradedCount > 0 || res.FailedCount > 0 {
		log.Infof("[Billing] sweep expired=%d downgraded=%d failed=%d", res.ExpiredCount, res.DowngradedCount, res.FailedCount)
	}
	return res, nil
}
