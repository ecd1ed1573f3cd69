// Package billingtest provides an in-memory billing.Repository for tests.
package billingtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"gorm.io/gorm"
)

var ErrInjected = errors.New("injected failure")

var _ billing.Repository = (*Repository)(nil)

// Repository keeps users, subscriptions, audit rows, notifications and
// webhook events in maps. The Fail* switches make the matching writes return
// ErrInjected.
type Repository struct {
	mu sync.Mutex

	Users         map[uint]*models.User
	Subscriptions map[uint]*models.Subscription
	Events        []models.UpgradeEvent
	Notifications []models.Notification
	Webhooks      map[string]*models.PaymentWebhookEvent

	FailAudit           bool
	FailNotifications   bool
	FailSubscriptionOps bool
	FailUserUpdates     bool

	nextID uint
}

func New() *Repository {
	return &Repository{
		Users:         map[uint]*models.User{},
		Subscriptions: map[uint]*models.Subscription{},
		Webhooks:      map[string]*models.PaymentWebhookEvent{},
	}
}

func (r *Repository) id() uint {
	r.nextID++
	return r.nextID
}

// AddUser stores a copy of u and returns the stored id.
func (r *Repository) AddUser(u models.User) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.id()
	} else if u.ID > r.nextID {
		r.nextID = u.ID
	}
	r.Users[u.ID] = &u
	return u.ID
}

// AddSubscription stores a copy of s and returns the stored id.
func (r *Repository) AddSubscription(s models.Subscription) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.id()
	r.Subscriptions[s.ID] = &s
	return s.ID
}

// User returns a snapshot of the stored user.
func (r *Repository) User(id uint) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.Users[id]; ok {
		return *u
	}
	return models.User{}
}

// SubscriptionsOf returns the user's subscriptions ordered by id.
func (r *Repository) SubscriptionsOf(userID uint) []models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.Subscriptions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Repository) GetUser(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Repository) UpdateUser(_ context.Context, id uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUserUpdates {
		return ErrInjected
	}
	u, ok := r.Users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyUserFields(u, fields)
	return nil
}

func applyUserFields(u *models.User, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "role":
			u.Role = v.(string)
		case "premium_plan":
			u.PremiumPlan = v.(string)
		case "premium_auto_renew":
			u.PremiumAutoRenew = v.(bool)
		case "premium_expires_at":
			t, _ := v.(*time.Time)
			if t == nil {
				u.PremiumExpiresAt = nil
			} else {
				cp := *t
				u.PremiumExpiresAt = &cp
			}
		}
	}
}

func lapsed(u *models.User, now time.Time) bool {
	return u.Role == models.ROLE_PREMIUM &&
		u.PremiumPlan != models.PLAN_LIFETIME &&
		u.PremiumExpiresAt != nil &&
		!u.PremiumExpiresAt.After(now)
}

func (r *Repository) ListLapsedPremiumUsers(_ context.Context, now time.Time) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.Users {
		if lapsed(u, now) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) DowngradeLapsedUser(_ context.Context, id uint, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUserUpdates {
		return false, ErrInjected
	}
	u, ok := r.Users[id]
	if !ok || !lapsed(u, now) {
		return false, nil
	}
	u.Role = models.ROLE_FREE
	u.PremiumPlan = ""
	u.PremiumExpiresAt = nil
	u.PremiumAutoRenew = false
	return true, nil
}

func (r *Repository) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSubscriptionOps {
		return ErrInjected
	}
	sub.ID = r.id()
	cp := *sub
	r.Subscriptions[sub.ID] = &cp
	return nil
}

func (r *Repository) LatestSubscription(_ context.Context, userID uint, statuses ...string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSubscriptionOps {
		return nil, ErrInjected
	}
	var best *models.Subscription
	for _, s := range r.Subscriptions {
		if s.UserID != userID || !statusIn(s.Status, statuses) {
			continue
		}
		if best == nil || s.StartAt.After(best.StartAt) || (s.StartAt.Equal(best.StartAt) && s.ID > best.ID) {
			best = s
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func statusIn(status string, statuses []string) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *Repository) ListActiveSubscriptions(_ context.Context, userID uint) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSubscriptionOps {
		return nil, ErrInjected
	}
	var out []models.Subscription
	for _, s := range r.Subscriptions {
		if s.UserID == userID && s.Status == models.SubscriptionStatusActive {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	return out, nil
}

func (r *Repository) CountActiveSubscriptions(ctx context.Context, userID uint) (int64, error) {
	subs, err := r.ListActiveSubscriptions(ctx, userID)
	return int64(len(subs)), err
}

func (r *Repository) UpdateSubscription(_ context.Context, id uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSubscriptionOps {
		return ErrInjected
	}
	s, ok := r.Subscriptions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			s.Status = v.(string)
		case "auto_renew":
			s.AutoRenew = v.(bool)
		case "canceled_at":
			s.CanceledAt, _ = v.(*time.Time)
		}
	}
	return nil
}

func (r *Repository) ListExpiredActiveSubscriptions(_ context.Context, now time.Time) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.Subscriptions {
		if s.IsExpiredAt(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) ExpireSubscription(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Subscriptions[id]
	if !ok || s.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	s.Status = models.SubscriptionStatusExpired
	return true, nil
}

func (r *Repository) CreateUpgradeEvent(_ context.Context, ev *models.UpgradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAudit {
		return ErrInjected
	}
	ev.ID = r.id()
	ev.CreatedAt = time.Now()
	r.Events = append(r.Events, *ev)
	return nil
}

func (r *Repository) ListUpgradeEvents(_ context.Context, userID uint, limit int) ([]models.UpgradeEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.UpgradeEvent
	for i := len(r.Events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Events[i].UserID == userID {
			out = append(out, r.Events[i])
		}
	}
	return out, nil
}

func (r *Repository) CreateNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNotifications {
		return ErrInjected
	}
	n.ID = r.id()
	r.Notifications = append(r.Notifications, *n)
	return nil
}

func (r *Repository) CreateWebhookEventIfNotExists(_ context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "|" + event.ProviderEventID
	if stored, ok := r.Webhooks[key]; ok {
		cp := *stored
		return false, &cp, nil
	}
	event.ID = r.id()
	cp := *event
	r.Webhooks[key] = &cp
	return true, event, nil
}

func (r *Repository) MarkWebhookProcessed(_ context.Context, id uint, processingError string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.Webhooks {
		if ev.ID == id {
			ev.ProcessedAt = &at
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}
