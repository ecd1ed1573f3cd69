package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. Lookups of
// single records return gorm.ErrRecordNotFound when nothing matches.
type Repository interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	UpdateUser(ctx context.Context, id uint, fields map[string]interface{}) error
	ListLapsedPremiumUsers(ctx context.Context, now time.Time) ([]models.User, error)
	DowngradeLapsedUser(ctx context.Context, id uint, now time.Time) (bool, error)

	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	LatestSubscription(ctx context.Context, userID uint, statuses ...string) (*models.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, userID uint) ([]models.Subscription, error)
	CountActiveSubscriptions(ctx context.Context, userID uint) (int64, error)
	UpdateSubscription(ctx context.Context, id uint, fields map[string]interface{}) error
	ListExpiredActiveSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error)
	ExpireSubscription(ctx context.Context, id uint) (bool, error)

	CreateUpgradeEvent(ctx context.Context, ev *models.UpgradeEvent) error
	ListUpgradeEvents(ctx context.Context, userID uint, limit int) ([]models.UpgradeEvent, error)
	CreateNotification(ctx context.Context, n *models.Notification) error

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) UpdateUser(ctx context.Context, id uint, fields map[string]interface{}) error {
	tx := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// MySQL reports 0 affected rows for unchanged values, so confirm the row exists.
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *gormRepository) ListLapsedPremiumUsers(ctx context.Context, now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND premium_plan <> ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?",
			models.ROLE_PREMIUM, models.PLAN_LIFETIME, now).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// DowngradeLapsedUser re-checks the lapse predicate inside the UPDATE so a
// concurrent upgrade or a second sweep turns it into a no-op.
func (r *gormRepository) DowngradeLapsedUser(ctx context.Context, id uint, now time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ? AND premium_plan <> ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?",
			id, models.ROLE_PREMIUM, models.PLAN_LIFETIME, now).
		Updates(map[string]interface{}{
			"role":               models.ROLE_FREE,
			"premium_plan":       "",
			"premium_expires_at": nil,
			"premium_auto_renew": false,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *gormRepository) LatestSubscription(ctx context.Context, userID uint, statuses ...string) (*models.Subscription, error) {
	var sub models.Subscription
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Order("start_at DESC").Order("id DESC").First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListActiveSubscriptions(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("start_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) CountActiveSubscriptions(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Count(&n).Error
	return n, err
}

func (r *gormRepository) UpdateSubscription(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Updates(fields).Error
}

func (r *gormRepository) ListExpiredActiveSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.SubscriptionStatusActive, now).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ExpireSubscription(ctx context.Context, id uint) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, models.SubscriptionStatusActive).
		Update("status", models.SubscriptionStatusExpired)
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) CreateUpgradeEvent(ctx context.Context, ev *models.UpgradeEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *gormRepository) ListUpgradeEvents(ctx context.Context, userID uint, limit int) ([]models.UpgradeEvent, error) {
	var events []models.UpgradeEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.WithContext(ctx).Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string, at time.Time) error {
	updates := map[string]interface{}{
		"processed_at":     &at,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
