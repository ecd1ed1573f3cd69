package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// Subscription links a user to a premium plan for a period. A user may own
// many subscriptions over time but at most one is active.
type Subscription struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	Plan       string     `gorm:"type:varchar(20);not null" json:"plan" validate:"required,oneof=monthly quarterly annual lifetime"`
	Status     string     `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_user_status,priority:2;index" json:"status" validate:"oneof=active canceled expired"`
	StartAt    time.Time  `gorm:"type:timestamp;not null;index" json:"start_at"`
	ExpiresAt  *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
	AutoRenew  bool       `gorm:"default:false" json:"auto_renew"`
	PaymentID  string     `gorm:"type:varchar(191);default:''" json:"payment_id,omitempty"`
	CanceledAt *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the subscription can no longer change status.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCanceled || s.Status == SubscriptionStatusExpired
}

// IsExpiredAt reports whether an active subscription has run past its end.
func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
