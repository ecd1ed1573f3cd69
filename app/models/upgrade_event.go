package models

import "time"

// Status tags stored on upgrade events.
const (
	UpgradeStatusCompleted          = "completed"
	UpgradeStatusTrial              = "trial"
	UpgradeStatusCanceled           = "canceled"
	UpgradeStatusExpired            = "expired"
	UpgradeStatusAssigned           = "assigned"
	UpgradeStatusAutoRenewActivated = "auto-renew-activated"
	UpgradeStatusAutoRenewCanceled  = "auto-renew-canceled"
)

// UpgradeEvent is the append-only audit trail of role transitions.
type UpgradeEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	FromRole    string    `gorm:"type:varchar(20);not null" json:"from_role"`
	ToRole      string    `gorm:"type:varchar(20);not null" json:"to_role"`
	Plan        string    `gorm:"type:varchar(20);default:''" json:"plan,omitempty"`
	EffectiveAt time.Time `gorm:"type:timestamp;not null" json:"effective_at"`
	PaymentID   string    `gorm:"type:varchar(191);default:''" json:"payment_id,omitempty"`
	Status      string    `gorm:"type:varchar(40);default:'';index" json:"status,omitempty"`
	Reason      string    `gorm:"type:varchar(500);default:''" json:"reason,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
