package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationTypePlanExpired  = "plan_expired"
	NotificationTypePlanUpgraded = "plan_upgraded"
	NotificationTypeSystem       = "system"
)

type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index" json:"user_id"`
	Type      string         `gorm:"type:varchar(50)" json:"type" validate:"oneof=plan_expired plan_upgraded system"`
	Title     string         `gorm:"type:varchar(200)" json:"title"`
	Content   string         `gorm:"type:text" json:"content"`
	IsRead    bool           `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead flags the notification as read.
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}
