package repository

import (
	"errors"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) ListByUser(userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	q := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// MarkRead flags one notification of the user as read.
func (r *notificationRepository) MarkRead(userID, id uint) (bool, error) {
	var n models.Notification
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, n.MarkAsRead(r.db)
}
