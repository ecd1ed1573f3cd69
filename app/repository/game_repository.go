package repository

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"gorm.io/gorm"
)

type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository creates a new game repository instance
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) Create(game *models.Game) error {
	return r.db.Create(game).Error
}

func (r *gameRepository) GetByID(id uint) (*models.Game, error) {
	var game models.Game
	if err := r.db.First(&game, id).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepository) filtered(filter GameFilter) *gorm.DB {
	q := r.db.Model(&models.Game{})
	if p := strings.TrimSpace(filter.Plan); p != "" {
		q = q.Where("plan = ?", p)
	}
	if s := strings.TrimSpace(filter.Query); s != "" {
		q = q.Where("title LIKE ?", "%"+s+"%")
	}
	return q
}

// List returns games ordered by title.
func (r *gameRepository) List(filter GameFilter) ([]models.Game, error) {
	var games []models.Game
	q := r.filtered(filter).Order("title ASC").Order("id ASC").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&games).Error
	return games, err
}

func (r *gameRepository) Count(filter GameFilter) (int64, error) {
	var count int64
	err := r.filtered(filter).Count(&count).Error
	return count, err
}

func (r *gameRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	tx := r.db.Model(&models.Game{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		var n int64
		if err := r.db.Model(&models.Game{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// Delete soft deletes a game.
func (r *gameRepository) Delete(id uint) error {
	tx := r.db.Delete(&models.Game{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListDueForRatingSync returns games never synced or last synced before syncedBefore.
func (r *gameRepository) ListDueForRatingSync(syncedBefore time.Time, limit int) ([]models.Game, error) {
	var games []models.Game
	err := r.db.
		Where("last_igdb_sync_at IS NULL OR last_igdb_sync_at < ?", syncedBefore).
		Order("last_igdb_sync_at IS NOT NULL").Order("last_igdb_sync_at ASC").Order("id ASC").
		Limit(limit).
		Find(&games).Error
	return games, err
}
