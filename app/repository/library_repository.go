package repository

import (
	"github.com/ManuelReschke/PlayVerse/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type libraryRepository struct {
	db *gorm.DB
}

// NewLibraryRepository creates a favorites/cart repository instance
func NewLibraryRepository(db *gorm.DB) LibraryRepository {
	return &libraryRepository{db: db}
}

// AddFavorite stores the pair and reports whether it was new.
func (r *libraryRepository) AddFavorite(userID, gameID uint) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Favorite{UserID: userID, GameID: gameID})
	return tx.RowsAffected > 0, tx.Error
}

func (r *libraryRepository) RemoveFavorite(userID, gameID uint) (bool, error) {
	tx := r.db.Where("user_id = ? AND game_id = ?", userID, gameID).Delete(&models.Favorite{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *libraryRepository) IsFavorite(userID, gameID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.Favorite{}).Where("user_id = ? AND game_id = ?", userID, gameID).Count(&n).Error
	return n > 0, err
}

// ListFavorites returns the favorite games of a user, newest first.
func (r *libraryRepository) ListFavorites(userID uint) ([]models.Game, error) {
	var games []models.Game
	err := r.db.
		Joins("JOIN favorites ON favorites.game_id = games.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC").
		Find(&games).Error
	return games, err
}

// UpsertCartItem inserts the item or replaces kind and weeks of an existing one.
func (r *libraryRepository) UpsertCartItem(item *models.CartItem) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "weeks", "updated_at"}),
	}).Create(item).Error
}

func (r *libraryRepository) RemoveCartItem(userID, gameID uint) (bool, error) {
	tx := r.db.Where("user_id = ? AND game_id = ?", userID, gameID).Delete(&models.CartItem{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *libraryRepository) ListCart(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.Preload("Game").Where("user_id = ?", userID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *libraryRepository) ClearCart(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
