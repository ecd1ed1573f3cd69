package repository

import (
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	SaveAPIKey(user *models.User) error
	TouchLastSeen(id uint, at time.Time) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string, offset, limit int) ([]models.User, error)
}

// GameFilter narrows catalog listings. Empty fields do not filter.
type GameFilter struct {
	Plan   string
	Query  string
	Offset int
	Limit  int
}

// GameRepository defines the interface for catalog database operations
type GameRepository interface {
	Create(game *models.Game) error
	GetByID(id uint) (*models.Game, error)
	List(filter GameFilter) ([]models.Game, error)
	Count(filter GameFilter) (int64, error)
	UpdateFields(id uint, fields map[string]interface{}) error
	Delete(id uint) error
	ListDueForRatingSync(syncedBefore time.Time, limit int) ([]models.Game, error)
}

// LibraryRepository defines favorites and cart operations
type LibraryRepository interface {
	AddFavorite(userID, gameID uint) (bool, error)
	RemoveFavorite(userID, gameID uint) (bool, error)
	IsFavorite(userID, gameID uint) (bool, error)
	ListFavorites(userID uint) ([]models.Game, error)

	UpsertCartItem(item *models.CartItem) error
	RemoveCartItem(userID, gameID uint) (bool, error)
	ListCart(userID uint) ([]models.CartItem, error)
	ClearCart(userID uint) error
}

// NotificationRepository defines user notification reads
type NotificationRepository interface {
	ListByUser(userID uint, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(userID, id uint) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Game         GameRepository
	Library      LibraryRepository
	Notification NotificationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Game:         NewGameRepository(db),
		Library:      NewLibraryRepository(db),
		Notification: NewNotificationRepository(db),
	}
}
