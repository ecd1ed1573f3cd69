// Package repositorytest provides in-memory repositories for handler and
// service tests.
package repositorytest

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// New returns a Repositories set sharing one in-memory store.
func New() (*repository.Repositories, *Store) {
	s := &Store{
		Users:         map[uint]*models.User{},
		Games:         map[uint]*models.Game{},
		Favorites:     map[[2]uint]time.Time{},
		Cart:          map[[2]uint]*models.CartItem{},
		Notifications: map[uint]*models.Notification{},
	}
	return &repository.Repositories{
		User:         userRepo{s},
		Game:         gameRepo{s},
		Library:      libraryRepo{s},
		Notification: notificationRepo{s},
	}, s
}

type Store struct {
	mu     sync.Mutex
	nextID uint

	Users         map[uint]*models.User
	Games         map[uint]*models.Game
	Favorites     map[[2]uint]time.Time
	Cart          map[[2]uint]*models.CartItem
	Notifications map[uint]*models.Notification
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) AddUser(u models.User) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.Users[u.ID] = &u
	return u.ID
}

func (s *Store) AddGame(g models.Game) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	s.Games[g.ID] = &g
	return g.ID
}

func (s *Store) AddNotification(n models.Notification) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	n.CreatedAt = time.Now()
	s.Notifications[n.ID] = &n
	return n.ID
}

// Game returns a snapshot of a stored game.
func (s *Store) Game(id uint) models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.Games[id]; ok {
		return *g
	}
	return models.Game{}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.id()
	cp := *user
	r.s.Users[user.ID] = &cp
	return nil
}

func (r userRepo) GetByID(id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.Users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.Users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r userRepo) GetByAPIKeyHash(hash string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.Users {
		if hash != "" && u.APIKeyHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r userRepo) Update(user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *user
	r.s.Users[user.ID] = &cp
	return nil
}

func (r userRepo) SaveAPIKey(user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.Users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.APIKeyHash = user.APIKeyHash
	u.APIKeyPrefix = user.APIKeyPrefix
	u.APIKeyCreatedAt = user.APIKeyCreatedAt
	return nil
}

func (r userRepo) TouchLastSeen(id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.Users[id]; ok {
		u.LastSeenAt = &at
	}
	return nil
}

func (r userRepo) Delete(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.Users, id)
	return nil
}

func (r userRepo) sorted(match func(*models.User) bool) []models.User {
	var out []models.User
	for _, u := range r.s.Users {
		if match(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r userRepo) List(offset, limit int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.sorted(func(*models.User) bool { return true }), offset, limit), nil
}

func (r userRepo) Count() (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.Users)), nil
}

func (r userRepo) Search(query string, offset, limit int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	return page(r.sorted(func(u *models.User) bool {
		return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q)
	}), offset, limit), nil
}

type gameRepo struct{ s *Store }

func (r gameRepo) Create(game *models.Game) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	game.ID = r.s.id()
	cp := *game
	r.s.Games[game.ID] = &cp
	return nil
}

func (r gameRepo) GetByID(id uint) (*models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.Games[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	return &cp, nil
}

func (r gameRepo) matching(filter repository.GameFilter) []models.Game {
	var out []models.Game
	for _, g := range r.s.Games {
		if filter.Plan != "" && g.Plan != filter.Plan {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(g.Title), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r gameRepo) List(filter repository.GameFilter) ([]models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.matching(filter), filter.Offset, filter.Limit), nil
}

func (r gameRepo) Count(filter repository.GameFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r gameRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.Games[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			g.Title = v.(string)
		case "description":
			g.Description = v.(string)
		case "cover_url":
			g.CoverURL = v.(string)
		case "plan":
			g.Plan = v.(string)
		case "purchase_price":
			g.PurchasePrice = v.(decimal.Decimal)
		case "rental_price":
			g.RentalPrice = v.(decimal.Decimal)
		case "igdb_id":
			id := v.(int64)
			g.IGDBID = &id
		case "age_rating_system":
			g.AgeRatingSystem = v.(string)
		case "age_rating_code":
			g.AgeRatingCode = v.(string)
		case "age_rating_label":
			g.AgeRatingLabel = v.(string)
		case "igdb_sync_error":
			g.IGDBSyncError = v.(string)
		case "igdb_metadata":
			g.IGDBMetadata = v.(datatypes.JSONMap)
		case "last_igdb_sync_at":
			if t, ok := v.(time.Time); ok {
				g.LastIGDBSyncAt = &t
			} else {
				g.LastIGDBSyncAt = nil
			}
		}
	}
	return nil
}

func (r gameRepo) Delete(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Games[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.Games, id)
	return nil
}

func (r gameRepo) ListDueForRatingSync(syncedBefore time.Time, limit int) ([]models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Game
	for _, g := range r.s.Games {
		if g.LastIGDBSyncAt == nil || g.LastIGDBSyncAt.Before(syncedBefore) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, 0, limit), nil
}

type libraryRepo struct{ s *Store }

func (r libraryRepo) AddFavorite(userID, gameID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uint{userID, gameID}
	if _, ok := r.s.Favorites[key]; ok {
		return false, nil
	}
	r.s.Favorites[key] = time.Now()
	return true, nil
}

func (r libraryRepo) RemoveFavorite(userID, gameID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uint{userID, gameID}
	_, ok := r.s.Favorites[key]
	delete(r.s.Favorites, key)
	return ok, nil
}

func (r libraryRepo) IsFavorite(userID, gameID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.Favorites[[2]uint{userID, gameID}]
	return ok, nil
}

func (r libraryRepo) ListFavorites(userID uint) ([]models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Game
	for key := range r.s.Favorites {
		if key[0] != userID {
			continue
		}
		if g, ok := r.s.Games[key[1]]; ok {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r libraryRepo) UpsertCartItem(item *models.CartItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uint{item.UserID, item.GameID}
	if existing, ok := r.s.Cart[key]; ok {
		existing.Kind = item.Kind
		existing.Weeks = item.Weeks
		item.ID = existing.ID
		return nil
	}
	item.ID = r.s.id()
	cp := *item
	r.s.Cart[key] = &cp
	return nil
}

func (r libraryRepo) RemoveCartItem(userID, gameID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uint{userID, gameID}
	_, ok := r.s.Cart[key]
	delete(r.s.Cart, key)
	return ok, nil
}

func (r libraryRepo) ListCart(userID uint) ([]models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.CartItem
	for key, item := range r.s.Cart {
		if key[0] != userID {
			continue
		}
		cp := *item
		if g, ok := r.s.Games[key[1]]; ok {
			cp.Game = *g
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r libraryRepo) ClearCart(userID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for key := range r.s.Cart {
		if key[0] == userID {
			delete(r.s.Cart, key)
		}
	}
	return nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) ListByUser(userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Notification
	for _, n := range r.s.Notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, 0, limit), nil
}

func (r notificationRepo) MarkRead(userID, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.Notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}
