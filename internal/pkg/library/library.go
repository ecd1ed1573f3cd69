// Package library manages a user's favorites and shopping cart.
package library

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/entitlements"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Cart struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type Service struct {
	library repository.LibraryRepository
	games   repository.GameRepository
}

func NewService(library repository.LibraryRepository, games repository.GameRepository) *Service {
	return &Service{library: library, games: games}
}

func (s *Service) requireGame(gameID uint) (*models.Game, error) {
	g, err := s.games.GetByID(gameID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("game", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", gameID, err)
	}
	return g, nil
}

func (s *Service) AddFavorite(userID, gameID uint) (bool, error) {
	if _, err := s.requireGame(gameID); err != nil {
		return false, err
	}
	return s.library.AddFavorite(userID, gameID)
}

func (s *Service) RemoveFavorite(userID, gameID uint) error {
	removed, err := s.library.RemoveFavorite(userID, gameID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("favorite", gameID)
	}
	return nil
}

// ToggleFavorite flips the favorite state and returns the new state.
func (s *Service) ToggleFavorite(userID, gameID uint) (bool, error) {
	fav, err := s.library.IsFavorite(userID, gameID)
	if err != nil {
		return false, err
	}
	if fav {
		return false, s.RemoveFavorite(userID, gameID)
	}
	_, err = s.AddFavorite(userID, gameID)
	return err == nil, err
}

func (s *Service) ListFavorites(userID uint) ([]models.Game, error) {
	return s.library.ListFavorites(userID)
}

// AddToCart puts a game in the cart for purchase or for a rental of weeks
// weeks. Adding a game twice replaces the previous entry.
func (s *Service) AddToCart(actor entitlements.Actor, gameID uint, kind string, weeks int) (*models.CartItem, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case models.CART_KIND_PURCHASE:
		weeks = 0
	case models.CART_KIND_RENTAL:
		if maxWeeks := entitlements.MaxRentalWeeks(actor.Role); weeks < 1 || weeks > maxWeeks {
			return nil, apperr.Validation("rental weeks must be between 1 and %d", maxWeeks)
		}
	default:
		return nil, apperr.Validation("unknown cart kind %q", kind)
	}

	g, err := s.requireGame(gameID)
	if err != nil {
		return nil, err
	}

	item := &models.CartItem{UserID: actor.UserID, GameID: gameID, Kind: kind, Weeks: weeks}
	if err := s.library.UpsertCartItem(item); err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	item.Game = *g
	return item, nil
}

func (s *Service) RemoveFromCart(userID, gameID uint) error {
	removed, err := s.library.RemoveCartItem(userID, gameID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("cart item", gameID)
	}
	return nil
}

// GetCart returns the cart with its total. Rentals cost the weekly rental
// price times the number of weeks.
func (s *Service) GetCart(userID uint) (*Cart, error) {
	items, err := s.library.ListCart(userID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(ItemPrice(it))
	}
	return &Cart{Items: items, Total: total}, nil
}

func (s *Service) ClearCart(userID uint) error {
	return s.library.ClearCart(userID)
}

// ItemPrice returns the price of one cart entry.
func ItemPrice(it models.CartItem) decimal.Decimal {
	if it.Kind == models.CART_KIND_RENTAL {
		return it.Game.RentalPrice.Mul(decimal.NewFromInt(int64(it.Weeks)))
	}
	return it.Game.PurchasePrice
}
