// Package catalog implements browsing and admin maintenance of games.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/entitlements"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/ratings"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 24
	MaxPageSize     = 100

	maxSyncErrorLen = 500
)

type GameInput struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	CoverURL      string          `json:"cover_url"`
	Plan          string          `json:"plan"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	RentalPrice   decimal.Decimal `json:"rental_price"`
	IGDBID        *int64          `json:"igdb_id"`
}

// GamePatch carries the fields an admin wants to change. Nil fields are kept.
type GamePatch struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	CoverURL      *string          `json:"cover_url"`
	Plan          *string          `json:"plan"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	RentalPrice   *decimal.Decimal `json:"rental_price"`
	IGDBID        *int64           `json:"igdb_id"`
}

type Page struct {
	Games []models.Game `json:"games"`
	Total int64         `json:"total"`
}

type Service struct {
	games repository.GameRepository
}

func NewService(games repository.GameRepository) *Service {
	return &Service{games: games}
}

func (s *Service) load(id uint) (*models.Game, error) {
	g, err := s.games.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("game", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", id, err)
	}
	return g, nil
}

// ListGames returns one page of the catalog and the total number of matches.
func (s *Service) ListGames(filter repository.GameFilter) (*Page, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Plan = strings.ToLower(strings.TrimSpace(filter.Plan))
	if filter.Plan != "" && filter.Plan != models.GAME_PLAN_FREE && filter.Plan != models.GAME_PLAN_PREMIUM {
		return nil, apperr.Validation("unknown game plan %q", filter.Plan)
	}

	games, err := s.games.List(filter)
	if err != nil {
		return nil, err
	}
	total, err := s.games.Count(filter)
	if err != nil {
		return nil, err
	}
	return &Page{Games: games, Total: total}, nil
}

func (s *Service) GetGame(id uint) (*models.Game, error) {
	return s.load(id)
}

func (s *Service) CreateGame(actor entitlements.Actor, in GameInput) (*models.Game, error) {
	if err := entitlements.RequireAdmin(actor, "create game"); err != nil {
		return nil, err
	}

	plan := strings.ToLower(strings.TrimSpace(in.Plan))
	if plan == "" {
		plan = models.GAME_PLAN_FREE
	}
	g := &models.Game{
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		CoverURL:      strings.TrimSpace(in.CoverURL),
		Plan:          plan,
		PurchasePrice: in.PurchasePrice,
		RentalPrice:   in.RentalPrice,
		IGDBID:        in.IGDBID,
	}
	if err := g.Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if err := s.games.Create(g); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

// UpdateGame applies the non-nil fields of patch. A patch that changes
// nothing is rejected.
func (s *Service) UpdateGame(actor entitlements.Actor, id uint, patch GamePatch) (*models.Game, error) {
	if err := entitlements.RequireAdmin(actor, "update game"); err != nil {
		return nil, err
	}
	g, err := s.load(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) != g.Title {
		g.Title = strings.TrimSpace(*patch.Title)
		fields["title"] = g.Title
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != g.Description {
		g.Description = strings.TrimSpace(*patch.Description)
		fields["description"] = g.Description
	}
	if patch.CoverURL != nil && strings.TrimSpace(*patch.CoverURL) != g.CoverURL {
		g.CoverURL = strings.TrimSpace(*patch.CoverURL)
		fields["cover_url"] = g.CoverURL
	}
	if patch.Plan != nil && strings.ToLower(strings.TrimSpace(*patch.Plan)) != g.Plan {
		g.Plan = strings.ToLower(strings.TrimSpace(*patch.Plan))
		fields["plan"] = g.Plan
	}
	if patch.PurchasePrice != nil && !patch.PurchasePrice.Equal(g.PurchasePrice) {
		g.PurchasePrice = *patch.PurchasePrice
		fields["purchase_price"] = g.PurchasePrice
	}
	if patch.RentalPrice != nil && !patch.RentalPrice.Equal(g.RentalPrice) {
		g.RentalPrice = *patch.RentalPrice
		fields["rental_price"] = g.RentalPrice
	}
	if patch.IGDBID != nil && (g.IGDBID == nil || *g.IGDBID != *patch.IGDBID) {
		v := *patch.IGDBID
		g.IGDBID = &v
		fields["igdb_id"] = v
		// a new IGDB id invalidates the stored rating
		fields["last_igdb_sync_at"] = nil
		g.LastIGDBSyncAt = nil
	}

	if len(fields) == 0 {
		return nil, apperr.Validation("no fields changed")
	}
	if err := g.Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if err := s.games.UpdateFields(id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("game", id)
		}
		return nil, fmt.Errorf("update game %d: %w", id, err)
	}
	return g, nil
}

func (s *Service) DeleteGame(actor entitlements.Actor, id uint) error {
	if err := entitlements.RequireAdmin(actor, "delete game"); err != nil {
		return err
	}
	if err := s.games.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("game", id)
		}
		return fmt.Errorf("delete game %d: %w", id, err)
	}
	return nil
}

// GamesDueForRatingSync lists games without a rating sync since syncedBefore.
func (s *Service) GamesDueForRatingSync(syncedBefore time.Time, limit int) ([]models.Game, error) {
	return s.games.ListDueForRatingSync(syncedBefore, limit)
}

// ApplyAgeRating stores the normalized rating of a game. A nil choice clears
// the rating fields.
func (s *Service) ApplyAgeRating(id uint, igdbID int64, choice *ratings.Choice, metadata datatypes.JSONMap, syncedAt time.Time) error {
	fields := map[string]interface{}{
		"igdb_id":           igdbID,
		"age_rating_system": "",
		"age_rating_code":   "",
		"age_rating_label":  "",
		"last_igdb_sync_at": syncedAt,
		"igdb_sync_error":   "",
	}
	if choice != nil {
		fields["age_rating_system"] = choice.System
		fields["age_rating_code"] = choice.Code
		fields["age_rating_label"] = choice.Label
	}
	if metadata != nil {
		fields["igdb_metadata"] = metadata
	}
	return s.games.UpdateFields(id, fields)
}

// RecordSyncFailure stores why the last rating sync of a game failed.
func (s *Service) RecordSyncFailure(id uint, syncErr error, at time.Time) error {
	msg := syncErr.Error()
	// varchar(500) counts characters, not bytes
	if utf8.RuneCountInString(msg) > maxSyncErrorLen {
		msg = string([]rune(msg)[:maxSyncErrorLen])
	}
	return s.games.UpdateFields(id, map[string]interface{}{
		"igdb_sync_error":   msg,
		"last_igdb_sync_at": at,
	})
}
