package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	GAME_PLAN_FREE    = "free"
	GAME_PLAN_PREMIUM = "premium"
)

// Game is a catalog entry. The age_rating_* columns hold the normalized
// rating picked from IGDB and are written by the rating sync only.
type Game struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Title           string            `gorm:"type:varchar(200);not null;index" json:"title" validate:"required,min=1,max=200"`
	Description     string            `gorm:"type:text" json:"description" validate:"max=5000"`
	CoverURL        string            `gorm:"type:varchar(500);default:''" json:"cover_url" validate:"omitempty,url,max=500"`
	Plan            string            `gorm:"type:varchar(20);not null;default:'free';index" json:"plan" validate:"oneof=free premium"`
	PurchasePrice   decimal.Decimal   `gorm:"type:decimal(10,2);not null;default:0" json:"purchase_price"`
	RentalPrice     decimal.Decimal   `gorm:"type:decimal(10,2);not null;default:0" json:"rental_price"`
	AgeRatingSystem string            `gorm:"type:varchar(10);default:''" json:"age_rating_system,omitempty"`
	AgeRatingCode   string            `gorm:"type:varchar(10);default:''" json:"age_rating_code,omitempty"`
	AgeRatingLabel  string            `gorm:"type:varchar(50);default:''" json:"age_rating_label,omitempty"`
	IGDBID          *int64            `gorm:"column:igdb_id;default:null;index" json:"igdb_id,omitempty"`
	LastIGDBSyncAt  *time.Time        `gorm:"column:last_igdb_sync_at;type:timestamp;default:null;index" json:"last_igdb_sync_at,omitempty"`
	IGDBSyncError   string            `gorm:"column:igdb_sync_error;type:varchar(500);default:''" json:"-"`
	IGDBMetadata    datatypes.JSONMap `gorm:"column:igdb_metadata;type:json" json:"-"`
	ViewCount       int64             `gorm:"default:0" json:"view_count"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (g *Game) Validate() error {
	v := validator.New()

	if err := v.Struct(g); err != nil {
		return err
	}
	if g.PurchasePrice.IsNegative() || g.RentalPrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// IsPremium reports whether the game is only playable on a premium role.
func (g *Game) IsPremium() bool {
	return g.Plan == GAME_PLAN_PREMIUM
}

// HasAgeRating reports whether a normalized rating has been stored.
func (g *Game) HasAgeRating() bool {
	return g.AgeRatingSystem != ""
}
