package models

import (
	"errors"
	"time"
)

const (
	CART_KIND_PURCHASE = "purchase"
	CART_KIND_RENTAL   = "rental"
)

var ErrNegativePrice = errors.New("price must not be negative")

// Favorite marks a game on a user's wishlist.
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:ux_favorites_user_game,unique,priority:1" json:"user_id"`
	GameID    uint      `gorm:"not null;index:ux_favorites_user_game,unique,priority:2;index" json:"game_id"`
	Game      Game      `gorm:"foreignKey:GameID" json:"game,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CartItem is a pending purchase or rental. Weeks is only used for rentals.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:ux_cart_items_user_game,unique,priority:1" json:"user_id"`
	GameID    uint      `gorm:"not null;index:ux_cart_items_user_game,unique,priority:2" json:"game_id"`
	Game      Game      `gorm:"foreignKey:GameID" json:"game,omitempty"`
	Kind      string    `gorm:"type:varchar(20);not null" json:"kind" validate:"oneof=purchase rental"`
	Weeks     int       `gorm:"default:0" json:"weeks,omitempty" validate:"min=0,max=4"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
