package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_FREE    = "free"
	ROLE_PREMIUM = "premium"
	ROLE_ADMIN   = "admin"
)

const (
	PLAN_MONTHLY   = "monthly"
	PLAN_QUARTERLY = "quarterly"
	PLAN_ANNUAL    = "annual"
	PLAN_LIFETIME  = "lifetime"
)

var (
	ErrPremiumWithoutPlan   = errors.New("premium role requires a plan")
	ErrLifetimeAutoRenew    = errors.New("lifetime plan cannot auto-renew")
	ErrLifetimeWithDeadline = errors.New("lifetime plan cannot expire")
)

// User is the account profile. The premium_* columns describe the current
// commercial standing and are only meaningful while Role is premium.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role             string         `gorm:"type:varchar(20);default:'free';index" json:"role" validate:"oneof=free premium admin"`
	PremiumPlan      string         `gorm:"type:varchar(20);default:''" json:"premium_plan" validate:"omitempty,oneof=monthly quarterly annual lifetime"`
	PremiumAutoRenew bool           `gorm:"default:false" json:"premium_auto_renew"`
	PremiumExpiresAt *time.Time     `gorm:"type:timestamp;default:null;index" json:"premium_expires_at"`
	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	LastSeenAt       *time.Time     `gorm:"type:timestamp;default:null" json:"last_seen_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	if err := v.Struct(u); err != nil {
		return err
	}
	return u.ValidatePlanState()
}

// ValidatePlanState checks the role/plan invariants of the profile.
func (u *User) ValidatePlanState() error {
	if u.Role == ROLE_PREMIUM && u.PremiumPlan == "" {
		return ErrPremiumWithoutPlan
	}
	if u.PremiumPlan == PLAN_LIFETIME {
		if u.PremiumAutoRenew {
			return ErrLifetimeAutoRenew
		}
		if u.PremiumExpiresAt != nil {
			return ErrLifetimeWithDeadline
		}
	}
	return nil
}

func CreateUser(name string, email string, role string) (*User, error) {
	if role == "" {
		role = ROLE_FREE
	}

	u := &User{
		Name:  name,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Role:  role,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// IsPremium reports whether the user currently holds the premium role.
func (u *User) IsPremium() bool {
	return u.Role == ROLE_PREMIUM
}

// IsAdmin reports whether the user is an administrator
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// HasLifetimePlan reports whether the user owns a plan that never expires.
func (u *User) HasLifetimePlan() bool {
	return u.Role == ROLE_PREMIUM && u.PremiumPlan == PLAN_LIFETIME
}

// IsKnownRole reports whether role is one of the supported roles.
func IsKnownRole(role string) bool {
	switch role {
	case ROLE_FREE, ROLE_PREMIUM, ROLE_ADMIN:
		return true
	default:
		return false
	}
}

// IsKnownPlan reports whether plan is one of the supported premium plans.
func IsKnownPlan(plan string) bool {
	switch plan {
	case PLAN_MONTHLY, PLAN_QUARTERLY, PLAN_ANNUAL, PLAN_LIFETIME:
		return true
	default:
		return false
	}
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "pv_"

// IssueAPIKey generates a new API key, stores its hash on the struct and
// returns the raw secret. Callers must persist the user afterwards.
func (u *User) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	u.APIKeyHash = hash
	u.APIKeyPrefix = prefix
	u.APIKeyCreatedAt = &now
	return rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 16)]
	return rawKey, prefix, HashAPIKey(rawKey), nil
}
