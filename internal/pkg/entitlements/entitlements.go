package entitlements

import (
	"strings"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
)

// Actor identifies the caller of a gated operation.
type Actor struct {
	UserID uint
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, models.ROLE_ADMIN)
}

// RequireAdmin rejects non-admin actors with apperr.ErrUnauthorized.
func RequireAdmin(a Actor, op string) error {
	if !a.IsAdmin() {
		return apperr.Unauthorized(op)
	}
	return nil
}

// CanAccessGame reports whether a role may play a game of the given catalog plan.
// Premium games need the premium or admin role, free games are open to all.
func CanAccessGame(role, gamePlan string) bool {
	if gamePlan != models.GAME_PLAN_PREMIUM {
		return true
	}
	switch role {
	case models.ROLE_PREMIUM, models.ROLE_ADMIN:
		return true
	default:
		return false
	}
}

// MaxRentalWeeks returns how many weeks a role may rent a game for at once.
func MaxRentalWeeks(role string) int {
	switch role {
	case models.ROLE_PREMIUM, models.ROLE_ADMIN:
		return 4
	default:
		return 2
	}
}
