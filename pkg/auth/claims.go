package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minelance/minelance-backend/pkg/enums"
)

// IdentityClaims is the token issued by the identity provider after the
// Discord OAuth exchange. The API only verifies it.
type IdentityClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller handed to every workflow.
type Identity struct {
	ID   uuid.UUID
	Role enums.UserRole
}

func (i Identity) IsAdmin() bool {
	return i.Role == enums.UserRoleAdmin
}

// HasRole reports whether the caller holds any of roles.
func (i Identity) HasRole(roles ...enums.UserRole) bool {
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}
	return false
}
