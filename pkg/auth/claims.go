package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin marks operator tokens allowed on the admin routes.
const RoleAdmin = "admin"

// SessionTokenPayload captures the data available when minting a session JWT.
type SessionTokenPayload struct {
	SessionID string
	UserID    *string
	Role      string
}

// SessionClaims is the typed JWT presented by shoppers and operators. The
// session id keys the cart; the user id is only present for signed-in
// shoppers.
type SessionClaims struct {
	SessionID string  `json:"sid"`
	UserID    *string `json:"uid,omitempty"`
	Role      string  `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants operator access.
func (c SessionClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
