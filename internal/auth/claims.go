package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
//
// Numbers lists the phone numbers assigned to the caller; the analytics
// scope guard filters to them for non-admin roles. The user directory
// service fills them in at login. Refresh tokens carry neither role nor
// numbers.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Numbers   []string  `json:"numbers,omitempty"`
	TokenType TokenType `json:"token_type"`
}
