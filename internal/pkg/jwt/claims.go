// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// User types carried in the user_type claim.
const (
	UserTypeUser           = "USER"
	UserTypeSignalProvider = "SIGNAL_PROVIDER"
)

// Claims represents the PipX access token claims
type Claims struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	Device   string `json:"device,omitempty"`
	Purpose  string `json:"purpose"` // access, refresh
	jwt.RegisteredClaims
}
