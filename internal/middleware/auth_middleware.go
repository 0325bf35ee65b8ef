// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RevocationChecker reports whether a token id has been logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) bool
}

type AuthMiddleware struct {
	verifier *jwt.Verifier
	sessions RevocationChecker
}

func NewAuthMiddleware(verifier *jwt.Verifier, sessions RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		sessions: sessions,
	}
}

// Auth is the base authentication middleware that validates access tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.Validate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// Validate verifies token and rejects it once its session was logged out.
func (m *AuthMiddleware) Validate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := m.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	if m.sessions != nil && m.sessions.IsRevoked(ctx, claims.ID) {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// RequireUserType middleware that requires one of the given user types
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireUserType(types ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := GetUserType(c)
		for _, t := range types {
			if userType == t {
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "insufficient permissions", nil, map[string]interface{}{
			"required_user_types": types,
			"user_type":           userType,
		})
	}
}

// ProviderOnly returns middlewares for signal provider routes (Auth + RequireUserType)
func (m *AuthMiddleware) ProviderOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireUserType(jwt.UserTypeSignalProvider),
	}
}

// OptionalAuth middleware that doesn't abort if no token is provided
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.Validate(c.Request.Context(), token)
		if err != nil {
			// Don't abort, just continue without setting user context
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUserType, claims.UserType)
	c.Set(ctxJTI, claims.ID)
	c.Set(ctxDevice, claims.Device)
	if claims.ExpiresAt != nil {
		c.Set(ctxExpiresAt, claims.ExpiresAt.Time)
	}
}

// ExtractToken extracts the Bearer token from the Authorization header,
// falling back to the token query parameter used by websocket clients.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return c.Query("token")
}
