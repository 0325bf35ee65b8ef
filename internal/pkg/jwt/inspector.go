// internal/pkg/jwt/inspector.go
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Inspector reads the expiry claim of bearer tokens without verifying their
// signature. The client never holds the signing key; it only needs to know
// when the server will stop accepting a token.
//
// Anything that cannot be decoded is reported as expired.
type Inspector struct {
	now    func() time.Time
	parser *jwt.Parser
}

func NewInspector() *Inspector {
	return NewInspectorWithClock(time.Now)
}

func NewInspectorWithClock(now func() time.Time) *Inspector {
	return &Inspector{
		now:    now,
		parser: jwt.NewParser(),
	}
}

// ExpiresAt returns the exp claim of the token. ok is false when the token
// cannot be decoded or carries no exp claim.
func (i *Inspector) ExpiresAt(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// ExpiryMillis returns the expiry instant in milliseconds since epoch, or nil.
func (i *Inspector) ExpiryMillis(token string) *int64 {
	exp, ok := i.ExpiresAt(token)
	if !ok {
		return nil
	}
	ms := exp.UnixMilli()
	return &ms
}

// IsExpired reports whether now >= exp. Undecodable tokens are expired.
func (i *Inspector) IsExpired(token string) bool {
	exp, ok := i.ExpiresAt(token)
	if !ok {
		return true
	}
	return !i.now().Before(exp)
}

// Now exposes the inspector's clock so callers compare against the same time source.
func (i *Inspector) Now() time.Time {
	return i.now()
}
