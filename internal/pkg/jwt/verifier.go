// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAccessToken  = errors.New("token is not an access token")
	ErrUnknownUserType = errors.New("unknown user type")
	ErrMissingUser     = errors.New("token carries no user")
)

// Verifier checks tokens issued by Generator: RS256 signature, issuer,
// audience and expiry.
type Verifier struct {
	pub    *rsa.PublicKey
	parser *jwt.Parser
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub: pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify validates the signature and registered claims of any PipX token.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, fmt.Errorf("jwt verifier has nil public key")
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.pub, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrMissingUser
	}
	return claims, nil
}

// VerifyAccessToken also requires the access purpose and a known user_type,
// which is normalized to upper case on the returned claims.
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "access" {
		return nil, ErrNotAccessToken
	}

	switch ut := strings.ToUpper(claims.UserType); ut {
	case UserTypeUser, UserTypeSignalProvider:
		claims.UserType = ut
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUserType, claims.UserType)
	}
	return claims, nil
}
