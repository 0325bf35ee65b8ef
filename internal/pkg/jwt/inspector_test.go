package jwt

import (
	"crypto/rand"
	"errors"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	return signHS256(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
}

func TestInspector_IsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	in := NewInspectorWithClock(func() time.Time { return now })

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"expired an hour ago", tokenExpiringAt(t, now.Add(-time.Hour)), true},
		{"expired one second ago", tokenExpiringAt(t, now.Add(-time.Second)), true},
		{"expires exactly now", tokenExpiringAt(t, now), true},
		{"expires in an hour", tokenExpiringAt(t, now.Add(time.Hour)), false},
		{"no exp claim", signHS256(t, jwt.RegisteredClaims{Subject: "u1"}), true},
		{"empty", "", true},
		{"garbage", "not-a-token", true},
		{"bad payload", "aaa.bbb.ccc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := in.IsExpired(tt.token); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInspector_ExpiryMillis(t *testing.T) {
	in := NewInspector()
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	ms := in.ExpiryMillis(tokenExpiringAt(t, exp))
	if ms == nil {
		t.Fatal("expected expiry, got nil")
	}
	if *ms != exp.UnixMilli() {
		t.Errorf("ExpiryMillis() = %d, want %d", *ms, exp.UnixMilli())
	}

	if got := in.ExpiryMillis("broken"); got != nil {
		t.Errorf("expected nil for undecodable token, got %d", *got)
	}
}

func TestInspector_IgnoresSignature(t *testing.T) {
	// The client cannot verify the server's signature; a token signed with an
	// unknown key must still be readable.
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	gen := NewGenerator(key, "pipx", "pipx-app", "", time.Hour)
	tok, _, err := gen.GenerateAccessToken("u1", UserTypeSignalProvider, "cli")
	if err != nil {
		t.Fatal(err)
	}

	if NewInspector().IsExpired(tok) {
		t.Error("freshly generated token reported as expired")
	}
}

func TestVerifier_RoundTrip(t *testing.T) {
	m, err := LoadAndBuild(Config{Issuer: "pipx", Audience: "pipx-app", TTL: time.Hour})
	if err != nil {
		t.Fatalf("LoadAndBuild: %v", err)
	}

	tok, jti, err := m.Generator.GenerateAccessToken("u42", UserTypeUser, "cli")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.Verifier.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != "u42" || claims.ID != jti {
		t.Errorf("unexpected claims: %+v", claims)
	}

	refresh, _, _ := m.Generator.GenerateRefreshToken("u42", "cli", time.Hour)
	if _, err := m.Verifier.VerifyAccessToken(refresh); err == nil {
		t.Error("refresh token accepted as access token")
	}
}

func TestVerifier_RejectsForeignAndMalformedTokens(t *testing.T) {
	m, err := LoadAndBuild(Config{Issuer: "pipx", Audience: "pipx-app", TTL: time.Hour})
	if err != nil {
		t.Fatalf("LoadAndBuild: %v", err)
	}
	other, err := LoadAndBuild(Config{Issuer: "pipx", Audience: "pipx-app", TTL: time.Hour})
	if err != nil {
		t.Fatalf("LoadAndBuild: %v", err)
	}
	wrongAudience := NewGenerator(m.Generator.priv, "pipx", "elsewhere", "", time.Hour)

	mustSign := func(tok string, _ string, err error) string {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "unknown user type", token: mustSign(m.Generator.GenerateAccessToken("u1", "ADMIN", "cli")), wantErr: ErrUnknownUserType},
		{name: "missing user", token: mustSign(m.Generator.GenerateAccessToken("", UserTypeUser, "cli")), wantErr: ErrMissingUser},
		{name: "refresh token", token: mustSign(m.Generator.GenerateRefreshToken("u1", "cli", time.Hour)), wantErr: ErrNotAccessToken},
		{name: "other signing key", token: mustSign(other.Generator.GenerateAccessToken("u1", UserTypeUser, "cli"))},
		{name: "wrong audience", token: mustSign(wrongAudience.GenerateAccessToken("u1", UserTypeUser, "cli"))},
		{name: "hs256", token: signHS256(t, &Claims{UserID: "u1", UserType: UserTypeUser, Purpose: "access"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verifier.VerifyAccessToken(tt.token)
			if err == nil {
				t.Fatal("token accepted")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifier_NormalizesUserType(t *testing.T) {
	m, err := LoadAndBuild(Config{Issuer: "pipx", Audience: "pipx-app", TTL: time.Hour})
	if err != nil {
		t.Fatalf("LoadAndBuild: %v", err)
	}
	tok, _, err := m.Generator.GenerateAccessToken("u1", "signal_provider", "cli")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.Verifier.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserType != UserTypeSignalProvider {
		t.Errorf("UserType = %q, want %q", claims.UserType, UserTypeSignalProvider)
	}
}
