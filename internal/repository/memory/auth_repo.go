// internal/repository/memory/auth_repo.go
package memory

import (
	"context"
	"strings"
	"time"

	"pipx-client/internal/domain/auth"
	xerrors "pipx-client/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

// UserRecord is a stored account, password hash included.
type UserRecord struct {
	auth.User
	PasswordHash string
	Bio          string
}

type otpEntry struct {
	code    string
	expires time.Time
}

type AuthRepository struct {
	db *DB
}

func NewAuthRepository(db *DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// CreateUser stores u and assigns its ID.
func (r *AuthRepository) CreateUser(ctx context.Context, u *UserRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := r.db.byEmail[email]; exists {
		return xerrors.ErrDuplicateEntry
	}

	u.ID = ulid.Make().String()
	u.Email = email
	u.CreatedAt = r.db.now().UTC()
	r.db.users[u.ID] = u
	r.db.byEmail[email] = u.ID
	return nil
}

func (r *AuthRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return r.db.users[id], nil
}

func (r *AuthRepository) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

// ========== OTP ==========

func (r *AuthRepository) SaveOTP(ctx context.Context, email, code string, ttl time.Duration) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.otps[strings.ToLower(email)] = otpEntry{code: code, expires: r.db.now().Add(ttl)}
}

// ConsumeOTP checks code and deletes it on success. Codes are single use.
func (r *AuthRepository) ConsumeOTP(ctx context.Context, email, code string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := strings.ToLower(email)
	e, ok := r.db.otps[key]
	if !ok || e.code != code || !r.db.now().Before(e.expires) {
		return xerrors.ErrOTPInvalid
	}
	delete(r.db.otps, key)
	return nil
}

// ========== Sessions ==========

func (r *AuthRepository) AddSession(ctx context.Context, userID, jti string, exp time.Time) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.sessions[userID] == nil {
		r.db.sessions[userID] = make(map[string]time.Time)
	}
	r.db.sessions[userID][jti] = exp
}

func (r *AuthRepository) RevokeSession(ctx context.Context, userID, jti string) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if exp, ok := r.db.sessions[userID][jti]; ok {
		r.db.revoked[jti] = exp
		delete(r.db.sessions[userID], jti)
	}
}

// RevokeAll revokes every session of userID and returns how many there were.
func (r *AuthRepository) RevokeAll(ctx context.Context, userID string) int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := len(r.db.sessions[userID])
	for jti, exp := range r.db.sessions[userID] {
		r.db.revoked[jti] = exp
	}
	delete(r.db.sessions, userID)
	return n
}

func (r *AuthRepository) IsRevoked(ctx context.Context, jti string) bool {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	_, ok := r.db.revoked[jti]
	return ok
}

// PurgeExpired forgets revocations whose tokens have run out anyway.
func (r *AuthRepository) PurgeExpired(ctx context.Context) int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	n := 0
	for jti, exp := range r.db.revoked {
		if !now.Before(exp) {
			delete(r.db.revoked, jti)
			n++
		}
	}
	return n
}
