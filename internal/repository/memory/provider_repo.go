// internal/repository/memory/provider_repo.go
package memory

import (
	"context"

	"pipx-client/internal/domain/auth"
	"pipx-client/internal/domain/provider"
	"pipx-client/internal/domain/signal"
	xerrors "pipx-client/internal/pkg/errors"
)

type ProviderRepository struct {
	db *DB
}

func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Profile(ctx context.Context, id, viewerID string) (*provider.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok || u.UserType != auth.UserTypeSignalProvider {
		return nil, xerrors.ErrNotFound
	}

	total, closed, won := 0, 0, 0
	for _, s := range r.db.signals {
		if s.ProviderID != id {
			continue
		}
		total++
		switch s.Status {
		case signal.StatusHit:
			closed++
			won++
		case signal.StatusStopped:
			closed++
		}
	}
	var winRate float64
	if closed > 0 {
		winRate = float64(won) / float64(closed)
	}

	return &provider.Profile{
		ID:           u.ID,
		FullName:     u.FullName,
		Username:     u.Username,
		Bio:          u.Bio,
		AvatarURL:    u.AvatarURL,
		Followers:    len(r.db.follows[id]),
		Signals:      total,
		WinRate:      winRate,
		FollowedByMe: r.db.follows[id][viewerID],
		CreatedAt:    u.CreatedAt,
	}, nil
}

// SetFollow follows or unfollows a provider and returns the result.
func (r *ProviderRepository) SetFollow(ctx context.Context, providerID, userID string, follow bool) (*provider.FollowResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[providerID]
	if !ok || u.UserType != auth.UserTypeSignalProvider {
		return nil, xerrors.ErrNotFound
	}
	if providerID == userID {
		return nil, xerrors.ErrInvalidInput
	}
	if r.db.follows[providerID] == nil {
		r.db.follows[providerID] = make(map[string]bool)
	}
	if follow {
		r.db.follows[providerID][userID] = true
	} else {
		delete(r.db.follows[providerID], userID)
	}
	return &provider.FollowResult{
		ProviderID: providerID,
		Following:  follow,
		Followers:  len(r.db.follows[providerID]),
	}, nil
}

// Followers lists the user ids following providerID.
func (r *ProviderRepository) Followers(ctx context.Context, providerID string) []string {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]string, 0, len(r.db.follows[providerID]))
	for id := range r.db.follows[providerID] {
		out = append(out, id)
	}
	return out
}

// Following counts the providers userID follows.
func (r *ProviderRepository) Following(ctx context.Context, userID string) int {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, users := range r.db.follows {
		if users[userID] {
			n++
		}
	}
	return n
}
